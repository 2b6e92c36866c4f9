package domain

import "time"

// CompanyRef references the company a job was submitted for
type CompanyRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// JobRecord is the persisted view of an analysis job: the submission
// context plus the last observed snapshot.
type JobRecord struct {
	JobID       string     `json:"job_id"`
	Company     CompanyRef `json:"company"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	AnalysisID  string     `json:"analysis_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ObservedAt  time.Time  `json:"observed_at"`
}

// Terminal reports whether the recorded status can no longer change
func (r JobRecord) Terminal() bool {
	return r.Status == "completed" || r.Status == "failed"
}
