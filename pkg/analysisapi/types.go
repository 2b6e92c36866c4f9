package analysisapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Config defines analysis service client settings
type Config struct {
	BaseURL     string
	Credentials Credentials
	HTTPClient  *http.Client
	Timeout     time.Duration
	UserAgent   string
}

// Client talks to the queue-backed financial analysis service
type Client struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
	userAgent   string
}

// Credentials supplies the bearer token attached to every request.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token
type StaticToken string

// Token returns the token itself
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Status is the lifecycle state reported by the service for a job
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Known reports whether s is one of the documented statuses.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is one file uploaded with a submission
type Document struct {
	Name   string
	Reader io.Reader
}

// Submission describes a unit of analysis work
type Submission struct {
	Documents   []Document
	CompanyID   string
	CompanyName string
}

// SubmitResponse is returned by the upload endpoint
type SubmitResponse struct {
	JobID      string `json:"job_id"`
	Status     Status `json:"status"`
	Message    string `json:"message"`
	FilesCount int    `json:"files_count"`
}

// JobResult is the payload of a completed job. Only AnalysisID is typed;
// Raw keeps the payload as the service sent it.
type JobResult struct {
	AnalysisID string          `json:"analysis_id"`
	Summary    map[string]any  `json:"summary,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Job is one observed snapshot of an analysis job
type Job struct {
	ID          string     `json:"job_id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// State exposes the job status as a tagged variant. Result and Error are
// only carried by the states they belong to.
func (j Job) State() State {
	switch j.Status {
	case StatusCompleted:
		var res JobResult
		if j.Result != nil {
			res = *j.Result
		}
		return Completed{Result: res}
	case StatusFailed:
		return Failed{Reason: j.Error}
	case StatusProcessing:
		return Processing{Progress: j.Progress}
	default:
		return Queued{}
	}
}

// State is implemented by Queued, Processing, Completed and Failed only.
type State interface {
	Status() Status
	sealed()
}

type Queued struct{}

type Processing struct {
	Progress int
}

type Completed struct {
	Result JobResult
}

type Failed struct {
	Reason string
}

func (Queued) Status() Status     { return StatusQueued }
func (Processing) Status() Status { return StatusProcessing }
func (Completed) Status() Status  { return StatusCompleted }
func (Failed) Status() Status     { return StatusFailed }

func (Queued) sealed()     {}
func (Processing) sealed() {}
func (Completed) sealed()  {}
func (Failed) sealed()     {}

// Analysis is the untyped analysis document (company info, statements, ratios, notes)
type Analysis map[string]any

type jobStatusResponse struct {
	JobID       string          `json:"job_id"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}
