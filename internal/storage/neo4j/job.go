package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	pkgneo4j "github.com/albinvar/bixss-ca-frontend-sub000/pkg/neo4j"
)

// Ensure JobRepository implements job.Repository
var _ job.Repository = (*JobRepository)(nil)

// JobRepository stores analysis job history as
// (:Company)-[:SUBMITTED]->(:AnalysisJob) in Neo4j
type JobRepository struct {
	client *pkgneo4j.Client
}

// NewJobRepository creates a JobRepository with a Neo4j client
func NewJobRepository(client *pkgneo4j.Client) *JobRepository {
	return &JobRepository{
		client: client,
	}
}

// EnsureSchema creates the uniqueness constraint on job ids
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.client.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			`CREATE CONSTRAINT analysis_job_id IF NOT EXISTS FOR (j:AnalysisJob) REQUIRE j.jobId IS UNIQUE`,
			nil,
		)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("ensure job schema: %w", err)
	}
	return nil
}

// RecordJob merges the job node and links it to its company when known.
// Empty fields never overwrite stored ones.
func (r *JobRepository) RecordJob(ctx context.Context, rec domain.JobRecord) error {
	if rec.JobID == "" {
		return fmt.Errorf("record job: job id is required")
	}

	query := `
		MERGE (j:AnalysisJob {jobId: $jobId})
		ON CREATE SET j.createdAt = datetime()
		SET j.status = $status,
		    j.progress = $progress,
		    j.message = $message,
		    j.observedAt = $observedAt
		FOREACH (_ IN CASE WHEN $error <> '' THEN [1] ELSE [] END |
			SET j.error = $error
		)
		FOREACH (_ IN CASE WHEN $analysisId <> '' THEN [1] ELSE [] END |
			SET j.analysisId = $analysisId
		)
		FOREACH (_ IN CASE WHEN $submittedAt IS NULL THEN [] ELSE [1] END |
			SET j.submittedAt = $submittedAt
		)
		FOREACH (_ IN CASE WHEN $companyId <> '' THEN [1] ELSE [] END |
			MERGE (c:Company {id: $companyId})
			SET c.name = CASE WHEN $companyName <> '' THEN $companyName ELSE c.name END
			MERGE (c)-[:SUBMITTED]->(j)
		)
	`

	params := map[string]any{
		"jobId":       rec.JobID,
		"status":      rec.Status,
		"progress":    int64(rec.Progress),
		"message":     rec.Message,
		"error":       rec.Error,
		"analysisId":  rec.AnalysisID,
		"observedAt":  rec.ObservedAt.UTC(),
		"submittedAt": optionalTime(rec.SubmittedAt),
		"companyId":   rec.Company.ID,
		"companyName": rec.Company.Name,
	}

	_, err := r.client.Write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("record job %s: %w", rec.JobID, err)
	}
	return nil
}

// FindByCompany loads the jobs of a company, newest submission first
func (r *JobRepository) FindByCompany(ctx context.Context, companyID string) ([]domain.JobRecord, error) {
	query := `
		MATCH (c:Company {id: $companyId})-[:SUBMITTED]->(j:AnalysisJob)
		RETURN j.jobId AS jobId,
		       c.name AS companyName,
		       j.status AS status,
		       j.progress AS progress,
		       j.message AS message,
		       j.analysisId AS analysisId,
		       j.error AS error,
		       j.submittedAt AS submittedAt,
		       j.observedAt AS observedAt
		ORDER BY j.submittedAt DESC, j.jobId
	`

	out, err := r.client.Read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"companyId": companyID})
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		jobs := make([]domain.JobRecord, 0, len(records))
		for _, record := range records {
			jobs = append(jobs, toJobRecord(record, companyID))
		}
		return jobs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find jobs for company %s: %w", companyID, err)
	}

	return out.([]domain.JobRecord), nil
}

func toJobRecord(record *neo4j.Record, companyID string) domain.JobRecord {
	rec := domain.JobRecord{
		JobID:      stringValue(record, "jobId"),
		Company:    domain.CompanyRef{ID: companyID, Name: stringValue(record, "companyName")},
		Status:     stringValue(record, "status"),
		Message:    stringValue(record, "message"),
		AnalysisID: stringValue(record, "analysisId"),
		Error:      stringValue(record, "error"),
	}

	if progress, _, err := neo4j.GetRecordValue[int64](record, "progress"); err == nil {
		rec.Progress = int(progress)
	}
	rec.SubmittedAt = timeValue(record, "submittedAt")
	rec.ObservedAt = timeValue(record, "observedAt")

	return rec
}

func stringValue(record *neo4j.Record, key string) string {
	v, _, err := neo4j.GetRecordValue[string](record, key)
	if err != nil {
		return ""
	}
	return v
}

func timeValue(record *neo4j.Record, key string) time.Time {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return time.Time{}
	}
	switch v := raw.(type) {
	case time.Time:
		return v
	case neo4j.LocalDateTime:
		return v.Time()
	default:
		return time.Time{}
	}
}

func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
