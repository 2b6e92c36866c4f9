package job

import (
	"context"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
)

// Repository persists job history
type Repository interface {
	// RecordJob creates or updates the record keyed by JobID
	RecordJob(ctx context.Context, rec domain.JobRecord) error

	// FindByCompany returns the jobs submitted for a company, newest first
	FindByCompany(ctx context.Context, companyID string) ([]domain.JobRecord, error)
}
