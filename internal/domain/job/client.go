package job

import (
	"context"

	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
)

// StatusFetcher reads one job snapshot from the analysis service
type StatusFetcher interface {
	GetStatus(ctx context.Context, jobID string) (analysisapi.Job, error)
}

// Client is the subset of *analysisapi.Client the service needs
type Client interface {
	StatusFetcher

	// Submit uploads documents and returns the queued job id
	Submit(ctx context.Context, sub analysisapi.Submission) (analysisapi.SubmitResponse, error)
}

// ProgressFunc receives every observed snapshot, in order
type ProgressFunc func(job analysisapi.Job)
