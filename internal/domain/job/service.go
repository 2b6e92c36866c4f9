package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// ErrHistoryUnavailable is returned by History when no repository is configured
var ErrHistoryUnavailable = errors.New("job history is not configured")

type Service interface {
	Submit(ctx context.Context, sub analysisapi.Submission) (analysisapi.SubmitResponse, error)
	Status(ctx context.Context, jobID string) (analysisapi.Job, error)
	Track(ctx context.Context, jobID string, onProgress ProgressFunc) (analysisapi.Job, error)
	SubmitAndTrack(ctx context.Context, sub analysisapi.Submission, onProgress ProgressFunc) (analysisapi.Job, error)
	Jobs() []analysisapi.Job
	History(ctx context.Context, companyID string) ([]domain.JobRecord, error)
}

// Option configures Service
type Option func(*config)

type config struct {
	client Client
	repo   Repository
	log    *logging.Logger
	poll   PollOptions
	clock  func() time.Time
}

// WithClient sets the analysis service client
func WithClient(client Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// WithRepository sets the job history repository
func WithRepository(repo Repository) Option {
	return func(c *config) {
		c.repo = repo
	}
}

// WithLogger sets the logger
func WithLogger(log *logging.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithPollOptions overrides DefaultPollOptions
func WithPollOptions(opts PollOptions) Option {
	return func(c *config) {
		c.poll = opts
	}
}

// WithClock sets a custom clock
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// NewService builds Service from options
func NewService(opts ...Option) (Service, error) {
	cfg := &config{
		poll:  DefaultPollOptions(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.client == nil {
		return nil, fmt.Errorf("job.Service: client is required")
	}

	return newService(cfg), nil
}

// NewServiceWithDeps creates a Service with direct dependencies (Wire-compatible).
// repo may be nil when job history is disabled.
func NewServiceWithDeps(client Client, repo Repository, poll PollOptions, log *logging.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("job.Service: client is required")
	}

	return newService(&config{
		client: client,
		repo:   repo,
		log:    log,
		poll:   poll,
		clock:  time.Now,
	}), nil
}

func newService(cfg *config) *service {
	log := cfg.log
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("jobs")

	poll := cfg.poll
	if poll.Logger == nil {
		poll.Logger = log
	}

	s := &service{
		client:    cfg.client,
		repo:      cfg.repo,
		log:       log,
		clock:     cfg.clock,
		submitted: make(map[string]submission),
	}
	s.tracker = NewTracker(cfg.client, poll, OnTerminal(func(job analysisapi.Job) {
		s.record(context.Background(), job)
	}))
	return s
}

type service struct {
	client  Client
	repo    Repository
	tracker *Tracker
	log     *logging.Logger
	clock   func() time.Time

	mu        sync.Mutex
	submitted map[string]submission
}

type submission struct {
	company domain.CompanyRef
	at      time.Time
}

// Submit uploads the documents and registers the queued job
func (s *service) Submit(ctx context.Context, sub analysisapi.Submission) (analysisapi.SubmitResponse, error) {
	resp, err := s.client.Submit(ctx, sub)
	if err != nil {
		s.log.Error("submit failed", "company_id", sub.CompanyID, "documents", len(sub.Documents), "error", err)
		return analysisapi.SubmitResponse{}, err
	}

	now := s.clock()
	s.log.Info("analysis job submitted",
		"job_id", resp.JobID,
		"company_id", sub.CompanyID,
		"files", resp.FilesCount,
	)

	s.mu.Lock()
	s.submitted[resp.JobID] = submission{
		company: domain.CompanyRef{ID: sub.CompanyID, Name: sub.CompanyName},
		at:      now,
	}
	s.mu.Unlock()

	status := resp.Status
	if status == "" {
		status = analysisapi.StatusQueued
	}
	queued := analysisapi.Job{
		ID:        resp.JobID,
		Status:    status,
		Message:   resp.Message,
		CreatedAt: now,
	}
	s.tracker.Remember(queued)
	s.record(ctx, queued)

	return resp, nil
}

// Status performs a single status fetch and refreshes the tracked snapshot
func (s *service) Status(ctx context.Context, jobID string) (analysisapi.Job, error) {
	job, err := s.client.GetStatus(ctx, jobID)
	if err != nil {
		return analysisapi.Job{}, err
	}

	s.tracker.Remember(job)
	if job.Status.Terminal() {
		s.record(ctx, job)
	}
	return job, nil
}

// Track waits for jobID to finish, sharing the poll loop with other callers
func (s *service) Track(ctx context.Context, jobID string, onProgress ProgressFunc) (analysisapi.Job, error) {
	return s.tracker.Watch(ctx, jobID, onProgress)
}

// SubmitAndTrack submits and then tracks the new job until it is terminal
func (s *service) SubmitAndTrack(
	ctx context.Context,
	sub analysisapi.Submission,
	onProgress ProgressFunc,
) (analysisapi.Job, error) {
	resp, err := s.Submit(ctx, sub)
	if err != nil {
		return analysisapi.Job{}, err
	}
	return s.Track(ctx, resp.JobID, onProgress)
}

// Jobs lists every job seen by this process
func (s *service) Jobs() []analysisapi.Job {
	return s.tracker.List()
}

// History loads recorded jobs of a company
func (s *service) History(ctx context.Context, companyID string) ([]domain.JobRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	if companyID == "" {
		return nil, analysisapi.ErrCompanyIDRequired
	}
	return s.repo.FindByCompany(ctx, companyID)
}

// record persists job; failures only get logged
func (s *service) record(ctx context.Context, job analysisapi.Job) {
	if s.repo == nil {
		return
	}

	s.mu.Lock()
	sub, ok := s.submitted[job.ID]
	s.mu.Unlock()

	rec := domain.JobRecord{
		JobID:      job.ID,
		Status:     string(job.Status),
		Progress:   job.Progress,
		Message:    job.Message,
		Error:      job.Error,
		ObservedAt: s.clock(),
	}
	if ok {
		rec.Company = sub.company
		rec.SubmittedAt = sub.at
	}
	if job.Result != nil {
		rec.AnalysisID = job.Result.AnalysisID
	}

	if err := s.repo.RecordJob(ctx, rec); err != nil {
		s.log.Warn("failed to record job", "job_id", job.ID, "status", job.Status, "error", err)
	}
}
