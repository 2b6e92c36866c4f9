package job

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/analysistest"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
)

type memoryRepo struct {
	mu      sync.Mutex
	records []domain.JobRecord
	err     error
}

func (r *memoryRepo) RecordJob(_ context.Context, rec domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRepo) FindByCompany(_ context.Context, companyID string) ([]domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.JobRecord
	for _, rec := range r.records {
		if rec.Company.ID == companyID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) snapshot() []domain.JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.JobRecord(nil), r.records...)
}

func newTestService(t *testing.T, repo Repository) (Service, *analysistest.Service) {
	t.Helper()

	fake := analysistest.New()
	srv := fake.Start()
	t.Cleanup(srv.Close)

	client, err := analysisapi.NewClient(analysisapi.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	opts := []Option{
		WithClient(client),
		WithPollOptions(fastPoll()),
		WithClock(func() time.Time { return time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC) }),
	}
	if repo != nil {
		opts = append(opts, WithRepository(repo))
	}

	svc, err := NewService(opts...)
	require.NoError(t, err)
	return svc, fake
}

func testSubmission() analysisapi.Submission {
	return analysisapi.Submission{
		Documents:   []analysisapi.Document{{Name: "balance_sheet.pdf", Reader: bytes.NewBufferString("%PDF-1.4")}},
		CompanyID:   "C1",
		CompanyName: "Acme Traders",
	}
}

func TestNewService_RequiresClient(t *testing.T) {
	_, err := NewService()
	require.Error(t, err)

	_, err = NewServiceWithDeps(nil, nil, DefaultPollOptions(), nil)
	require.Error(t, err)
}

func TestService_SubmitAndTrack(t *testing.T) {
	repo := &memoryRepo{}
	svc, fake := newTestService(t, repo)
	fake.NextJobID("J1")
	fake.Script("J1", analysistest.DefaultSteps("A1")...)

	var seen []analysisapi.Job
	job, err := svc.SubmitAndTrack(context.Background(), testSubmission(), func(j analysisapi.Job) {
		seen = append(seen, j)
	})
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, analysisapi.StatusQueued, seen[0].Status)
	assert.Equal(t, analysisapi.StatusProcessing, seen[1].Status)
	assert.Equal(t, 50, seen[1].Progress)
	assert.Equal(t, analysisapi.StatusCompleted, seen[2].Status)

	require.NotNil(t, job.Result)
	assert.Equal(t, "A1", job.Result.AnalysisID)

	uploads := fake.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "C1", uploads[0].CompanyID)
	assert.Equal(t, []byte("%PDF-1.4"), uploads[0].Files["balance_sheet.pdf"])

	require.Eventually(t, func() bool { return len(repo.snapshot()) == 2 }, time.Second, time.Millisecond)
	records := repo.snapshot()
	assert.Equal(t, "queued", records[0].Status)
	assert.Equal(t, domain.CompanyRef{ID: "C1", Name: "Acme Traders"}, records[0].Company)
	assert.Equal(t, "completed", records[1].Status)
	assert.Equal(t, "A1", records[1].AnalysisID)
	assert.Equal(t, records[0].SubmittedAt, records[1].SubmittedAt)

	jobs := svc.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, analysisapi.StatusCompleted, jobs[0].Status)

	history, err := svc.History(context.Background(), "C1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestService_TrackFailedJob(t *testing.T) {
	svc, fake := newTestService(t, nil)
	fake.Script("J2",
		analysistest.Step{Status: "processing", Progress: 30},
		analysistest.Step{Status: "failed", Progress: 30, Error: "bad file"},
	)

	_, err := svc.Track(context.Background(), "J2", nil)
	require.Error(t, err)
	assert.Equal(t, "bad file", err.Error())

	var failed *JobFailedError
	assert.ErrorAs(t, err, &failed)
}

func TestService_SubmitValidationAndServiceErrors(t *testing.T) {
	svc, fake := newTestService(t, nil)

	sub := testSubmission()
	sub.Documents = nil
	_, err := svc.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, analysisapi.ErrNoDocuments)

	fake.FailUploads(&analysistest.Step{HTTPStatus: 400, Detail: "Unsupported file type"})
	_, err = svc.Submit(context.Background(), testSubmission())
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type", err.Error())
	assert.Empty(t, svc.Jobs())
}

func TestService_StatusRefreshesSnapshot(t *testing.T) {
	svc, fake := newTestService(t, nil)
	fake.Script("J3", analysistest.Step{Status: "processing", Progress: 70})

	job, err := svc.Status(context.Background(), "J3")
	require.NoError(t, err)
	assert.Equal(t, 70, job.Progress)

	jobs := svc.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "J3", jobs[0].ID)

	_, err = svc.Status(context.Background(), "missing")
	assert.EqualError(t, err, "Job not found")
}

func TestService_RecordFailuresAreNotFatal(t *testing.T) {
	repo := &memoryRepo{err: errors.New("neo4j unavailable")}
	svc, fake := newTestService(t, repo)
	fake.NextJobID("J4")

	resp, err := svc.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "J4", resp.JobID)
}

func TestService_HistoryWithoutRepository(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.History(context.Background(), "C1")
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}
