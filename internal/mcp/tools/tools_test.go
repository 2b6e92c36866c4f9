package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

type fakeJobs struct {
	submitted []analysisapi.Submission
	contents  map[string]string
	final     analysisapi.Job
	trackErr  error
	jobs      []analysisapi.Job
}

func (f *fakeJobs) Submit(_ context.Context, sub analysisapi.Submission) (analysisapi.SubmitResponse, error) {
	f.submitted = append(f.submitted, sub)
	f.contents = make(map[string]string)
	for _, d := range sub.Documents {
		data, _ := io.ReadAll(d.Reader)
		f.contents[d.Name] = string(data)
	}
	return analysisapi.SubmitResponse{JobID: "J1", Status: analysisapi.StatusQueued, FilesCount: len(sub.Documents)}, nil
}

func (f *fakeJobs) Status(_ context.Context, jobID string) (analysisapi.Job, error) {
	return analysisapi.Job{ID: jobID, Status: analysisapi.StatusProcessing, Progress: 40}, nil
}

func (f *fakeJobs) Track(_ context.Context, jobID string, onProgress job.ProgressFunc) (analysisapi.Job, error) {
	if onProgress != nil {
		onProgress(f.final)
	}
	return f.final, f.trackErr
}

func (f *fakeJobs) Jobs() []analysisapi.Job {
	return f.jobs
}

type fakeComparisons struct {
	sectionCalls int
	metricCalls  []string
}

func (f *fakeComparisons) CompareMetric(_ context.Context, analysisID, path, year string) (analysis.MetricReport, error) {
	f.metricCalls = append(f.metricCalls, path)
	if path == "ratios.missing" {
		return analysis.MetricReport{}, analysis.ErrSeriesNotFound
	}
	cur, prev, change := 1.65, 1.5, 10.0
	return analysis.MetricReport{
		Metric:       path,
		Year:         "2024",
		PreviousYear: "2023",
		Comparison: metrics.Comparison{
			Current:       &cur,
			Previous:      &prev,
			ChangePercent: &change,
			Trend:         metrics.TrendImproving,
		},
	}, nil
}

func (f *fakeComparisons) CompareSection(_ context.Context, analysisID, section, year string) ([]analysis.MetricReport, error) {
	f.sectionCalls++
	return []analysis.MetricReport{
		{Metric: "debt_equity", Year: "2024", Comparison: metrics.Comparison{Trend: metrics.TrendStable}},
	}, nil
}

type fakeSheets struct {
	requests []SheetsExportRequest
}

func (f *fakeSheets) Export(_ context.Context, req SheetsExportRequest) (SheetsExportResult, error) {
	f.requests = append(f.requests, req)
	return SheetsExportResult{
		SpreadsheetID: req.Sheet.SpreadsheetID,
		Tab:           req.Sheet.Tab,
		WrittenRows:   len(req.Rows),
		Mode:          "append",
		Message:       "ok",
	}, nil
}

type fakeHistory struct {
	records []domain.JobRecord
}

func (f *fakeHistory) History(_ context.Context, companyID string) ([]domain.JobRecord, error) {
	return f.records, nil
}

func text(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegister_ToolNames(t *testing.T) {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test", Version: "0.0.1"}, nil)

	names := Register(server, nil,
		WithJobTools(&fakeJobs{}),
		WithMetricCompare(&fakeComparisons{}),
		WithSheetsExport(&fakeComparisons{}, &fakeSheets{}),
		WithJobHistory(&fakeHistory{}),
		nil,
	)

	assert.Equal(t, []string{
		"analysis_submit", "analysis_status", "analysis_track", "analysis_jobs",
		"metric_compare", "sheets_export", "job_history",
	}, names)
}

func TestAnalysisSubmit_FilesAndInlineDocuments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pl_2024.pdf")
	require.NoError(t, os.WriteFile(path, []byte("profit and loss"), 0o600))

	svc := &fakeJobs{}
	h := &jobTools{service: svc, logger: logging.NewNop()}

	res, out, err := h.submit(context.Background(), nil, &AnalysisSubmitParams{
		CompanyID: "C1",
		Files:     []string{path},
		Documents: []InlineDocument{{
			Name:          "bs_2024.csv",
			ContentBase64: base64.StdEncoding.EncodeToString([]byte("assets,1000")),
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "job J1 queued (2 file(s))")

	result, ok := out.(AnalysisSubmitResult)
	require.True(t, ok)
	assert.Nil(t, result.Job)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "C1", svc.submitted[0].CompanyID)
	assert.Equal(t, map[string]string{"pl_2024.pdf": "profit and loss", "bs_2024.csv": "assets,1000"}, svc.contents)
}

func TestAnalysisSubmit_Wait(t *testing.T) {
	svc := &fakeJobs{final: analysisapi.Job{
		ID:     "J1",
		Status: analysisapi.StatusCompleted,
		Result: &analysisapi.JobResult{AnalysisID: "A1"},
	}}
	h := &jobTools{service: svc, logger: logging.NewNop()}

	res, out, err := h.submit(context.Background(), nil, &AnalysisSubmitParams{
		CompanyID: "C1",
		Documents: []InlineDocument{{Name: "a.pdf", ContentBase64: base64.StdEncoding.EncodeToString([]byte("x"))}},
		Wait:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "[analysis_submit] job J1 completed, analysis A1", text(t, res))

	result := out.(AnalysisSubmitResult)
	require.NotNil(t, result.Job)
	assert.Equal(t, analysisapi.StatusCompleted, result.Job.Status)
}

func TestAnalysisSubmit_InvalidInput(t *testing.T) {
	h := &jobTools{service: &fakeJobs{}, logger: logging.NewNop()}

	_, _, err := h.submit(context.Background(), nil, &AnalysisSubmitParams{
		CompanyID: "C1",
		Documents: []InlineDocument{{Name: "a.pdf", ContentBase64: "%%%"}},
	})
	require.Error(t, err)

	_, _, err = h.submit(context.Background(), nil, &AnalysisSubmitParams{
		CompanyID: "C1",
		Files:     []string{filepath.Join(t.TempDir(), "missing.pdf")},
	})
	require.Error(t, err)

	_, _, err = h.submit(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestAnalysisTrack(t *testing.T) {
	svc := &fakeJobs{
		final:    analysisapi.Job{ID: "J9", Status: analysisapi.StatusFailed, Error: "bad file"},
		trackErr: &job.JobFailedError{JobID: "J9", Reason: "bad file"},
	}
	h := &jobTools{service: svc, logger: logging.NewNop()}

	_, _, err := h.track(context.Background(), nil, &TrackParams{JobID: "J9", TimeoutSeconds: 5})
	require.EqualError(t, err, "bad file")

	_, _, err = h.track(context.Background(), nil, &TrackParams{})
	assert.ErrorIs(t, err, analysisapi.ErrJobIDRequired)
}

func TestAnalysisStatusAndJobs(t *testing.T) {
	svc := &fakeJobs{jobs: []analysisapi.Job{
		{ID: "J1", Status: analysisapi.StatusCompleted, Progress: 100, CreatedAt: time.Now()},
	}}
	h := &jobTools{service: svc, logger: logging.NewNop()}

	res, out, err := h.status(context.Background(), nil, &JobParams{JobID: "J2"})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "job J2 processing (40%)")
	assert.Equal(t, 40, out.(analysisapi.Job).Progress)

	res, out, err = h.list(context.Background(), nil, &JobListParams{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "J1 completed 100%")
	assert.Len(t, out.(JobListResult).Jobs, 1)
}

func TestMetricCompare(t *testing.T) {
	svc := &fakeComparisons{}
	h := metricCompareTool{service: svc, logger: logging.NewNop()}

	res, out, err := h.handle(context.Background(), nil, &MetricCompareParams{
		AnalysisID: "A1",
		Section:    "ratios",
		Metrics:    []string{"ratios.current_ratio"},
	})
	require.NoError(t, err)

	result := out.(MetricCompareResult)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, 1, svc.sectionCalls)
	assert.Contains(t, text(t, res), "ratios.current_ratio 2024: 1.65 (prev 1.50, +10.0%, improving)")

	_, _, err = h.handle(context.Background(), nil, &MetricCompareParams{AnalysisID: "A1"})
	require.Error(t, err)

	_, _, err = h.handle(context.Background(), nil, &MetricCompareParams{AnalysisID: "A1", Metrics: []string{"ratios.missing"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, analysis.ErrSeriesNotFound))
}

func TestSheetsExport(t *testing.T) {
	sheets := &fakeSheets{}
	h := sheetsExportTool{comparisons: &fakeComparisons{}, client: sheets, logger: logging.NewNop()}

	params := &SheetsExportParams{
		AnalysisID: "A1",
		Metrics:    []string{"ratios.current_ratio"},
		Sheet:      SheetTarget{SpreadsheetID: "S1", Tab: "Ratios"},
		ClearTab:   true,
	}
	_, out, err := h.handle(context.Background(), nil, params)
	require.NoError(t, err)
	assert.Equal(t, 1, out.(SheetsExportResult).WrittenRows)

	require.Len(t, sheets.requests, 1)
	req := sheets.requests[0]
	assert.True(t, req.ClearTab)
	assert.Equal(t, SheetRow{
		Metric:       "ratios.current_ratio",
		Year:         "2024",
		Current:      "1.65",
		PreviousYear: "2023",
		Previous:     "1.50",
		Change:       "+10.0%",
		Trend:        "improving",
	}, req.Rows[0])

	params.Sheet.SpreadsheetID = ""
	_, _, err = h.handle(context.Background(), nil, params)
	require.Error(t, err)
}

func TestJobHistory(t *testing.T) {
	submitted := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	svc := &fakeHistory{records: []domain.JobRecord{
		{JobID: "J2", Status: "failed", Error: "bad file", SubmittedAt: submitted},
		{JobID: "J1", Status: "completed", Progress: 100, AnalysisID: "A1", SubmittedAt: submitted},
	}}
	h := jobHistoryHandler{service: svc, logger: logging.NewNop()}

	res, out, err := h.handle(context.Background(), nil, &JobHistoryParams{CompanyID: "C1", Status: "completed"})
	require.NoError(t, err)

	result := out.(JobHistoryResult)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "J1", result.Jobs[0].JobID)
	assert.Contains(t, text(t, res), "analysis:  A1")

	_, _, err = h.handle(context.Background(), nil, &JobHistoryParams{})
	require.Error(t, err)

	unconfigured := jobHistoryHandler{logger: logging.NewNop()}
	_, _, err = unconfigured.handle(context.Background(), nil, &JobHistoryParams{CompanyID: "C1"})
	require.Error(t, err)
}
