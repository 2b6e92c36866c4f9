package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// JobService is the analysis job lifecycle used by the job tools
type JobService interface {
	Submit(ctx context.Context, sub analysisapi.Submission) (analysisapi.SubmitResponse, error)
	Status(ctx context.Context, jobID string) (analysisapi.Job, error)
	Track(ctx context.Context, jobID string, onProgress job.ProgressFunc) (analysisapi.Job, error)
	Jobs() []analysisapi.Job
}

// InlineDocument carries file content inside the tool call
type InlineDocument struct {
	Name          string `json:"name" jsonschema:"File name including extension"`
	ContentBase64 string `json:"content_base64" jsonschema:"Base64 encoded file content"`
}

// AnalysisSubmitParams defines the arguments for the analysis_submit tool
type AnalysisSubmitParams struct {
	CompanyID   string           `json:"company_id" jsonschema:"Company the documents belong to"`
	CompanyName string           `json:"company_name,omitempty" jsonschema:"Display name of the company"`
	Files       []string         `json:"files,omitempty" jsonschema:"Paths of documents readable by the server"`
	Documents   []InlineDocument `json:"documents,omitempty" jsonschema:"Documents sent inline"`
	Wait        bool             `json:"wait,omitempty" jsonschema:"Track the job until it completes or fails"`
}

// AnalysisSubmitResult is returned by analysis_submit
type AnalysisSubmitResult struct {
	analysisapi.SubmitResponse
	Job *analysisapi.Job `json:"job,omitempty" jsonschema:"Terminal job snapshot when wait was requested"`
}

// JobParams selects one job
type JobParams struct {
	JobID string `json:"job_id" jsonschema:"Analysis job identifier"`
}

// TrackParams defines the arguments for the analysis_track tool
type TrackParams struct {
	JobID          string `json:"job_id" jsonschema:"Analysis job identifier"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Give up after this many seconds"`
}

// JobListParams is empty; analysis_jobs takes no arguments
type JobListParams struct{}

// JobListResult is returned by analysis_jobs
type JobListResult struct {
	Jobs []analysisapi.Job `json:"jobs"`
}

type jobTools struct {
	service JobService
	logger  *logging.Logger
}

// WithJobTools registers analysis_submit, analysis_status, analysis_track and analysis_jobs
func WithJobTools(service JobService) Option {
	return func(reg *registry) {
		h := &jobTools{service: service, logger: reg.logger}

		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "analysis_submit",
			Description: "Upload financial documents for a company to the analysis service",
		}, h.submit)
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "analysis_status",
			Description: "Fetch the current status of an analysis job once",
		}, h.status)
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "analysis_track",
			Description: "Poll an analysis job until it completes or fails, reporting progress",
		}, h.track)
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "analysis_jobs",
			Description: "List analysis jobs seen by this server",
		}, h.list)

		reg.add("analysis_submit")
		reg.add("analysis_status")
		reg.add("analysis_track")
		reg.add("analysis_jobs")
	}
}

func (h *jobTools) submit(ctx context.Context, req *sdkmcp.CallToolRequest, params *AnalysisSubmitParams) (*sdkmcp.CallToolResult, any, error) {
	if h.service == nil {
		return nil, nil, fmt.Errorf("job service not configured")
	}
	if params == nil {
		return nil, nil, fmt.Errorf("missing parameters")
	}

	h.logger.Info("analysis_submit request",
		"company_id", params.CompanyID,
		"files", len(params.Files),
		"inline_documents", len(params.Documents),
		"wait", params.Wait,
	)

	docs, err := collectDocuments(params)
	if err != nil {
		h.logger.Error("analysis_submit: invalid documents", "err", err)
		return nil, nil, err
	}
	defer docs.Close()

	sub := analysisapi.Submission{
		Documents:   docs,
		CompanyID:   params.CompanyID,
		CompanyName: params.CompanyName,
	}

	resp, err := h.service.Submit(ctx, sub)
	if err != nil {
		h.logger.Error("analysis_submit: submit failed", "err", err)
		return nil, nil, err
	}

	result := AnalysisSubmitResult{SubmitResponse: resp}
	if !params.Wait {
		msg := fmt.Sprintf("[analysis_submit] job %s %s (%d file(s))", resp.JobID, resp.Status, resp.FilesCount)
		return textResult(msg), result, nil
	}

	final, err := h.service.Track(ctx, resp.JobID, progressNotifier(ctx, req, h.logger))
	if err != nil {
		h.logger.Warn("analysis_submit: tracking ended with error", "job_id", resp.JobID, "err", err)
		return nil, nil, fmt.Errorf("job %s: %w", resp.JobID, err)
	}
	result.Job = &final

	return textResult(describeJob("analysis_submit", final)), result, nil
}

func (h *jobTools) status(ctx context.Context, req *sdkmcp.CallToolRequest, params *JobParams) (*sdkmcp.CallToolResult, any, error) {
	if h.service == nil {
		return nil, nil, fmt.Errorf("job service not configured")
	}
	if params == nil || params.JobID == "" {
		return nil, nil, analysisapi.ErrJobIDRequired
	}

	snap, err := h.service.Status(ctx, params.JobID)
	if err != nil {
		h.logger.Error("analysis_status failed", "job_id", params.JobID, "err", err)
		return nil, nil, err
	}

	h.logger.Debug("analysis_status", "job_id", snap.ID, "status", snap.Status, "progress", snap.Progress)
	return textResult(describeJob("analysis_status", snap)), snap, nil
}

func (h *jobTools) track(ctx context.Context, req *sdkmcp.CallToolRequest, params *TrackParams) (*sdkmcp.CallToolResult, any, error) {
	if h.service == nil {
		return nil, nil, fmt.Errorf("job service not configured")
	}
	if params == nil || params.JobID == "" {
		return nil, nil, analysisapi.ErrJobIDRequired
	}

	if params.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(params.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	h.logger.Info("analysis_track started", "job_id", params.JobID, "timeout_seconds", params.TimeoutSeconds)

	final, err := h.service.Track(ctx, params.JobID, progressNotifier(ctx, req, h.logger))
	if err != nil {
		h.logger.Warn("analysis_track ended with error", "job_id", params.JobID, "err", err)
		return nil, nil, err
	}

	h.logger.Info("analysis_track completed", "job_id", final.ID, "status", final.Status)
	return textResult(describeJob("analysis_track", final)), final, nil
}

func (h *jobTools) list(ctx context.Context, req *sdkmcp.CallToolRequest, params *JobListParams) (*sdkmcp.CallToolResult, any, error) {
	if h.service == nil {
		return nil, nil, fmt.Errorf("job service not configured")
	}

	jobs := h.service.Jobs()
	if len(jobs) == 0 {
		return textResult("[analysis_jobs] No jobs tracked yet"), JobListResult{Jobs: jobs}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[analysis_jobs] %d job(s)\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&sb, "\n- %s %s %d%%", j.ID, j.Status, j.Progress)
	}
	return textResult(sb.String()), JobListResult{Jobs: jobs}, nil
}

func collectDocuments(params *AnalysisSubmitParams) (analysisapi.Documents, error) {
	docs, err := analysisapi.OpenDocuments(params.Files...)
	if err != nil {
		return nil, err
	}

	for _, inline := range params.Documents {
		if inline.Name == "" {
			_ = docs.Close()
			return nil, fmt.Errorf("inline document name is required")
		}
		data, err := base64.StdEncoding.DecodeString(inline.ContentBase64)
		if err != nil {
			_ = docs.Close()
			return nil, fmt.Errorf("inline document %s: %w", inline.Name, err)
		}
		docs = append(docs, analysisapi.Document{Name: inline.Name, Reader: bytes.NewReader(data)})
	}

	return docs, nil
}

// progressNotifier forwards observations as MCP progress notifications when
// the caller asked for them.
func progressNotifier(ctx context.Context, req *sdkmcp.CallToolRequest, logger *logging.Logger) job.ProgressFunc {
	if req == nil || req.Session == nil || req.Params == nil {
		return nil
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return nil
	}

	return func(j analysisapi.Job) {
		err := req.Session.NotifyProgress(ctx, &sdkmcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(j.Progress),
			Total:         100,
			Message:       fmt.Sprintf("%s (%d%%)", j.Status, j.Progress),
		})
		if err != nil {
			logger.Debug("progress notification failed", "job_id", j.ID, "err", err)
		}
	}
}

func describeJob(tool string, j analysisapi.Job) string {
	switch st := j.State().(type) {
	case analysisapi.Completed:
		return fmt.Sprintf("[%s] job %s completed, analysis %s", tool, j.ID, st.Result.AnalysisID)
	case analysisapi.Failed:
		reason := st.Reason
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Sprintf("[%s] job %s failed: %s", tool, j.ID, reason)
	case analysisapi.Processing:
		return fmt.Sprintf("[%s] job %s processing (%d%%) %s", tool, j.ID, st.Progress, j.Message)
	default:
		return fmt.Sprintf("[%s] job %s %s %s", tool, j.ID, j.Status, j.Message)
	}
}
