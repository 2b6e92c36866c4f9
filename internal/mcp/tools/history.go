package tools

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// HistoryService loads recorded analysis jobs
type HistoryService interface {
	History(ctx context.Context, companyID string) ([]domain.JobRecord, error)
}

// JobHistoryParams defines the arguments for the job_history tool
type JobHistoryParams struct {
	CompanyID string `json:"company_id" jsonschema:"Company whose analysis jobs to list"`
	Status    string `json:"status,omitempty" jsonschema:"Only return jobs with this status"`
}

// JobHistoryResult is returned by job_history
type JobHistoryResult struct {
	CompanyID string             `json:"company_id"`
	Jobs      []domain.JobRecord `json:"jobs"`
}

type jobHistoryHandler struct {
	service HistoryService
	logger  *logging.Logger
}

// WithJobHistory registers the job_history tool
func WithJobHistory(service HistoryService) Option {
	return func(reg *registry) {
		handler := jobHistoryHandler{service: service, logger: reg.logger}
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "job_history",
			Description: "List analysis jobs recorded in the Neo4j job history for a company",
		}, handler.handle)
		reg.add("job_history")
	}
}

func (h jobHistoryHandler) handle(ctx context.Context, req *sdkmcp.CallToolRequest, params *JobHistoryParams) (*sdkmcp.CallToolResult, any, error) {
	if h.service == nil {
		return textResult("job_history unavailable: history store not configured"), nil, fmt.Errorf("history store not configured")
	}
	if params == nil || params.CompanyID == "" {
		return nil, nil, fmt.Errorf("company_id is required")
	}

	records, err := h.service.History(ctx, params.CompanyID)
	if err != nil {
		h.logger.Error("job_history failed", "company_id", params.CompanyID, "err", err)
		return textResult(fmt.Sprintf("job_history error: %v", err)), nil, err
	}

	if params.Status != "" {
		filtered := records[:0]
		for _, rec := range records {
			if strings.EqualFold(rec.Status, params.Status) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	h.logger.Debug("job_history", "company_id", params.CompanyID, "jobs", len(records))

	result := JobHistoryResult{CompanyID: params.CompanyID, Jobs: records}
	return textResult(formatHistory(params.CompanyID, records)), result, nil
}

func formatHistory(companyID string, records []domain.JobRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No analysis jobs recorded for company %q", companyID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Jobs for company %q:\n", companyID)
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for i, rec := range records {
		fmt.Fprintf(&sb, "%d. %s  %s  %d%%\n", i+1, rec.JobID, rec.Status, rec.Progress)
		if !rec.SubmittedAt.IsZero() {
			fmt.Fprintf(&sb, "   submitted: %s\n", rec.SubmittedAt.Format("2006-01-02 15:04:05"))
		}
		if rec.AnalysisID != "" {
			fmt.Fprintf(&sb, "   analysis:  %s\n", rec.AnalysisID)
		}
		if rec.Error != "" {
			fmt.Fprintf(&sb, "   error:     %s\n", rec.Error)
		}
	}

	return sb.String()
}
