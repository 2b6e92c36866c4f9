package tools

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// ComparisonService compares metrics of stored analyses
type ComparisonService interface {
	CompareMetric(ctx context.Context, analysisID, path, year string) (analysis.MetricReport, error)
	CompareSection(ctx context.Context, analysisID, section, year string) ([]analysis.MetricReport, error)
}

// MetricCompareParams defines the arguments for the metric_compare tool
type MetricCompareParams struct {
	AnalysisID string   `json:"analysis_id" jsonschema:"Analysis identifier from a completed job"`
	Metrics    []string `json:"metrics,omitempty" jsonschema:"Dotted metric paths e.g. ratios.current_ratio"`
	Section    string   `json:"section,omitempty" jsonschema:"Compare every metric of a section e.g. ratios"`
	Year       string   `json:"year,omitempty" jsonschema:"Four-digit year; defaults to the latest available"`
}

// MetricCompareResult is returned by metric_compare
type MetricCompareResult struct {
	AnalysisID string                  `json:"analysis_id"`
	Reports    []analysis.MetricReport `json:"reports"`
}

type metricCompareTool struct {
	service ComparisonService
	logger  *logging.Logger
}

// WithMetricCompare registers the metric_compare tool
func WithMetricCompare(service ComparisonService) Option {
	return func(reg *registry) {
		handler := metricCompareTool{service: service, logger: reg.logger}
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "metric_compare",
			Description: "Compare financial metrics of an analysis with the previous year and classify the trend",
		}, handler.handle)
		reg.add("metric_compare")
	}
}

func (t metricCompareTool) handle(ctx context.Context, req *sdkmcp.CallToolRequest, params *MetricCompareParams) (*sdkmcp.CallToolResult, any, error) {
	if t.service == nil {
		return nil, nil, fmt.Errorf("comparison service not configured")
	}
	if params == nil {
		return nil, nil, fmt.Errorf("missing parameters")
	}

	t.logger.Info("metric_compare request",
		"analysis_id", params.AnalysisID,
		"metrics", params.Metrics,
		"section", params.Section,
		"year", params.Year,
	)

	reports, err := collectReports(ctx, t.service, params.AnalysisID, params.Section, params.Metrics, params.Year)
	if err != nil {
		t.logger.Error("metric_compare failed", "analysis_id", params.AnalysisID, "err", err)
		return nil, nil, err
	}

	result := MetricCompareResult{AnalysisID: params.AnalysisID, Reports: reports}
	return textResult(formatReports("metric_compare", reports)), result, nil
}

// collectReports compares a whole section and/or individual metrics
func collectReports(
	ctx context.Context,
	service ComparisonService,
	analysisID, section string,
	metricPaths []string,
	year string,
) ([]analysis.MetricReport, error) {
	if section == "" && len(metricPaths) == 0 {
		return nil, fmt.Errorf("either section or metrics is required")
	}

	var reports []analysis.MetricReport
	if section != "" {
		sectionReports, err := service.CompareSection(ctx, analysisID, section, year)
		if err != nil {
			return nil, err
		}
		reports = append(reports, sectionReports...)
	}

	for _, path := range metricPaths {
		r, err := service.CompareMetric(ctx, analysisID, path, year)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", path, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func formatReports(tool string, reports []analysis.MetricReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d metric(s)\n", tool, len(reports))
	for _, r := range reports {
		sb.WriteString("\n- ")
		sb.WriteString(r.Summary())
	}
	return sb.String()
}
