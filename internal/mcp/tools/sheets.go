package tools

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// SheetsClient writes comparison rows to Google Sheets
type SheetsClient interface {
	Export(ctx context.Context, req SheetsExportRequest) (SheetsExportResult, error)
}

// SheetRow is one metric comparison rendered as strings
type SheetRow struct {
	Metric       string
	Year         string
	Current      string
	PreviousYear string
	Previous     string
	Change       string
	Trend        string
}

// SheetTarget names the destination of an export
type SheetTarget struct {
	SpreadsheetID string `json:"spreadsheet_id" jsonschema:"Google Sheets document ID"`
	Tab           string `json:"tab,omitempty" jsonschema:"Tab name, default Sheet1"`
	Range         string `json:"range,omitempty" jsonschema:"Optional A1 range override"`
}

// SheetsExportRequest is what the tool hands to the SheetsClient
type SheetsExportRequest struct {
	Sheet    SheetTarget
	Rows     []SheetRow
	Upsert   bool
	ClearTab bool
}

// SheetsExportParams defines the arguments for the sheets_export tool
type SheetsExportParams struct {
	AnalysisID string      `json:"analysis_id" jsonschema:"Analysis identifier from a completed job"`
	Section    string      `json:"section,omitempty" jsonschema:"Export every metric of a section"`
	Metrics    []string    `json:"metrics,omitempty" jsonschema:"Dotted metric paths to export"`
	Year       string      `json:"year,omitempty" jsonschema:"Four-digit year; defaults to the latest available"`
	Upsert     bool        `json:"upsert,omitempty" jsonschema:"Overwrite rows from the top (true) or append (false)"`
	ClearTab   bool        `json:"clear_tab,omitempty" jsonschema:"If true, clears the tab before writing"`
	Sheet      SheetTarget `json:"sheet" jsonschema:"Destination sheet information"`
}

// SheetsExportResult describes the summary returned after export
type SheetsExportResult struct {
	SpreadsheetID string    `json:"spreadsheet_id" jsonschema:"Target spreadsheet ID"`
	Tab           string    `json:"tab,omitempty" jsonschema:"Target tab name"`
	WrittenRows   int       `json:"written_rows" jsonschema:"How many rows were written"`
	Mode          string    `json:"mode" jsonschema:"append or upsert"`
	CompletedAt   time.Time `json:"completed_at" jsonschema:"Timestamp when export finished"`
	Message       string    `json:"message,omitempty" jsonschema:"Optional status message"`
}

type sheetsExportTool struct {
	comparisons ComparisonService
	client      SheetsClient
	logger      *logging.Logger
}

// WithSheetsExport registers the sheets_export tool
func WithSheetsExport(comparisons ComparisonService, client SheetsClient) Option {
	return func(reg *registry) {
		handler := sheetsExportTool{comparisons: comparisons, client: client, logger: reg.logger}
		sdkmcp.AddTool(reg.server, &sdkmcp.Tool{
			Name:        "sheets_export",
			Description: "Export year-over-year metric comparisons of an analysis to Google Sheets",
		}, handler.handle)
		reg.add("sheets_export")
	}
}

func (t sheetsExportTool) handle(ctx context.Context, req *sdkmcp.CallToolRequest, params *SheetsExportParams) (*sdkmcp.CallToolResult, any, error) {
	if t.comparisons == nil || t.client == nil {
		return nil, nil, fmt.Errorf("sheets export not configured")
	}
	if params == nil {
		return nil, nil, fmt.Errorf("missing parameters")
	}
	if params.Sheet.SpreadsheetID == "" {
		return nil, nil, fmt.Errorf("sheet.spreadsheet_id is required")
	}

	reports, err := collectReports(ctx, t.comparisons, params.AnalysisID, params.Section, params.Metrics, params.Year)
	if err != nil {
		t.logger.Error("sheets_export: comparison failed", "analysis_id", params.AnalysisID, "err", err)
		return nil, nil, err
	}

	result, err := t.client.Export(ctx, SheetsExportRequest{
		Sheet:    params.Sheet,
		Rows:     toSheetRows(reports),
		Upsert:   params.Upsert,
		ClearTab: params.ClearTab,
	})
	if err != nil {
		t.logger.Error("sheets_export: export failed", "spreadsheet_id", params.Sheet.SpreadsheetID, "err", err)
		return nil, nil, err
	}

	t.logger.Info("sheets_export completed",
		"spreadsheet_id", result.SpreadsheetID,
		"tab", result.Tab,
		"rows", result.WrittenRows,
		"mode", result.Mode,
	)

	msg := fmt.Sprintf("[sheets_export] %s: mode=%s spreadsheet_id=%q tab=%q", result.Message, result.Mode, result.SpreadsheetID, result.Tab)
	return textResult(msg), result, nil
}

func toSheetRows(reports []analysis.MetricReport) []SheetRow {
	rows := make([]SheetRow, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, SheetRow{
			Metric:       r.Metric,
			Year:         r.Year,
			Current:      metrics.FormatValue(r.Current),
			PreviousYear: r.PreviousYear,
			Previous:     metrics.FormatValue(r.Previous),
			Change:       metrics.FormatPercent(r.ChangePercent),
			Trend:        string(r.Trend),
		})
	}
	return rows
}
