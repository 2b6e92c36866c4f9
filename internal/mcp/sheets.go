package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/mcp/tools"
	sheetsclient "github.com/albinvar/bixss-ca-frontend-sub000/pkg/sheets"
)

var sheetHeader = []interface{}{"Metric", "Year", "Value", "Previous Year", "Previous Value", "Change", "Trend"}

// valueWriter is the part of *sheetsclient.Client the adapter uses
type valueWriter interface {
	AppendValues(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
	UpdateValues(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error
	ClearValues(ctx context.Context, spreadsheetID, range_ string) error
}

type sheetsClientAdapter struct {
	client valueWriter
	clock  func() time.Time
}

func newSheetsClientAdapter(client *sheetsclient.Client) *sheetsClientAdapter {
	a := &sheetsClientAdapter{clock: time.Now}
	if client != nil {
		a.client = client
	}
	return a
}

func (a *sheetsClientAdapter) Export(ctx context.Context, req tools.SheetsExportRequest) (tools.SheetsExportResult, error) {
	if a.client == nil {
		return tools.SheetsExportResult{
			SpreadsheetID: req.Sheet.SpreadsheetID,
			Tab:           req.Sheet.Tab,
			Message:       "Google Sheets client not configured (GOOGLE_SHEETS_CREDENTIALS_PATH not set)",
		}, fmt.Errorf("sheets: client not configured")
	}

	result := tools.SheetsExportResult{
		SpreadsheetID: req.Sheet.SpreadsheetID,
		Tab:           req.Sheet.Tab,
		Mode:          "append",
	}
	if req.Upsert {
		result.Mode = "upsert"
	}

	if len(req.Rows) == 0 {
		result.CompletedAt = a.clock().UTC()
		result.Message = "no rows to export"
		return result, nil
	}

	if req.ClearTab {
		if err := a.client.ClearValues(ctx, req.Sheet.SpreadsheetID, buildClearRange(req.Sheet.Tab)); err != nil {
			return result, fmt.Errorf("sheets: failed to clear sheet: %w", err)
		}
	}

	range_ := buildRange(req)
	values := convertRowsToValues(req.Rows, req.Upsert || req.ClearTab)

	if req.Upsert {
		if err := a.client.UpdateValues(ctx, req.Sheet.SpreadsheetID, range_, values); err != nil {
			return result, fmt.Errorf("sheets: failed to upsert rows: %w", err)
		}
	} else {
		if err := a.client.AppendValues(ctx, req.Sheet.SpreadsheetID, range_, values); err != nil {
			return result, fmt.Errorf("sheets: failed to append rows: %w", err)
		}
	}

	result.WrittenRows = len(req.Rows)
	result.CompletedAt = a.clock().UTC()
	result.Message = fmt.Sprintf("successfully exported %d row(s)", result.WrittenRows)

	return result, nil
}

func buildRange(req tools.SheetsExportRequest) string {
	if req.Sheet.Range != "" {
		return req.Sheet.Range
	}
	return fmt.Sprintf("%s!A1", tabName(req.Sheet.Tab))
}

func buildClearRange(tab string) string {
	return fmt.Sprintf("%s!A1:Z", tabName(tab))
}

func tabName(tab string) string {
	if tab == "" {
		return "Sheet1"
	}
	return tab
}

// convertRowsToValues renders rows in sheetHeader column order. The header
// is written when the tab is rewritten from the top.
func convertRowsToValues(rows []tools.SheetRow, withHeader bool) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	if withHeader {
		values = append(values, sheetHeader)
	}
	for _, row := range rows {
		values = append(values, []interface{}{
			row.Metric,
			row.Year,
			row.Current,
			row.PreviousYear,
			row.Previous,
			row.Change,
			row.Trend,
		})
	}
	return values
}
