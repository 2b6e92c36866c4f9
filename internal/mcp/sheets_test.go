package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/mcp/tools"
)

type call struct {
	op     string
	range_ string
	values [][]interface{}
}

type recordingWriter struct {
	calls []call
	err   error
}

func (w *recordingWriter) AppendValues(_ context.Context, _ string, range_ string, values [][]interface{}) error {
	w.calls = append(w.calls, call{op: "append", range_: range_, values: values})
	return w.err
}

func (w *recordingWriter) UpdateValues(_ context.Context, _ string, range_ string, values [][]interface{}) error {
	w.calls = append(w.calls, call{op: "update", range_: range_, values: values})
	return w.err
}

func (w *recordingWriter) ClearValues(_ context.Context, _ string, range_ string) error {
	w.calls = append(w.calls, call{op: "clear", range_: range_})
	return w.err
}

func exportRequest() tools.SheetsExportRequest {
	return tools.SheetsExportRequest{
		Sheet: tools.SheetTarget{SpreadsheetID: "S1", Tab: "Ratios"},
		Rows: []tools.SheetRow{{
			Metric: "current_ratio", Year: "2024", Current: "1.65",
			PreviousYear: "2023", Previous: "1.50", Change: "+10.0%", Trend: "improving",
		}},
	}
}

func TestSheetsAdapter_Append(t *testing.T) {
	w := &recordingWriter{}
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	a := &sheetsClientAdapter{client: w, clock: func() time.Time { return now }}

	res, err := a.Export(context.Background(), exportRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, res.WrittenRows)
	assert.Equal(t, "append", res.Mode)
	assert.Equal(t, now, res.CompletedAt)

	require.Len(t, w.calls, 1)
	assert.Equal(t, "append", w.calls[0].op)
	assert.Equal(t, "Ratios!A1", w.calls[0].range_)
	require.Len(t, w.calls[0].values, 1, "no header when appending")
	assert.Equal(t, []interface{}{"current_ratio", "2024", "1.65", "2023", "1.50", "+10.0%", "improving"}, w.calls[0].values[0])
}

func TestSheetsAdapter_ClearAndUpsert(t *testing.T) {
	w := &recordingWriter{}
	a := &sheetsClientAdapter{client: w, clock: time.Now}

	req := exportRequest()
	req.Sheet.Tab = ""
	req.ClearTab = true
	req.Upsert = true

	res, err := a.Export(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "upsert", res.Mode)

	require.Len(t, w.calls, 2)
	assert.Equal(t, call{op: "clear", range_: "Sheet1!A1:Z"}, w.calls[0])
	assert.Equal(t, "update", w.calls[1].op)
	require.Len(t, w.calls[1].values, 2)
	assert.Equal(t, sheetHeader, w.calls[1].values[0])
}

func TestSheetsAdapter_Errors(t *testing.T) {
	_, err := newSheetsClientAdapter(nil).Export(context.Background(), exportRequest())
	require.Error(t, err)

	w := &recordingWriter{err: errors.New("quota exceeded")}
	a := &sheetsClientAdapter{client: w, clock: time.Now}
	_, err = a.Export(context.Background(), exportRequest())
	require.ErrorContains(t, err, "quota exceeded")

	empty := exportRequest()
	empty.Rows = nil
	res, err := (&sheetsClientAdapter{client: &recordingWriter{}, clock: time.Now}).Export(context.Background(), empty)
	require.NoError(t, err)
	assert.Equal(t, "no rows to export", res.Message)
}
