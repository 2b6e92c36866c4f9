package mcp

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/analysistest"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

func testConfig(analysisURL string) config.Config {
	var cfg config.Config
	cfg.Host = "127.0.0.1"
	cfg.Port = "0"
	cfg.Analysis.BaseURL = analysisURL
	cfg.Analysis.Timeout = 5 * time.Second
	cfg.Poll.Interval = 5 * time.Millisecond
	cfg.Poll.Timeout = 5 * time.Second
	cfg.Poll.RetryAttempts = 1
	cfg.Poll.RetryDelay = time.Millisecond
	cfg.Trend.Up = 5
	cfg.Trend.Down = -5
	return cfg
}

func startServer(t *testing.T) (*analysistest.Service, *sdkmcp.ClientSession) {
	t.Helper()

	fake := analysistest.New()
	analysisSrv := fake.Start()
	t.Cleanup(analysisSrv.Close)

	srv, err := NewServer(context.Background(), logging.NewNop(), testConfig(analysisSrv.URL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "server-test", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint: httpSrv.URL + "/mcp/stream",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return fake, session
}

func resultText(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_Healthz(t *testing.T) {
	srv := newServer(logging.NewNop(), testConfig("http://unused"), &Resources{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "ok", string(body))
	assert.NotContains(t, srv.Tools(), "job_history")
}

func TestServer_ListsTools(t *testing.T) {
	_, session := startServer(t)

	res, err := session.ListTools(context.Background(), &sdkmcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"analysis_submit", "analysis_status", "analysis_track", "analysis_jobs",
		"metric_compare", "sheets_export",
	}, names)
}

func TestServer_SubmitWaitAndCompare(t *testing.T) {
	fake, session := startServer(t)
	ctx := context.Background()

	fake.NextJobID("J1")
	fake.Script("J1", analysistest.DefaultSteps("A1")...)
	fake.SetAnalysis("A1", map[string]any{
		"ratios": map[string]any{
			"current_ratio": map[string]any{"2024": 1.65, "2023": 1.5},
		},
	})

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name: "analysis_submit",
		Arguments: map[string]any{
			"company_id":   "C1",
			"company_name": "Acme Traders",
			"documents": []map[string]any{{
				"name":           "bs.pdf",
				"content_base64": base64.StdEncoding.EncodeToString([]byte("%PDF")),
			}},
			"wait": true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "[analysis_submit] job J1 completed, analysis A1", resultText(t, res))

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name: "metric_compare",
		Arguments: map[string]any{
			"analysis_id": "A1",
			"metrics":     []string{"ratios.current_ratio"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "improving")

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "analysis_jobs", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "J1 completed 100%")
}
