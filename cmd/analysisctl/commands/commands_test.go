package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/analysistest"
)

func setupEnv(t *testing.T, analysisURL string) string {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NEXT_PUBLIC_ANALYSIS_API_URL", "")
	t.Setenv("ANALYSIS_API_URL", analysisURL)
	t.Setenv("ANALYSIS_API_TOKEN", "")
	t.Setenv("ANALYSIS_POLL_INTERVAL", "5ms")
	t.Setenv("ANALYSIS_POLL_TIMEOUT", "5s")
	t.Setenv("ANALYSIS_POLL_MAX_ATTEMPTS", "")
	t.Setenv("ANALYSIS_RETRY_DELAY", "1ms")
	t.Setenv("TREND_UP_THRESHOLD", "")
	t.Setenv("TREND_DOWN_THRESHOLD", "")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "missing.env")
}

func run(t *testing.T, envFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{"analysisctl", "--env", envFile}, args...))
	return out.String(), err
}

func TestSubmit_Watch(t *testing.T) {
	fake := analysistest.New()
	fake.NextJobID("J1")
	fake.Script("J1", analysistest.DefaultSteps("A1")...)
	srv := fake.Start()
	defer srv.Close()

	envFile := setupEnv(t, srv.URL)
	doc := filepath.Join(t.TempDir(), "balance.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4"), 0o600))

	out, err := run(t, envFile, "submit", "--company-id", "C1", "--company-name", "Acme", "--watch", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "J1\tcompleted\tanalysis=A1")

	uploads := fake.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "C1", uploads[0].CompanyID)
	assert.Contains(t, uploads[0].Files, "balance.pdf")
}

func TestWatch_ReportsFailedJobs(t *testing.T) {
	fake := analysistest.New()
	fake.Script("J1", analysistest.DefaultSteps("A1")...)
	fake.Script("J2", analysistest.Step{Status: "failed", Error: "bad file"})
	srv := fake.Start()
	defer srv.Close()

	envFile := setupEnv(t, srv.URL)

	out, err := run(t, envFile, "watch", "J1", "J2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job J2 failed: bad file")
	assert.Contains(t, out, "J1\tcompleted\tanalysis=A1")
	assert.Contains(t, out, "J2\tfailed\tbad file")
}

func TestWatch_FatalErrorStopsOtherJobs(t *testing.T) {
	fake := analysistest.New()
	fake.Script("J1", analysistest.Step{Status: "processing", Progress: 10, Message: "Parsing"})
	srv := fake.Start()
	defer srv.Close()

	envFile := setupEnv(t, srv.URL)

	start := time.Now()
	_, err := run(t, envFile, "watch", "J1", "MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch MISSING")
	assert.Less(t, time.Since(start), 2*time.Second, "J1 is not polled until the poll timeout")
}

func TestCompare_File(t *testing.T) {
	envFile := setupEnv(t, "http://127.0.0.1:1")

	doc := filepath.Join(t.TempDir(), "analysis.hjson")
	require.NoError(t, os.WriteFile(doc, []byte(`{
  # extracted from the 2024 annual report
  ratios: {
    current_ratio: { "2024": 1.65, "2023": 1.5 }
    debt_to_equity: { "2024": 0.8, "2023": 1.0 }
  }
}`), 0o600))

	out, err := run(t, envFile, "compare", "--file", doc, "--metric", "ratios.current_ratio")
	require.NoError(t, err)
	assert.Equal(t, "ratios.current_ratio 2024: 1.65 (prev 1.50, +10.0%, improving)\n", out)

	out, err = run(t, envFile, "compare", "--file", doc, "--section", "ratios", "--year", "2024")
	require.NoError(t, err)
	assert.Contains(t, out, "debt_to_equity 2024: 0.80 (prev 1.00, -20.0%, declining)")
}

func TestCompare_RequiresOneSource(t *testing.T) {
	envFile := setupEnv(t, "http://127.0.0.1:1")

	_, err := run(t, envFile, "compare", "--metric", "ratios.current_ratio")
	require.Error(t, err)

	_, err = run(t, envFile, "compare", "--file", "a.json", "--analysis-id", "A1", "--metric", "x")
	require.Error(t, err)
}
