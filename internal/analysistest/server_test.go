package analysistest_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/analysistest"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
)

func TestUseSample_ServesAnalysisOfUnscriptedJobs(t *testing.T) {
	fake := analysistest.New()
	fake.UseSample(map[string]any{"ratios": map[string]any{"current_ratio": map[string]any{"2024": 1.2}}})
	srv := fake.Start()
	defer srv.Close()

	client, err := analysisapi.NewClient(analysisapi.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	ctx := context.Background()
	resp, err := client.Submit(ctx, analysisapi.Submission{
		CompanyID: "C1",
		Documents: []analysisapi.Document{{Name: "a.pdf", Reader: strings.NewReader("%PDF")}},
	})
	require.NoError(t, err)

	var job analysisapi.Job
	for i := 0; i < 3; i++ {
		job, err = client.GetStatus(ctx, resp.JobID)
		require.NoError(t, err)
	}
	require.Equal(t, analysisapi.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)

	doc, err := client.GetAnalysis(ctx, job.Result.AnalysisID)
	require.NoError(t, err)
	assert.Contains(t, doc, "ratios")
}
