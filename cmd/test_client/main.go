package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	endpoint := flag.String("endpoint", "http://localhost:8080/mcp/stream", "MCP streamable HTTP endpoint")
	companyID := flag.String("company", "demo-company", "company id used for the submission")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "ca-analysis-test-client",
		Version: "0.1.0",
	}, &mcp.ClientOptions{
		ProgressNotificationHandler: func(_ context.Context, req *mcp.ProgressNotificationClientRequest) {
			fmt.Printf("  progress %.0f/%.0f %s\n", req.Params.Progress, req.Params.Total, req.Params.Message)
		},
	})

	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: *endpoint}, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = session.Close() }()

	log.Printf("Connected to server (session ID: %s)\n", session.ID())

	testListTools(ctx, session)
	testSubmitAndWait(ctx, session, *companyID)
	testListJobs(ctx, session)

	fmt.Println("\nAll tests completed")
}

func testListTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("\nTEST: list tools")

	res, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		log.Printf("list tools failed: %v", err)
		return
	}
	for _, tool := range res.Tools {
		fmt.Printf("- %s: %s\n", tool.Name, tool.Description)
	}
}

func testSubmitAndWait(ctx context.Context, session *mcp.ClientSession, companyID string) {
	fmt.Println("\nTEST: analysis_submit (wait)")

	params := &mcp.CallToolParams{
		Name: "analysis_submit",
		Arguments: map[string]any{
			"company_id":   companyID,
			"company_name": "Demo Company",
			"documents": []map[string]any{{
				"name":           "balance_sheet.pdf",
				"content_base64": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 demo")),
			}},
			"wait": true,
		},
		Meta: mcp.Meta{"progressToken": "submit-1"},
	}

	result, err := session.CallTool(ctx, params)
	if err != nil {
		log.Printf("analysis_submit failed: %v", err)
		return
	}
	printResult(result)

	analysisID := analysisIDOf(result)
	if analysisID == "" {
		log.Printf("analysis_submit returned no analysis id")
		return
	}

	fmt.Println("\nTEST: metric_compare")
	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name: "metric_compare",
		Arguments: map[string]any{
			"analysis_id": analysisID,
			"section":     "ratios",
		},
	})
	if err != nil {
		log.Printf("metric_compare failed: %v", err)
		return
	}
	printResult(result)
}

func testListJobs(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("\nTEST: analysis_jobs")

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "analysis_jobs", Arguments: map[string]any{}})
	if err != nil {
		log.Printf("analysis_jobs failed: %v", err)
		return
	}
	printResult(result)
}

// analysisIDOf reads the analysis id from the structured submit result
func analysisIDOf(res *mcp.CallToolResult) string {
	out, ok := res.StructuredContent.(map[string]any)
	if !ok {
		return ""
	}
	job, ok := out["job"].(map[string]any)
	if !ok {
		return ""
	}
	result, ok := job["result"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := result["analysis_id"].(string)
	return id
}

func printResult(res *mcp.CallToolResult) {
	for _, c := range res.Content {
		if txt, ok := c.(*mcp.TextContent); ok {
			fmt.Println(txt.Text)
		}
	}
}
