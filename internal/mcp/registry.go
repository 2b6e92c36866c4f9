package mcp

import (
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/mcp/tools"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

type ToolRegistry struct {
	logger *logging.Logger
}

func NewToolRegistry(logger *logging.Logger) *ToolRegistry {
	return &ToolRegistry{logger: logger}
}

// RegisterAll installs every tool backed by res. job_history is only
// registered when a history store is configured.
func (r *ToolRegistry) RegisterAll(server *sdkmcp.Server, res *Resources) []string {
	opts := []tools.Option{
		tools.WithJobTools(res.Jobs),
		tools.WithMetricCompare(res.Analysis),
		tools.WithSheetsExport(res.Analysis, res.Sheets),
	}
	if res.HistoryEnabled() {
		opts = append(opts, tools.WithJobHistory(res.Jobs))
	}

	names := tools.Register(server, r.logger, opts...)
	r.logger.Info("MCP tools registered", "tools", names)
	return names
}
