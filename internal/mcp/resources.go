package mcp

import (
	"context"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/mcp/tools"
	storage "github.com/albinvar/bixss-ca-frontend-sub000/internal/storage/neo4j"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
	n4j "github.com/albinvar/bixss-ca-frontend-sub000/pkg/neo4j"
	sheetsclient "github.com/albinvar/bixss-ca-frontend-sub000/pkg/sheets"
)

// Resources are the long-lived dependencies behind the MCP tools
type Resources struct {
	Jobs        job.Service
	Analysis    *analysis.Service
	Sheets      tools.SheetsClient
	Neo4jClient *n4j.Client
}

// HistoryEnabled reports whether job history is backed by Neo4j
func (r *Resources) HistoryEnabled() bool {
	return r.Neo4jClient != nil
}

func initializeResources(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Resources, func(), error) {
	res, cleanup, err := InitializeResources(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize resources", "err", err)
		return nil, nil, err
	}

	logger.Info("analysis client initialized", "base_url", cfg.Analysis.BaseURL)
	if res.Neo4jClient != nil {
		logger.Info("Neo4j job history enabled", "uri", cfg.Neo4j.URI)
	}

	return res, cleanup, nil
}

func newResources(
	jobs job.Service,
	analysisSvc *analysis.Service,
	sheets tools.SheetsClient,
	neo4jClient *n4j.Client,
) *Resources {
	return &Resources{
		Jobs:        jobs,
		Analysis:    analysisSvc,
		Sheets:      sheets,
		Neo4jClient: neo4jClient,
	}
}

func provideAnalysisConfig(cfg config.Config) analysisapi.Config {
	c := analysisapi.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout,
	}
	if cfg.Analysis.Token != "" {
		c.Credentials = analysisapi.StaticToken(cfg.Analysis.Token)
	}
	return c
}

func providePollOptions(cfg config.Config, logger *logging.Logger) job.PollOptions {
	return job.PollOptions{
		Interval:      cfg.Poll.Interval,
		MaxAttempts:   cfg.Poll.MaxAttempts,
		Timeout:       cfg.Poll.Timeout,
		RetryAttempts: cfg.Poll.RetryAttempts,
		RetryDelay:    cfg.Poll.RetryDelay,
		Logger:        logger.Named("poller"),
	}
}

func provideThresholds(cfg config.Config) metrics.Thresholds {
	return metrics.Thresholds{Up: cfg.Trend.Up, Down: cfg.Trend.Down}
}

// provideNeo4jClient connects when NEO4J_URI is set. A failed connection
// disables job history instead of failing startup.
func provideNeo4jClient(ctx context.Context, cfg config.Config, logger *logging.Logger) (*n4j.Client, func()) {
	if !cfg.Neo4jEnabled() {
		return nil, func() {}
	}

	client, err := n4j.NewClient(ctx, n4j.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	})
	if err != nil {
		logger.Warn("Neo4j unavailable, job history disabled", "err", err)
		return nil, func() {}
	}

	return client, func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Warn("failed to close Neo4j client", "err", err)
		}
	}
}

func provideJobRepository(ctx context.Context, client *n4j.Client, logger *logging.Logger) job.Repository {
	if client == nil {
		return nil
	}

	repo := storage.NewJobRepository(client)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("failed to ensure Neo4j job schema", "err", err)
	}
	return repo
}

func provideSheetsClient(ctx context.Context, cfg config.Config, logger *logging.Logger) tools.SheetsClient {
	if cfg.Sheets.CredentialsPath == "" {
		return newSheetsClientAdapter(nil)
	}

	client, err := sheetsclient.NewClient(ctx, sheetsclient.Config{CredentialsPath: cfg.Sheets.CredentialsPath})
	if err != nil {
		logger.Warn("Google Sheets unavailable, export disabled", "err", err)
		return newSheetsClientAdapter(nil)
	}
	return newSheetsClientAdapter(client)
}
