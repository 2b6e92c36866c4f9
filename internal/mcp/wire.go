//go:build wireinject
// +build wireinject

package mcp

import (
	"context"

	"github.com/google/wire"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// InitializeResources creates Resources with all resources wired up
func InitializeResources(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Resources, func(), error) {
	wire.Build(
		// Infrastructure - analysis service
		provideAnalysisConfig,
		analysisapi.NewClient,
		wire.Bind(new(job.Client), new(*analysisapi.Client)),
		wire.Bind(new(analysis.Fetcher), new(*analysisapi.Client)),

		// Infrastructure - Neo4j
		provideNeo4jClient,
		provideJobRepository,

		// Infrastructure - Sheets
		provideSheetsClient,

		// Services
		providePollOptions,
		provideThresholds,
		job.NewServiceWithDeps,
		analysis.NewService,

		newResources,
	)

	return nil, nil, nil
}
