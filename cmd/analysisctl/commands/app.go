// Package commands implements the analysisctl subcommands
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// NewApp builds the analysisctl command tree
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "analysisctl",
		Usage: "submit financial documents to the analysis service and compare the results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path of the .env file",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			submitCommand(),
			statusCommand(),
			watchCommand(),
			compareCommand(),
		},
	}
}

// appContext holds what every subcommand needs
type appContext struct {
	cfg      config.Config
	log      *logging.Logger
	jobs     job.Service
	analysis *analysis.Service
	out      io.Writer
}

func newAppContext(ctx context.Context, cmd *cli.Command) (*appContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.NewConsole(cfg.LogLevel)

	clientCfg := analysisapi.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout,
	}
	if cfg.Analysis.Token != "" {
		clientCfg.Credentials = analysisapi.StaticToken(cfg.Analysis.Token)
	}

	client, err := analysisapi.NewClient(clientCfg)
	if err != nil {
		return nil, err
	}

	jobs, err := job.NewService(
		job.WithClient(client),
		job.WithLogger(log),
		job.WithPollOptions(job.PollOptions{
			Interval:      cfg.Poll.Interval,
			MaxAttempts:   cfg.Poll.MaxAttempts,
			Timeout:       cfg.Poll.Timeout,
			RetryAttempts: cfg.Poll.RetryAttempts,
			RetryDelay:    cfg.Poll.RetryDelay,
			Logger:        log.Named("poller"),
		}),
	)
	if err != nil {
		return nil, err
	}

	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}

	return &appContext{
		cfg:      cfg,
		log:      log,
		jobs:     jobs,
		analysis: analysis.NewService(client, metrics.Thresholds{Up: cfg.Trend.Up, Down: cfg.Trend.Down}, log),
		out:      out,
	}, nil
}

func (a *appContext) Close() {
	_ = a.log.Sync()
}

func printJob(w io.Writer, j analysisapi.Job) {
	switch st := j.State().(type) {
	case analysisapi.Completed:
		fmt.Fprintf(w, "%s\tcompleted\tanalysis=%s\n", j.ID, st.Result.AnalysisID)
	case analysisapi.Failed:
		fmt.Fprintf(w, "%s\tfailed\t%s\n", j.ID, st.Reason)
	default:
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", j.ID, j.Status, j.Progress, j.Message)
	}
}
