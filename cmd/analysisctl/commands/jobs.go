package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/job"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
)

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "upload financial documents for analysis",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "company-id",
				Usage:    "company the documents belong to",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "company-name",
				Usage: "display name of the company",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "wait for the job to finish",
			},
		},
		Action: submitAction,
	}
}

func submitAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	docs, err := analysisapi.OpenDocuments(cmd.Args().Slice()...)
	if err != nil {
		return err
	}
	defer func() { _ = docs.Close() }()

	sub := analysisapi.Submission{
		Documents:   docs,
		CompanyID:   cmd.String("company-id"),
		CompanyName: cmd.String("company-name"),
	}

	if !cmd.Bool("watch") {
		resp, err := app.jobs.Submit(ctx, sub)
		if err != nil {
			return err
		}
		fmt.Fprintf(app.out, "%s\t%s\t%d file(s)\n", resp.JobID, resp.Status, resp.FilesCount)
		return nil
	}

	j, err := app.jobs.SubmitAndTrack(ctx, sub, progressPrinter(app))
	if err != nil {
		return trackError(err)
	}
	printJob(app.out, j)
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "fetch the current status of a job once",
		ArgsUsage: "JOB_ID",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := newAppContext(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			j, err := app.jobs.Status(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			printJob(app.out, j)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "poll one or more jobs until they finish",
		ArgsUsage: "JOB_ID...",
		Action:    watchAction,
	}
}

// watchAction tracks every job concurrently. Results are printed in
// argument order once all jobs are done. A failed job is reported at the
// end; any other error stops the remaining watches.
func watchAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return analysisapi.ErrJobIDRequired
	}

	results := make([]analysisapi.Job, len(ids))
	failures := make([]error, len(ids))
	onProgress := progressPrinter(app)

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			j, err := app.jobs.Track(gctx, id, onProgress)
			results[i] = j
			var failed *job.JobFailedError
			if errors.As(err, &failed) {
				failures[i] = trackError(err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("watch %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, j := range results {
		printJob(app.out, j)
	}
	return errors.Join(failures...)
}

// progressPrinter serializes progress lines of concurrent watchers
func progressPrinter(app *appContext) job.ProgressFunc {
	var mu sync.Mutex
	return func(j analysisapi.Job) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(app.out, "%s\t%s\t%d%%\t%s\n", j.ID, j.Status, j.Progress, j.Message)
	}
}

func trackError(err error) error {
	var failed *job.JobFailedError
	if errors.As(err, &failed) {
		return fmt.Errorf("job %s failed: %w", failed.JobID, err)
	}
	return err
}
