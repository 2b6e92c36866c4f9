package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"
	"github.com/urfave/cli/v3"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/analysis"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
)

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "year-over-year comparison of analysis metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "analysis-id",
				Usage: "analysis to fetch from the analysis service",
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "local analysis document (JSON or HJSON) instead of --analysis-id",
			},
			&cli.StringSliceFlag{
				Name:  "metric",
				Usage: "dotted metric path, e.g. ratios.current_ratio (repeatable)",
			},
			&cli.StringFlag{
				Name:  "section",
				Usage: "compare every metric of a section",
			},
			&cli.StringFlag{
				Name:  "year",
				Usage: "four-digit year; defaults to the latest available",
			},
		},
		Action: compareAction,
	}
}

func compareAction(ctx context.Context, cmd *cli.Command) error {
	analysisID := cmd.String("analysis-id")
	file := cmd.String("file")
	paths := cmd.StringSlice("metric")
	section := cmd.String("section")
	year := cmd.String("year")

	if (analysisID == "") == (file == "") {
		return errors.New("exactly one of --analysis-id or --file is required")
	}
	if len(paths) == 0 && section == "" {
		return errors.New("--metric or --section is required")
	}

	app, err := newAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var reports []analysis.MetricReport
	if file != "" {
		doc, err := loadDocument(file)
		if err != nil {
			return err
		}
		thresholds := metrics.Thresholds{Up: app.cfg.Trend.Up, Down: app.cfg.Trend.Down}
		reports, err = compareDocument(doc, paths, section, year, thresholds)
		if err != nil {
			return err
		}
	} else {
		reports, err = compareRemote(ctx, app.analysis, analysisID, paths, section, year)
		if err != nil {
			return err
		}
	}

	for _, r := range reports {
		fmt.Fprintln(app.out, r.Summary())
	}
	return nil
}

// loadDocument reads an analysis document. HJSON is a superset of JSON so
// both parse.
func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]any
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func compareDocument(doc map[string]any, paths []string, section, year string, thresholds metrics.Thresholds) ([]analysis.MetricReport, error) {
	var reports []analysis.MetricReport
	if section != "" {
		rs, err := analysis.CompareSection(doc, section, year, thresholds)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rs...)
	}
	for _, p := range paths {
		r, err := analysis.CompareMetric(doc, p, year, thresholds)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func compareRemote(ctx context.Context, svc *analysis.Service, analysisID string, paths []string, section, year string) ([]analysis.MetricReport, error) {
	var reports []analysis.MetricReport
	if section != "" {
		rs, err := svc.CompareSection(ctx, analysisID, section, year)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rs...)
	}
	for _, p := range paths {
		r, err := svc.CompareMetric(ctx, analysisID, p, year)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
