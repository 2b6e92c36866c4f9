package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// Fetcher loads analysis documents
type Fetcher interface {
	GetAnalysis(ctx context.Context, analysisID string) (analysisapi.Analysis, error)
}

// MetricReport is one metric compared against its previous year
type MetricReport struct {
	Metric       string `json:"metric"`
	Year         string `json:"year"`
	PreviousYear string `json:"previous_year,omitempty"`
	metrics.Comparison
}

// Summary renders the report as one line of text
func (r MetricReport) Summary() string {
	return fmt.Sprintf("%s %s: %s (prev %s, %s, %s)",
		r.Metric, r.Year,
		metrics.FormatValue(r.Current),
		metrics.FormatValue(r.Previous),
		metrics.FormatPercent(r.ChangePercent),
		r.Trend,
	)
}

// Service compares metrics of analysis documents year over year
type Service struct {
	fetcher    Fetcher
	thresholds metrics.Thresholds
	log        *logging.Logger
}

// NewService creates an analysis service
func NewService(fetcher Fetcher, thresholds metrics.Thresholds, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		fetcher:    fetcher,
		thresholds: thresholds,
		log:        log.Named("analysis"),
	}
}

// CompareMetric fetches the analysis and compares the series at path.
// An empty year selects the most recent one.
func (s *Service) CompareMetric(ctx context.Context, analysisID, path, year string) (MetricReport, error) {
	doc, err := s.fetch(ctx, analysisID)
	if err != nil {
		return MetricReport{}, err
	}
	return CompareMetric(doc, path, year, s.thresholds)
}

// CompareSection compares every metric of a section for the same year
func (s *Service) CompareSection(ctx context.Context, analysisID, section, year string) ([]MetricReport, error) {
	doc, err := s.fetch(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return CompareSection(doc, section, year, s.thresholds)
}

func (s *Service) fetch(ctx context.Context, analysisID string) (analysisapi.Analysis, error) {
	if analysisID == "" {
		return nil, analysisapi.ErrAnalysisIDRequired
	}

	doc, err := s.fetcher.GetAnalysis(ctx, analysisID)
	if err != nil {
		s.log.Error("failed to fetch analysis", "analysis_id", analysisID, "error", err)
		return nil, err
	}
	s.log.Debug("analysis fetched", "analysis_id", analysisID, "sections", len(doc))
	return doc, nil
}

// CompareMetric compares the series at path inside doc
func CompareMetric(doc map[string]any, path, year string, thresholds metrics.Thresholds) (MetricReport, error) {
	series, err := SeriesAt(doc, path)
	if err != nil {
		return MetricReport{}, err
	}

	years := metrics.Years(series)
	if len(years) == 0 {
		return MetricReport{}, fmt.Errorf("%w: %s has no year values", ErrSeriesNotFound, path)
	}
	if year == "" {
		year = years[0]
	}
	return report(path, series, year, years, thresholds), nil
}

// CompareSection compares every metric of section inside doc. Rows are
// sorted by metric name and share one year, the latest of the section when
// year is empty.
func CompareSection(doc map[string]any, section, year string, thresholds metrics.Thresholds) ([]MetricReport, error) {
	all, err := SectionSeries(doc, section)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(all))
	union := make(metrics.Series)
	for name, series := range all {
		names = append(names, name)
		for y := range series {
			union[y] = 0
		}
	}
	slices.Sort(names)

	years := metrics.Years(union)
	if len(years) == 0 {
		return nil, fmt.Errorf("%w: section %s has no year values", ErrSeriesNotFound, section)
	}
	if year == "" {
		year = years[0]
	}

	reports := make([]MetricReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, report(name, all[name], year, years, thresholds))
	}
	return reports, nil
}

func report(name string, series metrics.Series, year string, years []string, thresholds metrics.Thresholds) MetricReport {
	r := MetricReport{
		Metric:     name,
		Year:       year,
		Comparison: metrics.Compare(series, year, years, thresholds),
	}
	if idx := slices.Index(years, year); idx >= 0 && idx+1 < len(years) {
		r.PreviousYear = years[idx+1]
	}
	return r
}

// IsNotFound reports whether err means the requested series is missing
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSeriesNotFound)
}
