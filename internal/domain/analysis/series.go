package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/domain/metrics"
)

// ErrSeriesNotFound is returned when a path does not lead to year-keyed values
var ErrSeriesNotFound = errors.New("series not found")

// SeriesAt resolves a dotted path such as "ratios.current_ratio" inside an
// analysis document to a year-keyed series.
func SeriesAt(doc map[string]any, path string) (metrics.Series, error) {
	node, err := lookup(doc, path)
	if err != nil {
		return nil, err
	}

	obj, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", ErrSeriesNotFound, path)
	}

	series := toSeries(obj)
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s has no year values", ErrSeriesNotFound, path)
	}
	return series, nil
}

// SectionSeries returns every year-keyed child of section. Children that
// are not series are skipped.
func SectionSeries(doc map[string]any, section string) (map[string]metrics.Series, error) {
	node, err := lookup(doc, section)
	if err != nil {
		return nil, err
	}

	obj, ok := node.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", ErrSeriesNotFound, section)
	}

	out := make(map[string]metrics.Series)
	for name, child := range obj {
		childObj, ok := child.(map[string]any)
		if !ok {
			continue
		}
		if series := toSeries(childObj); len(series) > 0 {
			out[name] = series
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no metrics", ErrSeriesNotFound, section)
	}
	return out, nil
}

func lookup(doc map[string]any, path string) (any, error) {
	path = strings.Trim(path, ".")
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrSeriesNotFound)
	}

	var node any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, path)
		}
		node, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, path)
		}
	}
	return node, nil
}

// toSeries keeps the four-digit keys with a numeric value
func toSeries(obj map[string]any) metrics.Series {
	series := make(metrics.Series)
	for key, raw := range obj {
		if !metrics.IsYear(key) {
			continue
		}
		if v, ok := number(raw); ok {
			series[key] = v
		}
	}
	return series
}

func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
