// Package metrics derives year-over-year comparisons from year-keyed
// financial series. Every function is total: missing data yields nil or
// TrendStable, never an error.
package metrics

import (
	"fmt"
	"math"
	"slices"
)

// Series maps a four-digit fiscal year ("2024") to a line item or ratio value.
// Map order carries no meaning; use Years to get the descending year list.
type Series map[string]float64

// Trend classifies a percentage change
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Thresholds is the band inside which a change counts as stable
type Thresholds struct {
	Up   float64
	Down float64
}

// DefaultThresholds is the ±5% band used by the dashboard
var DefaultThresholds = Thresholds{Up: 5, Down: -5}

// Pair holds the selected year's value and the next older one
type Pair struct {
	Current  *float64 `json:"current"`
	Previous *float64 `json:"previous"`
}

// Comparison is the derived view rendered next to a metric
type Comparison struct {
	Current       *float64 `json:"current"`
	Previous      *float64 `json:"previous"`
	ChangePercent *float64 `json:"change_percent"`
	Trend         Trend    `json:"trend"`
}

// ValueForYear returns series[year], or nil when the year is absent
func ValueForYear(series Series, year string) *float64 {
	v, ok := series[year]
	if !ok {
		return nil
	}
	return &v
}

// Years returns the four-digit year keys of series, newest first
func Years(series Series) []string {
	years := make([]string, 0, len(series))
	for y := range series {
		if IsYear(y) {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	slices.Reverse(years)
	return years
}

// ComparisonPair pairs selectedYear with the year that follows it in
// sortedYearsDesc. Previous is nil for the oldest year or a year missing
// from the list.
func ComparisonPair(series Series, selectedYear string, sortedYearsDesc []string) Pair {
	pair := Pair{Current: ValueForYear(series, selectedYear)}

	idx := slices.Index(sortedYearsDesc, selectedYear)
	if idx >= 0 && idx+1 < len(sortedYearsDesc) {
		pair.Previous = ValueForYear(series, sortedYearsDesc[idx+1])
	}

	return pair
}

// PercentChange returns (current-previous)/|previous|*100, unrounded.
//
// A zero previous yields nil, the same as missing data, so a move from 0 to
// a non-zero value reports no change.
func PercentChange(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 || math.IsNaN(*previous) {
		return nil
	}
	change := ((*current - *previous) / math.Abs(*previous)) * 100
	return &change
}

// ClassifyTrend uses DefaultThresholds
func ClassifyTrend(changePercent *float64) Trend {
	return DefaultThresholds.Classify(changePercent)
}

// Classify maps a change onto a trend. Both bounds are exclusive.
func (t Thresholds) Classify(changePercent *float64) Trend {
	switch {
	case changePercent == nil:
		return TrendStable
	case *changePercent > t.Up:
		return TrendImproving
	case *changePercent < t.Down:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// Compare bundles pair selection, change and trend for one metric
func Compare(series Series, selectedYear string, sortedYearsDesc []string, thresholds Thresholds) Comparison {
	pair := ComparisonPair(series, selectedYear, sortedYearsDesc)
	change := PercentChange(pair.Current, pair.Previous)

	return Comparison{
		Current:       pair.Current,
		Previous:      pair.Previous,
		ChangePercent: change,
		Trend:         thresholds.Classify(change),
	}
}

// FormatPercent renders a change with one decimal and an explicit sign
func FormatPercent(changePercent *float64) string {
	if changePercent == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *changePercent)
}

// FormatValue renders an optional value with two decimals
func FormatValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

// IsYear reports whether s is a four-digit year key such as "2024"
func IsYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
