package insights

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/radiusdt/adinsights/internal/models"
)

// Direction is the sort order of a ranking; both orders are best-first.
type Direction int

const (
	// Descending ranks higher values first; a missing value counts as 0.
	Descending Direction = iota
	// Ascending ranks lower values first; a missing value counts as +Inf.
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// Metric names a KPI that results can be ranked by.
type Metric string

const (
	MetricROAS        Metric = "roas"
	MetricCPA         Metric = "cpa"
	MetricCTR         Metric = "ctr"
	MetricCPC         Metric = "cpc"
	MetricCPM         Metric = "cpm"
	MetricSpend       Metric = "spend"
	MetricConversions Metric = "conversions"
	MetricRevenue     Metric = "revenue"
	MetricImpressions Metric = "impressions"
	MetricClicks      Metric = "clicks"
)

// ErrUnknownMetric is returned by ParseMetric for unsupported names.
var ErrUnknownMetric = errors.New("unknown metric")

// ParseMetric resolves a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MetricROAS, MetricCPA, MetricCTR, MetricCPC, MetricCPM,
		MetricSpend, MetricConversions, MetricRevenue, MetricImpressions, MetricClicks:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// NaturalDirection is the best-first order for the metric: cost metrics rank ascending.
func (m Metric) NaturalDirection() Direction {
	switch m {
	case MetricCPA, MetricCPC, MetricCPM:
		return Ascending
	default:
		return Descending
	}
}

// Value reads the metric from a KPI set; nil means the metric is not defined.
func (m Metric) Value(k models.KPISet) *float64 {
	switch m {
	case MetricROAS:
		return k.ROAS
	case MetricCPA:
		return k.CPA
	case MetricConversions:
		return k.Conversions
	case MetricRevenue:
		return k.Revenue
	case MetricCTR:
		return models.Float64(k.CTR)
	case MetricCPC:
		return models.Float64(k.CPC)
	case MetricCPM:
		return models.Float64(k.CPM)
	case MetricSpend:
		return models.Float64(k.Spend)
	case MetricImpressions:
		return models.Float64(k.Impressions)
	case MetricClicks:
		return models.Float64(k.Clicks)
	}
	return nil
}

// KPIHolder is anything carrying a KPI set.
type KPIHolder interface {
	KPIValues() models.KPISet
}

// Selector adapts a metric into a value function for RankBy.
func Selector[T KPIHolder](m Metric) func(T) *float64 {
	return func(item T) *float64 {
		return m.Value(item.KPIValues())
	}
}

// RankBy returns a sorted copy of items. Descending treats a missing value as 0
// and places a defined value ahead of a missing one on ties. Ascending treats a
// missing value as +Inf, so those items always sort last. Otherwise the input
// order is kept for equal values.
func RankBy[T any](items []T, value func(T) *float64, dir Direction) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return ranksBefore(value(out[i]), value(out[j]), dir)
	})
	return out
}

func ranksBefore(a, b *float64, dir Direction) bool {
	if dir == Ascending {
		av, bv := valueOr(a, math.Inf(1)), valueOr(b, math.Inf(1))
		return av < bv
	}
	av, bv := valueOr(a, 0), valueOr(b, 0)
	if av != bv {
		return av > bv
	}
	return a != nil && b == nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Standard recommendation list sizes.
const (
	TopThree = 3
	TopFive  = 5
)

// TopN returns up to n leading items of a ranked list.
func TopN[T any](ranked []T, n int) []T {
	n = min(max(n, 0), len(ranked))
	out := make([]T, n)
	copy(out, ranked[:n])
	return out
}

// BottomN returns up to n trailing items of a ranked list, in ranked order.
func BottomN[T any](ranked []T, n int) []T {
	n = min(max(n, 0), len(ranked))
	out := make([]T, n)
	copy(out, ranked[len(ranked)-n:])
	return out
}

// Thresholds are the optional limits used to flag underperformers.
type Thresholds struct {
	ROASMin *float64 `json:"roas_min,omitempty"`
	CPAMax  *float64 `json:"cpa_max,omitempty"`
}

// IsZero reports whether no threshold is set.
func (t Thresholds) IsZero() bool {
	return t.ROASMin == nil && t.CPAMax == nil
}

// Fails reports whether k breaches either threshold. A missing ROAS counts as 0
// and a missing CPA as +Inf.
func (t Thresholds) Fails(k models.KPISet) bool {
	if t.ROASMin != nil && valueOr(k.ROAS, 0) < *t.ROASMin {
		return true
	}
	if t.CPAMax != nil && valueOr(k.CPA, math.Inf(1)) > *t.CPAMax {
		return true
	}
	return false
}

// Underperformers keeps the items that fail t, preserving order.
func Underperformers[T KPIHolder](items []T, t Thresholds) []T {
	out := make([]T, 0)
	for _, it := range items {
		if t.Fails(it.KPIValues()) {
			out = append(out, it)
		}
	}
	return out
}
