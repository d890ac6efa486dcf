package insights

import (
	"sort"
	"strings"

	"github.com/radiusdt/adinsights/internal/models"
)

// Bucket accumulates raw totals for one group during a single aggregation.
type Bucket struct {
	Spend       float64
	Impressions float64
	Clicks      float64
	Conversions float64
	Revenue     float64
	Rows        int
}

// Add folds one row into the bucket.
func (b *Bucket) Add(row models.ReportRow) {
	b.Spend += ToNumber(row.Spend)
	b.Impressions += ToNumber(row.Impressions)
	b.Clicks += ToNumber(row.Clicks)
	b.Conversions += PurchaseCount(row)
	b.Revenue += PurchaseValue(row)
	b.Rows++
}

// KPIs computes the metric set for the bucket's totals.
func (b *Bucket) KPIs() models.KPISet {
	conv, rev := b.Conversions, b.Revenue
	return ComputeKPIs(b.Spend, b.Impressions, b.Clicks, &conv, &rev)
}

// KeyFunc derives the grouping key of a row.
type KeyFunc func(row models.ReportRow) string

// Grouping is the set of buckets produced by Aggregate.
type Grouping struct {
	buckets map[string]*Bucket
	first   map[string]models.ReportRow
}

// Aggregate groups rows by key, creating zeroed buckets on first sight.
func Aggregate(rows []models.ReportRow, key KeyFunc) *Grouping {
	g := &Grouping{
		buckets: make(map[string]*Bucket),
		first:   make(map[string]models.ReportRow),
	}
	for _, row := range rows {
		k := key(row)
		b, ok := g.buckets[k]
		if !ok {
			b = &Bucket{}
			g.buckets[k] = b
			g.first[k] = row
		}
		b.Add(row)
	}
	return g
}

// Len returns the number of distinct keys.
func (g *Grouping) Len() int {
	return len(g.buckets)
}

// Keys returns the bucket keys in lexical order.
func (g *Grouping) Keys() []string {
	keys := make([]string, 0, len(g.buckets))
	for k := range g.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FirstRow returns the first row seen for key; it carries the group's identity fields.
func (g *Grouping) FirstRow(key string) models.ReportRow {
	return g.first[key]
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// BreakdownKey joins the named dimension values with "|". Values are escaped,
// so distinct combinations never collide.
func BreakdownKey(dims ...string) KeyFunc {
	return func(row models.ReportRow) string {
		parts := make([]string, len(dims))
		for i, d := range dims {
			parts[i] = keyEscaper.Replace(row.Dimension(d))
		}
		return strings.Join(parts, "|")
	}
}

// EntityKey groups rows by the entity id at level.
func EntityKey(level models.Level) KeyFunc {
	return func(row models.ReportRow) string {
		return row.EntityID(level)
	}
}

// ByBreakdown aggregates rows into one result per combination of dimension values.
func ByBreakdown(rows []models.ReportRow, dims ...string) []models.BreakdownResult {
	g := Aggregate(rows, BreakdownKey(dims...))
	out := make([]models.BreakdownResult, 0, g.Len())
	for _, k := range g.Keys() {
		first := g.FirstRow(k)
		values := make(map[string]string, len(dims))
		for _, d := range dims {
			values[d] = first.Dimension(d)
		}
		out = append(out, models.BreakdownResult{
			Key:        k,
			Dimensions: values,
			KPIs:       g.buckets[k].KPIs(),
		})
	}
	applyBreakdownShare(out)
	return out
}

// ByEntity aggregates rows into one result per entity at level, with spend share applied.
func ByEntity(rows []models.ReportRow, level models.Level) []models.EntityResult {
	g := Aggregate(rows, EntityKey(level))
	out := make([]models.EntityResult, 0, g.Len())
	for _, k := range g.Keys() {
		out = append(out, models.EntityResult{
			ID:    k,
			Name:  g.FirstRow(k).EntityName(level),
			Level: level,
			KPIs:  g.buckets[k].KPIs(),
		})
	}
	ApplySpendShare(out)
	return out
}

// ByCreativeType aggregates rows by the type the classifier assigns each row.
func ByCreativeType(rows []models.ReportRow, c CreativeClassifier) []models.BreakdownResult {
	g := Aggregate(rows, func(row models.ReportRow) string {
		return string(c.Classify(row))
	})
	out := make([]models.BreakdownResult, 0, g.Len())
	for _, k := range g.Keys() {
		out = append(out, models.BreakdownResult{
			Key:        k,
			Dimensions: map[string]string{"creative_type": k},
			KPIs:       g.buckets[k].KPIs(),
		})
	}
	applyBreakdownShare(out)
	return out
}

// EntityCreativeTypes labels each entity at level. An entity counts as video
// when any of its rows does.
func EntityCreativeTypes(rows []models.ReportRow, level models.Level, c CreativeClassifier) map[string]CreativeType {
	types := make(map[string]CreativeType)
	for _, row := range rows {
		id := row.EntityID(level)
		if types[id] == CreativeVideo {
			continue
		}
		types[id] = c.Classify(row)
	}
	return types
}

// Totals folds every row into a single KPI set.
func Totals(rows []models.ReportRow) models.KPISet {
	var b Bucket
	for _, row := range rows {
		b.Add(row)
	}
	return b.KPIs()
}

// SpendShare is spend as a percentage of total, rounded to two places.
func SpendShare(spend, total float64) float64 {
	return Round2(spend / max(total, spendFloor) * 100)
}

// ApplySpendShare sets SpendShare on every entity relative to the list's total spend.
func ApplySpendShare(items []models.EntityResult) {
	var total float64
	for _, it := range items {
		total += it.KPIs.Spend
	}
	for i := range items {
		items[i].SpendShare = SpendShare(items[i].KPIs.Spend, total)
	}
}

func applyBreakdownShare(items []models.BreakdownResult) {
	var total float64
	for _, it := range items {
		total += it.KPIs.Spend
	}
	for i := range items {
		items[i].SpendShare = SpendShare(items[i].KPIs.Spend, total)
	}
}
