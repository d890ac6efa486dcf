package insights

import "github.com/radiusdt/adinsights/internal/models"

// spendFloor keeps ROAS finite for zero-spend buckets that still report revenue.
const spendFloor = 1e-9

// ComputeKPIs derives the canonical metric set from raw counters.
// conversions and revenue are optional: a nil conversions leaves CPA unset,
// and ROAS is only set for strictly positive revenue.
func ComputeKPIs(spend, impressions, clicks float64, conversions, revenue *float64) models.KPISet {
	spend, impressions, clicks = finite(spend), finite(impressions), finite(clicks)

	k := models.KPISet{
		Spend:       Round2(spend),
		Impressions: RoundCount(impressions),
		Clicks:      RoundCount(clicks),
		CTR:         Round2(SafeDiv(clicks, impressions)),
		CPC:         Round2(SafeDiv(spend, max(clicks, 1))),
		CPM:         Round2(SafeDiv(spend, max(impressions, 1)) * 1000),
	}

	if conversions != nil {
		conv := finite(*conversions)
		k.Conversions = models.Float64(RoundCount(conv))
		k.CPA = models.Float64(Round2(SafeDiv(spend, max(conv, 1))))
	}

	if revenue != nil {
		rev := finite(*revenue)
		k.Revenue = models.Float64(Round2(rev))
		if rev > 0 {
			k.ROAS = models.Float64(Round2(SafeDiv(rev, max(spend, spendFloor))))
		}
	}

	return k
}
