package models

// KPISet is the canonical derived-metric record for one bucket or entity.
// Optional fields are nil when their preconditions do not hold.
type KPISet struct {
	Spend       float64  `json:"spend"`
	Impressions float64  `json:"impressions"`
	Clicks      float64  `json:"clicks"`
	Conversions *float64 `json:"conversions,omitempty"`
	Revenue     *float64 `json:"revenue,omitempty"`

	CTR  float64  `json:"ctr"`
	CPC  float64  `json:"cpc"`
	CPM  float64  `json:"cpm"`
	CPA  *float64 `json:"cpa,omitempty"`  // set iff conversions were supplied
	ROAS *float64 `json:"roas,omitempty"` // set iff revenue > 0
}

// Equal reports whether two KPI sets hold the same values.
func (k KPISet) Equal(o KPISet) bool {
	return k.Spend == o.Spend &&
		k.Impressions == o.Impressions &&
		k.Clicks == o.Clicks &&
		k.CTR == o.CTR &&
		k.CPC == o.CPC &&
		k.CPM == o.CPM &&
		optionalEqual(k.Conversions, o.Conversions) &&
		optionalEqual(k.Revenue, o.Revenue) &&
		optionalEqual(k.CPA, o.CPA) &&
		optionalEqual(k.ROAS, o.ROAS)
}

func optionalEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
