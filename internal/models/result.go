package models

import "time"

// BreakdownResult is one aggregated segment keyed by breakdown dimension values.
type BreakdownResult struct {
	Key        string            `json:"key"`
	Dimensions map[string]string `json:"dimensions"`
	KPIs       KPISet            `json:"kpis"`
	SpendShare float64           `json:"spend_share_pct"`
}

// KPIValues implements insights.KPIHolder.
func (b BreakdownResult) KPIValues() KPISet { return b.KPIs }

// EntityResult is one aggregated campaign, ad set or ad.
type EntityResult struct {
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	Level        Level   `json:"level"`
	CreativeType string  `json:"creative_type,omitempty"`
	KPIs         KPISet  `json:"kpis"`
	SpendShare   float64 `json:"spend_share_pct"`
}

// KPIValues implements insights.KPIHolder.
func (e EntityResult) KPIValues() KPISet { return e.KPIs }

// FunnelStage is one step of the purchase funnel.
type FunnelStage struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Count   float64 `json:"count"`
	DropOff float64 `json:"drop_off"` // fraction lost since the previous stage
}

// FunnelView is the full funnel plus the stage with the largest drop-off.
type FunnelView struct {
	Stages     []FunnelStage `json:"stages"`
	FocusStage *FunnelStage  `json:"focus_stage,omitempty"`
}

// Recommendations is the optional advice attached to an analysis.
type Recommendations struct {
	Top        any          `json:"top,omitempty"`
	Bottom     any          `json:"bottom,omitempty"`
	FocusStage *FunnelStage `json:"focus_stage,omitempty"`
	Notes      []string     `json:"notes,omitempty"`
}

// AnalysisResult is the output of one tool invocation.
type AnalysisResult struct {
	RunID           string           `json:"run_id"`
	Tool            string           `json:"tool"`
	AccountID       string           `json:"account_id"`
	DateRange       DateRange        `json:"date_range"`
	Rows            []ReportRow      `json:"rows"`
	Views           map[string]any   `json:"views"`
	Recommendations *Recommendations `json:"recommendations,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}
