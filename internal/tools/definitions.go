// Package tools exposes the reporting operations as agent-callable tools with
// JSON Schema parameter definitions.
package tools

import "github.com/radiusdt/adinsights/internal/reporting"

// Tool describes one callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

var metricNames = []string{"roas", "cpa", "ctr", "cpc", "cpm", "spend", "conversions", "revenue", "impressions", "clicks"}

// schema builds an object schema with the shared account/date properties plus extra.
func schema(extra map[string]any) map[string]any {
	props := map[string]any{
		"account_id": map[string]any{
			"type":        "string",
			"description": "Ad account id, with or without the act_ prefix. Defaults to the configured account.",
		},
		"since": map[string]any{
			"type":        "string",
			"description": "Start date, YYYY-MM-DD (inclusive)",
		},
		"until": map[string]any{
			"type":        "string",
			"description": "End date, YYYY-MM-DD (inclusive)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             []string{"since", "until"},
		"additionalProperties": false,
	}
}

func metricProp(def string) map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        metricNames,
		"description": "Metric to rank by (default: " + def + "). Cost metrics rank lowest first.",
	}
}

func levelProp(desc string, levels ...string) map[string]any {
	return map[string]any{
		"type":        "string",
		"enum":        levels,
		"description": desc,
	}
}

func breakdownsProp(desc string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": desc,
	}
}

// Definitions returns every tool, in a stable order.
func Definitions() []Tool {
	return []Tool{
		{
			Name:        reporting.OpAccountSummary,
			Description: "Get account-level totals for a date range: spend, impressions, clicks, purchases, revenue, CTR, CPC, CPM, CPA and ROAS",
			Parameters:  schema(nil),
		},
		{
			Name:        reporting.OpCampaignPerformance,
			Description: "Rank campaigns by a KPI (ROAS by default) with spend share, and return the top and bottom three",
			Parameters:  schema(map[string]any{"metric": metricProp("roas")}),
		},
		{
			Name:        reporting.OpAdsetPerformance,
			Description: "Rank ad sets by a KPI (CPA by default) with spend share, and return the top and bottom three",
			Parameters:  schema(map[string]any{"metric": metricProp("cpa")}),
		},
		{
			Name:        reporting.OpAudienceBreakdown,
			Description: "Break results down by audience segment (age and gender by default) and rank segments by ROAS; returns the top and bottom five",
			Parameters: schema(map[string]any{
				"breakdowns": breakdownsProp("Breakdown dimensions, e.g. [\"age\", \"gender\"] or [\"country\"]"),
				"metric":     metricProp("roas"),
			}),
		},
		{
			Name:        reporting.OpPlacementPerformance,
			Description: "Compare publisher platforms and placements by ROAS and CPM; returns the best three placements",
			Parameters:  schema(nil),
		},
		{
			Name:        reporting.OpCreativePerformance,
			Description: "Rank ads by CTR and compare video against static creatives. Creative type is inferred from engagement actions and is approximate.",
			Parameters:  schema(map[string]any{"metric": metricProp("ctr")}),
		},
		{
			Name:        reporting.OpFunnelAnalysis,
			Description: "Build the view content, add to cart, initiate checkout, purchase funnel with drop-off per stage and the stage losing the most users",
			Parameters:  schema(nil),
		},
		{
			Name:        reporting.OpFindUnderperformers,
			Description: "List campaigns, ad sets or ads whose ROAS is below roas_min or whose CPA is above cpa_max, highest spend first",
			Parameters: schema(map[string]any{
				"level": levelProp("Entity level (default: campaign)", "campaign", "adset", "ad"),
				"roas_min": map[string]any{
					"type":        "number",
					"description": "Flag entities with ROAS below this value",
				},
				"cpa_max": map[string]any{
					"type":        "number",
					"description": "Flag entities with CPA above this value",
				},
			}),
		},
		{
			Name:        reporting.OpAsyncInsights,
			Description: "Run a large entity report as an async job, wait for it, then rank entities like the performance tools",
			Parameters: schema(map[string]any{
				"level":  levelProp("Entity level (default: campaign)", "campaign", "adset", "ad"),
				"metric": metricProp("roas"),
			}),
		},
		{
			Name:        reporting.OpExportRows,
			Description: "Export raw insights rows as JSON lines to the data warehouse bucket and return the object location",
			Parameters: schema(map[string]any{
				"level":      levelProp("Row level (default: ad)", "account", "campaign", "adset", "ad"),
				"breakdowns": breakdownsProp("Optional breakdown dimensions"),
			}),
		},
	}
}
