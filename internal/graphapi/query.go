package graphapi

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/radiusdt/adinsights/internal/models"
)

// BaseFields are requested at every level.
var BaseFields = []string{"spend", "impressions", "clicks", "actions", "action_values", "date_start", "date_stop"}

// LevelFields returns the field list for an insights request at level.
func LevelFields(level models.Level) []string {
	var ids []string
	switch level {
	case models.LevelCampaign:
		ids = []string{"campaign_id", "campaign_name"}
	case models.LevelAdset:
		ids = []string{"adset_id", "adset_name", "campaign_id"}
	case models.LevelAd:
		ids = []string{"ad_id", "ad_name", "adset_id", "campaign_id"}
	default:
		ids = []string{"account_id", "account_name"}
	}
	return append(ids, BaseFields...)
}

// InsightsQuery describes one insights request.
type InsightsQuery struct {
	Level      models.Level
	DateRange  models.DateRange
	Fields     []string
	Breakdowns []string
	PageSize   int
}

type timeRange struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// Values encodes the query as request parameters.
func (q InsightsQuery) Values() url.Values {
	v := url.Values{}
	level := q.Level
	if level == "" {
		level = models.LevelAccount
	}
	v.Set("level", string(level))

	fields := q.Fields
	if len(fields) == 0 {
		fields = LevelFields(level)
	}
	v.Set("fields", strings.Join(fields, ","))

	tr, _ := json.Marshal(timeRange{Since: q.DateRange.Since, Until: q.DateRange.Until})
	v.Set("time_range", string(tr))

	if len(q.Breakdowns) > 0 {
		v.Set("breakdowns", strings.Join(q.Breakdowns, ","))
	}
	v.Set("action_breakdowns", "action_type")
	if q.PageSize > 0 {
		v.Set("limit", strconv.Itoa(q.PageSize))
	}
	return v
}

// NormalizeAccountID adds the act_ prefix to bare numeric account ids.
// Anything else is returned trimmed but otherwise untouched.
func NormalizeAccountID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !isDigits(id) {
		return id
	}
	return "act_" + id
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// InsightsPath is the insights edge of an account.
func InsightsPath(accountID string) string {
	return NormalizeAccountID(accountID) + "/insights"
}
