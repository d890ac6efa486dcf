package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Level is the granularity at which the reporting API returns rows.
type Level string

const (
	LevelAccount  Level = "account"
	LevelCampaign Level = "campaign"
	LevelAdset    Level = "adset"
	LevelAd       Level = "ad"
)

// ParseLevel resolves a level name, defaulting to campaign for an empty string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelCampaign, nil
	case LevelAccount, LevelCampaign, LevelAdset, LevelAd:
		return Level(s), nil
	default:
		return "", fmt.Errorf("unknown level %q", s)
	}
}

// ActionEntry is one element of a row's actions or action_values list.
type ActionEntry struct {
	Type  string `json:"action_type"`
	Value any    `json:"value"` // number, numeric string or null
}

// ReportRow is a single insights record for one entity and reporting period.
// Raw counters keep whatever type the API sent; use the insights package to read them.
type ReportRow struct {
	AccountID    string `json:"account_id,omitempty"`
	CampaignID   string `json:"campaign_id,omitempty"`
	CampaignName string `json:"campaign_name,omitempty"`
	AdsetID      string `json:"adset_id,omitempty"`
	AdsetName    string `json:"adset_name,omitempty"`
	AdID         string `json:"ad_id,omitempty"`
	AdName       string `json:"ad_name,omitempty"`
	DateStart    string `json:"date_start,omitempty"`
	DateStop     string `json:"date_stop,omitempty"`

	Spend       any `json:"spend,omitempty"`
	Impressions any `json:"impressions,omitempty"`
	Clicks      any `json:"clicks,omitempty"`

	Actions      []ActionEntry `json:"actions,omitempty"`
	ActionValues []ActionEntry `json:"action_values,omitempty"`

	// Dimensions holds every other string-valued field of the row,
	// including breakdown values such as age, gender or publisher_platform.
	Dimensions map[string]string `json:"-"`
}

// reportRowFields mirrors ReportRow without its JSON methods.
type reportRowFields ReportRow

var knownRowFields = map[string]bool{
	"account_id": true, "campaign_id": true, "campaign_name": true,
	"adset_id": true, "adset_name": true, "ad_id": true, "ad_name": true,
	"date_start": true, "date_stop": true,
	"spend": true, "impressions": true, "clicks": true,
	"actions": true, "action_values": true,
}

// UnmarshalJSON decodes the fixed fields and collects remaining string fields into Dimensions.
func (r *ReportRow) UnmarshalJSON(data []byte) error {
	var fields reportRowFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for k, v := range raw {
		if knownRowFields[k] {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue // nested objects and numbers are not dimensions
		}
		if fields.Dimensions == nil {
			fields.Dimensions = make(map[string]string)
		}
		fields.Dimensions[k] = s
	}

	*r = ReportRow(fields)
	return nil
}

// MarshalJSON writes Dimensions back as top-level fields.
func (r ReportRow) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(reportRowFields(r))
	if err != nil {
		return nil, err
	}
	if len(r.Dimensions) == 0 {
		return base, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Dimensions {
		if knownRowFields[k] {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Dimension returns a breakdown value, or "" when the row does not carry it.
func (r ReportRow) Dimension(name string) string {
	return r.Dimensions[name]
}

// EntityID returns the identifier of the entity at the given level.
func (r ReportRow) EntityID(level Level) string {
	switch level {
	case LevelCampaign:
		return r.CampaignID
	case LevelAdset:
		return r.AdsetID
	case LevelAd:
		return r.AdID
	default:
		return r.AccountID
	}
}

// EntityName returns the display name of the entity at the given level.
func (r ReportRow) EntityName(level Level) string {
	switch level {
	case LevelCampaign:
		return r.CampaignName
	case LevelAdset:
		return r.AdsetName
	case LevelAd:
		return r.AdName
	default:
		return r.Dimensions["account_name"]
	}
}

const dateLayout = "2006-01-02"

// ErrInvalidDateRange is returned when since/until are missing, malformed or inverted.
var ErrInvalidDateRange = errors.New("invalid date range")

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	Since string `json:"since"` // YYYY-MM-DD
	Until string `json:"until"` // YYYY-MM-DD
}

// Validate checks both dates parse and since is not after until.
func (d DateRange) Validate() error {
	if d.Since == "" || d.Until == "" {
		return fmt.Errorf("%w: since and until are required", ErrInvalidDateRange)
	}
	since, err := time.Parse(dateLayout, d.Since)
	if err != nil {
		return fmt.Errorf("%w: since %q", ErrInvalidDateRange, d.Since)
	}
	until, err := time.Parse(dateLayout, d.Until)
	if err != nil {
		return fmt.Errorf("%w: until %q", ErrInvalidDateRange, d.Until)
	}
	if since.After(until) {
		return fmt.Errorf("%w: since %s is after until %s", ErrInvalidDateRange, d.Since, d.Until)
	}
	return nil
}

// String renders the range as since_until, used in object keys.
func (d DateRange) String() string {
	return d.Since + "_" + d.Until
}
