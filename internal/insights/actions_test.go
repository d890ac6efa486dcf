package insights

import (
	"testing"

	"github.com/radiusdt/adinsights/internal/models"
	"github.com/stretchr/testify/assert"
)

func purchaseRow() models.ReportRow {
	return models.ReportRow{
		Actions: []models.ActionEntry{
			{Type: "link_click", Value: "10"},
			{Type: "offsite_conversion.fb_pixel_purchase", Value: "3"},
			{Type: "purchase", Value: 5},
			{Type: "add_to_cart", Value: "8"},
		},
		ActionValues: []models.ActionEntry{
			{Type: "offsite_conversion.fb_pixel_purchase", Value: "1,250.00"},
			{Type: "purchase", Value: "99"},
		},
	}
}

func TestPurchaseMatchersDiffer(t *testing.T) {
	row := purchaseRow()

	assert.Equal(t, 3.0, PurchaseCount(row))
	assert.Equal(t, 1250.0, PurchaseValue(row))
	assert.Equal(t, 5.0, FunnelStageCount(row, StagePurchase))
	assert.Equal(t, 8.0, FunnelStageCount(row, StageAddToCart))
	assert.Equal(t, 0.0, FunnelStageCount(row, StageInitiateCheckout))
}

func TestExtractorsOnEmptyRow(t *testing.T) {
	var row models.ReportRow

	assert.Equal(t, 0.0, PurchaseCount(row))
	assert.Equal(t, 0.0, PurchaseValue(row))
	assert.Equal(t, 0.0, FunnelStageCount(row, StageViewContent))
}

func TestFirstActionValueNormalizes(t *testing.T) {
	entries := []models.ActionEntry{{Type: "purchase", Value: nil}}
	assert.Equal(t, 0.0, FirstActionValue(entries, ExactMatcher("purchase")))

	entries = []models.ActionEntry{{Type: "omni_purchase", Value: "not a number"}}
	assert.Equal(t, 0.0, FirstActionValue(entries, SubstringPurchaseMatcher))
}

func TestActionHeuristicClassifier(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		want    CreativeType
	}{
		{"video view", []string{"link_click", "video_view"}, CreativeVideo},
		{"upper case thruplay", []string{"VIDEO_THRUPLAY_WATCHED_ACTIONS"}, CreativeVideo},
		{"two second watch", []string{"video_continuous_2_sec_watched_actions"}, CreativeVideo},
		{"no video signal", []string{"link_click", "post_engagement"}, CreativeStatic},
		{"no actions", nil, CreativeStatic},
	}
	var c CreativeClassifier = ActionHeuristicClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := models.ReportRow{}
			for _, a := range tt.actions {
				row.Actions = append(row.Actions, models.ActionEntry{Type: a, Value: 1})
			}
			assert.Equal(t, tt.want, c.Classify(row))
		})
	}
}
