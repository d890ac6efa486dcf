package insights

import (
	"strings"

	"github.com/radiusdt/adinsights/internal/models"
)

// ActionMatcher decides whether an action_type string is the one being looked for.
type ActionMatcher func(actionType string) bool

// SubstringMatcher matches any action type containing sub.
func SubstringMatcher(sub string) ActionMatcher {
	return func(actionType string) bool {
		return strings.Contains(actionType, sub)
	}
}

// ExactMatcher matches only the action type equal to want.
func ExactMatcher(want string) ActionMatcher {
	return func(actionType string) bool {
		return actionType == want
	}
}

// SubstringPurchaseMatcher is used for aggregate conversions and revenue. It also
// catches variants such as offsite_conversion.fb_pixel_purchase.
var SubstringPurchaseMatcher = SubstringMatcher("purchase")

// FirstActionValue returns the normalized value of the first entry accepted by match.
func FirstActionValue(entries []models.ActionEntry, match ActionMatcher) float64 {
	for _, e := range entries {
		if match(e.Type) {
			return ToNumber(e.Value)
		}
	}
	return 0
}

// PurchaseCount reads the purchase count from a row's actions list.
func PurchaseCount(row models.ReportRow) float64 {
	return FirstActionValue(row.Actions, SubstringPurchaseMatcher)
}

// PurchaseValue reads the purchase revenue from a row's action_values list.
func PurchaseValue(row models.ReportRow) float64 {
	return FirstActionValue(row.ActionValues, SubstringPurchaseMatcher)
}

// Funnel stages in order. Matched exactly, unlike the purchase matcher above.
const (
	StageViewContent      = "view_content"
	StageAddToCart        = "add_to_cart"
	StageInitiateCheckout = "initiate_checkout"
	StagePurchase         = "purchase"
)

// FunnelStages is the ordered purchase funnel.
var FunnelStages = []string{StageViewContent, StageAddToCart, StageInitiateCheckout, StagePurchase}

// FunnelStageCount reads one funnel stage count from a row using ExactMatcher.
func FunnelStageCount(row models.ReportRow, stage string) float64 {
	return FirstActionValue(row.Actions, ExactMatcher(stage))
}
