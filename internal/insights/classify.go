package insights

import (
	"strings"

	"github.com/radiusdt/adinsights/internal/models"
)

// CreativeType is a coarse label for an ad's creative format.
type CreativeType string

const (
	CreativeVideo  CreativeType = "video"
	CreativeStatic CreativeType = "static"
)

// CreativeClassifier labels a row with a creative type.
type CreativeClassifier interface {
	Classify(row models.ReportRow) CreativeType
}

// videoSignals are action-type fragments that only video creatives produce.
var videoSignals = []string{
	"video_view",
	"thruplay",
	"video_play",
	"video_10s_views",
	"video_continuous_2_sec_watched_actions",
}

// ActionHeuristicClassifier infers the creative type from engagement actions.
// It is approximate: a video ad with no recorded views is labelled static.
type ActionHeuristicClassifier struct{}

// Classify implements CreativeClassifier.
func (ActionHeuristicClassifier) Classify(row models.ReportRow) CreativeType {
	if LooksLikeVideo(row) {
		return CreativeVideo
	}
	return CreativeStatic
}

// LooksLikeVideo reports whether any action type carries a video signal.
func LooksLikeVideo(row models.ReportRow) bool {
	for _, a := range row.Actions {
		t := strings.ToLower(a.Type)
		for _, sig := range videoSignals {
			if strings.Contains(t, sig) {
				return true
			}
		}
	}
	return false
}
