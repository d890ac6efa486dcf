package insights

import (
	"testing"

	"github.com/radiusdt/adinsights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropOffsAndFocus(t *testing.T) {
	drops := DropOffs([]float64{100, 80, 20, 5})

	assert.Equal(t, []float64{0, 0.2, 0.75, 0.75}, drops)
	assert.Equal(t, 2, FocusStage(drops))
}

func TestDropOffsZeroPreviousStage(t *testing.T) {
	drops := DropOffs([]float64{0, 0, 3})

	assert.Equal(t, 0.0, drops[0])
	assert.Equal(t, 1.0, drops[1])
	assert.Less(t, drops[2], 0.0)
}

func TestFocusStageEmpty(t *testing.T) {
	assert.Equal(t, -1, FocusStage(nil))
	assert.Empty(t, DropOffs(nil))
}

func TestBuildFunnel(t *testing.T) {
	rows := []models.ReportRow{
		{Actions: []models.ActionEntry{
			{Type: "view_content", Value: "60"},
			{Type: "add_to_cart", Value: "40"},
			{Type: "initiate_checkout", Value: "10"},
			{Type: "offsite_conversion.fb_pixel_purchase", Value: "99"},
			{Type: "purchase", Value: "3"},
		}},
		{Actions: []models.ActionEntry{
			{Type: "view_content", Value: 40},
			{Type: "add_to_cart", Value: 40},
			{Type: "initiate_checkout", Value: 10},
			{Type: "purchase", Value: 2},
		}},
	}

	view := BuildFunnel(rows)
	require.Len(t, view.Stages, 4)

	assert.Equal(t, 100.0, view.Stages[0].Count)
	assert.Equal(t, 80.0, view.Stages[1].Count)
	assert.Equal(t, 20.0, view.Stages[2].Count)
	assert.Equal(t, 5.0, view.Stages[3].Count)

	require.NotNil(t, view.FocusStage)
	assert.Equal(t, 2, view.FocusStage.Index)
	assert.Equal(t, StageInitiateCheckout, view.FocusStage.Name)
	assert.Equal(t, 0.75, view.FocusStage.DropOff)
}

func TestBuildFunnelNoData(t *testing.T) {
	view := BuildFunnel(nil)

	require.Len(t, view.Stages, 4)
	assert.Equal(t, 1.0, view.Stages[1].DropOff)
	require.NotNil(t, view.FocusStage)
	assert.Equal(t, 1, view.FocusStage.Index)
}
