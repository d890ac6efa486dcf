package insights

import (
	"testing"

	"github.com/radiusdt/adinsights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segmentRow(age, gender string, spend any) models.ReportRow {
	return models.ReportRow{
		Spend:       spend,
		Impressions: "1,000",
		Clicks:      10,
		Dimensions:  map[string]string{"age": age, "gender": gender},
	}
}

func TestByBreakdownMergesSameKey(t *testing.T) {
	rows := []models.ReportRow{
		segmentRow("25-34", "female", 10.0),
		segmentRow("25-34", "female", "5.5"),
		segmentRow("35-44", "male", 4.0),
	}

	out := ByBreakdown(rows, "age", "gender")
	require.Len(t, out, 2)

	assert.Equal(t, "25-34|female", out[0].Key)
	assert.Equal(t, 15.5, out[0].KPIs.Spend)
	assert.Equal(t, 2000.0, out[0].KPIs.Impressions)
	assert.Equal(t, map[string]string{"age": "25-34", "gender": "female"}, out[0].Dimensions)

	assert.Equal(t, "35-44|male", out[1].Key)
	assert.Equal(t, 4.0, out[1].KPIs.Spend)
}

func TestBreakdownKeyEscapesSeparator(t *testing.T) {
	key := BreakdownKey("a", "b")
	r1 := models.ReportRow{Dimensions: map[string]string{"a": "x|y", "b": "z"}}
	r2 := models.ReportRow{Dimensions: map[string]string{"a": "x", "b": "y|z"}}

	assert.NotEqual(t, key(r1), key(r2))

	g := Aggregate([]models.ReportRow{r1, r2}, key)
	assert.Equal(t, 2, g.Len())
}

func TestBucketUsesPurchaseExtractors(t *testing.T) {
	row := models.ReportRow{
		Spend:        "50",
		Impressions:  500,
		Clicks:       25,
		Actions:      []models.ActionEntry{{Type: "omni_purchase", Value: "2"}},
		ActionValues: []models.ActionEntry{{Type: "omni_purchase", Value: "150"}},
	}

	var b Bucket
	b.Add(row)
	b.Add(row)
	k := b.KPIs()

	require.NotNil(t, k.Conversions)
	assert.Equal(t, 4.0, *k.Conversions)
	require.NotNil(t, k.CPA)
	assert.Equal(t, 25.0, *k.CPA)
	require.NotNil(t, k.ROAS)
	assert.Equal(t, 3.0, *k.ROAS)
	assert.Equal(t, 2, b.Rows)
}

func TestByEntityCarriesNameAndShare(t *testing.T) {
	rows := []models.ReportRow{
		{CampaignID: "c2", CampaignName: "Retargeting", Spend: 1.0},
		{CampaignID: "c1", CampaignName: "Prospecting", Spend: 1.0},
		{CampaignID: "c3", CampaignName: "Brand", Spend: 1.0},
		{CampaignID: "c1", CampaignName: "Prospecting", Spend: 0.0},
	}

	out := ByEntity(rows, models.LevelCampaign)
	require.Len(t, out, 3)

	assert.Equal(t, "c1", out[0].ID)
	assert.Equal(t, "Prospecting", out[0].Name)
	assert.Equal(t, models.LevelCampaign, out[0].Level)

	var sum float64
	for _, e := range out {
		assert.Equal(t, 33.33, e.SpendShare)
		sum += e.SpendShare
	}
	assert.InDelta(t, 100.0, sum, 0.01*float64(len(out)))
}

func TestApplySpendShareZeroTotal(t *testing.T) {
	items := []models.EntityResult{{ID: "a"}, {ID: "b"}}
	ApplySpendShare(items)
	assert.Equal(t, 0.0, items[0].SpendShare)
	assert.Equal(t, 0.0, items[1].SpendShare)
}

func TestByCreativeType(t *testing.T) {
	rows := []models.ReportRow{
		{AdID: "1", Spend: 10.0, Actions: []models.ActionEntry{{Type: "video_view", Value: 100}}},
		{AdID: "2", Spend: 30.0},
		{AdID: "3", Spend: 10.0, Actions: []models.ActionEntry{{Type: "thruplay", Value: 4}}},
	}

	out := ByCreativeType(rows, ActionHeuristicClassifier{})
	require.Len(t, out, 2)
	assert.Equal(t, "static", out[0].Key)
	assert.Equal(t, 30.0, out[0].KPIs.Spend)
	assert.Equal(t, 60.0, out[0].SpendShare)
	assert.Equal(t, "video", out[1].Key)
	assert.Equal(t, 20.0, out[1].KPIs.Spend)

	types := EntityCreativeTypes(rows, models.LevelAd, ActionHeuristicClassifier{})
	assert.Equal(t, CreativeVideo, types["1"])
	assert.Equal(t, CreativeStatic, types["2"])
}

func TestTotals(t *testing.T) {
	rows := []models.ReportRow{
		{Spend: "100", Impressions: "10,000", Clicks: "200"},
		{Spend: 50.0, Impressions: 5000.0, Clicks: nil},
	}

	k := Totals(rows)
	assert.Equal(t, 150.0, k.Spend)
	assert.Equal(t, 15000.0, k.Impressions)
	assert.Equal(t, 200.0, k.Clicks)
	assert.Equal(t, 10.0, k.CPM)
	assert.Nil(t, k.ROAS)

	empty := Totals(nil)
	assert.Equal(t, 0.0, empty.Spend)
}
