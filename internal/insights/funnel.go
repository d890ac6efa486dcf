package insights

import "github.com/radiusdt/adinsights/internal/models"

// DropOffs returns the fraction lost at each stage relative to the one before.
// Stage 0 is always 0.
func DropOffs(counts []float64) []float64 {
	drops := make([]float64, len(counts))
	for i := 1; i < len(counts); i++ {
		drops[i] = Round2(1 - counts[i]/max(counts[i-1], spendFloor))
	}
	return drops
}

// FocusStage returns the index of the first maximum drop-off, or -1 for no stages.
func FocusStage(drops []float64) int {
	if len(drops) == 0 {
		return -1
	}
	best := 0
	for i, d := range drops {
		if d > drops[best] {
			best = i
		}
	}
	return best
}

// BuildFunnel sums exact-match stage counts across rows and locates the focus stage.
func BuildFunnel(rows []models.ReportRow) models.FunnelView {
	counts := make([]float64, len(FunnelStages))
	for _, row := range rows {
		for i, stage := range FunnelStages {
			counts[i] += FunnelStageCount(row, stage)
		}
	}
	for i := range counts {
		counts[i] = RoundCount(counts[i])
	}

	drops := DropOffs(counts)
	view := models.FunnelView{Stages: make([]models.FunnelStage, len(counts))}
	for i := range counts {
		view.Stages[i] = models.FunnelStage{
			Index:   i,
			Name:    FunnelStages[i],
			Count:   counts[i],
			DropOff: drops[i],
		}
	}

	if focus := FocusStage(drops); focus > 0 {
		stage := view.Stages[focus]
		view.FocusStage = &stage
	}
	return view
}
