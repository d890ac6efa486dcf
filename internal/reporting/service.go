// Package reporting turns upstream insights rows into analysis results. Each
// operation fetches rows, runs them through the insights engine and shapes the
// views and recommendations returned to the caller.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/adinsights/internal/graphapi"
	"github.com/radiusdt/adinsights/internal/insights"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/storage"
	"go.uber.org/zap"
)

// Operation names, shared with the tool layer.
const (
	OpAccountSummary       = "get_account_summary"
	OpCampaignPerformance  = "get_campaign_performance"
	OpAdsetPerformance     = "get_adset_performance"
	OpAudienceBreakdown    = "get_audience_breakdown"
	OpPlacementPerformance = "get_placement_performance"
	OpCreativePerformance  = "get_creative_performance"
	OpFunnelAnalysis       = "get_funnel_analysis"
	OpFindUnderperformers  = "find_underperformers"
	OpAsyncInsights        = "get_async_insights"
	OpExportRows           = "export_report_rows"
)

// ReportFetcher reads every page of an insights edge.
type ReportFetcher interface {
	FetchReport(ctx context.Context, entityPath string, params url.Values) ([]models.ReportRow, error)
}

// AsyncReporter runs insights as an async job.
type AsyncReporter interface {
	StartAsyncJob(ctx context.Context, entityPath string, params url.Values) (string, error)
	PollJobStatus(ctx context.Context, jobID string) (graphapi.JobStatus, error)
	FetchJobResult(ctx context.Context, jobID string) ([]models.ReportRow, error)
}

// Options configures a Service. Fetcher is required; the rest is optional.
type Options struct {
	Fetcher          ReportFetcher
	Async            AsyncReporter
	Classifier       insights.CreativeClassifier
	Archive          storage.KPIArchive
	Exporter         storage.RowExporter
	DefaultAccountID string
	PageSize         int
	PollInterval     time.Duration
	JobTimeout       time.Duration
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
}

// Service runs the analysis operations.
type Service struct {
	fetcher          ReportFetcher
	async            AsyncReporter
	classifier       insights.CreativeClassifier
	archive          storage.KPIArchive
	exporter         storage.RowExporter
	defaultAccountID string
	pageSize         int
	pollInterval     time.Duration
	jobTimeout       time.Duration
	logger           *zap.Logger
	metrics          *metrics.Metrics
	now              func() time.Time
}

// NewService creates a reporting service.
func NewService(opts Options) *Service {
	s := &Service{
		fetcher:          opts.Fetcher,
		async:            opts.Async,
		classifier:       opts.Classifier,
		archive:          opts.Archive,
		exporter:         opts.Exporter,
		defaultAccountID: opts.DefaultAccountID,
		pageSize:         opts.PageSize,
		pollInterval:     opts.PollInterval,
		jobTimeout:       opts.JobTimeout,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		now:              time.Now,
	}
	if s.classifier == nil {
		s.classifier = insights.ActionHeuristicClassifier{}
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 5 * time.Second
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = 5 * time.Minute
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Query holds the inputs shared by every operation. Fields an operation does
// not use are ignored.
type Query struct {
	AccountID  string
	DateRange  models.DateRange
	Level      models.Level
	Metric     string
	Breakdowns []string
	Thresholds insights.Thresholds
}

// Ranking describes how a ranked view was ordered.
type Ranking struct {
	Metric    insights.Metric `json:"metric"`
	Direction string          `json:"direction"`
}

// ExportSummary is the view returned by ExportRows.
type ExportSummary struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
}

var (
	audienceDefaults  = []string{"age", "gender"}
	placementDims     = []string{"publisher_platform", "platform_position"}
	allowedBreakdowns = []string{
		"age", "gender", "country", "region", "dma",
		"publisher_platform", "platform_position", "device_platform", "impression_device",
	}
)

// AccountSummary returns account-level totals.
func (s *Service) AccountSummary(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpAccountSummary, accountID, graphapi.InsightsQuery{
		Level:     models.LevelAccount,
		DateRange: q.DateRange,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpAccountSummary, accountID, q.DateRange, rows)
	res.Views["totals"] = insights.Totals(rows)
	s.logDone(res)
	return res, nil
}

// CampaignPerformance ranks campaigns by q.Metric (ROAS by default).
func (s *Service) CampaignPerformance(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	return s.entityPerformance(ctx, OpCampaignPerformance, q, models.LevelCampaign, insights.MetricROAS)
}

// AdsetPerformance ranks ad sets by q.Metric (CPA by default).
func (s *Service) AdsetPerformance(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	return s.entityPerformance(ctx, OpAdsetPerformance, q, models.LevelAdset, insights.MetricCPA)
}

func (s *Service) entityPerformance(ctx context.Context, op string, q Query, level models.Level, def insights.Metric) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	metric, err := metricOr(q.Metric, def)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, op, accountID, graphapi.InsightsQuery{Level: level, DateRange: q.DateRange})
	if err != nil {
		return nil, err
	}

	res := s.newResult(op, accountID, q.DateRange, rows)
	s.analyseEntities(ctx, res, level, metric, insights.TopThree)
	s.logDone(res)
	return res, nil
}

// analyseEntities fills the entity views and recommendations of res from its rows.
func (s *Service) analyseEntities(ctx context.Context, res *models.AnalysisResult, level models.Level, metric insights.Metric, n int) {
	entities := insights.ByEntity(res.Rows, level)
	dir := metric.NaturalDirection()
	ranked := insights.RankBy(entities, insights.Selector[models.EntityResult](metric), dir)

	res.Views["entities"] = ranked
	res.Views["ranking"] = Ranking{Metric: metric, Direction: dir.String()}
	res.Views["totals"] = insights.Totals(res.Rows)
	res.Recommendations = &models.Recommendations{
		Top:    insights.TopN(ranked, n),
		Bottom: insights.BottomN(ranked, n),
	}
	s.archiveEntities(ctx, res, level, entities)
}

// AudienceBreakdown aggregates by demographic breakdowns (age and gender by default).
func (s *Service) AudienceBreakdown(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	dims := q.Breakdowns
	if len(dims) == 0 {
		dims = audienceDefaults
	}
	if err := validateBreakdowns(dims); err != nil {
		return nil, err
	}
	metric, err := metricOr(q.Metric, insights.MetricROAS)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpAudienceBreakdown, accountID, graphapi.InsightsQuery{
		Level:      models.LevelAccount,
		DateRange:  q.DateRange,
		Breakdowns: dims,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpAudienceBreakdown, accountID, q.DateRange, rows)
	dir := metric.NaturalDirection()
	ranked := insights.RankBy(insights.ByBreakdown(rows, dims...), insights.Selector[models.BreakdownResult](metric), dir)

	res.Views["segments"] = ranked
	res.Views["breakdowns"] = dims
	res.Views["ranking"] = Ranking{Metric: metric, Direction: dir.String()}
	res.Views["totals"] = insights.Totals(rows)
	res.Recommendations = &models.Recommendations{
		Top:    insights.TopN(ranked, insights.TopFive),
		Bottom: insights.BottomN(ranked, insights.TopFive),
	}
	s.logDone(res)
	return res, nil
}

// PlacementPerformance compares platform and position combinations by ROAS and CPM.
func (s *Service) PlacementPerformance(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpPlacementPerformance, accountID, graphapi.InsightsQuery{
		Level:      models.LevelAccount,
		DateRange:  q.DateRange,
		Breakdowns: placementDims,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpPlacementPerformance, accountID, q.DateRange, rows)
	placements := insights.ByBreakdown(rows, placementDims...)
	byROAS := insights.RankBy(placements, insights.Selector[models.BreakdownResult](insights.MetricROAS), insights.Descending)
	byCPM := insights.RankBy(placements, insights.Selector[models.BreakdownResult](insights.MetricCPM), insights.Ascending)

	res.Views["placements"] = placements
	res.Views["by_roas"] = byROAS
	res.Views["by_cpm"] = byCPM
	res.Views["totals"] = insights.Totals(rows)

	recs := &models.Recommendations{
		Top:    insights.TopN(byROAS, insights.TopThree),
		Bottom: insights.BottomN(byROAS, insights.TopThree),
	}
	if len(byCPM) > 0 {
		recs.Notes = append(recs.Notes, fmt.Sprintf("cheapest placement by CPM: %s (%.2f)", byCPM[0].Key, byCPM[0].KPIs.CPM))
	}
	res.Recommendations = recs
	s.logDone(res)
	return res, nil
}

// CreativePerformance ranks ads by CTR and groups them by inferred creative type.
func (s *Service) CreativePerformance(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	metric, err := metricOr(q.Metric, insights.MetricCTR)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpCreativePerformance, accountID, graphapi.InsightsQuery{
		Level:     models.LevelAd,
		DateRange: q.DateRange,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpCreativePerformance, accountID, q.DateRange, rows)
	ads := insights.ByEntity(rows, models.LevelAd)
	types := insights.EntityCreativeTypes(rows, models.LevelAd, s.classifier)
	for i := range ads {
		ads[i].CreativeType = string(types[ads[i].ID])
	}
	dir := metric.NaturalDirection()
	ranked := insights.RankBy(ads, insights.Selector[models.EntityResult](metric), dir)

	res.Views["ads"] = ranked
	res.Views["by_creative_type"] = insights.ByCreativeType(rows, s.classifier)
	res.Views["ranking"] = Ranking{Metric: metric, Direction: dir.String()}
	res.Views["totals"] = insights.Totals(rows)
	res.Recommendations = &models.Recommendations{
		Top:    insights.TopN(ranked, insights.TopFive),
		Bottom: insights.BottomN(ranked, insights.TopFive),
		Notes:  []string{"creative type is inferred from engagement actions and is approximate"},
	}
	s.archiveEntities(ctx, res, models.LevelAd, ads)
	s.logDone(res)
	return res, nil
}

// FunnelAnalysis sums the purchase funnel stages and points at the largest drop-off.
func (s *Service) FunnelAnalysis(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpFunnelAnalysis, accountID, graphapi.InsightsQuery{
		Level:     models.LevelAccount,
		DateRange: q.DateRange,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpFunnelAnalysis, accountID, q.DateRange, rows)
	funnel := insights.BuildFunnel(rows)
	res.Views["funnel"] = funnel

	recs := &models.Recommendations{FocusStage: funnel.FocusStage}
	if f := funnel.FocusStage; f != nil {
		recs.Notes = []string{fmt.Sprintf("largest drop-off is into %s (%.0f%% lost)", f.Name, f.DropOff*100)}
	}
	res.Recommendations = recs
	s.logDone(res)
	return res, nil
}

// FindUnderperformers lists entities breaching q.Thresholds, highest spend first.
func (s *Service) FindUnderperformers(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	level, err := entityLevel(q.Level)
	if err != nil {
		return nil, err
	}
	if q.Thresholds.IsZero() {
		return nil, ErrNoThresholds
	}

	rows, err := s.fetch(ctx, OpFindUnderperformers, accountID, graphapi.InsightsQuery{Level: level, DateRange: q.DateRange})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpFindUnderperformers, accountID, q.DateRange, rows)
	entities := insights.ByEntity(rows, level)
	failing := insights.Underperformers(entities, q.Thresholds)
	failing = insights.RankBy(failing, insights.Selector[models.EntityResult](insights.MetricSpend), insights.Descending)

	res.Views["underperformers"] = failing
	res.Views["thresholds"] = q.Thresholds
	res.Views["evaluated"] = len(entities)
	res.Recommendations = &models.Recommendations{
		Bottom: insights.TopN(failing, insights.TopFive),
		Notes:  []string{fmt.Sprintf("%d of %d %ss breach the thresholds", len(failing), len(entities), level)},
	}
	s.archiveEntities(ctx, res, level, entities)
	s.logDone(res)
	return res, nil
}

// AsyncEntityReport runs an entity report through an async job, then analyses it
// like CampaignPerformance.
func (s *Service) AsyncEntityReport(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	if s.async == nil {
		return nil, ErrAsyncDisabled
	}
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	level, err := entityLevel(q.Level)
	if err != nil {
		return nil, err
	}
	metric, err := metricOr(q.Metric, insights.MetricROAS)
	if err != nil {
		return nil, err
	}

	params := graphapi.InsightsQuery{Level: level, DateRange: q.DateRange}.Values()
	jobID, err := s.async.StartAsyncJob(ctx, graphapi.InsightsPath(accountID), params)
	if err != nil {
		s.metrics.RecordAsyncJob("start_failed")
		return nil, fmt.Errorf("%s: start job: %w", OpAsyncInsights, err)
	}
	s.logger.Info("async insights job started",
		zap.String("job_id", jobID),
		zap.String("account_id", accountID),
		zap.String("level", string(level)),
	)

	status, err := graphapi.WaitForJob(ctx, s.async, jobID, s.pollInterval, s.jobTimeout)
	if err != nil {
		s.metrics.RecordAsyncJob(jobOutcome(status, err))
		return nil, fmt.Errorf("%s: %w", OpAsyncInsights, err)
	}
	s.metrics.RecordAsyncJob("completed")

	rows, err := s.async.FetchJobResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch job result: %w", OpAsyncInsights, err)
	}

	res := s.newResult(OpAsyncInsights, accountID, q.DateRange, rows)
	res.Views["job"] = status
	s.analyseEntities(ctx, res, level, metric, insights.TopThree)
	s.logDone(res)
	return res, nil
}

// ExportRows fetches raw rows and writes them to the configured exporter.
func (s *Service) ExportRows(ctx context.Context, q Query) (*models.AnalysisResult, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	accountID, err := s.begin(q)
	if err != nil {
		return nil, err
	}
	level := q.Level
	if level == "" {
		level = models.LevelAd
	}
	if err := validateBreakdowns(q.Breakdowns); err != nil {
		return nil, err
	}

	rows, err := s.fetch(ctx, OpExportRows, accountID, graphapi.InsightsQuery{
		Level:      level,
		DateRange:  q.DateRange,
		Breakdowns: q.Breakdowns,
	})
	if err != nil {
		return nil, err
	}

	res := s.newResult(OpExportRows, accountID, q.DateRange, rows)
	location, err := s.exporter.ExportRows(ctx, storage.ExportMeta{
		RunID:     res.RunID,
		AccountID: accountID,
		Level:     level,
		DateRange: q.DateRange,
	}, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpExportRows, err)
	}

	res.Views["export"] = ExportSummary{Location: location, Rows: len(rows)}
	s.logDone(res)
	return res, nil
}

func (s *Service) begin(q Query) (string, error) {
	accountID, err := ResolveAccountID(q.AccountID, s.defaultAccountID)
	if err != nil {
		return "", err
	}
	if err := q.DateRange.Validate(); err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *Service) fetch(ctx context.Context, op, accountID string, iq graphapi.InsightsQuery) ([]models.ReportRow, error) {
	iq.PageSize = s.pageSize
	rows, err := s.fetcher.FetchReport(ctx, graphapi.InsightsPath(accountID), iq.Values())
	if err != nil {
		return nil, fmt.Errorf("%s: fetch insights: %w", op, err)
	}
	return rows, nil
}

func (s *Service) newResult(op, accountID string, dr models.DateRange, rows []models.ReportRow) *models.AnalysisResult {
	if rows == nil {
		rows = []models.ReportRow{}
	}
	return &models.AnalysisResult{
		RunID:       uuid.NewString(),
		Tool:        op,
		AccountID:   accountID,
		DateRange:   dr,
		Rows:        rows,
		Views:       make(map[string]any),
		GeneratedAt: s.now().UTC(),
	}
}

// archiveEntities stores entity KPIs when an archive is configured. Failures
// are logged and do not fail the analysis.
func (s *Service) archiveEntities(ctx context.Context, res *models.AnalysisResult, level models.Level, entities []models.EntityResult) {
	if s.archive == nil || len(entities) == 0 {
		return
	}
	err := s.archive.ArchiveEntities(ctx, storage.KPISnapshot{
		RunID:      res.RunID,
		Tool:       res.Tool,
		AccountID:  res.AccountID,
		Level:      level,
		DateRange:  res.DateRange,
		CapturedAt: res.GeneratedAt,
	}, entities)
	s.metrics.RecordArchiveWrite(err == nil)
	if err != nil {
		s.logger.Warn("failed to archive entity KPIs",
			zap.String("run_id", res.RunID),
			zap.String("tool", res.Tool),
			zap.Error(err),
		)
	}
}

func (s *Service) logDone(res *models.AnalysisResult) {
	s.logger.Info("analysis complete",
		zap.String("run_id", res.RunID),
		zap.String("tool", res.Tool),
		zap.String("account_id", res.AccountID),
		zap.String("date_range", res.DateRange.String()),
		zap.Int("rows", len(res.Rows)),
	)
}

func metricOr(name string, def insights.Metric) (insights.Metric, error) {
	if name == "" {
		return def, nil
	}
	return insights.ParseMetric(name)
}

func entityLevel(level models.Level) (models.Level, error) {
	switch level {
	case "":
		return models.LevelCampaign, nil
	case models.LevelCampaign, models.LevelAdset, models.LevelAd:
		return level, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, level)
}

func validateBreakdowns(dims []string) error {
	for _, d := range dims {
		if !slices.Contains(allowedBreakdowns, d) {
			return fmt.Errorf("%w: %q", ErrInvalidBreakdown, d)
		}
	}
	return nil
}

func jobOutcome(status graphapi.JobStatus, err error) string {
	switch {
	case status.State == graphapi.JobFailed || status.State == graphapi.JobError:
		return "failed"
	case errors.Is(err, graphapi.ErrJobTimeout):
		return "timeout"
	}
	return "error"
}
