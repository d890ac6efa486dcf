package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/adinsights/internal/insights"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/reporting"
	"github.com/radiusdt/adinsights/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Args is the union of every tool's parameters.
type Args struct {
	AccountID  string   `json:"account_id"`
	Since      string   `json:"since"`
	Until      string   `json:"until"`
	Level      string   `json:"level"`
	Metric     string   `json:"metric"`
	Breakdowns []string `json:"breakdowns"`
	ROASMin    *float64 `json:"roas_min"`
	CPAMax     *float64 `json:"cpa_max"`
}

// Query converts validated arguments into a reporting query.
func (a Args) Query() (reporting.Query, error) {
	if a.Since == "" || a.Until == "" {
		return reporting.Query{}, fmt.Errorf("%w: since and until are required", ErrInvalidArguments)
	}
	q := reporting.Query{
		AccountID:  a.AccountID,
		DateRange:  models.DateRange{Since: a.Since, Until: a.Until},
		Metric:     a.Metric,
		Breakdowns: a.Breakdowns,
		Thresholds: insights.Thresholds{ROASMin: a.ROASMin, CPAMax: a.CPAMax},
	}
	if a.Level != "" {
		level, err := models.ParseLevel(a.Level)
		if err != nil {
			return reporting.Query{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		q.Level = level
	}
	return q, nil
}

// DecodeArgs strictly decodes raw tool arguments. Empty input decodes to zero Args.
func DecodeArgs(raw json.RawMessage) (Args, error) {
	var args Args
	if len(bytes.TrimSpace(raw)) == 0 {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args, nil
}

// CheckParameters rejects any argument that is not declared in the tool's schema.
func CheckParameters(tool Tool, raw json.RawMessage) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	props, _ := tool.Parameters["properties"].(map[string]any)
	for name := range fields {
		if _, ok := props[name]; !ok {
			return fmt.Errorf("%w: %s does not accept %q", ErrInvalidArguments, tool.Name, name)
		}
	}
	return nil
}

// ErrorResult is the payload returned to the agent when a tool fails.
type ErrorResult struct {
	Error string `json:"error"`
}

// Registry dispatches tool calls to the reporting service and audits each run.
type Registry struct {
	tools   map[string]Tool
	service *reporting.Service
	audit   storage.AuditStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates a registry. audit may be nil.
func NewRegistry(service *reporting.Service, audit storage.AuditStore, logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	index := make(map[string]Tool)
	for _, t := range Definitions() {
		index[t.Name] = t
	}
	return &Registry{
		tools:   index,
		service: service,
		audit:   audit,
		logger:  logger,
		metrics: m,
	}
}

// Definitions returns the tools this registry serves.
func (r *Registry) Definitions() []Tool {
	return Definitions()
}

// Has reports whether name is a known tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Invoke runs the named tool with raw JSON arguments.
func (r *Registry) Invoke(ctx context.Context, name string, raw json.RawMessage) (*models.AnalysisResult, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	start := time.Now()
	var args Args
	err := CheckParameters(tool, raw)
	if err == nil {
		args, err = DecodeArgs(raw)
	}
	var res *models.AnalysisResult
	if err == nil {
		res, err = r.dispatch(ctx, name, args)
	}
	elapsed := time.Since(start)

	run := &storage.ToolRun{
		ID:        uuid.NewString(),
		Tool:      name,
		AccountID: args.AccountID,
		Since:     args.Since,
		Until:     args.Until,
		Status:    storage.RunStatusOK,
		Duration:  elapsed,
		StartedAt: start.UTC(),
	}
	if res != nil {
		run.ID = res.RunID
		run.AccountID = res.AccountID
		run.Rows = len(res.Rows)
	}
	if err != nil {
		run.Status = storage.RunStatusError
		run.Error = err.Error()
	}

	r.metrics.RecordTool(name, run.Status, elapsed, run.Rows)
	r.record(ctx, run)

	if err != nil {
		r.logger.Warn("tool failed",
			zap.String("tool", name),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	r.logger.Info("tool completed",
		zap.String("tool", name),
		zap.String("run_id", res.RunID),
		zap.Int("rows", run.Rows),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func (r *Registry) dispatch(ctx context.Context, name string, args Args) (*models.AnalysisResult, error) {
	q, err := args.Query()
	if err != nil {
		return nil, err
	}

	switch name {
	case reporting.OpAccountSummary:
		return r.service.AccountSummary(ctx, q)
	case reporting.OpCampaignPerformance:
		return r.service.CampaignPerformance(ctx, q)
	case reporting.OpAdsetPerformance:
		return r.service.AdsetPerformance(ctx, q)
	case reporting.OpAudienceBreakdown:
		return r.service.AudienceBreakdown(ctx, q)
	case reporting.OpPlacementPerformance:
		return r.service.PlacementPerformance(ctx, q)
	case reporting.OpCreativePerformance:
		return r.service.CreativePerformance(ctx, q)
	case reporting.OpFunnelAnalysis:
		return r.service.FunnelAnalysis(ctx, q)
	case reporting.OpFindUnderperformers:
		return r.service.FindUnderperformers(ctx, q)
	case reporting.OpAsyncInsights:
		return r.service.AsyncEntityReport(ctx, q)
	case reporting.OpExportRows:
		return r.service.ExportRows(ctx, q)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// record writes the run to the audit store. Failures are logged only.
func (r *Registry) record(ctx context.Context, run *storage.ToolRun) {
	if r.audit == nil {
		return
	}
	err := r.audit.RecordRun(context.WithoutCancel(ctx), run)
	r.metrics.RecordAuditWrite(err == nil)
	if err != nil {
		r.logger.Warn("failed to record tool run",
			zap.String("run_id", run.ID),
			zap.String("tool", run.Tool),
			zap.Error(err),
		)
	}
}

// Runs returns recent audited runs, newest first.
func (r *Registry) Runs(ctx context.Context, limit int) ([]*storage.ToolRun, error) {
	if r.audit == nil {
		return []*storage.ToolRun{}, nil
	}
	return r.audit.ListRuns(ctx, limit)
}
