package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/radiusdt/adinsights/internal/reporting"
	"github.com/radiusdt/adinsights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	rows   []models.ReportRow
	err    error
	params url.Values
}

func (s *stubFetcher) FetchReport(ctx context.Context, entityPath string, params url.Values) ([]models.ReportRow, error) {
	s.params = params
	return s.rows, s.err
}

type failingAudit struct{}

func (failingAudit) RecordRun(context.Context, *storage.ToolRun) error {
	return errors.New("audit db down")
}

func (failingAudit) ListRuns(context.Context, int) ([]*storage.ToolRun, error) {
	return nil, errors.New("audit db down")
}

func newRegistry(t *testing.T, f *stubFetcher, audit storage.AuditStore) (*Registry, *metrics.Metrics) {
	t.Helper()
	svc := reporting.NewService(reporting.Options{
		Fetcher:          f,
		DefaultAccountID: "42",
		Logger:           zap.NewNop(),
	})
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewRegistry(svc, audit, zap.NewNop(), m), m
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 10)

	seen := map[string]bool{}
	for _, d := range defs {
		assert.False(t, seen[d.Name], "duplicate tool %s", d.Name)
		seen[d.Name] = true
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, "object", d.Parameters["type"])
		assert.Equal(t, []string{"since", "until"}, d.Parameters["required"])

		props := d.Parameters["properties"].(map[string]any)
		assert.Contains(t, props, "account_id")
	}

	for _, name := range []string{
		"get_account_summary", "get_campaign_performance", "get_adset_performance",
		"get_audience_breakdown", "get_placement_performance", "get_creative_performance",
		"get_funnel_analysis", "find_underperformers", "get_async_insights", "export_report_rows",
	} {
		assert.True(t, seen[name], name)
	}

	_, err := json.Marshal(defs)
	assert.NoError(t, err)
}

func TestDecodeArgs(t *testing.T) {
	args, err := DecodeArgs(json.RawMessage(`{"since":"2024-01-01","until":"2024-01-31","roas_min":1.5,"breakdowns":["age"]}`))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", args.Since)
	require.NotNil(t, args.ROASMin)
	assert.Equal(t, 1.5, *args.ROASMin)
	assert.Nil(t, args.CPAMax)
	assert.Equal(t, []string{"age"}, args.Breakdowns)

	_, err = DecodeArgs(json.RawMessage(`{"since":"2024-01-01","colour":"red"}`))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = DecodeArgs(json.RawMessage(`{"since":`))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	args, err = DecodeArgs(nil)
	require.NoError(t, err)
	assert.Empty(t, args.Since)
}

func TestInvokeRejectsParametersOfOtherTools(t *testing.T) {
	tests := []struct {
		tool string
		args string
	}{
		{"get_placement_performance", `{"since":"2024-01-01","until":"2024-01-31","metric":"roas"}`},
		{"get_account_summary", `{"since":"2024-01-01","until":"2024-01-31","roas_min":1}`},
		{"get_funnel_analysis", `{"since":"2024-01-01","until":"2024-01-31","breakdowns":["age"]}`},
		{"get_campaign_performance", `{"since":"2024-01-01","until":"2024-01-31","level":"ad"}`},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			f := &stubFetcher{}
			reg, _ := newRegistry(t, f, nil)
			_, err := reg.Invoke(context.Background(), tt.tool, json.RawMessage(tt.args))
			assert.ErrorIs(t, err, ErrInvalidArguments)
			assert.Nil(t, f.params, "nothing is fetched for rejected arguments")
		})
	}
}

func TestCheckParameters(t *testing.T) {
	var underperformers Tool
	for _, d := range Definitions() {
		if d.Name == "find_underperformers" {
			underperformers = d
		}
	}
	require.NotEmpty(t, underperformers.Name)

	assert.NoError(t, CheckParameters(underperformers, json.RawMessage(`{"since":"2024-01-01","level":"ad","cpa_max":20}`)))
	assert.NoError(t, CheckParameters(underperformers, nil))
	assert.ErrorIs(t, CheckParameters(underperformers, json.RawMessage(`{"metric":"roas"}`)), ErrInvalidArguments)
	assert.ErrorIs(t, CheckParameters(underperformers, json.RawMessage(`[1,2]`)), ErrInvalidArguments)
}

func TestArgsQuery(t *testing.T) {
	_, err := Args{Since: "2024-01-01"}.Query()
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = Args{Since: "2024-01-01", Until: "2024-01-02", Level: "creative"}.Query()
	assert.ErrorIs(t, err, ErrInvalidArguments)

	q, err := Args{Since: "2024-01-01", Until: "2024-01-02", Level: "adset", CPAMax: models.Float64(20)}.Query()
	require.NoError(t, err)
	assert.Equal(t, models.LevelAdset, q.Level)
	assert.Equal(t, 20.0, *q.Thresholds.CPAMax)

	q, err = Args{Since: "2024-01-01", Until: "2024-01-02"}.Query()
	require.NoError(t, err)
	assert.Empty(t, q.Level)
}

func TestInvokeRecordsRun(t *testing.T) {
	f := &stubFetcher{rows: []models.ReportRow{
		{CampaignID: "c1", Spend: "10"},
		{CampaignID: "c2", Spend: "30"},
	}}
	audit := storage.NewInMemoryAuditStore(10)
	reg, m := newRegistry(t, f, audit)

	res, err := reg.Invoke(context.Background(), "get_campaign_performance",
		json.RawMessage(`{"since":"2024-01-01","until":"2024-01-31","metric":"spend"}`))
	require.NoError(t, err)
	assert.Equal(t, "get_campaign_performance", res.Tool)
	assert.Equal(t, "act_42", res.AccountID)

	runs, err := reg.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, storage.RunStatusOK, runs[0].Status)
	assert.Equal(t, "act_42", runs[0].AccountID)
	assert.Equal(t, 2, runs[0].Rows)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("get_campaign_performance", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsAnalysed.WithLabelValues("get_campaign_performance")))
}

func TestInvokeRecordsFailure(t *testing.T) {
	audit := storage.NewInMemoryAuditStore(10)
	reg, m := newRegistry(t, &stubFetcher{}, audit)

	_, err := reg.Invoke(context.Background(), "find_underperformers",
		json.RawMessage(`{"since":"2024-01-01","until":"2024-01-31"}`))
	assert.ErrorIs(t, err, reporting.ErrNoThresholds)

	_, err = reg.Invoke(context.Background(), "get_funnel_analysis", json.RawMessage(`{"until":"2024-01-31"}`))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	runs, err := reg.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, storage.RunStatusError, runs[0].Status)
	assert.Contains(t, runs[0].Error, "since and until")
	assert.Equal(t, "find_underperformers", runs[1].Tool)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolInvocations.WithLabelValues("find_underperformers", "error")))
}

func TestInvokeUnknownTool(t *testing.T) {
	audit := storage.NewInMemoryAuditStore(10)
	reg, _ := newRegistry(t, &stubFetcher{}, audit)

	_, err := reg.Invoke(context.Background(), "delete_account", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	runs, _ := reg.Runs(context.Background(), 0)
	assert.Empty(t, runs)
}

func TestInvokeSurvivesAuditFailure(t *testing.T) {
	f := &stubFetcher{rows: []models.ReportRow{{AccountID: "42", Spend: "5"}}}
	reg, m := newRegistry(t, f, failingAudit{})

	res, err := reg.Invoke(context.Background(), "get_account_summary",
		json.RawMessage(`{"account_id":"7","since":"2024-01-01","until":"2024-01-31"}`))
	require.NoError(t, err)
	assert.Equal(t, "act_7", res.AccountID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("error")))
}

func TestRunsWithoutAudit(t *testing.T) {
	reg, _ := newRegistry(t, &stubFetcher{}, nil)
	runs, err := reg.Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
