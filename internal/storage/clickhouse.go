package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/radiusdt/adinsights/internal/models"
	"go.uber.org/zap"
)

// ClickHouseExecer is the subset of a ClickHouse connection the archive uses.
// clickhouse-go's driver.Conn satisfies it.
type ClickHouseExecer interface {
	Exec(ctx context.Context, query string, args ...any) error
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// ClickHouseArchive implements KPIArchive on an entity_kpi_snapshots table.
type ClickHouseArchive struct {
	conn   ClickHouseExecer
	logger *zap.Logger
}

// NewClickHouseArchive creates a ClickHouse-backed KPI archive.
func NewClickHouseArchive(conn ClickHouseExecer, logger *zap.Logger) *ClickHouseArchive {
	return &ClickHouseArchive{conn: conn, logger: logger}
}

// EnsureSchema creates the snapshot table if it does not exist.
func (a *ClickHouseArchive) EnsureSchema(ctx context.Context) error {
	err := a.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS entity_kpi_snapshots (
			run_id        String,
			tool          LowCardinality(String),
			account_id    String,
			level         LowCardinality(String),
			entity_id     String,
			entity_name   String,
			since         Date,
			until         Date,
			spend         Float64,
			impressions   Float64,
			clicks        Float64,
			conversions   Nullable(Float64),
			revenue       Nullable(Float64),
			ctr           Float64,
			cpc           Float64,
			cpm           Float64,
			cpa           Nullable(Float64),
			roas          Nullable(Float64),
			spend_share   Float64,
			captured_at   DateTime
		) ENGINE = MergeTree()
		ORDER BY (account_id, level, entity_id, captured_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to create entity_kpi_snapshots table: %w", err)
	}
	return nil
}

const insertSnapshotQuery = `
	INSERT INTO entity_kpi_snapshots (
		run_id, tool, account_id, level, entity_id, entity_name, since, until,
		spend, impressions, clicks, conversions, revenue, ctr, cpc, cpm, cpa, roas,
		spend_share, captured_at
	)`

// ArchiveEntities writes the whole snapshot as a single batch insert, so a
// snapshot lands in one part or not at all.
func (a *ClickHouseArchive) ArchiveEntities(ctx context.Context, snap KPISnapshot, entities []models.EntityResult) error {
	if len(entities) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, insertSnapshotQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}

	for _, e := range entities {
		k := e.KPIs
		err := batch.Append(
			snap.RunID, snap.Tool, snap.AccountID, string(snap.Level), e.ID, e.Name,
			snap.DateRange.Since, snap.DateRange.Until,
			k.Spend, k.Impressions, k.Clicks, k.Conversions, k.Revenue,
			k.CTR, k.CPC, k.CPM, k.CPA, k.ROAS,
			e.SpendShare, snap.CapturedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append %s %s: %w", snap.Level, e.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send snapshot batch %s: %w", snap.RunID, err)
	}

	a.logger.Debug("archived entity KPIs",
		zap.String("run_id", snap.RunID),
		zap.String("level", string(snap.Level)),
		zap.Int("entities", len(entities)),
	)
	return nil
}
