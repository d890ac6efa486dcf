package storage

import (
	"context"
	"time"

	"github.com/radiusdt/adinsights/internal/models"
)

// =============================================
// TOOL RUN AUDIT LOG
// =============================================

// Run statuses.
const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)

// ToolRun is one audited tool invocation.
type ToolRun struct {
	ID        string        `json:"id"`
	Tool      string        `json:"tool"`
	AccountID string        `json:"account_id,omitempty"`
	Since     string        `json:"since,omitempty"`
	Until     string        `json:"until,omitempty"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Rows      int           `json:"rows"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// AuditStore records tool invocations.
type AuditStore interface {
	RecordRun(ctx context.Context, run *ToolRun) error
	ListRuns(ctx context.Context, limit int) ([]*ToolRun, error)
}

// =============================================
// KPI SNAPSHOT ARCHIVE
// =============================================

// KPISnapshot identifies one batch of archived entity KPIs.
type KPISnapshot struct {
	RunID      string
	Tool       string
	AccountID  string
	Level      models.Level
	DateRange  models.DateRange
	CapturedAt time.Time
}

// KPIArchive keeps a history of computed entity KPIs for later trend queries.
type KPIArchive interface {
	ArchiveEntities(ctx context.Context, snap KPISnapshot, entities []models.EntityResult) error
}

// NopArchive discards everything.
type NopArchive struct{}

// ArchiveEntities implements KPIArchive.
func (NopArchive) ArchiveEntities(context.Context, KPISnapshot, []models.EntityResult) error {
	return nil
}

// =============================================
// RAW ROW EXPORT
// =============================================

// ExportMeta describes an export batch.
type ExportMeta struct {
	RunID     string
	AccountID string
	Level     models.Level
	DateRange models.DateRange
}

// RowExporter hands raw report rows to an external warehouse.
// It returns the location the rows were written to.
type RowExporter interface {
	ExportRows(ctx context.Context, meta ExportMeta, rows []models.ReportRow) (string, error)
}
