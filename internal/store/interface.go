package store

import (
	"context"
	"errors"
	"time"

	"github.com/visiblelab/visibility-bot/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDataIntegrity signals an unexpected missing or duplicate row.
// Stages that hit it are marked failed rather than silently continuing.
var ErrDataIntegrity = errors.New("data integrity violation")

// InventoryStore reads the brand/prompt snapshot consumed by discovery.
type InventoryStore interface {
	EligibleBrands(ctx context.Context) ([]models.Brand, error)
	ActivePrompts(ctx context.Context, brandID uint) ([]models.Prompt, error)
	PromptsByIDs(ctx context.Context, ids []uint) ([]models.Prompt, error)
	GetBrand(ctx context.Context, id uint) (*models.Brand, error)
}

// AccountStore manages the shared automation account pool.
type AccountStore interface {
	ListActive(ctx context.Context) ([]models.AutomationAccount, error)
	MarkUsed(ctx context.Context, id uint, usedAt time.Time) error
	RecordError(ctx context.Context, id uint) (consecutive int, err error)
	ResetErrors(ctx context.Context, id uint) error
	Disable(ctx context.Context, id uint) error
}

// HistoryStore reads and appends the execution history log.
type HistoryStore interface {
	Append(ctx context.Context, entry *models.ExecutionHistoryEntry) error
	Window(ctx context.Context, since time.Time) ([]models.ExecutionHistoryEntry, error)
}

// BatchStore persists schedule batches.
type BatchStore interface {
	CountForDate(ctx context.Context, date string) (int64, error)
	DeleteForDate(ctx context.Context, date string) error
	CreateAll(ctx context.Context, batches []models.ScheduleBatch) error
	ListForDate(ctx context.Context, date string, accountID uint) ([]models.ScheduleBatch, error)
	GetBatch(ctx context.Context, id string) (*models.ScheduleBatch, error)
	UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus) error
}

// ReportStore persists daily reports and their per-stage states.
type ReportStore interface {
	Create(ctx context.Context, report *models.DailyReport) error
	Get(ctx context.Context, id string) (*models.DailyReport, error)
	FindByBrandDate(ctx context.Context, brandID uint, date string) (*models.DailyReport, error)
	// AdvanceStage moves processing_stage from "from" to "to" only if the
	// row still carries "from". Returns false when a concurrent invocation
	// won the update. This compare-and-swap is the only concurrency guard
	// around stage progression; there is no distributed lock.
	AdvanceStage(ctx context.Context, id string, from, to models.ProcessingStage) (bool, error)
	UpdateAggregates(ctx context.Context, id string, agg models.DailyReport) error

	StageStates(ctx context.Context, reportID string) ([]models.ReportStageState, error)
	UpsertStageState(ctx context.Context, state *models.ReportStageState) error
}

// ResultStore persists per-prompt provider results.
type ResultStore interface {
	Upsert(ctx context.Context, result *models.PromptResult) error
	ListForReport(ctx context.Context, reportID string) ([]models.PromptResult, error)
	ListForReportProvider(ctx context.Context, reportID, provider string) ([]models.PromptResult, error)
}
