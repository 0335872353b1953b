package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/visiblelab/visibility-bot/internal/models"
)

// Store is the gorm-backed implementation of all repository interfaces.
type Store struct {
	db *gorm.DB
}

var (
	_ InventoryStore = (*Store)(nil)
	_ AccountStore   = (*Store)(nil)
	_ HistoryStore   = (*Store)(nil)
	_ BatchStore     = (*Store)(nil)
	_ ReportStore    = (*Store)(nil)
	_ ResultStore    = (*Store)(nil)
)

// Open opens (or creates) the SQLite database and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Brand{},
		&models.Prompt{},
		&models.AutomationAccount{},
		&models.ExecutionHistoryEntry{},
		&models.ScheduleBatch{},
		&models.DailyReport{},
		&models.ReportStageState{},
		&models.PromptResult{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logrus.Infof("Database ready at %s", path)
	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm handle. Used by tests.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the raw handle for seeding tools and tests. Application
// code goes through the repository interfaces.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// --- InventoryStore ---

// EligibleBrands returns brands that completed onboarding and whose
// owning user has reporting enabled.
func (s *Store) EligibleBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = brands.user_id").
		Where("brands.onboarding_completed = ?", true).
		Where("users.reporting_enabled = ?", true).
		Order("brands.id").
		Find(&brands).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible brands: %w", err)
	}
	return brands, nil
}

func (s *Store) ActivePrompts(ctx context.Context, brandID uint) ([]models.Prompt, error) {
	var prompts []models.Prompt
	err := s.db.WithContext(ctx).
		Where("brand_id = ? AND status = ?", brandID, models.PromptActive).
		Order("id").
		Find(&prompts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active prompts for brand %d: %w", brandID, err)
	}
	return prompts, nil
}

func (s *Store) PromptsByIDs(ctx context.Context, ids []uint) ([]models.Prompt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var prompts []models.Prompt
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("failed to load prompts by ids: %w", err)
	}
	return prompts, nil
}

func (s *Store) GetBrand(ctx context.Context, id uint) (*models.Brand, error) {
	var brand models.Brand
	err := s.db.WithContext(ctx).First(&brand, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load brand %d: %w", id, err)
	}
	return &brand, nil
}

// --- AccountStore ---

func (s *Store) ListActive(ctx context.Context) ([]models.AutomationAccount, error) {
	var accounts []models.AutomationAccount
	err := s.db.WithContext(ctx).
		Where("status = ?", models.AccountActive).
		Where("health <> ?", models.HealthExpired).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) MarkUsed(ctx context.Context, id uint, usedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.AutomationAccount{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}

func (s *Store) RecordError(ctx context.Context, id uint) (int, error) {
	err := s.db.WithContext(ctx).
		Model(&models.AutomationAccount{}).
		Where("id = ?", id).
		Update("consecutive_errors", gorm.Expr("consecutive_errors + 1")).Error
	if err != nil {
		return 0, err
	}

	var account models.AutomationAccount
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return 0, err
	}
	return account.ConsecutiveErrors, nil
}

func (s *Store) ResetErrors(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&models.AutomationAccount{}).
		Where("id = ?", id).
		Update("consecutive_errors", 0).Error
}

func (s *Store) Disable(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&models.AutomationAccount{}).
		Where("id = ?", id).
		Update("status", models.AccountDisabled).Error
}

// --- HistoryStore ---

func (s *Store) Append(ctx context.Context, entry *models.ExecutionHistoryEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) Window(ctx context.Context, since time.Time) ([]models.ExecutionHistoryEntry, error) {
	var entries []models.ExecutionHistoryEntry
	err := s.db.WithContext(ctx).
		Where("executed_at >= ?", since).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}
	return entries, nil
}

// --- BatchStore ---

func (s *Store) CountForDate(ctx context.Context, date string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ScheduleBatch{}).
		Where("schedule_date = ?", date).
		Count(&count).Error
	return count, err
}

func (s *Store) DeleteForDate(ctx context.Context, date string) error {
	return s.db.WithContext(ctx).
		Where("schedule_date = ?", date).
		Delete(&models.ScheduleBatch{}).Error
}

func (s *Store) CreateAll(ctx context.Context, batches []models.ScheduleBatch) error {
	if len(batches) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&batches).Error
}

func (s *Store) ListForDate(ctx context.Context, date string, accountID uint) ([]models.ScheduleBatch, error) {
	query := s.db.WithContext(ctx).Where("schedule_date = ?", date)
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}

	var batches []models.ScheduleBatch
	if err := query.Order("batch_number").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches for %s: %w", date, err)
	}
	return batches, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*models.ScheduleBatch, error) {
	var batch models.ScheduleBatch
	err := s.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}
	return &batch, nil
}

func (s *Store) UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus) error {
	return s.db.WithContext(ctx).
		Model(&models.ScheduleBatch{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// --- ReportStore ---

func (s *Store) Create(ctx context.Context, report *models.DailyReport) error {
	return s.db.WithContext(ctx).Create(report).Error
}

func (s *Store) Get(ctx context.Context, id string) (*models.DailyReport, error) {
	var report models.DailyReport
	err := s.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return &report, nil
}

func (s *Store) FindByBrandDate(ctx context.Context, brandID uint, date string) (*models.DailyReport, error) {
	var report models.DailyReport
	err := s.db.WithContext(ctx).
		Where("brand_id = ? AND report_date = ?", brandID, date).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report for brand %d on %s: %w", brandID, date, err)
	}
	return &report, nil
}

func (s *Store) AdvanceStage(ctx context.Context, id string, from, to models.ProcessingStage) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.DailyReport{}).
		Where("id = ? AND processing_stage = ?", id, from).
		Update("processing_stage", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *Store) UpdateAggregates(ctx context.Context, id string, agg models.DailyReport) error {
	return s.db.WithContext(ctx).
		Model(&models.DailyReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_mentions":   agg.TotalMentions,
			"average_position": agg.AveragePosition,
			"positive_count":   agg.PositiveCount,
			"neutral_count":    agg.NeutralCount,
			"negative_count":   agg.NegativeCount,
		}).Error
}

func (s *Store) StageStates(ctx context.Context, reportID string) ([]models.ReportStageState, error) {
	var states []models.ReportStageState
	err := s.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Find(&states).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stage states for %s: %w", reportID, err)
	}
	return states, nil
}

func (s *Store) UpsertStageState(ctx context.Context, state *models.ReportStageState) error {
	// Rows loaded from the database carry their primary key; the insert
	// path with a conflict target would trip on it instead.
	if state.ID != 0 {
		return s.db.WithContext(ctx).Save(state).Error
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_id"}, {Name: "stage"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "attempted", "succeeded", "no_result", "errors", "updated_at",
			}),
		}).
		Create(state).Error
}

// --- ResultStore ---

// Upsert replaces any existing row with the same (report, prompt,
// provider) key instead of inserting a duplicate.
func (s *Store) Upsert(ctx context.Context, result *models.PromptResult) error {
	if result.ID != 0 {
		return s.db.WithContext(ctx).Save(result).Error
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_id"}, {Name: "prompt_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "content", "error_message", "citations",
				"brand_mentioned", "brand_position", "competitor_mentions",
				"sentiment_score", "latency_ms", "updated_at",
			}),
		}).
		Create(result).Error
}

func (s *Store) ListForReport(ctx context.Context, reportID string) ([]models.PromptResult, error) {
	var results []models.PromptResult
	err := s.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results for report %s: %w", reportID, err)
	}
	return results, nil
}

func (s *Store) ListForReportProvider(ctx context.Context, reportID, provider string) ([]models.PromptResult, error) {
	var results []models.PromptResult
	err := s.db.WithContext(ctx).
		Where("report_id = ? AND provider = ?", reportID, provider).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s results for report %s: %w", provider, reportID, err)
	}
	return results, nil
}
