package scheduling

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/inventory"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/pool"
	"github.com/visiblelab/visibility-bot/internal/store"
)

type captureNotifier struct {
	alerts []string
}

func (n *captureNotifier) SendScheduleAlert(date, message string) error {
	n.alerts = append(n.alerts, date+": "+message)
	return nil
}

func (n *captureNotifier) SendReportSummary(brand models.Brand, report *models.DailyReport) error {
	return nil
}

func testScheduler(t *testing.T) (*Service, *store.Store, *captureNotifier) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "scheduling_test.db"))
	require.NoError(t, err)

	cfg := &config.Config{
		TimeZone:                "UTC",
		ScheduleWindowStartHour: 9,
		ScheduleWindowEndHour:   18,
		MinSlotSpacing:          7 * time.Minute,
		BatchMinSize:            2,
		BatchMaxSize:            5,
		PromptReuseMinHours:     20,
		HistoryWindowDays:       7,
		AccountErrorThreshold:   5,
	}

	notifier := &captureNotifier{}
	service := NewService(db, inventory.NewService(db), pool.NewService(db, db, cfg), notifier, cfg)
	return service, db, notifier
}

func seedInventory(t *testing.T, db *store.Store, promptCount, accountCount int) {
	t.Helper()

	user := models.User{Email: "owner@test", ReportingEnabled: true}
	require.NoError(t, db.DB().Create(&user).Error)

	brand := models.Brand{UserID: user.ID, Name: "Acme", OnboardingCompleted: true}
	require.NoError(t, db.DB().Create(&brand).Error)

	for i := 0; i < promptCount; i++ {
		require.NoError(t, db.DB().Create(&models.Prompt{
			BrandID: brand.ID,
			Text:    "what is the best widget supplier",
			Status:  models.PromptActive,
		}).Error)
	}

	for i := 0; i < accountCount; i++ {
		require.NoError(t, db.DB().Create(&models.AutomationAccount{
			Email:  "acct" + string(rune('a'+i)) + "@test",
			Health: models.HealthHealthy,
			Status: models.AccountActive,
		}).Error)
	}
}

func TestGenerate_CoversAllPrompts(t *testing.T) {
	service, db, _ := testScheduler(t)
	seedInventory(t, db, 12, 3)

	result, err := service.Generate(context.Background(), "2026-08-24", false)
	require.NoError(t, err)
	assert.True(t, result.Generated)
	assert.Equal(t, 12, result.PromptCount)

	batches, err := db.ListForDate(context.Background(), "2026-08-24", 0)
	require.NoError(t, err)
	require.Len(t, batches, result.BatchCount)

	total := 0
	for _, b := range batches {
		total += len(b.PromptIDs)
		assert.LessOrEqual(t, len(b.PromptIDs), 5)
	}
	assert.Equal(t, 12, total)
}

func TestGenerate_SecondCallKeepsExistingSchedule(t *testing.T) {
	service, db, _ := testScheduler(t)
	seedInventory(t, db, 10, 2)

	first, err := service.Generate(context.Background(), "2026-08-24", false)
	require.NoError(t, err)
	require.True(t, first.Generated)

	second, err := service.Generate(context.Background(), "2026-08-24", false)
	require.NoError(t, err)
	assert.False(t, second.Generated)
	assert.Equal(t, first.BatchCount, second.BatchCount)

	count, err := db.CountForDate(context.Background(), "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, int64(first.BatchCount), count)
}

func TestGenerate_RegenerateReplacesSchedule(t *testing.T) {
	service, db, _ := testScheduler(t)
	seedInventory(t, db, 10, 2)

	_, err := service.Generate(context.Background(), "2026-08-24", false)
	require.NoError(t, err)

	result, err := service.Generate(context.Background(), "2026-08-24", true)
	require.NoError(t, err)
	assert.True(t, result.Generated)
	assert.Equal(t, 10, result.PromptCount)

	count, err := db.CountForDate(context.Background(), "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, int64(result.BatchCount), count)
}

func TestGenerate_ExhaustedPoolAlerts(t *testing.T) {
	service, db, notifier := testScheduler(t)
	seedInventory(t, db, 5, 0)

	_, err := service.Generate(context.Background(), "2026-08-24", false)
	assert.ErrorIs(t, err, pool.ErrSchedulingExhausted)
	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0], "2026-08-24")

	count, err := db.CountForDate(context.Background(), "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGenerate_EmptyInventory(t *testing.T) {
	service, _, notifier := testScheduler(t)

	result, err := service.Generate(context.Background(), "2026-08-24", false)
	require.NoError(t, err)
	assert.True(t, result.Generated)
	assert.Equal(t, 0, result.BatchCount)
	assert.Empty(t, notifier.alerts)
}

func TestGenerate_RejectsMalformedDate(t *testing.T) {
	service, _, _ := testScheduler(t)

	_, err := service.Generate(context.Background(), "24-08-2026", false)
	assert.Error(t, err)
}
