package pool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/store"
)

func testService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "pool_test.db"))
	require.NoError(t, err)

	cfg := &config.Config{
		PromptReuseMinHours:   20,
		HistoryWindowDays:     7,
		AccountErrorThreshold: 3,
	}

	return NewService(db, db, cfg), db
}

func seedAccounts(t *testing.T, db *store.Store, emails ...string) []models.AutomationAccount {
	t.Helper()

	accounts := make([]models.AutomationAccount, 0, len(emails))
	for _, email := range emails {
		accounts = append(accounts, models.AutomationAccount{
			Email:  email,
			Health: models.HealthHealthy,
			Status: models.AccountActive,
		})
	}
	require.NoError(t, db.DB().Create(&accounts).Error)
	return accounts
}

func TestScorer_FiltersRecentPromptReuse(t *testing.T) {
	service, db := testService(t)
	accounts := seedAccounts(t, db, "a@test", "b@test")

	now := time.Now()
	service.now = func() time.Time { return now }

	// Account A ran prompt 1 five hours ago, well inside the 20h reuse
	// window. Account B has never touched it.
	require.NoError(t, db.Append(context.Background(), &models.ExecutionHistoryEntry{
		AccountID:  accounts[0].ID,
		PromptID:   1,
		BrandID:    1,
		ExecutedAt: now.Add(-5 * time.Hour),
	}))

	scorer, err := service.NewScorer(context.Background())
	require.NoError(t, err)

	selection := scorer.Pick(1, 1)
	assert.Equal(t, accounts[1].ID, selection.Account.ID)
	assert.False(t, selection.Degraded)
}

func TestScorer_BrandGapBreaksPromptTies(t *testing.T) {
	service, db := testService(t)
	accounts := seedAccounts(t, db, "a@test", "b@test")

	now := time.Now()
	service.now = func() time.Time { return now }

	// Neither account has run prompt 1. Account A ran another prompt of
	// the same brand two hours ago; B has never seen the brand.
	require.NoError(t, db.Append(context.Background(), &models.ExecutionHistoryEntry{
		AccountID:  accounts[0].ID,
		PromptID:   99,
		BrandID:    1,
		ExecutedAt: now.Add(-2 * time.Hour),
	}))

	scorer, err := service.NewScorer(context.Background())
	require.NoError(t, err)

	selection := scorer.Pick(1, 1)
	assert.Equal(t, accounts[1].ID, selection.Account.ID)
	assert.False(t, selection.Degraded)
}

func TestScorer_FallsBackToLeastRecentlyUsed(t *testing.T) {
	service, db := testService(t)
	accounts := seedAccounts(t, db, "a@test", "b@test")

	now := time.Now()
	service.now = func() time.Time { return now }

	// Both accounts ran prompt 1 inside the reuse window; A longer ago.
	require.NoError(t, db.Append(context.Background(), &models.ExecutionHistoryEntry{
		AccountID: accounts[0].ID, PromptID: 1, BrandID: 1,
		ExecutedAt: now.Add(-10 * time.Hour),
	}))
	require.NoError(t, db.Append(context.Background(), &models.ExecutionHistoryEntry{
		AccountID: accounts[1].ID, PromptID: 1, BrandID: 1,
		ExecutedAt: now.Add(-2 * time.Hour),
	}))

	scorer, err := service.NewScorer(context.Background())
	require.NoError(t, err)

	selection := scorer.Pick(1, 1)
	assert.True(t, selection.Degraded)
	assert.Equal(t, accounts[0].ID, selection.Account.ID)
}

func TestNewScorer_ExhaustedPool(t *testing.T) {
	service, _ := testService(t)

	_, err := service.NewScorer(context.Background())
	assert.ErrorIs(t, err, ErrSchedulingExhausted)
}

func TestNewScorer_SkipsExpiredAndDisabledAccounts(t *testing.T) {
	service, db := testService(t)

	require.NoError(t, db.DB().Create(&models.AutomationAccount{
		Email: "expired@test", Health: models.HealthExpired, Status: models.AccountActive,
	}).Error)
	require.NoError(t, db.DB().Create(&models.AutomationAccount{
		Email: "disabled@test", Health: models.HealthHealthy, Status: models.AccountDisabled,
	}).Error)

	_, err := service.NewScorer(context.Background())
	assert.ErrorIs(t, err, ErrSchedulingExhausted)
}

func TestRecordFailure_DisablesAtThreshold(t *testing.T) {
	service, db := testService(t)
	accounts := seedAccounts(t, db, "a@test")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, service.RecordFailure(ctx, accounts[0].ID))
	}

	var account models.AutomationAccount
	require.NoError(t, db.DB().First(&account, accounts[0].ID).Error)
	assert.Equal(t, models.AccountDisabled, account.Status)
	assert.Equal(t, 3, account.ConsecutiveErrors)
}

func TestRecordUsage_AppendsHistoryAndStampsAccount(t *testing.T) {
	service, db := testService(t)
	accounts := seedAccounts(t, db, "a@test")

	at := time.Now().Truncate(time.Second)
	require.NoError(t, service.RecordUsage(context.Background(), accounts[0].ID, 7, 3, at))

	entries, err := db.Window(context.Background(), at.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(7), entries[0].PromptID)
	assert.Equal(t, uint(3), entries[0].BrandID)

	var account models.AutomationAccount
	require.NoError(t, db.DB().First(&account, accounts[0].ID).Error)
	require.NotNil(t, account.LastUsedAt)
}
