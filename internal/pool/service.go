package pool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// ErrSchedulingExhausted means zero eligible accounts exist at all.
// This is the one scheduling error that must be surfaced loudly: it
// implies zero coverage for the day.
var ErrSchedulingExhausted = errors.New("no active automation accounts available")

// Scoring weights. Prompt-repetition avoidance dominates,
// brand-repetition avoidance is secondary, general load balancing is
// the tiebreaker.
const (
	promptGapWeight   = 1000
	brandGapWeight    = 500
	accountIdleWeight = 1

	// neverUsedHours stands in for "no recorded use". It must be finite
	// so the weighted sum still discriminates between two accounts that
	// both never ran a prompt but differ on brand gap or idle time.
	neverUsedHours = 24 * 365
)

// Service selects the best automation account for each prompt and
// records usage and failures back onto the pool.
type Service struct {
	accounts store.AccountStore
	history  store.HistoryStore
	cfg      *config.Config

	now func() time.Time
}

// NewService creates a new account pool service
func NewService(accounts store.AccountStore, history store.HistoryStore, cfg *config.Config) *Service {
	return &Service{
		accounts: accounts,
		history:  history,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Selection is the outcome of picking an account for one prompt.
type Selection struct {
	Account  models.AutomationAccount
	Score    float64
	Degraded bool // fallback pick that ignored the prompt-reuse filter
}

type pairKey struct {
	accountID uint
	otherID   uint
}

// Scorer is an in-memory snapshot of the pool and the rolling history
// window. Build one per scheduling run and call Pick once per prompt;
// this keeps scoring at O(history) reads for the whole run instead of
// per prompt.
type Scorer struct {
	accounts      []models.AutomationAccount
	lastPromptUse map[pairKey]time.Time
	lastBrandUse  map[pairKey]time.Time
	lastUse       map[uint]time.Time
	now           time.Time
	reuseMinHours float64
}

// NewScorer loads active accounts and the history window.
func (s *Service) NewScorer(ctx context.Context) (*Scorer, error) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load account pool: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrSchedulingExhausted
	}

	now := s.now()
	since := now.AddDate(0, 0, -s.cfg.HistoryWindowDays)
	entries, err := s.history.Window(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution history: %w", err)
	}

	scorer := &Scorer{
		accounts:      accounts,
		lastPromptUse: make(map[pairKey]time.Time),
		lastBrandUse:  make(map[pairKey]time.Time),
		lastUse:       make(map[uint]time.Time),
		now:           now,
		reuseMinHours: s.cfg.PromptReuseMinHours,
	}

	for _, e := range entries {
		promptKey := pairKey{e.AccountID, e.PromptID}
		if e.ExecutedAt.After(scorer.lastPromptUse[promptKey]) {
			scorer.lastPromptUse[promptKey] = e.ExecutedAt
		}
		brandKey := pairKey{e.AccountID, e.BrandID}
		if e.ExecutedAt.After(scorer.lastBrandUse[brandKey]) {
			scorer.lastBrandUse[brandKey] = e.ExecutedAt
		}
		if e.ExecutedAt.After(scorer.lastUse[e.AccountID]) {
			scorer.lastUse[e.AccountID] = e.ExecutedAt
		}
	}

	// Accounts also carry a last-used timestamp outside the history
	// window; fold it in so idle hours stay accurate after pruning.
	for _, a := range accounts {
		if a.LastUsedAt != nil && a.LastUsedAt.After(scorer.lastUse[a.ID]) {
			scorer.lastUse[a.ID] = *a.LastUsedAt
		}
	}

	logrus.Debugf("Scorer built: %d accounts, %d history entries", len(accounts), len(entries))
	return scorer, nil
}

// Pick selects the highest-scoring account for a prompt. Accounts that
// ran this exact prompt within the minimum reuse window are filtered
// out; when every account is filtered, the least-recently-used account
// is returned as a degraded assignment instead of failing.
func (sc *Scorer) Pick(promptID, brandID uint) Selection {
	best := Selection{Score: math.Inf(-1)}
	found := false

	for _, account := range sc.accounts {
		promptGap := sc.gapHours(sc.lastPromptUse, account.ID, promptID)
		if promptGap < sc.reuseMinHours {
			continue
		}

		brandGap := sc.gapHours(sc.lastBrandUse, account.ID, brandID)
		idle := sc.idleHours(account.ID)

		score := promptGap*promptGapWeight + brandGap*brandGapWeight + idle*accountIdleWeight
		if score > best.Score {
			best = Selection{Account: account, Score: score}
			found = true
		}
	}

	if found {
		return best
	}

	// Every candidate ran this prompt too recently. Fall back to the
	// least-recently-used account rather than dropping the prompt.
	fallback := sc.accounts[0]
	fallbackIdle := sc.idleHours(fallback.ID)
	for _, account := range sc.accounts[1:] {
		if idle := sc.idleHours(account.ID); idle > fallbackIdle {
			fallback = account
			fallbackIdle = idle
		}
	}

	logrus.Warnf("Degraded account assignment for prompt %d: all %d accounts within reuse window, using least-recently-used account %d",
		promptID, len(sc.accounts), fallback.ID)
	return Selection{Account: fallback, Score: fallbackIdle, Degraded: true}
}

func (sc *Scorer) gapHours(index map[pairKey]time.Time, accountID, otherID uint) float64 {
	last, ok := index[pairKey{accountID, otherID}]
	if !ok {
		return neverUsedHours
	}
	return sc.now.Sub(last).Hours()
}

func (sc *Scorer) idleHours(accountID uint) float64 {
	last, ok := sc.lastUse[accountID]
	if !ok {
		return neverUsedHours
	}
	return sc.now.Sub(last).Hours()
}

// RecordUsage appends a history entry and stamps the account.
func (s *Service) RecordUsage(ctx context.Context, accountID, promptID, brandID uint, at time.Time) error {
	entry := &models.ExecutionHistoryEntry{
		AccountID:  accountID,
		PromptID:   promptID,
		BrandID:    brandID,
		ExecutedAt: at,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return s.accounts.MarkUsed(ctx, accountID, at)
}

// RecordFailure bumps the consecutive-error counter and disables the
// account once it crosses the configured threshold. Scheduling then
// continues with the remaining pool.
func (s *Service) RecordFailure(ctx context.Context, accountID uint) error {
	consecutive, err := s.accounts.RecordError(ctx, accountID)
	if err != nil {
		return err
	}

	if consecutive >= s.cfg.AccountErrorThreshold {
		logrus.Warnf("Disabling account %d after %d consecutive errors", accountID, consecutive)
		return s.accounts.Disable(ctx, accountID)
	}
	return nil
}

// RecordSuccess resets the consecutive-error counter.
func (s *Service) RecordSuccess(ctx context.Context, accountID uint) error {
	return s.accounts.ResetErrors(ctx, accountID)
}
