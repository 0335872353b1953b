package scheduling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/inventory"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/notifications"
	"github.com/visiblelab/visibility-bot/internal/pool"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// Service builds the daily execution schedule: scores an account per
// prompt, interleaves prompts across brands, chunks them into batches
// and assigns randomized execution slots.
type Service struct {
	batches   store.BatchStore
	inventory *inventory.Service
	pool      *pool.Service
	notifier  notifications.Notifier
	cfg       *config.Config

	// mu serializes Generate within this process so a manual trigger
	// racing the cron trigger cannot build two schedules for one date.
	mu  sync.Mutex
	rng *rand.Rand

	metricsMu sync.RWMutex
	metrics   Metrics
}

// Metrics holds the outcome of the most recent generation run.
type Metrics struct {
	LastRun             time.Time `json:"last_run"`
	LastDate            string    `json:"last_date"`
	BatchCount          int       `json:"batch_count"`
	PromptCount         int       `json:"prompt_count"`
	DegradedAssignments int       `json:"degraded_assignments"`
}

// Result summarizes one Generate call.
type Result struct {
	Date                string `json:"date"`
	BatchCount          int    `json:"batch_count"`
	PromptCount         int    `json:"prompt_count"`
	DegradedAssignments int    `json:"degraded_assignments"`
	Generated           bool   `json:"generated"` // false when existing batches were kept
}

// NewService creates a new scheduling service
func NewService(batches store.BatchStore, inv *inventory.Service, accountPool *pool.Service, notifier notifications.Notifier, cfg *config.Config) *Service {
	return &Service{
		batches:   batches,
		inventory: inv,
		pool:      accountPool,
		notifier:  notifier,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate creates the schedule batches for one date. Re-invoking for a
// date that already has batches is a no-op unless regenerate is set, in
// which case the existing batches are replaced.
func (s *Service) Generate(ctx context.Context, date string, regenerate bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := time.ParseInLocation(models.DateFormat, date, s.cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("invalid schedule date %q: %w", date, err)
	}

	existing, err := s.batches.CountForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing batches: %w", err)
	}

	if existing > 0 {
		if !regenerate {
			logrus.Infof("Schedule for %s already has %d batches, skipping generation", date, existing)
			return &Result{Date: date, BatchCount: int(existing), Generated: false}, nil
		}
		logrus.Warnf("Regenerating schedule for %s, dropping %d existing batches", date, existing)
		if err := s.batches.DeleteForDate(ctx, date); err != nil {
			return nil, fmt.Errorf("failed to drop existing batches: %w", err)
		}
	}

	inv := s.inventory.Discover(ctx)
	if len(inv) == 0 {
		logrus.Info("Nothing to schedule: inventory is empty")
		return &Result{Date: date, Generated: true}, nil
	}

	scorer, err := s.pool.NewScorer(ctx)
	if err != nil {
		if errors.Is(err, pool.ErrSchedulingExhausted) {
			logrus.Errorf("Schedule generation for %s aborted: %v", date, err)
			if alertErr := s.notifier.SendScheduleAlert(date, "zero eligible automation accounts, no batches produced"); alertErr != nil {
				logrus.Errorf("Failed to send exhaustion alert: %v", alertErr)
			}
		}
		return nil, err
	}

	var assignments []Assignment
	degraded := 0
	for _, entry := range inv {
		for _, prompt := range entry.Prompts {
			selection := scorer.Pick(prompt.ID, entry.Brand.ID)
			if selection.Degraded {
				degraded++
			}
			assignments = append(assignments, Assignment{
				Prompt:   prompt,
				BrandID:  entry.Brand.ID,
				Account:  selection.Account,
				Degraded: selection.Degraded,
			})
		}
	}

	ordered := interleave(assignments)
	chunks := chunk(ordered, s.cfg.BatchMinSize, s.cfg.BatchMaxSize, s.rng)
	slots := timeSlots(day, len(chunks),
		s.cfg.ScheduleWindowStartHour, s.cfg.ScheduleWindowEndHour,
		s.cfg.MinSlotSpacing, s.rng)

	batches := buildBatches(date, chunks, slots)
	if err := s.batches.CreateAll(ctx, batches); err != nil {
		return nil, fmt.Errorf("failed to persist schedule batches: %w", err)
	}

	result := &Result{
		Date:                date,
		BatchCount:          len(batches),
		PromptCount:         len(assignments),
		DegradedAssignments: degraded,
		Generated:           true,
	}
	s.updateMetrics(result)

	logrus.Infof("Generated %d batches covering %d prompts for %s (%d degraded assignments)",
		result.BatchCount, result.PromptCount, date, degraded)
	return result, nil
}

// List returns the batches for a date, optionally filtered by account.
func (s *Service) List(ctx context.Context, date string, accountID uint) ([]models.ScheduleBatch, error) {
	return s.batches.ListForDate(ctx, date, accountID)
}

func (s *Service) updateMetrics(result *Result) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()

	s.metrics = Metrics{
		LastRun:             time.Now(),
		LastDate:            result.Date,
		BatchCount:          result.BatchCount,
		PromptCount:         result.PromptCount,
		DegradedAssignments: result.DegradedAssignments,
	}
}

// GetMetrics returns the last generation metrics.
func (s *Service) GetMetrics() Metrics {
	s.metricsMu.RLock()
	defer s.metricsMu.RUnlock()
	return s.metrics
}
