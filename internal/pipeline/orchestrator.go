package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/classify"
	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/notifications"
	"github.com/visiblelab/visibility-bot/internal/providers"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// Orchestrator drives one daily report per brand through its ordered
// stages. Invoking it again for the same (brand, date) resumes from the
// first incomplete stage; a completed report is a no-op.
//
// Stage progression is guarded by a compare-and-swap on
// processing_stage, not a distributed lock: two truly concurrent
// invocations can both run a stage, and the loser of the swap skips
// ahead. Results are upsert-keyed, so the duplicated work converges.
type Orchestrator struct {
	reports   store.ReportStore
	results   store.ResultStore
	inventory store.InventoryStore

	stageProviders map[models.ProcessingStage]providers.Provider
	classifier     classify.Classifier
	scorer         analysis.SentimentScorer
	archiver       archive.Archiver
	notifier       notifications.Notifier
	cfg            *config.Config

	sleep func(time.Duration)
	now   func() time.Time

	metricsMu sync.RWMutex
	metrics   Metrics
}

// Metrics holds pipeline run counters.
type Metrics struct {
	Runs          int       `json:"runs"`
	Completed     int       `json:"completed"`
	StageFailures int       `json:"stage_failures"`
	LastRun       time.Time `json:"last_run"`
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(
	reports store.ReportStore,
	results store.ResultStore,
	inv store.InventoryStore,
	chatGPT, perplexity providers.Provider,
	classifier classify.Classifier,
	scorer analysis.SentimentScorer,
	archiver archive.Archiver,
	notifier notifications.Notifier,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		reports:   reports,
		results:   results,
		inventory: inv,
		stageProviders: map[models.ProcessingStage]providers.Provider{
			models.StageChatGPT:    chatGPT,
			models.StagePerplexity: perplexity,
		},
		classifier: classifier,
		scorer:     scorer,
		archiver:   archiver,
		notifier:   notifier,
		cfg:        cfg,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Run finds-or-creates today's report for the brand and drives it
// forward. Only report lookup/creation errors propagate; stage failures
// are recorded on the report and retried on the next invocation.
func (o *Orchestrator) Run(ctx context.Context, brandID uint) (*models.DailyReport, error) {
	o.bumpRuns()

	brand, err := o.inventory.GetBrand(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand %d: %w", brandID, err)
	}

	date := o.now().In(o.cfg.Location()).Format(models.DateFormat)
	report, err := o.findOrCreate(ctx, brandID, date)
	if err != nil {
		return nil, err
	}

	if report.ProcessingStage == models.StageCompleted {
		logrus.Infof("Report %s for brand %d on %s already completed, nothing to do", report.ID, brandID, date)
		return report, nil
	}

	return o.resume(ctx, report, brand)
}

// RunAll walks every eligible brand serialized with an inter-brand
// delay; the shared account pool, not CPU, is the bottleneck.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	brands, err := o.inventory.EligibleBrands(ctx)
	if err != nil {
		return fmt.Errorf("failed to list brands for pipeline run: %w", err)
	}

	for i, brand := range brands {
		if i > 0 {
			o.sleep(o.cfg.InterBrandDelay)
		}
		if _, err := o.Run(ctx, brand.ID); err != nil {
			logrus.Errorf("Pipeline run failed for brand %d: %v", brand.ID, err)
		}
	}
	return nil
}

// RunStage executes a single named stage for an existing report. Used
// by the internal per-stage entry points; idempotent given a report id.
func (o *Orchestrator) RunStage(ctx context.Context, reportID string, stage models.ProcessingStage) (*models.ReportStageState, error) {
	if _, ok := o.stageProviders[stage]; !ok && stage != models.StageURLProcessing {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	report, err := o.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	brand, err := o.inventory.GetBrand(ctx, report.BrandID)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand %d: %w", report.BrandID, err)
	}

	state, err := o.stageState(ctx, report, stage)
	if err != nil {
		return nil, err
	}
	if state.Status == models.StageComplete {
		logrus.Infof("Stage %s already complete for report %s", stage, reportID)
		return state, nil
	}

	return o.executeStage(ctx, report, brand, state)
}

func (o *Orchestrator) findOrCreate(ctx context.Context, brandID uint, date string) (*models.DailyReport, error) {
	report, err := o.reports.FindByBrandDate(ctx, brandID, date)
	if err == nil {
		return report, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	report = &models.DailyReport{
		ID:              uuid.NewString(),
		BrandID:         brandID,
		ReportDate:      date,
		ProcessingStage: models.StageInitialized,
	}
	if err := o.reports.Create(ctx, report); err != nil {
		// A concurrent invocation may have created the row between the
		// find and the create; the unique index rejects ours, theirs wins.
		if existing, findErr := o.reports.FindByBrandDate(ctx, brandID, date); findErr == nil {
			logrus.Warnf("Concurrent report creation for brand %d on %s, reusing %s", brandID, date, existing.ID)
			return existing, nil
		}
		// Neither creatable nor findable: something else rejected the row.
		return nil, fmt.Errorf("%w: report for brand %d on %s: %v", store.ErrDataIntegrity, brandID, date, err)
	}

	for _, stage := range models.StageOrder {
		state := &models.ReportStageState{
			ReportID: report.ID,
			Stage:    stage,
			Status:   models.StageNotStarted,
		}
		if err := o.reports.UpsertStageState(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to initialize stage state %s: %w", stage, err)
		}
	}

	logrus.Infof("Created report %s for brand %d on %s", report.ID, brandID, date)
	return report, nil
}

func (o *Orchestrator) resume(ctx context.Context, report *models.DailyReport, brand *models.Brand) (*models.DailyReport, error) {
	for _, stage := range models.StageOrder {
		state, err := o.stageState(ctx, report, stage)
		if err != nil {
			return nil, err
		}

		// A stage already marked complete is never re-run, even when it
		// recorded item-level errors; only a total failure blocks here.
		if state.Status == models.StageComplete {
			continue
		}

		state, err = o.executeStage(ctx, report, brand, state)
		if err != nil {
			return nil, err
		}

		if state.Status != models.StageComplete {
			// Leave processing_stage where it is so the next invocation
			// retries this same stage.
			logrus.Warnf("Stage %s failed for report %s, halting pipeline", stage, report.ID)
			o.bumpStageFailures()
			return o.reports.Get(ctx, report.ID)
		}
	}

	o.advance(ctx, report, models.StageCompleted)
	o.bumpCompleted()

	final, err := o.reports.Get(ctx, report.ID)
	if err != nil {
		return nil, err
	}

	if err := o.notifier.SendReportSummary(*brand, final); err != nil {
		logrus.Errorf("Failed to send report summary for %s: %v", final.ID, err)
	}
	return final, nil
}

// executeStage marks the stage running, runs it, records the counters
// and terminal status, and recomputes the aggregates.
func (o *Orchestrator) executeStage(ctx context.Context, report *models.DailyReport, brand *models.Brand, state *models.ReportStageState) (*models.ReportStageState, error) {
	state.Status = models.StageRunning
	if err := o.reports.UpsertStageState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to mark stage %s running: %w", state.Stage, err)
	}
	o.advance(ctx, report, state.Stage)

	var counts StageCounts
	if provider, ok := o.stageProviders[state.Stage]; ok {
		prompts, err := o.inventory.ActivePrompts(ctx, brand.ID)
		if err != nil {
			return o.failStage(ctx, state, fmt.Errorf("failed to load prompts: %w", err))
		}
		processor := NewStageProcessor(provider, o.results, o.scorer, o.archiver,
			o.cfg.SubBatchSize, o.cfg.SubBatchDelay)
		processor.sleep = o.sleep
		counts = processor.Run(ctx, report, brand, prompts)
	} else {
		urlProcessor := NewURLProcessor(o.results, o.classifier)
		var err error
		counts, err = urlProcessor.Run(ctx, report)
		if err != nil {
			return o.failStage(ctx, state, err)
		}
	}

	state.Attempted = counts.Attempted
	state.Succeeded = counts.Succeeded
	state.NoResult = counts.NoResult
	state.Errors = counts.Errors
	state.Status = counts.TerminalStatus()
	if err := o.reports.UpsertStageState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to record stage %s outcome: %w", state.Stage, err)
	}

	if _, err := NewAggregator(o.results, o.reports).Recompute(ctx, report.ID); err != nil {
		logrus.Errorf("Aggregation failed for report %s: %v", report.ID, err)
	}
	return state, nil
}

// failStage marks a total stage failure (infrastructure or data
// integrity, not item-level errors) without advancing the pipeline.
func (o *Orchestrator) failStage(ctx context.Context, state *models.ReportStageState, cause error) (*models.ReportStageState, error) {
	logrus.Errorf("Stage %s failed: %v", state.Stage, cause)
	state.Status = models.StageStatFailed
	if err := o.reports.UpsertStageState(ctx, state); err != nil {
		logrus.Errorf("Failed to persist failed stage state %s: %v", state.Stage, err)
	}
	return state, nil
}

func (o *Orchestrator) stageState(ctx context.Context, report *models.DailyReport, stage models.ProcessingStage) (*models.ReportStageState, error) {
	states, err := o.reports.StageStates(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	for i := range states {
		if states[i].Stage == stage {
			return &states[i], nil
		}
	}
	return &models.ReportStageState{
		ReportID: report.ID,
		Stage:    stage,
		Status:   models.StageNotStarted,
	}, nil
}

// stageRank orders processing_stage values; advance only ever moves to
// a higher rank.
var stageRank = map[models.ProcessingStage]int{
	models.StageInitialized:   0,
	models.StageChatGPT:       1,
	models.StagePerplexity:    2,
	models.StageURLProcessing: 3,
	models.StageCompleted:     4,
}

func (o *Orchestrator) advance(ctx context.Context, report *models.DailyReport, to models.ProcessingStage) {
	if report.ProcessingStage == to {
		return
	}
	// Re-running an earlier stage (a targeted per-stage invocation, or a
	// retry behind a concurrent run) must not pull the pointer backward.
	if stageRank[to] < stageRank[report.ProcessingStage] {
		logrus.Debugf("Report %s already at %s, not moving back to %s", report.ID, report.ProcessingStage, to)
		return
	}
	swapped, err := o.reports.AdvanceStage(ctx, report.ID, report.ProcessingStage, to)
	if err != nil {
		logrus.Errorf("Failed to advance report %s to %s: %v", report.ID, to, err)
		return
	}
	if !swapped {
		// Another invocation moved the report first. Reload and carry on;
		// the stage states decide what still needs running.
		logrus.Warnf("Concurrent invocation advanced report %s past %s", report.ID, report.ProcessingStage)
		if fresh, err := o.reports.Get(ctx, report.ID); err == nil {
			report.ProcessingStage = fresh.ProcessingStage
		}
		return
	}
	report.ProcessingStage = to
}

func (o *Orchestrator) bumpRuns() {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()
	o.metrics.Runs++
	o.metrics.LastRun = time.Now()
}

func (o *Orchestrator) bumpCompleted() {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()
	o.metrics.Completed++
}

func (o *Orchestrator) bumpStageFailures() {
	o.metricsMu.Lock()
	defer o.metricsMu.Unlock()
	o.metrics.StageFailures++
}

// GetMetrics returns current pipeline metrics.
func (o *Orchestrator) GetMetrics() Metrics {
	o.metricsMu.RLock()
	defer o.metricsMu.RUnlock()
	return o.metrics
}
