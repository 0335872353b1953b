package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/providers"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// StageCounts are the item-level counters recorded for every stage run.
type StageCounts struct {
	Attempted int
	Succeeded int
	NoResult  int
	Errors    int
}

// TerminalStatus maps counters to the stage's terminal status: a stage
// that finished with some item-level errors is failed as a whole, but
// the successful items stay persisted either way.
func (c StageCounts) TerminalStatus() models.StageStatus {
	if c.Errors > 0 {
		return models.StageStatFailed
	}
	return models.StageComplete
}

// StageProcessor runs one provider's queries for all active prompts of
// a brand, in small concurrent sub-batches with a delay in between to
// respect the provider's rate limits.
type StageProcessor struct {
	provider providers.Provider
	results  store.ResultStore
	scorer   analysis.SentimentScorer
	archiver archive.Archiver

	subBatchSize  int
	subBatchDelay time.Duration
	sleep         func(time.Duration)
}

// NewStageProcessor creates a processor for one provider.
func NewStageProcessor(provider providers.Provider, results store.ResultStore, scorer analysis.SentimentScorer, archiver archive.Archiver, subBatchSize int, subBatchDelay time.Duration) *StageProcessor {
	if subBatchSize < 1 {
		subBatchSize = 5
	}
	return &StageProcessor{
		provider:      provider,
		results:       results,
		scorer:        scorer,
		archiver:      archiver,
		subBatchSize:  subBatchSize,
		subBatchDelay: subBatchDelay,
		sleep:         time.Sleep,
	}
}

// Run executes every prompt against the provider and upserts one
// PromptResult per prompt. One item's failure never aborts the stage.
func (p *StageProcessor) Run(ctx context.Context, report *models.DailyReport, brand *models.Brand, prompts []models.Prompt) StageCounts {
	var counts StageCounts
	var mu sync.Mutex

	logrus.Infof("Running %s stage for report %s (%d prompts, sub-batches of %d)",
		p.provider.Name(), report.ID, len(prompts), p.subBatchSize)

	for start := 0; start < len(prompts); start += p.subBatchSize {
		end := start + p.subBatchSize
		if end > len(prompts) {
			end = len(prompts)
		}

		var wg sync.WaitGroup
		for _, prompt := range prompts[start:end] {
			wg.Add(1)
			go func(prompt models.Prompt) {
				defer wg.Done()

				outcome := p.processPrompt(ctx, report, brand, prompt)

				mu.Lock()
				counts.Attempted++
				switch outcome {
				case models.ResultOK:
					counts.Succeeded++
				case models.ResultNoResult:
					counts.NoResult++
				case models.ResultError:
					counts.Errors++
				}
				mu.Unlock()
			}(prompt)
		}
		wg.Wait()

		if end < len(prompts) {
			p.sleep(p.subBatchDelay)
		}
	}

	logrus.Infof("%s stage for report %s done: attempted=%d ok=%d no_result=%d errors=%d",
		p.provider.Name(), report.ID, counts.Attempted, counts.Succeeded, counts.NoResult, counts.Errors)
	return counts
}

func (p *StageProcessor) processPrompt(ctx context.Context, report *models.DailyReport, brand *models.Brand, prompt models.Prompt) models.ResultStatus {
	result := &models.PromptResult{
		ReportID:      report.ID,
		PromptID:      prompt.ID,
		Provider:      p.provider.Name(),
		BrandPosition: -1,
	}

	resp, err := p.provider.Query(ctx, prompt.Text)
	if err != nil {
		logrus.Errorf("Provider %s failed for prompt %d: %v", p.provider.Name(), prompt.ID, err)
		result.Status = models.ResultError
		result.ErrorMessage = err.Error()
		p.upsert(ctx, result)
		return models.ResultError
	}

	result.LatencyMs = resp.LatencyMs

	if resp.Content == "" {
		result.Status = models.ResultNoResult
		result.ErrorMessage = "provider returned no results"
		p.upsert(ctx, result)
		return models.ResultNoResult
	}

	p.archiveResponse(report, prompt, resp)

	result.Status = models.ResultOK
	result.Content = resp.Content
	for _, u := range resp.Citations {
		result.Citations = append(result.Citations, models.Citation{URL: u})
	}

	if brandMention, found := analysis.FindMention(resp.Content, brand.Name); found {
		result.BrandMentioned = true
		result.BrandPosition = brandMention.Position
		result.SentimentScore = p.scorer.Score(resp.Content, brandMention.Position)
	}

	for _, competitor := range brand.Competitors {
		mention, found := analysis.FindMention(resp.Content, competitor)
		if !found {
			continue
		}
		result.CompetitorMentions = append(result.CompetitorMentions, models.CompetitorMention{
			Name:          mention.Name,
			Count:         mention.Count,
			Position:      mention.Position,
			PortrayalType: analysis.Portrayal(mention),
		})
	}

	p.upsert(ctx, result)
	return models.ResultOK
}

func (p *StageProcessor) upsert(ctx context.Context, result *models.PromptResult) {
	if err := p.results.Upsert(ctx, result); err != nil {
		logrus.Errorf("Failed to upsert result for prompt %d provider %s: %v",
			result.PromptID, result.Provider, err)
	}
}

func (p *StageProcessor) archiveResponse(report *models.DailyReport, prompt models.Prompt, resp *providers.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}

	filename := fmt.Sprintf("responses/%s/%s/prompt-%d.json", report.ID, p.provider.Name(), prompt.ID)
	if err := p.archiver.Store(filename, payload); err != nil {
		logrus.Warnf("Failed to archive response %s: %v", filename, err)
	}
}
