package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// Aggregator recomputes a report's summary metrics from all stored
// results. It is a pure recomputation: the same result set always
// yields the same numbers, so re-running after a partial stage is safe.
type Aggregator struct {
	results store.ResultStore
	reports store.ReportStore
}

// NewAggregator creates a new aggregator.
func NewAggregator(results store.ResultStore, reports store.ReportStore) *Aggregator {
	return &Aggregator{results: results, reports: reports}
}

// Recompute reads every result for the report and persists the fresh
// aggregate values.
func (a *Aggregator) Recompute(ctx context.Context, reportID string) (*models.DailyReport, error) {
	results, err := a.results.ListForReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results for aggregation: %w", err)
	}

	agg := Aggregate(results)
	if err := a.reports.UpdateAggregates(ctx, reportID, agg); err != nil {
		return nil, fmt.Errorf("failed to persist aggregates: %w", err)
	}

	logrus.Debugf("Aggregated report %s: mentions=%d avg_position=%.2f",
		reportID, agg.TotalMentions, agg.AveragePosition)
	return &agg, nil
}

// Aggregate computes the summary metrics for a result set.
//
// Average position is rank-based: for each result where the brand and
// at least one competitor were both found, the brand's first-mention
// offset is merged with the competitors' offsets and its 1-based index
// in the ascending order is the rank. Results where the brand stands
// alone carry no ranking signal and are excluded from the mean rather
// than counted as rank 1. Sentiment buckets only cover results where
// the brand was actually mentioned.
func Aggregate(results []models.PromptResult) models.DailyReport {
	var agg models.DailyReport

	rankSum := 0
	rankCount := 0

	for _, result := range results {
		if !result.BrandMentioned {
			continue
		}
		agg.TotalMentions++

		switch analysis.Bucket(result.SentimentScore) {
		case "positive":
			agg.PositiveCount++
		case "negative":
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}

		competitorPositions := make([]int, 0, len(result.CompetitorMentions))
		for _, mention := range result.CompetitorMentions {
			competitorPositions = append(competitorPositions, mention.Position)
		}

		if rank, ok := analysis.BrandRank(result.BrandPosition, competitorPositions); ok {
			rankSum += rank
			rankCount++
		}
	}

	if rankCount > 0 {
		agg.AveragePosition = float64(rankSum) / float64(rankCount)
	}
	return agg
}
