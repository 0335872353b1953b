package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelab/visibility-bot/internal/models"
)

func TestAggregate_RankBasedAveragePosition(t *testing.T) {
	results := []models.PromptResult{
		{
			// Brand at offset 5, competitors at 2 and 8: rank 2.
			Status: models.ResultOK, BrandMentioned: true, BrandPosition: 5,
			CompetitorMentions: models.CompetitorMentionList{
				{Name: "Widget World", Position: 2},
				{Name: "Gadget Galaxy", Position: 8},
			},
		},
		{
			// Brand ahead of the only competitor: rank 1.
			Status: models.ResultOK, BrandMentioned: true, BrandPosition: 1,
			CompetitorMentions: models.CompetitorMentionList{
				{Name: "Widget World", Position: 40},
			},
		},
		{
			// Brand alone carries no ranking signal; still a mention.
			Status: models.ResultOK, BrandMentioned: true, BrandPosition: 3,
		},
		{
			// Not mentioned at all: excluded from everything.
			Status: models.ResultOK, BrandMentioned: false, BrandPosition: -1,
		},
	}

	agg := Aggregate(results)
	assert.Equal(t, 3, agg.TotalMentions)
	assert.Equal(t, 1.5, agg.AveragePosition)
}

func TestAggregate_SentimentBuckets(t *testing.T) {
	results := []models.PromptResult{
		{BrandMentioned: true, SentimentScore: 0.6},
		{BrandMentioned: true, SentimentScore: 0.8},
		{BrandMentioned: true, SentimentScore: -0.4},
		{BrandMentioned: true, SentimentScore: 0.0},
		{BrandMentioned: false, SentimentScore: 0.9}, // ignored
	}

	agg := Aggregate(results)
	assert.Equal(t, 4, agg.TotalMentions)
	assert.Equal(t, 2, agg.PositiveCount)
	assert.Equal(t, 1, agg.NegativeCount)
	assert.Equal(t, 1, agg.NeutralCount)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Equal(t, 0, agg.TotalMentions)
	assert.Equal(t, 0.0, agg.AveragePosition)
}

func TestRecompute_Idempotent(t *testing.T) {
	db := testResultStore(t)
	ctx := context.Background()

	report := &models.DailyReport{
		ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24",
		ProcessingStage: models.StageChatGPT,
	}
	require.NoError(t, db.Create(ctx, report))

	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 1, Provider: "chatgpt",
		Status: models.ResultOK, BrandMentioned: true, BrandPosition: 2,
		SentimentScore: 0.5,
		CompetitorMentions: models.CompetitorMentionList{
			{Name: "Widget World", Position: 30},
		},
	}))
	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 2, Provider: "chatgpt",
		Status: models.ResultNoResult,
	}))

	aggregator := NewAggregator(db, db)

	first, err := aggregator.Recompute(ctx, report.ID)
	require.NoError(t, err)
	second, err := aggregator.Recompute(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	persisted, err := db.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.TotalMentions)
	assert.Equal(t, 1.0, persisted.AveragePosition)
	assert.Equal(t, 1, persisted.PositiveCount)
}
