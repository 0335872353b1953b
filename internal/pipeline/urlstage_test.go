package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelab/visibility-bot/internal/models"
)

// flakyClassifier fails for one specific URL and classifies the rest.
type flakyClassifier struct {
	failURL string
	calls   int
}

func (c *flakyClassifier) Classify(_ context.Context, rawURL string) (string, error) {
	c.calls++
	if rawURL == c.failURL {
		return "", errors.New("classifier timeout")
	}
	return "community", nil
}

func TestURLProcessor_ClassifiesUncategorizedCitations(t *testing.T) {
	db := testResultStore(t)
	ctx := context.Background()

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 1, Provider: "chatgpt", Status: models.ResultOK,
		Citations: models.CitationList{
			{URL: "https://reddit.com/r/widgets"},
			{URL: "https://example.com/kept", Category: "editorial"},
		},
	}))
	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 2, Provider: "chatgpt", Status: models.ResultNoResult,
	}))

	classifier := &flakyClassifier{}
	counts, err := NewURLProcessor(db, classifier).Run(ctx, report)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Attempted, "results without citations are skipped")
	assert.Equal(t, 1, counts.Succeeded)
	assert.Equal(t, 1, classifier.calls, "already-classified citations are left alone")

	results, err := db.ListForReportProvider(ctx, report.ID, "chatgpt")
	require.NoError(t, err)
	for _, r := range results {
		for _, citation := range r.Citations {
			if citation.URL == "https://example.com/kept" {
				assert.Equal(t, "editorial", citation.Category)
			} else if citation.URL != "" {
				assert.Equal(t, "community", citation.Category)
			}
		}
	}
}

func TestURLProcessor_ItemErrorFailsStageButKeepsRest(t *testing.T) {
	db := testResultStore(t)
	ctx := context.Background()

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 1, Provider: "chatgpt", Status: models.ResultOK,
		Citations: models.CitationList{{URL: "https://broken.test/page"}},
	}))
	require.NoError(t, db.Upsert(ctx, &models.PromptResult{
		ReportID: report.ID, PromptID: 2, Provider: "chatgpt", Status: models.ResultOK,
		Citations: models.CitationList{{URL: "https://reddit.com/r/widgets"}},
	}))

	classifier := &flakyClassifier{failURL: "https://broken.test/page"}
	counts, err := NewURLProcessor(db, classifier).Run(ctx, report)
	require.NoError(t, err)

	assert.Equal(t, 2, counts.Attempted)
	assert.Equal(t, 1, counts.Succeeded)
	assert.Equal(t, 1, counts.Errors)
	assert.Equal(t, models.StageStatFailed, counts.TerminalStatus())

	// A re-run only touches the still-uncategorized citation.
	classifier.failURL = ""
	classifier.calls = 0
	counts, err = NewURLProcessor(db, classifier).Run(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, models.StageComplete, counts.TerminalStatus())
}
