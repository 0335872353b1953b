package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/providers"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// fakeProvider answers from a fixed template and fails any prompt whose
// text contains "fail".
type fakeProvider struct {
	name    string
	content string
	failAll bool

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) IsEnabled() bool { return true }

func (f *fakeProvider) Query(ctx context.Context, prompt string) (*providers.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.failAll || strings.Contains(prompt, "fail") {
		return nil, errors.New("provider unavailable")
	}
	return &providers.Response{Content: f.content, Citations: []string{"https://example.com/review"}, LatencyMs: 120}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testResultStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "pipeline_test.db"))
	require.NoError(t, err)
	return db
}

func testPrompts(brandID uint, count int, failing ...int) []models.Prompt {
	failSet := make(map[int]bool, len(failing))
	for _, n := range failing {
		failSet[n] = true
	}

	prompts := make([]models.Prompt, 0, count)
	for i := 1; i <= count; i++ {
		text := fmt.Sprintf("prompt-%d", i)
		if failSet[i] {
			text += " fail"
		}
		prompts = append(prompts, models.Prompt{ID: uint(i), BrandID: brandID, Text: text, Status: models.PromptActive})
	}
	return prompts
}

func TestStageProcessor_PartialFailures(t *testing.T) {
	db := testResultStore(t)
	provider := &fakeProvider{name: "chatgpt", content: "Acme Widgets is a solid pick."}

	processor := NewStageProcessor(provider, db, analysis.NewKeywordScorer(), archive.NoopArchive{}, 5, 0)
	processor.sleep = func(time.Duration) {}

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	brand := &models.Brand{ID: 1, Name: "Acme Widgets"}

	counts := processor.Run(context.Background(), report, brand, testPrompts(1, 10, 3, 7))

	assert.Equal(t, 10, counts.Attempted)
	assert.Equal(t, 8, counts.Succeeded)
	assert.Equal(t, 2, counts.Errors)
	assert.Equal(t, models.StageStatFailed, counts.TerminalStatus())

	// Successful items stay persisted despite the stage failing overall.
	results, err := db.ListForReportProvider(context.Background(), report.ID, "chatgpt")
	require.NoError(t, err)
	require.Len(t, results, 10)

	ok, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case models.ResultOK:
			ok++
			assert.True(t, r.BrandMentioned)
		case models.ResultError:
			failed++
			assert.NotEmpty(t, r.ErrorMessage)
		}
	}
	assert.Equal(t, 8, ok)
	assert.Equal(t, 2, failed)
}

func TestStageProcessor_AllSucceedIsComplete(t *testing.T) {
	db := testResultStore(t)
	provider := &fakeProvider{name: "chatgpt", content: "Acme Widgets beats Widget World on price."}

	processor := NewStageProcessor(provider, db, analysis.NewKeywordScorer(), archive.NoopArchive{}, 5, 0)
	processor.sleep = func(time.Duration) {}

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	brand := &models.Brand{ID: 1, Name: "Acme Widgets", Competitors: models.StringList{"Widget World"}}

	counts := processor.Run(context.Background(), report, brand, testPrompts(1, 3))

	assert.Equal(t, models.StageComplete, counts.TerminalStatus())
	assert.Equal(t, 3, counts.Succeeded)

	results, err := db.ListForReport(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.BrandMentioned)
		require.Len(t, r.CompetitorMentions, 1)
		assert.Equal(t, "Widget World", r.CompetitorMentions[0].Name)
		require.Len(t, r.Citations, 1)
		assert.Equal(t, "https://example.com/review", r.Citations[0].URL)
	}
}

func TestStageProcessor_EmptyContentIsNoResult(t *testing.T) {
	db := testResultStore(t)
	provider := &fakeProvider{name: "perplexity", content: ""}

	processor := NewStageProcessor(provider, db, analysis.NewKeywordScorer(), archive.NoopArchive{}, 5, 0)
	processor.sleep = func(time.Duration) {}

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	counts := processor.Run(context.Background(), report, &models.Brand{ID: 1, Name: "Acme"}, testPrompts(1, 2))

	assert.Equal(t, 2, counts.NoResult)
	assert.Equal(t, 0, counts.Errors)
	assert.Equal(t, models.StageComplete, counts.TerminalStatus())
}

func TestStageProcessor_RerunConvergesToOneRowPerPrompt(t *testing.T) {
	db := testResultStore(t)
	provider := &fakeProvider{name: "chatgpt", content: "Acme leads the segment."}

	processor := NewStageProcessor(provider, db, analysis.NewKeywordScorer(), archive.NoopArchive{}, 5, 0)
	processor.sleep = func(time.Duration) {}

	report := &models.DailyReport{ID: uuid.NewString(), BrandID: 1, ReportDate: "2026-08-24"}
	brand := &models.Brand{ID: 1, Name: "Acme"}
	prompts := testPrompts(1, 4)

	processor.Run(context.Background(), report, brand, prompts)
	processor.Run(context.Background(), report, brand, prompts)

	results, err := db.ListForReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, 8, provider.callCount())
}
