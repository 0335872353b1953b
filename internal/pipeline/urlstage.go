package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/classify"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// URLProcessor is the final pipeline stage: it classifies every cited
// URL on the report's results. Classification is an opaque external
// call; only the assigned category is stored back on the citation.
type URLProcessor struct {
	results    store.ResultStore
	classifier classify.Classifier
}

// NewURLProcessor creates the url_processing stage.
func NewURLProcessor(results store.ResultStore, classifier classify.Classifier) *URLProcessor {
	return &URLProcessor{results: results, classifier: classifier}
}

// Run classifies citations result by result. A failed classification
// counts as an item error and the stage moves on; already-classified
// citations are left untouched so re-runs only fill the gaps.
func (u *URLProcessor) Run(ctx context.Context, report *models.DailyReport) (StageCounts, error) {
	results, err := u.results.ListForReport(ctx, report.ID)
	if err != nil {
		return StageCounts{}, err
	}

	var counts StageCounts
	for i := range results {
		result := &results[i]
		if len(result.Citations) == 0 {
			continue
		}

		counts.Attempted++
		itemFailed := false
		changed := false

		for j := range result.Citations {
			citation := &result.Citations[j]
			if citation.Category != "" {
				continue
			}

			category, err := u.classifier.Classify(ctx, citation.URL)
			if err != nil {
				logrus.Warnf("Failed to classify citation %s: %v", citation.URL, err)
				itemFailed = true
				continue
			}
			citation.Category = category
			changed = true
		}

		if changed {
			if err := u.results.Upsert(ctx, result); err != nil {
				logrus.Errorf("Failed to persist classified citations for prompt %d: %v", result.PromptID, err)
				itemFailed = true
			}
		}

		if itemFailed {
			counts.Errors++
		} else {
			counts.Succeeded++
		}
	}

	logrus.Infof("URL processing for report %s done: attempted=%d ok=%d errors=%d",
		report.ID, counts.Attempted, counts.Succeeded, counts.Errors)
	return counts, nil
}
