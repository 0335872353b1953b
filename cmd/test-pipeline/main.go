package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/visiblelab/visibility-bot/internal/analysis"
	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/classify"
	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/inventory"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/pipeline"
	"github.com/visiblelab/visibility-bot/internal/pool"
	"github.com/visiblelab/visibility-bot/internal/providers"
	"github.com/visiblelab/visibility-bot/internal/scheduling"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// cannedProvider returns a fixed answer so the whole pipeline can run
// end to end without provider credentials.
type cannedProvider struct {
	name string
}

var _ providers.Provider = (*cannedProvider)(nil)

func (c *cannedProvider) Name() string    { return c.name }
func (c *cannedProvider) IsEnabled() bool { return true }

func (c *cannedProvider) Query(_ context.Context, prompt string) (*providers.Response, error) {
	content := "Acme Widgets is a great choice for industrial widgets, often recommended " +
		"over Widget World and Gadget Galaxy for reliability."
	return &providers.Response{
		Content:   content,
		Citations: []string{"https://en.wikipedia.org/wiki/Widget", "https://blog.example.com/widgets"},
		LatencyMs: 5,
	}, nil
}

// terminalNotifier prints alerts and summaries instead of sending them.
type terminalNotifier struct{}

func (terminalNotifier) SendScheduleAlert(date, message string) error {
	fmt.Printf("\n[ALERT] %s: %s\n", date, message)
	return nil
}

func (terminalNotifier) SendReportSummary(brand models.Brand, report *models.DailyReport) error {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("VISIBILITY REPORT - %s (%s)\n", brand.Name, report.ReportDate)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Mentions:   %d\n", report.TotalMentions)
	fmt.Printf("Average Position: %.2f\n", report.AveragePosition)
	fmt.Printf("Sentiment:        +%d / =%d / -%d\n",
		report.PositiveCount, report.NeutralCount, report.NegativeCount)
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// No delays when replaying canned answers.
	cfg.SubBatchDelay = 0
	cfg.InterBrandDelay = 0

	if err := os.MkdirAll("test_output", 0755); err != nil {
		log.Fatal(err)
	}
	dbPath := filepath.Join("test_output", "pipeline-test.db")
	_ = os.Remove(dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	brandID := seed(db)

	notifier := terminalNotifier{}
	inventoryService := inventory.NewService(db)
	accountPool := pool.NewService(db, db, cfg)
	schedulingService := scheduling.NewService(db, inventoryService, accountPool, notifier, cfg)

	date := time.Now().Format(models.DateFormat)
	result, err := schedulingService.Generate(context.Background(), date, true)
	if err != nil {
		log.Fatalf("Schedule generation failed: %v", err)
	}
	fmt.Printf("Generated %d batches covering %d prompts for %s\n",
		result.BatchCount, result.PromptCount, result.Date)

	orchestrator := pipeline.NewOrchestrator(
		db, db, db,
		&cannedProvider{name: "chatgpt"}, &cannedProvider{name: "perplexity"},
		classify.HostClassifier{},
		analysis.NewKeywordScorer(),
		archive.NoopArchive{},
		notifier,
		cfg,
	)

	if _, err := orchestrator.Run(context.Background(), brandID); err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}
}

func seed(db *store.Store) uint {
	user := models.User{Email: "demo@example.com", ReportingEnabled: true}
	if err := db.DB().Create(&user).Error; err != nil {
		log.Fatalf("Failed to seed user: %v", err)
	}

	brand := models.Brand{
		UserID:              user.ID,
		Name:                "Acme Widgets",
		Domain:              "acmewidgets.example",
		Competitors:         models.StringList{"Widget World", "Gadget Galaxy"},
		OnboardingCompleted: true,
	}
	if err := db.DB().Create(&brand).Error; err != nil {
		log.Fatalf("Failed to seed brand: %v", err)
	}

	prompts := []models.Prompt{
		{BrandID: brand.ID, Text: "What is the best industrial widget supplier?", Status: models.PromptActive},
		{BrandID: brand.ID, Text: "Compare widget suppliers for small factories", Status: models.PromptActive},
		{BrandID: brand.ID, Text: "Most reliable widget brands in 2026", Status: models.PromptActive},
	}
	if err := db.DB().Create(&prompts).Error; err != nil {
		log.Fatalf("Failed to seed prompts: %v", err)
	}

	accounts := []models.AutomationAccount{
		{Email: "bot-1@example.com", ProxyURL: "socks5://proxy-1:1080", Health: models.HealthHealthy},
		{Email: "bot-2@example.com", ProxyURL: "socks5://proxy-2:1080", Health: models.HealthHealthy},
	}
	if err := db.DB().Create(&accounts).Error; err != nil {
		log.Fatalf("Failed to seed accounts: %v", err)
	}

	return brand.ID
}
