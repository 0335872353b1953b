package models

import "time"

// PromptStatus tracks a prompt through its editorial lifecycle. The
// pipeline only ever consumes prompts with status "active".
type PromptStatus string

const (
	PromptDraft    PromptStatus = "draft"
	PromptImproved PromptStatus = "improved"
	PromptSelected PromptStatus = "selected"
	PromptActive   PromptStatus = "active"
	PromptInactive PromptStatus = "inactive"
)

// AccountHealth reflects the state of an automation account's browser session.
type AccountHealth string

const (
	HealthHealthy      AccountHealth = "healthy"
	HealthExpiringSoon AccountHealth = "expiring_soon"
	HealthExpired      AccountHealth = "expired"
	HealthUnknown      AccountHealth = "unknown"
)

// AccountStatus marks whether an account participates in scheduling.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// BatchStatus tracks a schedule batch from creation to execution.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchExecuting BatchStatus = "executing"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// ProcessingStage is the ordered pipeline position of a daily report.
type ProcessingStage string

const (
	StageInitialized   ProcessingStage = "initialized"
	StageChatGPT       ProcessingStage = "chatgpt"
	StagePerplexity    ProcessingStage = "perplexity"
	StageURLProcessing ProcessingStage = "url_processing"
	StageCompleted     ProcessingStage = "completed"
)

// StageOrder is the execution order of the pipeline stages.
var StageOrder = []ProcessingStage{StageChatGPT, StagePerplexity, StageURLProcessing}

// StageStatus is the per-stage completion state recorded on a report.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageRunning    StageStatus = "running"
	StageComplete   StageStatus = "complete"
	StageStatFailed StageStatus = "failed"
	StageExpired    StageStatus = "expired"
	StageSkipped    StageStatus = "skipped"
)

// ResultStatus is the outcome of a single prompt execution.
type ResultStatus string

const (
	ResultOK       ResultStatus = "ok"
	ResultNoResult ResultStatus = "no_result"
	ResultError    ResultStatus = "error"
)

// User owns brands. Only reporting_enabled matters to the pipeline; the
// rest of the user lifecycle lives in the dashboard.
type User struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Email            string `gorm:"uniqueIndex;not null" json:"email"`
	ReportingEnabled bool   `gorm:"default:true" json:"reporting_enabled"`

	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Brand is the monitored subject. Onboarding owns its lifecycle; the
// pipeline reads a snapshot of its active prompts per run.
type Brand struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"not null;index" json:"user_id"`
	Name                string     `gorm:"not null" json:"name"`
	Domain              string     `json:"domain"`
	Competitors         StringList `gorm:"type:text" json:"competitors"`
	OnboardingCompleted bool       `gorm:"default:false" json:"onboarding_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Brand) TableName() string { return "brands" }

// Prompt is a natural-language query template bound to one brand.
type Prompt struct {
	ID      uint         `gorm:"primaryKey" json:"id"`
	BrandID uint         `gorm:"not null;index" json:"brand_id"`
	Text    string       `gorm:"type:text;not null" json:"text"`
	Status  PromptStatus `gorm:"size:20;default:draft;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prompt) TableName() string { return "prompts" }

// AutomationAccount is a shared credential+proxy identity used to run
// queries against a provider's web UI.
type AutomationAccount struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	Email             string        `gorm:"uniqueIndex;not null" json:"email"`
	ProxyURL          string        `json:"proxy_url"`
	Health            AccountHealth `gorm:"size:20;default:unknown" json:"health"`
	Status            AccountStatus `gorm:"size:20;default:active;index" json:"status"`
	LastUsedAt        *time.Time    `json:"last_used_at"`
	ConsecutiveErrors int           `gorm:"default:0" json:"consecutive_errors"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AutomationAccount) TableName() string { return "automation_accounts" }

// ExecutionHistoryEntry is an append-only usage record consumed as a
// 7-day rolling lookback by account scoring. Pruning happens externally.
type ExecutionHistoryEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AccountID  uint      `gorm:"not null;index:idx_history_account" json:"account_id"`
	PromptID   uint      `gorm:"not null;index" json:"prompt_id"`
	BrandID    uint      `gorm:"not null;index" json:"brand_id"`
	ExecutedAt time.Time `gorm:"not null;index" json:"executed_at"`
}

func (ExecutionHistoryEntry) TableName() string { return "execution_history" }

// ScheduleBatch assigns a set of prompts to one account at one
// execution timestamp on one calendar date.
type ScheduleBatch struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	ScheduleDate  string      `gorm:"size:10;not null;uniqueIndex:idx_batch_date_number" json:"schedule_date"`
	BatchNumber   int         `gorm:"not null;uniqueIndex:idx_batch_date_number" json:"batch_number"`
	ExecutionTime time.Time   `gorm:"not null" json:"execution_time"`
	Status        BatchStatus `gorm:"size:20;default:pending;index" json:"status"`
	PromptIDs     UintList    `gorm:"type:text" json:"prompt_ids"`
	AccountID     uint        `gorm:"not null;index" json:"account_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ScheduleBatch) TableName() string { return "schedule_batches" }

// DailyReport is the per-brand, per-date record driving the staged
// pipeline. At most one row exists per (brand, date).
type DailyReport struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	BrandID         uint            `gorm:"not null;uniqueIndex:idx_report_brand_date" json:"brand_id"`
	ReportDate      string          `gorm:"size:10;not null;uniqueIndex:idx_report_brand_date" json:"report_date"`
	ProcessingStage ProcessingStage `gorm:"size:30;default:initialized" json:"processing_stage"`

	TotalMentions   int     `json:"total_mentions"`
	AveragePosition float64 `json:"average_position"`
	PositiveCount   int     `json:"positive_count"`
	NeutralCount    int     `json:"neutral_count"`
	NegativeCount   int     `json:"negative_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailyReport) TableName() string { return "daily_reports" }

// ReportStageState holds per-stage status and item counters for a report.
type ReportStageState struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	ReportID string          `gorm:"size:36;not null;uniqueIndex:idx_stage_report" json:"report_id"`
	Stage    ProcessingStage `gorm:"size:30;not null;uniqueIndex:idx_stage_report" json:"stage"`
	Status   StageStatus     `gorm:"size:20;default:not_started" json:"status"`

	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	NoResult  int `json:"no_result"`
	Errors    int `json:"errors"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (ReportStageState) TableName() string { return "report_stage_states" }

// PromptResult is the outcome of running one prompt against one
// provider for one report. Upsert-keyed on (report, prompt, provider).
type PromptResult struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ReportID string `gorm:"size:36;not null;uniqueIndex:idx_result_key" json:"report_id"`
	PromptID uint   `gorm:"not null;uniqueIndex:idx_result_key" json:"prompt_id"`
	Provider string `gorm:"size:30;not null;uniqueIndex:idx_result_key" json:"provider"`

	Status       ResultStatus `gorm:"size:20;not null" json:"status"`
	Content      string       `gorm:"type:text" json:"content"`
	ErrorMessage string       `json:"error_message,omitempty"`

	Citations          CitationList          `gorm:"type:text" json:"citations"`
	BrandMentioned     bool                  `json:"brand_mentioned"`
	BrandPosition      int                   `gorm:"default:-1" json:"brand_position"`
	CompetitorMentions CompetitorMentionList `gorm:"type:text" json:"competitor_mentions"`
	SentimentScore     float64               `json:"sentiment_score"`
	LatencyMs          int64                 `json:"latency_ms"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PromptResult) TableName() string { return "prompt_results" }

// DateFormat is the calendar-date layout used for schedule and report keys.
const DateFormat = "2006-01-02"
