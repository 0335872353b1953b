package notifications

import "github.com/visiblelab/visibility-bot/internal/models"

// Notifier defines the contract for operational alerting
type Notifier interface {
	SendScheduleAlert(date, message string) error
	SendReportSummary(brand models.Brand, report *models.DailyReport) error
}
