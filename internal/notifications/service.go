package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/visiblelab/visibility-bot/internal/config"
	"github.com/visiblelab/visibility-bot/internal/models"
)

// Service handles sending notifications via various channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendScheduleAlert reports a scheduling problem, most importantly the
// zero-coverage case where no automation account was available at all.
func (s *Service) SendScheduleAlert(date, message string) error {
	title := fmt.Sprintf("Schedule alert for %s", date)
	body := fmt.Sprintf("Schedule generation for %s: %s", date, message)

	var errs []string
	if s.config.TeamsWebhookURL != "" {
		msg := &TeamsMessage{
			Type:    "MessageCard",
			Context: "https://schema.org/extensions",
			Title:   title,
			Text:    body,
		}
		if err := s.sendToTeams(msg); err != nil {
			logrus.Errorf("Failed to send Teams alert: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(title, body); err != nil {
			logrus.Errorf("Failed to send email alert: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendReportSummary sends the aggregate metrics of a completed report.
func (s *Service) SendReportSummary(brand models.Brand, report *models.DailyReport) error {
	title := fmt.Sprintf("Visibility report for %s - %s", brand.Name, report.ReportDate)

	var errs []string
	if s.config.TeamsWebhookURL != "" {
		msg := &TeamsMessage{
			Type:    "MessageCard",
			Context: "https://schema.org/extensions",
			Title:   title,
			Text:    fmt.Sprintf("Daily report completed with %d brand mentions", report.TotalMentions),
			Sections: []TeamsSection{{
				ActivityTitle: "Summary",
				Markdown:      true,
				Facts: []TeamsFact{
					{Name: "Total Mentions", Value: fmt.Sprintf("%d", report.TotalMentions)},
					{Name: "Average Position", Value: fmt.Sprintf("%.2f", report.AveragePosition)},
					{Name: "Positive", Value: fmt.Sprintf("%d", report.PositiveCount)},
					{Name: "Neutral", Value: fmt.Sprintf("%d", report.NeutralCount)},
					{Name: "Negative", Value: fmt.Sprintf("%d", report.NegativeCount)},
				},
			}},
		}
		if err := s.sendToTeams(msg); err != nil {
			logrus.Errorf("Failed to send Teams summary: %v", err)
			errs = append(errs, fmt.Sprintf("Teams: %v", err))
		}
	}

	if s.config.NotificationEmail != "" {
		body := s.buildSummaryText(brand, report)
		if err := s.sendEmail(title, body); err != nil {
			logrus.Errorf("Failed to send email summary: %v", err)
			errs = append(errs, fmt.Sprintf("Email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(message *TeamsMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendEmail(subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Service) buildSummaryText(brand models.Brand, report *models.DailyReport) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("Visibility Report - %s (%s)\n", brand.Name, report.ReportDate))
	text.WriteString("==========================\n")
	text.WriteString(fmt.Sprintf("Total Mentions: %d\n", report.TotalMentions))
	text.WriteString(fmt.Sprintf("Average Position: %.2f\n", report.AveragePosition))
	text.WriteString(fmt.Sprintf("Positive: %d | Neutral: %d | Negative: %d\n",
		report.PositiveCount, report.NeutralCount, report.NegativeCount))

	return text.String()
}
