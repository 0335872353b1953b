package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/pipeline"
	"github.com/visiblelab/visibility-bot/internal/scheduling"
)

// Service wires the two recurring jobs: daily schedule generation and
// the daily report pipeline run across all eligible brands.
type Service struct {
	scheduling   *scheduling.Service
	orchestrator *pipeline.Orchestrator
	cron         *cron.Cron
	loc          *time.Location

	now func() time.Time
}

// NewService creates a new scheduler service
func NewService(schedulingService *scheduling.Service, orchestrator *pipeline.Orchestrator, loc *time.Location) *Service {
	return &Service{
		scheduling:   schedulingService,
		orchestrator: orchestrator,
		cron:         cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		loc:          loc,
		now:          time.Now,
	}
}

// today returns the current date in the schedule reference zone. The
// cron fires in that zone, so the date must be derived in it too: the
// host zone can still sit on the previous calendar day when the job
// runs.
func (s *Service) today() string {
	return s.now().In(s.loc).Format(models.DateFormat)
}

// Start begins the scheduled jobs
func (s *Service) Start() error {
	// Build the day's schedule well before the execution window opens.
	_, err := s.cron.AddFunc("0 30 6 * * *", func() {
		date := s.today()
		logrus.Infof("Starting scheduled batch generation for %s", date)
		if _, err := s.scheduling.Generate(context.Background(), date, false); err != nil {
			logrus.Errorf("Scheduled batch generation failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// Kick the report pipeline for every brand once a day. Re-invocation
	// is cheap: completed reports are a no-op and incomplete ones resume.
	_, err = s.cron.AddFunc("0 0 20 * * *", func() {
		logrus.Info("Starting scheduled report pipeline run")
		if err := s.orchestrator.RunAll(context.Background()); err != nil {
			logrus.Errorf("Scheduled report pipeline run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Info("Scheduler started (generation 06:30, pipeline 20:00)")
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
