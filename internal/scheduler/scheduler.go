package scheduler

import (
	"context"
	"time"

	"github.com/adakita/loan-service/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// The warm interval sits just under the 5-minute snapshot TTL so hot reads
// rarely fall through to the store.
const (
	warmCacheSchedule     = "@every 4m"
	pendingRemindSchedule = "@daily"
	jobTimeout            = time.Minute
)

// Scheduler runs the background jobs: cache warming and pending proposal
// reminders.
type Scheduler struct {
	cron *cron.Cron
	svc  *service.Service
	log  *logrus.Logger
}

// New initializes a scheduler around the given service
func New(svc *service.Service, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		svc:  svc,
		log:  log,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(warmCacheSchedule, s.warmCache); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(pendingRemindSchedule, s.remindPending); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Scheduler started")
	return nil
}

// Stop halts the cron loop; running jobs finish on their own
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) warmCache() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	limits, err := s.svc.GetAllLoanLimits(ctx)
	if err != nil {
		s.log.Errorf("Cache warm failed: %v", err)
		return
	}
	s.log.Debugf("Cache warm touched %d loan limits", len(limits))
}

func (s *Scheduler) remindPending() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.svc.RemindPendingProposals(ctx); err != nil {
		s.log.Errorf("Pending proposal reminders failed: %v", err)
	}
}
