// Package scheduler runs the background janitor jobs: enforcing each job's
// wall-clock budget and pruning finished progress topics.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/broadcast"
	"github.com/ColeMorton/trading-sub010/internal/registry"
)

// Scheduler manages the periodic maintenance jobs
type Scheduler struct {
	cron            *cron.Cron
	registry        registry.Store
	broadcaster     *broadcast.Broadcaster
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a new janitor scheduler
func NewScheduler(reg registry.Store, broadcaster *broadcast.Broadcaster, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		registry:        reg,
		broadcaster:     broadcaster,
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleBudgetEnforcement periodically cancels jobs that have exceeded
// their wall-clock budget. Cancellation goes through the ordinary
// RequestCancel path, so the executor winds the job down cooperatively.
func (s *Scheduler) ScheduleBudgetEnforcement(checkInterval, maxJobDuration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if checkInterval < time.Second {
		checkInterval = time.Second
	}

	jobFunc := func() {
		cutoff := time.Now().UTC().Add(-maxJobDuration)
		for _, job := range s.registry.Running() {
			started := job.CreatedAt
			if job.StartedAt != nil {
				started = *job.StartedAt
			}
			if started.After(cutoff) {
				continue
			}
			if err := s.registry.RequestCancel(job.ID); err != nil {
				s.logger.WithField("job_id", job.ID).WithError(err).Warn("Budget cancellation failed")
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"job_id":  job.ID,
				"started": started,
				"budget":  maxJobDuration,
			}).Warn("Job exceeded wall-clock budget, cancellation requested")
		}
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", int(checkInterval.Seconds())), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add budget job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"interval": checkInterval,
		"budget":   maxJobDuration,
	}).Info("Scheduled job budget enforcement")
	return nil
}

// ScheduleTopicPruning periodically drops closed progress topics older than
// the retention window so replay state stays bounded.
func (s *Scheduler) ScheduleTopicPruning(checkInterval, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}
	if checkInterval < time.Second {
		checkInterval = time.Second
	}

	jobFunc := func() {
		if pruned := s.broadcaster.Prune(retention); pruned > 0 {
			s.logger.WithField("pruned", pruned).Debug("Pruned closed progress topics")
		}
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", int(checkInterval.Seconds())), jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add pruning job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"interval":  checkInterval,
		"retention": retention,
	}).Info("Scheduled progress topic pruning")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
	case <-time.After(s.gracefulTimeout):
		s.logger.Warn("Scheduler stop timed out, janitor job still in flight")
	}
	s.isRunning = false
	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled janitor run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}
	return nextRun
}
