// Package scheduler runs the periodic forced dataset refresh.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"farmfresh-backend/pkg/logging"
)

// MidnightSpec fires at local midnight every day (seconds field included)
const MidnightSpec = "0 0 0 * * *"

// Refresher is the operation the scheduler triggers
type Refresher interface {
	RefreshIfNeeded(ctx context.Context, force bool) (bool, error)
}

// Scheduler wraps a cron runner with a single forced-refresh job
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	timeout time.Duration
	logger  *logging.StructuredLogger

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New creates a scheduler; the job is registered by Start
func New(target Refresher, timeout time.Duration, logger *logging.StructuredLogger) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		target:  target,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the refresh job on spec and starts the cron runner
func (s *Scheduler) Start(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if spec == "" {
		spec = MidnightSpec
	}

	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job %q: %w", spec, err)
	}
	s.entryID = id
	s.started = true
	s.cron.Start()

	s.logger.Info(context.Background(), "[SCHEDULER_START] Dataset refresh scheduled", logging.Fields{
		"spec":     spec,
		"next_run": s.cron.Entry(id).Next.Format(time.RFC3339),
	})
	return nil
}

// Next returns the next scheduled run, or zero before Start
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.target.RefreshIfNeeded(ctx, true); err != nil {
		s.logger.Error(ctx, "[SCHEDULER_JOB_FAILED] Scheduled refresh failed", logging.Fields{
			"duration_ms": time.Since(start).Milliseconds(),
		}, err)
		return
	}
	s.logger.Info(ctx, "[SCHEDULER_JOB_DONE] Scheduled refresh completed", logging.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Stop halts the runner and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info(context.Background(), "[SCHEDULER_STOP] Scheduler stopped", logging.Fields{})
}
