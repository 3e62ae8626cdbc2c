package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

const (
	reloadKey               = "__reload"
	defaultReloadExpression = "@every 1m"
)

// JobRunner starts runs and reports whether a job is already running.
type JobRunner interface {
	Start(ctx context.Context, req RunRequest) (string, error)
	JobActive(jobID string) bool
}

// Scheduler keeps the cron driver in sync with enabled jobs in storage.
type Scheduler struct {
	driver     ports.Scheduler
	jobs       ports.JobStore
	runner     JobRunner
	reloadExpr string
	logger     *slog.Logger

	mu         sync.Mutex
	registered map[string]struct{}
	ctx        context.Context
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, jobs ports.JobStore, runner JobRunner, reloadExpr string, logger *slog.Logger) *Scheduler {
	if reloadExpr == "" {
		reloadExpr = defaultReloadExpression
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		driver:     driver,
		jobs:       jobs,
		runner:     runner,
		reloadExpr: reloadExpr,
		logger:     logger,
		registered: make(map[string]struct{}),
		ctx:        context.Background(),
	}
}

// Start registers enabled jobs plus the reload entry and starts the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}

	err := s.driver.Schedule(reloadKey, s.reloadExpr, func() {
		if err := s.Sync(s.baseContext()); err != nil {
			s.logger.Error("reload scheduled jobs failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reload: %w", err)
	}

	s.driver.Start()
	return nil
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Sync adds new jobs, replaces changed expressions and removes jobs that
// were disabled or deleted. Invalid expressions are logged and skipped.
func (s *Scheduler) Sync(ctx context.Context) error {
	jobs, err := s.jobs.ListEnabledJobs(ctx)
	if err != nil {
		return fmt.Errorf("list enabled jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	desired := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if job.JobType != domain.JobTypeFetchContent {
			s.logger.Debug("job type has no runner, not scheduling", "job_id", job.ID, "job_type", job.JobType)
			continue
		}

		if err := s.driver.Schedule(job.ID, job.ScheduleExpression, s.trigger(job.ID)); err != nil {
			s.logger.Warn("invalid schedule, skipping job", "job_id", job.ID, "expression", job.ScheduleExpression, "error", err)
			continue
		}
		desired[job.ID] = struct{}{}
		if _, ok := s.registered[job.ID]; !ok {
			s.logger.Info("job scheduled", "job_id", job.ID, "tenant_id", job.TenantID, "expression", job.ScheduleExpression)
		}
	}

	for id := range s.registered {
		if _, ok := desired[id]; !ok {
			s.driver.Unschedule(id)
			s.logger.Info("job unscheduled", "job_id", id)
		}
	}
	s.registered = desired
	return nil
}

// Scheduled lists the IDs of jobs currently registered with the driver.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.registered))
	for id := range s.registered {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) trigger(jobID string) func() {
	return func() {
		if s.runner.JobActive(jobID) {
			s.logger.Warn("previous run still in progress, skipping tick", "job_id", jobID)
			return
		}

		execID, err := s.runner.Start(s.baseContext(), RunRequest{JobID: jobID, Trigger: domain.TriggerSchedule})
		switch {
		case errors.Is(err, domain.ErrJobDisabled), errors.Is(err, domain.ErrNotFound):
			s.logger.Info("job no longer runnable, skipping tick", "job_id", jobID, "error", err)
		case err != nil:
			s.logger.Error("scheduled run failed to start", "job_id", jobID, "error", err)
		default:
			s.logger.Info("scheduled run started", "job_id", jobID, "execution_id", execID)
		}
	}
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
