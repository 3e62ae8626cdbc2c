package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MediaMonitor/internal/ports"
)

// CronScheduler drives keyed jobs with robfig/cron in a fixed timezone.
// A job whose previous invocation is still running is skipped.
type CronScheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	mu      sync.Mutex
	entries map[string]entry
	logger  *slog.Logger
}

type entry struct {
	id         cron.EntryID
	expression string
}

var (
	_ ports.Scheduler = (*CronScheduler)(nil)
	_ ports.Planner   = (*CronScheduler)(nil)
)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cl := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:     loc,
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Schedule registers job under key, replacing a previous entry when the
// expression changed. Re-scheduling with the same expression is a no-op.
func (c *CronScheduler) Schedule(key, expression string, job func()) error {
	if job == nil {
		return fmt.Errorf("schedule %s: job is nil", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		if existing.expression == expression {
			return nil
		}
		c.cron.Remove(existing.id)
		delete(c.entries, key)
	}

	id, err := c.cron.AddFunc(expression, job)
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", key, expression, err)
	}
	c.entries[key] = entry{id: id, expression: expression}
	return nil
}

// Unschedule removes the entry registered under key.
func (c *CronScheduler) Unschedule(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.cron.Remove(existing.id)
		delete(c.entries, key)
	}
}

// Keys lists the currently scheduled keys.
func (c *CronScheduler) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Start begins dispatching in a background goroutine.
func (c *CronScheduler) Start() {
	c.cron.Start()
}

// Stop halts dispatching and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the first activation of expression strictly after from.
func (c *CronScheduler) Next(expression string, from time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", expression, err)
	}
	return schedule.Next(from.In(c.loc)), nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
