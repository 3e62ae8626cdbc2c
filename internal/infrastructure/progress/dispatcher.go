package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

const (
	defaultBuffer      = 256
	defaultSinkTimeout = 2 * time.Second
)

// Sink receives progress events on the dispatcher goroutine.
type Sink interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// Dispatcher fans progress events out to sinks without blocking the run.
// Events are dropped when the buffer is full.
type Dispatcher struct {
	events  chan domain.ProgressEvent
	sinks   []Sink
	logger  *slog.Logger
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{
		events:  make(chan domain.ProgressEvent, defaultBuffer),
		sinks:   sinks,
		logger:  logger,
		timeout: defaultSinkTimeout,
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

// Func adapts the dispatcher to the orchestrator callback.
func (d *Dispatcher) Func() ports.ProgressFunc {
	return func(event domain.ProgressEvent) {
		d.Emit(event)
	}
}

// Emit enqueues event and reports whether it was accepted.
func (d *Dispatcher) Emit(event domain.ProgressEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.events <- event:
		return true
	default:
		d.logger.Debug("progress buffer full, dropping event", "execution_id", event.ExecutionID, "stage", event.Stage)
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for event := range d.events {
		for _, sink := range d.sinks {
			d.deliver(sink, event)
		}
	}
}

func (d *Dispatcher) deliver(sink Sink, event domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("progress sink panicked", "panic", fmt.Sprint(r), "execution_id", event.ExecutionID)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Publish(ctx, event); err != nil {
		d.logger.Warn("publish progress failed", "error", err, "execution_id", event.ExecutionID)
	}
}

// LogSink writes progress events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a sink logging at debug level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event domain.ProgressEvent) error {
	s.logger.Debug("progress",
		"execution_id", event.ExecutionID,
		"stage", event.Stage,
		"progress", event.Progress,
		"item", event.CurrentItem,
		"total", event.TotalItems,
		"message", event.Message,
	)
	return nil
}
