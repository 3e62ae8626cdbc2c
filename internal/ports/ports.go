package ports

import (
	"context"
	"time"

	"MediaMonitor/internal/domain"
)

// Enricher classifies and summarizes text against a brand list.
type Enricher interface {
	ClassifySummarize(ctx context.Context, text string, knownBrands []string) (domain.Enrichment, error)
}

// TextExtractor downloads a page and returns its readable text.
type TextExtractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// JobStore persists scheduled job configuration and run bookkeeping.
type JobStore interface {
	CreateJob(ctx context.Context, job domain.ScheduledJob) (domain.ScheduledJob, error)
	GetJob(ctx context.Context, id string) (domain.ScheduledJob, error)
	ListJobs(ctx context.Context, tenantID string) ([]domain.ScheduledJob, error)
	ListEnabledJobs(ctx context.Context) ([]domain.ScheduledJob, error)
	SetJobEnabled(ctx context.Context, id string, enabled bool) error
	MarkJobRunning(ctx context.Context, id string) error
	RecordJobRun(ctx context.Context, id string, run JobRun) error
	DeleteJob(ctx context.Context, id string) error
}

// JobRun is the bookkeeping written to a scheduled job when a run ends.
type JobRun struct {
	Status    domain.JobStatus
	LastError *string
	LastRun   time.Time
	NextRun   *time.Time
}

// ExecutionFilter narrows execution history queries.
type ExecutionFilter struct {
	TenantID string
	JobID    string
	Limit    int
}

// ExecutionStore persists the append-only run history.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec domain.JobExecution) error
	FinishExecution(ctx context.Context, exec domain.JobExecution) error
	GetExecution(ctx context.Context, id string) (domain.JobExecution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]domain.JobExecution, error)
}

// RecordStore persists processed records for deduplication and reporting.
type RecordStore interface {
	ExistingKeys(ctx context.Context, tenantID string, keys []string) (map[string]bool, error)
	InsertRecord(ctx context.Context, record domain.ProcessedRecord) error
	ListRecords(ctx context.Context, tenantID string, limit int) ([]domain.ProcessedRecord, error)
	CountRecords(ctx context.Context, tenantID string) (int64, error)
}

// ProviderSettings is the resolved per-tenant configuration of one provider.
type ProviderSettings struct {
	Enabled     bool
	Feeds       []string
	Queries     []string
	Credentials map[string]string
	Options     map[string]string
}

// TenantSettings is everything a run needs to know about a tenant.
type TenantSettings struct {
	TenantID  string
	Brands    []string
	Providers map[string]ProviderSettings
}

// TenantDirectory resolves tenant credentials and enabled feeds.
type TenantDirectory interface {
	Tenant(ctx context.Context, tenantID string) (TenantSettings, error)
}

// ProgressFunc receives run milestones. Implementations must not block.
type ProgressFunc func(domain.ProgressEvent)

// ExecutionHook observes run lifecycle boundaries.
type ExecutionHook func(ctx context.Context, exec domain.JobExecution)

// Notifier streams execution summaries to an operator channel.
type Notifier interface {
	NotifyExecution(ctx context.Context, exec domain.JobExecution) error
}

// Planner computes the next trigger time of a cron expression.
type Planner interface {
	Next(expression string, from time.Time) (time.Time, error)
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Schedule(key, expression string, job func()) error
	Unschedule(key string)
	Start()
	Stop(ctx context.Context) error
}
