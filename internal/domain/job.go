package domain

import (
	"strings"
	"time"
)

// JobType enumerates what a scheduled job does when triggered.
type JobType string

const (
	JobTypeFetchContent JobType = "fetch-content"
	JobTypeSendDigest   JobType = "send-digest"
	JobTypeGenerateDeck JobType = "generate-deck"
)

// ParseJobType validates a job type string.
func ParseJobType(value string) (JobType, bool) {
	switch t := JobType(normalizeLabel(value)); t {
	case JobTypeFetchContent, JobTypeSendDigest, JobTypeGenerateDeck:
		return t, true
	default:
		return "", false
	}
}

// JobStatus is the last-run bookkeeping state kept on a scheduled job.
type JobStatus string

const (
	JobStatusNone    JobStatus = "none"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// ScheduledJob is the durable configuration of a recurring run.
type ScheduledJob struct {
	ID                 string
	TenantID           string
	JobType            JobType
	ScheduleExpression string
	Enabled            bool
	Config             map[string]any
	LastRun            *time.Time
	NextRun            *time.Time
	LastStatus         JobStatus
	LastError          *string
	RunCount           int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ExecutionStatus is the state of a single run.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionPartial ExecutionStatus = "partial"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s != ExecutionRunning
}

// JobStatus folds an execution outcome into job bookkeeping.
// Partial runs still produced output, so the job is considered successful.
func (s ExecutionStatus) JobStatus() JobStatus {
	switch s {
	case ExecutionRunning:
		return JobStatusRunning
	case ExecutionFailed:
		return JobStatusFailed
	default:
		return JobStatusSuccess
	}
}

// TriggerKind records what started an execution.
type TriggerKind string

const (
	TriggerSchedule TriggerKind = "schedule"
	TriggerManual   TriggerKind = "manual"
)

// JobExecution is the append-only record of one run.
type JobExecution struct {
	ID             string
	JobID          *string
	TenantID       string
	Trigger        TriggerKind
	StartedAt      time.Time
	CompletedAt    *time.Time
	Status         ExecutionStatus
	ItemsProcessed int
	ItemsFailed    int
	ItemsSkipped   int
	ErrorMessage   *string
	ExecutionLog   string
}

// ResolveStatus derives the terminal status from run counters.
// Zero new items with zero failures (everything skipped) is a success.
func ResolveStatus(processed, failures int) ExecutionStatus {
	switch {
	case failures > 0 && processed == 0:
		return ExecutionFailed
	case failures > 0:
		return ExecutionPartial
	default:
		return ExecutionSuccess
	}
}

func normalizeLabel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
