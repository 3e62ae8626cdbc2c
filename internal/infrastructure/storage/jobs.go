package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

var _ ports.JobStore = (*SQLStore)(nil)

var jobColumns = []string{
	"id", "tenant_id", "job_type", "schedule_expression", "enabled", "config",
	"last_run", "next_run", "last_status", "last_error", "run_count", "created_at", "updated_at",
}

// CreateJob inserts a job, assigning an ID and timestamps when missing.
func (s *SQLStore) CreateJob(ctx context.Context, job domain.ScheduledJob) (domain.ScheduledJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.LastStatus == "" {
		job.LastStatus = domain.JobStatusNone
	}
	if job.Config == nil {
		job.Config = map[string]any{}
	}

	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("marshal job config: %w", err)
	}

	_, err = s.exec(ctx, s.sb.Insert("scheduled_jobs").Columns(jobColumns...).Values(
		job.ID, job.TenantID, string(job.JobType), job.ScheduleExpression, job.Enabled, string(cfg),
		nullTime(job.LastRun), nullTime(job.NextRun), string(job.LastStatus), nullString(job.LastError),
		job.RunCount, job.CreatedAt, job.UpdatedAt,
	))
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("insert job: %w", err)
	}

	return job, nil
}

// GetJob loads a job by ID or returns domain.ErrNotFound.
func (s *SQLStore) GetJob(ctx context.Context, id string) (domain.ScheduledJob, error) {
	row, err := s.queryRow(ctx, s.sb.Select(jobColumns...).From("scheduled_jobs").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.ScheduledJob{}, err
	}

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduledJob{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns a tenant's jobs; an empty tenant lists all.
func (s *SQLStore) ListJobs(ctx context.Context, tenantID string) ([]domain.ScheduledJob, error) {
	q := s.sb.Select(jobColumns...).From("scheduled_jobs").OrderBy("created_at", "id")
	if tenantID != "" {
		q = q.Where(sq.Eq{"tenant_id": tenantID})
	}
	return s.listJobs(ctx, q)
}

// ListEnabledJobs returns every enabled job across tenants.
func (s *SQLStore) ListEnabledJobs(ctx context.Context) ([]domain.ScheduledJob, error) {
	return s.listJobs(ctx, s.sb.Select(jobColumns...).From("scheduled_jobs").
		Where(sq.Eq{"enabled": true}).OrderBy("created_at", "id"))
}

func (s *SQLStore) listJobs(ctx context.Context, q sq.SelectBuilder) ([]domain.ScheduledJob, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	jobs := make([]domain.ScheduledJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan job: %w", err))
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, closeRows(rows, fmt.Errorf("rows iteration: %w", err))
	}
	return jobs, closeRows(rows, nil)
}

// SetJobEnabled toggles whether the scheduler may trigger a job.
func (s *SQLStore) SetJobEnabled(ctx context.Context, id string, enabled bool) error {
	return s.updateJob(ctx, id, s.sb.Update("scheduled_jobs").
		Set("enabled", enabled).
		Set("updated_at", time.Now().UTC()))
}

// MarkJobRunning records that a run of the job has started.
func (s *SQLStore) MarkJobRunning(ctx context.Context, id string) error {
	return s.updateJob(ctx, id, s.sb.Update("scheduled_jobs").
		Set("last_status", string(domain.JobStatusRunning)).
		Set("updated_at", time.Now().UTC()))
}

// RecordJobRun writes the outcome of a finished run and increments run_count.
func (s *SQLStore) RecordJobRun(ctx context.Context, id string, run ports.JobRun) error {
	return s.updateJob(ctx, id, s.sb.Update("scheduled_jobs").
		Set("last_status", string(run.Status)).
		Set("last_error", nullString(run.LastError)).
		Set("last_run", run.LastRun.UTC()).
		Set("next_run", nullTime(run.NextRun)).
		Set("run_count", sq.Expr("run_count + 1")).
		Set("updated_at", time.Now().UTC()))
}

func (s *SQLStore) updateJob(ctx context.Context, id string, q sq.UpdateBuilder) error {
	res, err := s.exec(ctx, q.Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteJob removes a job together with its execution history.
func (s *SQLStore) DeleteJob(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.sb.Delete("job_executions").Where(sq.Eq{"job_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete executions: %w", err)
	}

	query, args, err = s.sb.Delete("scheduled_jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.ScheduledJob, error) {
	var (
		job        domain.ScheduledJob
		jobType    string
		cfg        string
		lastRun    sql.NullTime
		nextRun    sql.NullTime
		lastStatus string
		lastError  sql.NullString
	)
	if err := row.Scan(
		&job.ID, &job.TenantID, &jobType, &job.ScheduleExpression, &job.Enabled, &cfg,
		&lastRun, &nextRun, &lastStatus, &lastError, &job.RunCount, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return domain.ScheduledJob{}, err
	}

	job.JobType = domain.JobType(jobType)
	job.LastStatus = domain.JobStatus(lastStatus)
	job.LastRun = timePtr(lastRun)
	job.NextRun = timePtr(nextRun)
	job.LastError = stringPtr(lastError)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()

	job.Config = map[string]any{}
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &job.Config); err != nil {
			return domain.ScheduledJob{}, fmt.Errorf("decode job config: %w", err)
		}
	}
	return job, nil
}
