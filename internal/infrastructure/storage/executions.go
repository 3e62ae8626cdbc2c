package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

var _ ports.ExecutionStore = (*SQLStore)(nil)

const defaultExecutionLimit = 50

var executionColumns = []string{
	"id", "job_id", "tenant_id", "trigger_kind", "started_at", "completed_at", "status",
	"items_processed", "items_failed", "items_skipped", "error_message", "execution_log",
}

// CreateExecution inserts the running row of a new execution.
func (s *SQLStore) CreateExecution(ctx context.Context, exec domain.JobExecution) error {
	_, err := s.exec(ctx, s.sb.Insert("job_executions").Columns(executionColumns...).Values(
		exec.ID, nullString(exec.JobID), exec.TenantID, string(exec.Trigger), exec.StartedAt.UTC(),
		nullTime(exec.CompletedAt), string(exec.Status), exec.ItemsProcessed, exec.ItemsFailed,
		exec.ItemsSkipped, nullString(exec.ErrorMessage), exec.ExecutionLog,
	))
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// FinishExecution writes terminal status, counters and log. Only rows still
// running are updated; a finished execution returns domain.ErrNotFound.
func (s *SQLStore) FinishExecution(ctx context.Context, exec domain.JobExecution) error {
	res, err := s.exec(ctx, s.sb.Update("job_executions").
		Set("completed_at", nullTime(exec.CompletedAt)).
		Set("status", string(exec.Status)).
		Set("items_processed", exec.ItemsProcessed).
		Set("items_failed", exec.ItemsFailed).
		Set("items_skipped", exec.ItemsSkipped).
		Set("error_message", nullString(exec.ErrorMessage)).
		Set("execution_log", exec.ExecutionLog).
		Where(sq.Eq{"id": exec.ID, "status": string(domain.ExecutionRunning)}))
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("running execution %s: %w", exec.ID, domain.ErrNotFound)
	}
	return nil
}

// GetExecution loads one execution or returns domain.ErrNotFound.
func (s *SQLStore) GetExecution(ctx context.Context, id string) (domain.JobExecution, error) {
	row, err := s.queryRow(ctx, s.sb.Select(executionColumns...).From("job_executions").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.JobExecution{}, err
	}

	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobExecution{}, fmt.Errorf("execution %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.JobExecution{}, fmt.Errorf("get execution: %w", err)
	}
	return exec, nil
}

// ListExecutions returns executions newest first.
func (s *SQLStore) ListExecutions(ctx context.Context, filter ports.ExecutionFilter) ([]domain.JobExecution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultExecutionLimit
	}

	q := s.sb.Select(executionColumns...).From("job_executions").
		OrderBy("started_at DESC", "id").
		Limit(uint64(limit))
	if filter.TenantID != "" {
		q = q.Where(sq.Eq{"tenant_id": filter.TenantID})
	}
	if filter.JobID != "" {
		q = q.Where(sq.Eq{"job_id": filter.JobID})
	}

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	out := make([]domain.JobExecution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, closeRows(rows, fmt.Errorf("scan execution: %w", err))
		}
		out = append(out, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, closeRows(rows, fmt.Errorf("rows iteration: %w", err))
	}
	return out, closeRows(rows, nil)
}

func scanExecution(row scanner) (domain.JobExecution, error) {
	var (
		exec        domain.JobExecution
		jobID       sql.NullString
		trigger     string
		completedAt sql.NullTime
		status      string
		errMsg      sql.NullString
	)
	if err := row.Scan(
		&exec.ID, &jobID, &exec.TenantID, &trigger, &exec.StartedAt, &completedAt, &status,
		&exec.ItemsProcessed, &exec.ItemsFailed, &exec.ItemsSkipped, &errMsg, &exec.ExecutionLog,
	); err != nil {
		return domain.JobExecution{}, err
	}

	exec.JobID = stringPtr(jobID)
	exec.Trigger = domain.TriggerKind(trigger)
	exec.StartedAt = exec.StartedAt.UTC()
	exec.CompletedAt = timePtr(completedAt)
	exec.Status = domain.ExecutionStatus(status)
	exec.ErrorMessage = stringPtr(errMsg)
	return exec, nil
}
