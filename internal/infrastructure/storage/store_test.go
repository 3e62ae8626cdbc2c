package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DriverSQLite, "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	require.NoError(t, Migrate(ctx, db, DriverSQLite), "migrations must be idempotent")

	return NewSQLStore(db, DriverSQLite)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}

func TestNewSQLStorePlaceholders(t *testing.T) {
	for driver, want := range map[string]string{
		DriverPostgres: "SELECT id FROM scheduled_jobs WHERE tenant_id = $1 AND enabled = $2",
		DriverSQLite:   "SELECT id FROM scheduled_jobs WHERE tenant_id = ? AND enabled = ?",
	} {
		s := NewSQLStore(nil, driver)
		query, args, err := s.sb.Select("id").From("scheduled_jobs").
			Where("tenant_id = ?", "acme").Where("enabled = ?", true).ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query, driver)
		assert.Len(t, args, 2)
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job, err := s.CreateJob(ctx, domain.ScheduledJob{
		TenantID:           "acme",
		JobType:            domain.JobTypeFetchContent,
		ScheduleExpression: "0 9 * * *",
		Enabled:            true,
		Config:             map[string]any{"providers": []any{"rss"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusNone, job.LastStatus)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.TenantID)
	assert.True(t, got.Enabled)
	assert.Equal(t, []any{"rss"}, got.Config["providers"])
	assert.Nil(t, got.LastRun)

	require.NoError(t, s.MarkJobRunning(ctx, job.ID))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, got.LastStatus)

	lastRun := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	nextRun := lastRun.Add(24 * time.Hour)
	msg := "provider rss: timeout"
	require.NoError(t, s.RecordJobRun(ctx, job.ID, ports.JobRun{
		Status:    domain.JobStatusSuccess,
		LastError: &msg,
		LastRun:   lastRun,
		NextRun:   &nextRun,
	}))
	require.NoError(t, s.RecordJobRun(ctx, job.ID, ports.JobRun{Status: domain.JobStatusFailed, LastRun: lastRun}))

	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.RunCount)
	assert.Equal(t, domain.JobStatusFailed, got.LastStatus)
	assert.Nil(t, got.LastError)
	assert.Nil(t, got.NextRun)
	require.NotNil(t, got.LastRun)
	assert.True(t, lastRun.Equal(*got.LastRun))

	require.NoError(t, s.SetJobEnabled(ctx, job.ID, false))
	enabled, err := s.ListEnabledJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := s.ListJobs(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	other, err := s.ListJobs(ctx, "globex")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJobNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.SetJobEnabled(ctx, "missing", true), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteJob(ctx, "missing"), domain.ErrNotFound)
}

func TestExecutionsAndDeleteJob(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job, err := s.CreateJob(ctx, domain.ScheduledJob{TenantID: "acme", JobType: domain.JobTypeFetchContent, ScheduleExpression: "@hourly", Enabled: true})
	require.NoError(t, err)

	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	exec := domain.JobExecution{
		ID:        "exec-1",
		JobID:     &job.ID,
		TenantID:  "acme",
		Trigger:   domain.TriggerSchedule,
		StartedAt: started,
		Status:    domain.ExecutionRunning,
	}
	require.NoError(t, s.CreateExecution(ctx, exec))
	require.NoError(t, s.CreateExecution(ctx, domain.JobExecution{
		ID: "adhoc-1", TenantID: "acme", Trigger: domain.TriggerManual, StartedAt: started.Add(time.Minute), Status: domain.ExecutionRunning,
	}))

	got, err := s.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	completed := started.Add(30 * time.Second)
	exec.CompletedAt = &completed
	exec.Status = domain.ExecutionPartial
	exec.ItemsProcessed, exec.ItemsFailed, exec.ItemsSkipped = 2, 1, 4
	exec.ExecutionLog = "line"
	require.NoError(t, s.FinishExecution(ctx, exec))
	assert.ErrorIs(t, s.FinishExecution(ctx, exec), domain.ErrNotFound, "finished executions are immutable")

	got, err = s.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionPartial, got.Status)
	assert.Equal(t, 2, got.ItemsProcessed)
	assert.Equal(t, 1, got.ItemsFailed)
	assert.Equal(t, 4, got.ItemsSkipped)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completed.Equal(*got.CompletedAt))
	require.NotNil(t, got.JobID)
	assert.Equal(t, job.ID, *got.JobID)

	list, err := s.ListExecutions(ctx, ports.ExecutionFilter{TenantID: "acme"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "adhoc-1", list[0].ID, "newest first")

	byJob, err := s.ListExecutions(ctx, ports.ExecutionFilter{JobID: job.ID})
	require.NoError(t, err)
	assert.Len(t, byJob, 1)

	require.NoError(t, s.DeleteJob(ctx, job.ID))
	_, err = s.GetExecution(ctx, "exec-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetExecution(ctx, "adhoc-1")
	assert.NoError(t, err, "ad-hoc executions survive job deletion")
}

func TestInsertRecordDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	record := domain.ProcessedRecord{
		TenantID:       "acme",
		FullText:       "body",
		Brands:         []string{"Acme"},
		Summary:        "sum",
		Sentiment:      domain.SentimentPositive,
		Topic:          "product",
		EstimatedReach: 500,
		ProviderName:   "rss",
		Source:         "example.com",
		Title:          "Title",
		Link:           "https://example.com/a",
		Metadata:       map[string]any{"views": 500},
		DedupeKey:      "k1",
	}
	require.NoError(t, s.InsertRecord(ctx, record))

	dup := record
	dup.Summary = "changed"
	err := s.InsertRecord(ctx, dup)
	assert.True(t, errors.Is(err, domain.ErrDuplicate))

	other := record
	other.TenantID = "globex"
	require.NoError(t, s.InsertRecord(ctx, other), "keys are scoped per tenant")

	keys, err := s.ExistingKeys(ctx, "acme", []string{"k1", "k2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"k1": true}, keys)

	empty, err := s.ExistingKeys(ctx, "acme", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	records, err := s.ListRecords(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sum", records[0].Summary, "stored row is untouched by duplicates")
	assert.Equal(t, []string{"Acme"}, records[0].Brands)
	assert.Equal(t, float64(500), records[0].Metadata["views"])
	assert.Empty(t, records[0].ExecutionID)

	n, err := s.CountRecords(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExistingKeysBatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	keys := make([]string, 0, keyBatchSize+10)
	for i := 0; i < keyBatchSize+10; i++ {
		keys = append(keys, time.Duration(i).String())
	}
	require.NoError(t, s.InsertRecord(ctx, domain.ProcessedRecord{TenantID: "acme", DedupeKey: keys[len(keys)-1]}))

	got, err := s.ExistingKeys(ctx, "acme", keys)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
