package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/processor"
	"MediaMonitor/internal/provider"
)

// memStore implements the three stores in memory with the same uniqueness
// rules as the SQL store.
type memStore struct {
	mu         sync.Mutex
	jobs       map[string]domain.ScheduledJob
	executions map[string]domain.JobExecution
	records    map[string]domain.ProcessedRecord
	marked     []string
}

func newMemStore() *memStore {
	return &memStore{
		jobs:       map[string]domain.ScheduledJob{},
		executions: map[string]domain.JobExecution{},
		records:    map[string]domain.ProcessedRecord{},
	}
}

func (m *memStore) CreateJob(_ context.Context, job domain.ScheduledJob) (domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.LastStatus == "" {
		job.LastStatus = domain.JobStatusNone
	}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *memStore) GetJob(_ context.Context, id string) (domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ScheduledJob{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job, nil
}

func (m *memStore) ListJobs(_ context.Context, tenantID string) ([]domain.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScheduledJob
	for _, j := range m.jobs {
		if tenantID == "" || j.TenantID == tenantID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memStore) ListEnabledJobs(ctx context.Context) ([]domain.ScheduledJob, error) {
	all, _ := m.ListJobs(ctx, "")
	var out []domain.ScheduledJob
	for _, j := range all {
		if j.Enabled {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memStore) SetJobEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Enabled = enabled
	m.jobs[id] = job
	return nil
}

func (m *memStore) MarkJobRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.LastStatus = domain.JobStatusRunning
	m.jobs[id] = job
	m.marked = append(m.marked, id)
	return nil
}

func (m *memStore) RecordJobRun(_ context.Context, id string, run ports.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	lastRun := run.LastRun
	job.LastRun = &lastRun
	job.LastStatus = run.Status
	job.LastError = run.LastError
	job.NextRun = run.NextRun
	job.RunCount++
	m.jobs[id] = job
	return nil
}

func (m *memStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memStore) CreateExecution(_ context.Context, exec domain.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[exec.ID] = exec
	return nil
}

func (m *memStore) FinishExecution(_ context.Context, exec domain.JobExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.executions[exec.ID]
	if !ok || current.Status != domain.ExecutionRunning {
		return domain.ErrNotFound
	}
	m.executions[exec.ID] = exec
	return nil
}

func (m *memStore) GetExecution(_ context.Context, id string) (domain.JobExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return domain.JobExecution{}, domain.ErrNotFound
	}
	return exec, nil
}

func (m *memStore) ListExecutions(_ context.Context, _ ports.ExecutionFilter) ([]domain.JobExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.JobExecution, 0, len(m.executions))
	for _, e := range m.executions {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) ExistingKeys(_ context.Context, tenantID string, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, k := range keys {
		if _, ok := m.records[tenantID+"/"+k]; ok {
			out[k] = true
		}
	}
	return out, nil
}

func (m *memStore) InsertRecord(_ context.Context, r domain.ProcessedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.TenantID + "/" + r.DedupeKey
	if _, ok := m.records[key]; ok {
		return domain.ErrDuplicate
	}
	m.records[key] = r
	return nil
}

func (m *memStore) ListRecords(_ context.Context, tenantID string, _ int) ([]domain.ProcessedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProcessedRecord
	for _, r := range m.records {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CountRecords(ctx context.Context, tenantID string) (int64, error) {
	records, _ := m.ListRecords(ctx, tenantID, 0)
	return int64(len(records)), nil
}

func (m *memStore) execution(id string) domain.JobExecution {
	exec, _ := m.GetExecution(context.Background(), id)
	return exec
}

type staticProvider struct {
	name  string
	items []domain.ContentItem
	err   error
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) FetchItems(context.Context) ([]domain.ContentItem, error) {
	return p.items, p.err
}

// scriptedEnricher fails for texts listed in failOn and runs onCall first.
type scriptedEnricher struct {
	mu     sync.Mutex
	failOn map[string]error
	onCall func(ctx context.Context, text string) error
	calls  int
}

func (e *scriptedEnricher) ClassifySummarize(ctx context.Context, text string, _ []string) (domain.Enrichment, error) {
	e.mu.Lock()
	e.calls++
	onCall := e.onCall
	err := e.failOn[text]
	e.mu.Unlock()

	if onCall != nil {
		if cbErr := onCall(ctx, text); cbErr != nil {
			return domain.Enrichment{}, cbErr
		}
	}
	if err != nil {
		return domain.Enrichment{}, err
	}
	return domain.Enrichment{ShortSummary: "summary of " + text, Sentiment: domain.SentimentNeutral, Topic: "news"}, nil
}

func (e *scriptedEnricher) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type staticTenants map[string]ports.TenantSettings

func (t staticTenants) Tenant(_ context.Context, id string) (ports.TenantSettings, error) {
	s, ok := t[id]
	if !ok {
		return ports.TenantSettings{}, domain.ErrNotFound
	}
	return s, nil
}

type fixedPlanner struct {
	next time.Time
}

func (p fixedPlanner) Next(string, time.Time) (time.Time, error) {
	return p.next, nil
}

type harness struct {
	store    *memStore
	registry *provider.Registry
	enricher *scriptedEnricher
	events   *eventLog
	orch     *Orchestrator
	finished chan domain.JobExecution
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (l *eventLog) add(e domain.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) stages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Stage)
	}
	return out
}

var nextRunAt = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

// blockingProvider returns only once its fetch context is done.
type blockingProvider struct {
	name string
}

func (p blockingProvider) Name() string { return p.name }

func (p blockingProvider) FetchItems(ctx context.Context) ([]domain.ContentItem, error) {
	<-ctx.Done()
	return []domain.ContentItem{}, ctx.Err()
}

func newHarness(providers ...provider.Provider) *harness {
	return newHarnessWithConfig(config.OrchestratorConfig{}, providers...)
}

func newHarnessWithConfig(cfg config.OrchestratorConfig, providers ...provider.Provider) *harness {
	h := &harness{
		store:    newMemStore(),
		registry: provider.NewRegistry(),
		enricher: &scriptedEnricher{failOn: map[string]error{}},
		events:   &eventLog{},
		finished: make(chan domain.JobExecution, 8),
	}

	tenant := ports.TenantSettings{TenantID: "acme", Brands: []string{"Acme"}, Providers: map[string]ports.ProviderSettings{}}
	for _, p := range providers {
		p := p
		h.registry.Register(provider.Kind(p.Name()), func(ports.ProviderSettings) (provider.Provider, error) {
			return p, nil
		})
		tenant.Providers[p.Name()] = ports.ProviderSettings{Enabled: true}
	}

	h.orch = NewOrchestrator(OrchestratorDeps{
		Registry:   h.registry,
		Processors: processor.NewFactory(nil),
		Tenants:    staticTenants{"acme": tenant},
		Jobs:       h.store,
		Executions: h.store,
		Records:    h.store,
		Enricher:   h.enricher,
		Planner:    fixedPlanner{next: nextRunAt},
		Progress:   h.events.add,
		Config:     cfg,
		OnFinish: []ports.ExecutionHook{func(_ context.Context, exec domain.JobExecution) {
			h.finished <- exec
		}},
	})
	return h
}

func item(title, link string) domain.ContentItem {
	return domain.ContentItem{Title: title, Link: link, RawSummary: title + " body", Source: "test"}
}
