package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"MediaMonitor/internal/config"
	"MediaMonitor/internal/domain"
	"MediaMonitor/internal/ports"
	"MediaMonitor/internal/processor"
	"MediaMonitor/internal/provider"
)

// Progress stages emitted during a run.
const (
	StageStarting   = "starting"
	StageFetching   = "fetching"
	StageProcessing = "processing"
	StageFinalizing = "finalizing"
	StageCompleted  = "completed"
)

const (
	defaultProviderWorkers = 4
	defaultProviderTimeout = 2 * time.Minute
	finalizeTimeout        = 15 * time.Second

	// JobConfigProviders is the job config key listing provider names.
	JobConfigProviders = "providers"
)

// OrchestratorDeps wires all driven adapters into the run state machine.
type OrchestratorDeps struct {
	Registry   *provider.Registry
	Processors *processor.Factory
	Tenants    ports.TenantDirectory
	Jobs       ports.JobStore
	Executions ports.ExecutionStore
	Records    ports.RecordStore
	Enricher   ports.Enricher
	Planner    ports.Planner
	Progress   ports.ProgressFunc
	OnStart    []ports.ExecutionHook
	OnFinish   []ports.ExecutionHook
	Config     config.OrchestratorConfig
	Logger     *slog.Logger
	Now        func() time.Time
}

// RunRequest describes one run. An empty JobID makes it ad-hoc.
type RunRequest struct {
	TenantID  string
	JobID     string
	Providers []string
	Trigger   domain.TriggerKind
}

// AdHocSpec is an on-demand run not tied to a scheduled job. Empty Providers
// selects every provider enabled for the tenant.
type AdHocSpec struct {
	TenantID  string
	Providers []string
}

// Orchestrator drives runs from provider fetch to a terminal execution record.
type Orchestrator struct {
	registry   *provider.Registry
	processors *processor.Factory
	tenants    ports.TenantDirectory
	jobs       ports.JobStore
	executions ports.ExecutionStore
	records    ports.RecordStore
	enricher   ports.Enricher
	planner    ports.Planner
	progress   ports.ProgressFunc
	onStart    []ports.ExecutionHook
	onFinish   []ports.ExecutionHook
	cfg        config.OrchestratorConfig
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	active map[string]activeRun
	wg     sync.WaitGroup
}

type activeRun struct {
	cancel context.CancelFunc
	jobID  string
}

// runPlan is everything resolved before the execution row exists.
type runPlan struct {
	tenant    ports.TenantSettings
	job       *domain.ScheduledJob
	trigger   domain.TriggerKind
	providers []plannedProvider
}

type plannedProvider struct {
	name      string
	settings  ports.ProviderSettings
	processor processor.Processor
}

type fetchedItem struct {
	provider plannedProvider
	item     domain.ContentItem
}

// runState is mutated only by the run that owns it.
type runState struct {
	exec      domain.JobExecution
	log       *executionLog
	failures  int
	firstErr  error
	cancelled bool
}

func (s *runState) fail(err error) {
	s.failures++
	if s.firstErr == nil {
		s.firstErr = err
	}
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := deps.Config
	if cfg.ProviderWorkers <= 0 {
		cfg.ProviderWorkers = defaultProviderWorkers
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}

	enricher := deps.Enricher
	if enricher != nil && cfg.AIRatePerSecond > 0 {
		enricher = NewRateLimitedEnricher(enricher, cfg.AIRatePerSecond, cfg.AIBurst)
	}

	return &Orchestrator{
		registry:   deps.Registry,
		processors: deps.Processors,
		tenants:    deps.Tenants,
		jobs:       deps.Jobs,
		executions: deps.Executions,
		records:    deps.Records,
		enricher:   enricher,
		planner:    deps.Planner,
		progress:   deps.Progress,
		onStart:    deps.OnStart,
		onFinish:   deps.OnFinish,
		cfg:        cfg,
		logger:     logger,
		now:        now,
		active:     make(map[string]activeRun),
	}
}

// Execute runs synchronously and returns the terminal execution. Only
// configuration and bookkeeping errors are returned; fetch and processing
// failures are reflected in the execution itself.
func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) (domain.JobExecution, error) {
	plan, err := o.prepare(ctx, req)
	if err != nil {
		return domain.JobExecution{}, err
	}

	runCtx, exec, err := o.begin(ctx, plan)
	if err != nil {
		return domain.JobExecution{}, err
	}

	return o.run(runCtx, plan, exec), nil
}

// Start validates req, creates the execution and continues in the background.
func (o *Orchestrator) Start(ctx context.Context, req RunRequest) (string, error) {
	plan, err := o.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	runCtx, exec, err := o.begin(context.WithoutCancel(ctx), plan)
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, plan, exec)
	}()

	return exec.ID, nil
}

// RunJob triggers a scheduled job on demand and returns the execution ID.
func (o *Orchestrator) RunJob(ctx context.Context, tenantID, jobID string) (string, error) {
	return o.Start(ctx, RunRequest{TenantID: tenantID, JobID: jobID, Trigger: domain.TriggerManual})
}

// RunAdHoc starts a run that is not tied to a scheduled job.
func (o *Orchestrator) RunAdHoc(ctx context.Context, req AdHocSpec) (string, error) {
	return o.Start(ctx, RunRequest{TenantID: req.TenantID, Providers: req.Providers, Trigger: domain.TriggerManual})
}

// Cancel stops a live run between items. It reports whether the run was found.
func (o *Orchestrator) Cancel(executionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.active[executionID]
	if ok {
		run.cancel()
	}
	return ok
}

// JobActive reports whether a run of jobID is in flight.
func (o *Orchestrator) JobActive(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, run := range o.active {
		if run.jobID == jobID {
			return true
		}
	}
	return false
}

// ActiveExecutions lists IDs of runs in flight.
func (o *Orchestrator) ActiveExecutions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Wait blocks until background runs finish or ctx expires.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepare resolves tenant, job and providers. Nothing is persisted.
func (o *Orchestrator) prepare(ctx context.Context, req RunRequest) (runPlan, error) {
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}
	plan := runPlan{trigger: req.Trigger}

	requested := req.Providers
	if req.JobID != "" {
		job, err := o.jobs.GetJob(ctx, req.JobID)
		if err != nil {
			return runPlan{}, fmt.Errorf("load job: %w", err)
		}
		if req.TenantID != "" && job.TenantID != req.TenantID {
			return runPlan{}, fmt.Errorf("job %s for tenant %s: %w", job.ID, req.TenantID, domain.ErrNotFound)
		}
		if !job.Enabled {
			return runPlan{}, fmt.Errorf("job %s: %w", job.ID, domain.ErrJobDisabled)
		}
		if job.JobType != domain.JobTypeFetchContent {
			return runPlan{}, fmt.Errorf("job %s type %s: %w", job.ID, job.JobType, domain.ErrUnsupportedJobType)
		}
		req.TenantID = job.TenantID
		requested = stringList(job.Config[JobConfigProviders])
		plan.job = &job
	}

	tenant, err := o.tenants.Tenant(ctx, req.TenantID)
	if err != nil {
		return runPlan{}, fmt.Errorf("resolve tenant: %w", err)
	}
	plan.tenant = tenant

	providers, err := o.resolveProviders(tenant, requested)
	if err != nil {
		return runPlan{}, err
	}
	plan.providers = providers
	return plan, nil
}

// resolveProviders validates explicit names strictly. Without explicit names
// every provider enabled for the tenant and available at runtime is used.
func (o *Orchestrator) resolveProviders(tenant ports.TenantSettings, requested []string) ([]plannedProvider, error) {
	explicit := len(requested) > 0
	names := requested
	if !explicit {
		for name, settings := range tenant.Providers {
			if settings.Enabled {
				names = append(names, name)
			}
		}
		sort.Strings(names)
	}

	procCfg := processor.Config{ItemTimeout: o.cfg.ItemTimeout, Logger: o.logger.With("component", "processor")}

	seen := make(map[string]struct{}, len(names))
	planned := make([]plannedProvider, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if !o.registry.Has(name) {
			if explicit {
				return nil, &domain.UnknownProviderError{Name: name}
			}
			o.logger.Debug("provider unavailable, skipping", "tenant_id", tenant.TenantID, "provider", name)
			continue
		}

		proc, err := o.processors.Create(name, o.enricher, tenant.Brands, procCfg)
		if err != nil {
			return nil, err
		}

		settings, ok := tenant.Providers[name]
		if explicit && ok && !settings.Enabled {
			o.logger.Info("provider disabled for tenant, skipping", "tenant_id", tenant.TenantID, "provider", name)
			continue
		}
		if !ok {
			settings = ports.ProviderSettings{Enabled: true, Queries: tenant.Brands}
		}

		planned = append(planned, plannedProvider{name: name, settings: settings, processor: proc})
	}

	if len(planned) == 0 {
		return nil, fmt.Errorf("tenant %s: %w", tenant.TenantID, domain.ErrNoProviders)
	}
	return planned, nil
}

// begin performs PENDING -> RUNNING: it creates the execution row and marks
// the owning job running.
func (o *Orchestrator) begin(ctx context.Context, plan runPlan) (context.Context, domain.JobExecution, error) {
	exec := domain.JobExecution{
		ID:        uuid.NewString(),
		TenantID:  plan.tenant.TenantID,
		Trigger:   plan.trigger,
		StartedAt: o.now(),
		Status:    domain.ExecutionRunning,
	}
	if plan.job != nil {
		jobID := plan.job.ID
		exec.JobID = &jobID
	}

	if err := o.executions.CreateExecution(ctx, exec); err != nil {
		return nil, domain.JobExecution{}, fmt.Errorf("create execution: %w", err)
	}

	if plan.job != nil {
		if err := o.jobs.MarkJobRunning(ctx, plan.job.ID); err != nil {
			o.logger.Warn("mark job running failed", "job_id", plan.job.ID, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.active[exec.ID] = activeRun{cancel: cancel, jobID: derefString(exec.JobID)}
	o.mu.Unlock()

	o.runHooks(ctx, o.onStart, exec)
	return runCtx, exec, nil
}

func (o *Orchestrator) run(ctx context.Context, plan runPlan, exec domain.JobExecution) domain.JobExecution {
	logger := o.logger.With("execution_id", exec.ID, "tenant_id", exec.TenantID)
	state := &runState{exec: exec, log: newExecutionLog(o.now)}

	state.log.Printf("INFO", "run started for tenant %s with providers %v", exec.TenantID, providerNames(plan.providers))
	o.emit(exec.ID, StageStarting, "run started", 0, 0, 0)

	items := o.fetchAll(ctx, plan, state, logger)
	o.processAll(ctx, plan, items, state, logger)

	return o.finalize(ctx, plan, state, logger)
}

// fetchAll fetches every provider with a bounded worker pool. Results keep
// the provider order of the plan.
func (o *Orchestrator) fetchAll(ctx context.Context, plan runPlan, state *runState, logger *slog.Logger) []fetchedItem {
	type result struct {
		items []domain.ContentItem
		err   error
		fatal bool
	}

	results := make([]result, len(plan.providers))
	var done int
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.ProviderWorkers)
	for i, pp := range plan.providers {
		i, pp := i, pp
		g.Go(func() error {
			o.emit(state.exec.ID, StageFetching, "fetching "+pp.name, 0, 0, 0)

			fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
			defer cancel()

			p, err := o.registry.Create(pp.name, pp.settings)
			if err != nil {
				results[i] = result{err: err, fatal: true}
			} else {
				items, fetchErr := p.FetchItems(fetchCtx)
				results[i] = result{items: items, err: fetchErr, fatal: fetchErr != nil && len(items) == 0}
			}

			mu.Lock()
			done++
			progress := done * 10 / len(plan.providers)
			mu.Unlock()
			o.emit(state.exec.ID, StageFetching, "fetched "+pp.name, progress, 0, 0)
			return nil
		})
	}
	_ = g.Wait()

	var items []fetchedItem
	for i, pp := range plan.providers {
		r := results[i]
		switch {
		case r.fatal:
			err := &domain.ProviderFetchError{Provider: pp.name, Err: r.err}
			state.fail(err)
			state.log.Printf("ERROR", "%v", err)
			logger.Warn("provider fetch failed", "provider", pp.name, "error", r.err)
		case r.err != nil:
			state.log.Printf("WARN", "provider %s: some sources failed: %v", pp.name, r.err)
			logger.Warn("provider sources failed", "provider", pp.name, "error", r.err)
		}

		state.log.Printf("INFO", "provider %s returned %d items", pp.name, len(r.items))
		for _, item := range r.items {
			if item.ProviderName == "" {
				item.ProviderName = pp.name
			}
			items = append(items, fetchedItem{provider: pp, item: item})
		}
	}
	return items
}

// processAll dedupes, enriches and persists items. Cancellation is observed
// before each item.
func (o *Orchestrator) processAll(ctx context.Context, plan runPlan, items []fetchedItem, state *runState, logger *slog.Logger) {
	total := len(items)
	if total == 0 {
		return
	}

	keys := make([]string, total)
	for i, fi := range items {
		keys[i] = processor.DedupeKey(fi.item.Title, fi.item.Link)
	}

	existing, err := o.records.ExistingKeys(ctx, plan.tenant.TenantID, keys)
	if err != nil {
		logger.Warn("load existing keys failed, relying on insert conflicts", "error", err)
		existing = map[string]bool{}
	}
	seen := make(map[string]struct{}, total)

	for i, fi := range items {
		if ctx.Err() != nil {
			state.cancelled = true
			state.log.Printf("WARN", "run cancelled before item %d of %d", i+1, total)
			return
		}

		o.processOne(ctx, fi, keys[i], existing, seen, state, logger)
		if state.cancelled {
			return
		}

		o.emit(state.exec.ID, StageProcessing, fi.item.Title, 10+(i+1)*85/total, i+1, total)
	}
}

func (o *Orchestrator) processOne(ctx context.Context, fi fetchedItem, key string, existing map[string]bool, seen map[string]struct{}, state *runState, logger *slog.Logger) {
	if _, dup := seen[key]; dup || existing[key] {
		state.exec.ItemsSkipped++
		return
	}
	seen[key] = struct{}{}

	record, _, err := fi.provider.processor.ProcessItem(ctx, fi.item)
	if err != nil {
		if ctx.Err() != nil {
			state.cancelled = true
			state.log.Printf("WARN", "run cancelled while processing %q", fi.item.Title)
			return
		}
		state.fail(err)
		state.exec.ItemsFailed++
		state.log.Printf("ERROR", "%v", err)
		logger.Warn("process item failed", "provider", fi.provider.name, "title", fi.item.Title, "error", err)
		return
	}

	record.TenantID = state.exec.TenantID
	record.ExecutionID = state.exec.ID
	if record.DedupeKey == "" {
		record.DedupeKey = key
	}

	// Work already enriched is kept even if the run is cancelled meanwhile.
	err = o.records.InsertRecord(context.WithoutCancel(ctx), record)
	switch {
	case errors.Is(err, domain.ErrDuplicate):
		state.exec.ItemsSkipped++
	case err != nil:
		perr := &domain.ProcessingError{Provider: fi.provider.name, Title: fi.item.Title, Err: fmt.Errorf("persist: %w", err)}
		state.fail(perr)
		state.exec.ItemsFailed++
		state.log.Printf("ERROR", "%v", perr)
		logger.Error("persist record failed", "provider", fi.provider.name, "error", err)
	default:
		state.exec.ItemsProcessed++
	}
}

// finalize stamps the terminal state. It writes through a context detached
// from cancellation so the execution never stays running.
func (o *Orchestrator) finalize(ctx context.Context, plan runPlan, state *runState, logger *slog.Logger) domain.JobExecution {
	defer o.release(state.exec.ID)

	o.emit(state.exec.ID, StageFinalizing, "finalizing", 95, 0, 0)

	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	exec := state.exec
	exec.Status = domain.ResolveStatus(exec.ItemsProcessed, state.failures)
	if state.cancelled {
		exec.Status = domain.ExecutionFailed
		if exec.ItemsProcessed > 0 {
			exec.Status = domain.ExecutionPartial
		}
		if state.firstErr == nil {
			state.firstErr = domain.ErrCancelled
		}
	}
	if state.firstErr != nil {
		msg := state.firstErr.Error()
		exec.ErrorMessage = &msg
	}

	completed := o.now()
	exec.CompletedAt = &completed
	state.log.Printf("INFO", "run %s: processed=%d failed=%d skipped=%d", exec.Status, exec.ItemsProcessed, exec.ItemsFailed, exec.ItemsSkipped)
	exec.ExecutionLog = state.log.String()

	if err := o.executions.FinishExecution(finCtx, exec); err != nil {
		logger.Error("finish execution failed", "error", err)
	}

	if plan.job != nil {
		run := ports.JobRun{
			Status:    exec.Status.JobStatus(),
			LastError: exec.ErrorMessage,
			LastRun:   exec.StartedAt,
			NextRun:   o.nextRun(plan.job.ScheduleExpression, completed, logger),
		}
		if err := o.jobs.RecordJobRun(finCtx, plan.job.ID, run); err != nil {
			logger.Error("record job run failed", "job_id", plan.job.ID, "error", err)
		}
	}

	logger.Info("run finished",
		"status", exec.Status,
		"processed", exec.ItemsProcessed,
		"failed", exec.ItemsFailed,
		"skipped", exec.ItemsSkipped,
		"duration", completed.Sub(exec.StartedAt))

	o.emit(exec.ID, StageCompleted, string(exec.Status), 100, exec.ItemsProcessed, exec.ItemsProcessed+exec.ItemsFailed+exec.ItemsSkipped)
	o.runHooks(finCtx, o.onFinish, exec)
	return exec
}

func (o *Orchestrator) nextRun(expression string, from time.Time, logger *slog.Logger) *time.Time {
	if o.planner == nil || expression == "" {
		return nil
	}
	next, err := o.planner.Next(expression, from)
	if err != nil {
		logger.Warn("compute next run failed", "expression", expression, "error", err)
		return nil
	}
	next = next.UTC()
	return &next
}

func (o *Orchestrator) release(executionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if run, ok := o.active[executionID]; ok {
		run.cancel()
		delete(o.active, executionID)
	}
}

// emit delivers progress fire-and-forget; a panicking sink never fails the run.
func (o *Orchestrator) emit(executionID, stage, message string, progress, current, total int) {
	if o.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("progress callback panicked", "panic", fmt.Sprint(r))
		}
	}()

	o.progress(domain.ProgressEvent{
		ExecutionID: executionID,
		Stage:       stage,
		Message:     message,
		Progress:    min(max(progress, 0), 100),
		CurrentItem: current,
		TotalItems:  total,
	})
}

func (o *Orchestrator) runHooks(ctx context.Context, hooks []ports.ExecutionHook, exec domain.JobExecution) {
	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("execution hook panicked", "execution_id", exec.ID, "panic", fmt.Sprint(r))
				}
			}()
			hook(ctx, exec)
		}()
	}
}

// NotifyHook adapts a Notifier into an OnFinish hook.
func NotifyHook(n ports.Notifier, logger *slog.Logger) ports.ExecutionHook {
	return func(ctx context.Context, exec domain.JobExecution) {
		if err := n.NotifyExecution(ctx, exec); err != nil {
			logger.Warn("notify execution failed", "execution_id", exec.ID, "error", err)
		}
	}
}

func providerNames(planned []plannedProvider) []string {
	names := make([]string, len(planned))
	for i, p := range planned {
		names[i] = p.name
	}
	return names
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	default:
		return nil
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
