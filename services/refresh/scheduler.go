package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cptracker-backend/lib/assert"
	"cptracker-backend/lib/chrono"
	"cptracker-backend/lib/entitystore"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/notify"
	"cptracker-backend/lib/retry"
	"cptracker-backend/lib/telemetry"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_scheduler_run     = "scheduler.run"
	report_scheduler_skipped = "scheduler.skipped"
	report_scheduler_persist = "scheduler.persist"
	report_scheduler_notify  = "scheduler.notify"
	report_scheduler_due     = "scheduler.due-entities"
)

const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

const (
	DefaultCron            = "@hourly"
	DefaultRefreshInterval = time.Hour
	DefaultPacing          = 5 * time.Second
	DefaultEntityTimeout   = 2 * time.Minute

	persistTimeout = 30 * time.Second
)

// ErrRunActive is returned when a run is requested while another one is
// still going.
var ErrRunActive = errors.New("skipped, previous run still active")

type Config struct {
	Cron string
	// RefreshInterval is how old a refresh must be before an entity is due.
	RefreshInterval time.Duration
	// Pacing is the pause between two entities.
	Pacing time.Duration
	// EntityTimeout bounds one entity's adapters, together with
	// persistTimeout it bounds how long shutdown waits for the in-flight
	// entity.
	EntityTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Cron == "" {
		c.Cron = DefaultCron
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.Pacing < 0 {
		c.Pacing = 0
	}
	if c.EntityTimeout <= 0 {
		c.EntityTimeout = DefaultEntityTimeout
	}
	return c
}

// RefreshRun is the state of one pass over the roster.
type RefreshRun struct {
	ID        string
	Trigger   string
	StartedAt time.Time

	// Entities is the number of due entities that were refreshed.
	Entities int
	// Skipped is the number of entities that were not due.
	Skipped int
	// Succeeded and Failed count sources across all entities.
	Succeeded     int
	Failed        int
	PersistErrors int
}

type RunSummary struct {
	RefreshRun
	FinishedAt time.Time
	Failures   []notify.FailureLine
}

func (s RunSummary) Digest() notify.Digest {
	return notify.Digest{
		RunId:         s.ID,
		Trigger:       s.Trigger,
		StartedAt:     s.StartedAt,
		Duration:      s.FinishedAt.Sub(s.StartedAt),
		Entities:      s.Entities,
		Succeeded:     s.Succeeded,
		Failed:        s.Failed,
		Skipped:       s.Skipped,
		PersistErrors: s.PersistErrors,
		Failures:      s.Failures,
	}
}

type runState struct {
	mutex  sync.Mutex
	active bool
	// idle is closed when the active run finishes.
	idle chan struct{}
}

func (r *runState) tryStart() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.active {
		return false
	}
	r.active = true
	r.idle = make(chan struct{})
	return true
}

func (r *runState) finish() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.active {
		return
	}
	r.active = false
	close(r.idle)
}

// wait returns a channel that is closed once no run is active.
func (r *runState) wait() <-chan struct{} {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.active {
		done := make(chan struct{})
		close(done)
		return done
	}
	return r.idle
}

func (r *runState) isActive() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.active
}

type Options struct {
	Config       Config
	Store        entitystore.Store
	Orchestrator Orchestrator
	Time         chrono.TimeAPI
	Tel          telemetry.API
	// Cron is only needed by Start.
	Cron chrono.CronAPI
	// Notifier defaults to notify.Noop.
	Notifier notify.Notifier
	// Registerer defaults to a private registry.
	Registerer prometheus.Registerer
	// Sleep is the pacing wait, it defaults to retry.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Scheduler struct {
	config   Config
	store    entitystore.Store
	orch     Orchestrator
	time     chrono.TimeAPI
	tel      telemetry.API
	cron     chrono.CronAPI
	notifier notify.Notifier
	metrics  metrics
	sleep    func(ctx context.Context, d time.Duration) error

	state runState

	lifetimeMutex sync.Mutex
	lifetime      context.Context
	cancel        context.CancelFunc
}

func NewScheduler(opts Options) *Scheduler {
	assert.NotNil(opts.Store, "store")
	assert.NotNil(opts.Time, "time")
	assert.NotNil(opts.Tel, "telemetry")

	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}

	return &Scheduler{
		config:   opts.Config.withDefaults(),
		store:    opts.Store,
		orch:     opts.Orchestrator,
		time:     opts.Time,
		tel:      opts.Tel,
		cron:     opts.Cron,
		notifier: opts.Notifier,
		metrics:  newMetrics(opts.Registerer),
		sleep:    opts.Sleep,
	}
}

// Start registers the timer. Runs started by the timer or by Trigger use
// ctx, cancelling it stops a run before its next entity.
func (s *Scheduler) Start(ctx context.Context) error {
	assert.NotNil(s.cron, "cron")

	s.lifetimeMutex.Lock()
	s.lifetime, s.cancel = context.WithCancel(ctx)
	s.lifetimeMutex.Unlock()

	err := s.cron.Cron(s.config.Cron, func() {
		s.fire(TriggerTimer)
	})
	if err != nil {
		return fmt.Errorf("register refresh timer '%s': %w", s.config.Cron, err)
	}
	s.cron.Start()

	slog.InfoContext(
		ctx, "refresh scheduler started",
		"cron", s.config.Cron,
		"timezone", s.time.Location().String(),
		"refresh_interval", s.config.RefreshInterval,
		"pacing", s.config.Pacing,
	)
	return nil
}

func (s *Scheduler) lifetimeContext(fallback context.Context) context.Context {
	s.lifetimeMutex.Lock()
	defer s.lifetimeMutex.Unlock()
	if s.lifetime != nil {
		return s.lifetime
	}
	return fallback
}

func (s *Scheduler) refuse(trigger string) {
	s.metrics.refused.WithLabelValues(trigger).Inc()
	s.tel.ReportWarning(report_scheduler_skipped, "reason", ErrRunActive.Error(), "trigger", trigger)
}

func (s *Scheduler) fire(trigger string) {
	if !s.state.tryStart() {
		s.refuse(trigger)
		return
	}
	defer s.state.finish()
	_, _ = s.run(s.lifetimeContext(context.Background()), trigger)
}

// Trigger starts a run in the background and returns false when one is
// already active. The run is bound to the context given to Start, before
// Start it only inherits ctx's values.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.state.tryStart() {
		s.refuse(TriggerManual)
		return false
	}
	runCtx := s.lifetimeContext(context.WithoutCancel(ctx))
	go func() {
		defer s.state.finish()
		_, _ = s.run(runCtx, TriggerManual)
	}()
	return true
}

// RunNow runs synchronously on ctx.
func (s *Scheduler) RunNow(ctx context.Context) (RunSummary, error) {
	if !s.state.tryStart() {
		s.refuse(TriggerManual)
		return RunSummary{}, ErrRunActive
	}
	defer s.state.finish()
	return s.run(ctx, TriggerManual)
}

// RefreshEntity refreshes one entity whether or not it is due.
func (s *Scheduler) RefreshEntity(ctx context.Context, id string) (RunSummary, error) {
	if !s.state.tryStart() {
		s.refuse(TriggerManual)
		return RunSummary{}, ErrRunActive
	}
	defer s.state.finish()

	entity, err := s.store.FindByKey(ctx, id)
	if err != nil {
		return RunSummary{}, err
	}

	summary := s.newRun(TriggerManual)
	s.refreshOne(ctx, entity, &summary)
	summary.FinishedAt = s.time.Now()
	s.finishRun(ctx, summary)
	return summary, nil
}

func (s *Scheduler) Active() bool {
	return s.state.isActive()
}

// Stop stops the timer, cancels the lifetime context and waits for the
// active run to wind down or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	var cronDone context.Context
	if s.cron != nil {
		cronDone = s.cron.Stop()
	}

	s.lifetimeMutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.lifetimeMutex.Unlock()

	select {
	case <-s.state.wait():
	case <-ctx.Done():
		return fmt.Errorf("waiting for active refresh run: %w", ctx.Err())
	}
	if cronDone != nil {
		select {
		case <-cronDone.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for refresh timer: %w", ctx.Err())
		}
	}
	return nil
}

func (s *Scheduler) newRun(trigger string) RunSummary {
	s.metrics.runs.WithLabelValues(trigger).Inc()
	s.metrics.active.Set(1)
	return RunSummary{
		RefreshRun: RefreshRun{
			ID:        uuid.NewString(),
			Trigger:   trigger,
			StartedAt: s.time.Now(),
		},
	}
}

func (s *Scheduler) finishRun(ctx context.Context, summary RunSummary) {
	s.metrics.active.Set(0)
	s.metrics.runDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	slog.InfoContext(
		ctx, "refresh run finished",
		"run", summary.ID,
		"trigger", summary.Trigger,
		"entities", summary.Entities,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"persist_errors", summary.PersistErrors,
	)

	// the digest goes out even when the run itself was cancelled
	err := s.notifier.NotifyRun(context.WithoutCancel(ctx), summary.Digest())
	if err != nil {
		s.tel.ReportWarning(report_scheduler_notify, "run", summary.ID, "err", err)
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) (RunSummary, error) {
	ctx, span := tracer.Start(ctx, "RefreshRun")
	defer span.End()

	summary := s.newRun(trigger)
	span.SetAttributes(
		attribute.String("run", summary.ID),
		attribute.String("trigger", trigger),
	)

	entities, err := s.store.List(ctx)
	if err != nil {
		s.metrics.active.Set(0)
		s.tel.ReportBroken(report_scheduler_run, "run", summary.ID, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, fmt.Errorf("list entities: %w", err)
	}

	now := s.time.Now()
	var due []model.Entity
	for _, entity := range entities {
		if !entity.Stale(now, s.config.RefreshInterval) {
			summary.Skipped++
			continue
		}
		due = append(due, entity)
	}
	s.tel.ReportCount(report_scheduler_due, int64(len(due)))

	for i, entity := range due {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			err := s.sleep(ctx, s.config.Pacing)
			if err != nil {
				break
			}
		}
		s.refreshOne(ctx, entity, &summary)
	}

	if ctx.Err() != nil {
		slog.WarnContext(
			ctx, "refresh run stopped early",
			"run", summary.ID,
			"refreshed", summary.Entities,
			"due", len(due),
		)
	}

	summary.FinishedAt = s.time.Now()
	s.finishRun(ctx, summary)
	return summary, nil
}

// refreshOne runs the orchestrator and writes its bundle. Both run on a
// context detached from ctx's cancellation so that the write is either
// whole or absent, timeouts bound them instead.
func (s *Scheduler) refreshOne(ctx context.Context, entity model.Entity, summary *RunSummary) {
	detached := context.WithoutCancel(ctx)

	fetchCtx, cancelFetch := context.WithTimeout(detached, s.config.EntityTimeout)
	bundle := s.orch.Run(fetchCtx, entity)
	cancelFetch()
	refreshedAt := s.time.Now()

	refresh := entitystore.Refresh{
		Profiles:    bundle.Succeeded,
		RefreshedAt: refreshedAt,
	}
	for _, failure := range bundle.Failed {
		refresh.Failures = append(refresh.Failures, model.ErrorLogEntry{
			Source:  failure.Source,
			Kind:    failure.Kind,
			Message: failure.Err.Error(),
			Time:    refreshedAt,
		})
		summary.Failures = append(summary.Failures, notify.FailureLine{
			EntityId: entity.ID,
			Source:   failure.Source,
			Kind:     failure.Kind,
			Message:  failure.Err.Error(),
		})
		s.metrics.sources.WithLabelValues(string(failure.Source), string(failure.Kind)).Inc()
	}
	for source := range bundle.Succeeded {
		s.metrics.sources.WithLabelValues(string(source), "ok").Inc()
	}

	summary.Entities++
	summary.Succeeded += len(bundle.Succeeded)
	summary.Failed += len(bundle.Failed)
	s.metrics.entities.Inc()

	writeCtx, cancelWrite := context.WithTimeout(detached, persistTimeout)
	defer cancelWrite()
	err := s.store.ApplyRefresh(writeCtx, entity.ID, refresh)
	if err != nil {
		summary.PersistErrors++
		s.metrics.persistErrors.Inc()
		s.tel.ReportBroken(report_scheduler_persist, "entity", entity.ID, "err", err)
		return
	}

	slog.DebugContext(
		ctx, "entity refreshed",
		"entity", entity.ID,
		"succeeded", len(bundle.Succeeded),
		"failed", len(bundle.Failed),
		"skipped", bundle.Skipped,
	)
}
