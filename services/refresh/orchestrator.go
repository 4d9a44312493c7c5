// Package refresh runs every configured adapter for an entity and keeps the
// stored records fresh on a schedule.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"cptracker-backend/lib/assert"
	"cptracker-backend/lib/handles"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers"
	"cptracker-backend/lib/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/refresh")

const (
	report_orchestrator_adapter_panic = "orchestrator.adapter-panic"
	report_orchestrator_fetch         = "orchestrator.fetch"
)

// Failure is one source that did not produce a profile.
type Failure struct {
	Source model.SourceKind
	Kind   model.ErrorKind
	Err    error
}

// ResultBundle is everything one orchestrator run produced for an entity.
type ResultBundle struct {
	Succeeded map[model.SourceKind]model.Profile
	// Failed is in model.Sources order.
	Failed []Failure
	// Skipped lists sources with no handle, they are neither a success nor
	// a failure.
	Skipped []model.SourceKind
	// Handles is the handle used per attempted source.
	Handles map[model.SourceKind]string
}

type Orchestrator struct {
	adapters []scrapers.Adapter
	tel      telemetry.API
}

func NewOrchestrator(adapters []scrapers.Adapter, tel telemetry.API) Orchestrator {
	assert.NotNil(tel, "telemetry")
	for _, a := range adapters {
		assert.NotNil(a, "adapter")
	}

	sorted := make([]scrapers.Adapter, 0, len(adapters))
	for _, source := range model.Sources {
		for _, a := range adapters {
			if a.Source() == source {
				sorted = append(sorted, a)
			}
		}
	}
	return Orchestrator{adapters: sorted, tel: tel}
}

// HandleFor picks the explicit handle for a source and falls back to
// resolving the stored profile url.
func HandleFor(entity model.Entity, source model.SourceKind) string {
	handle := entity.Handle(source)
	if handle != "" {
		return handle
	}
	return handles.Resolve(entity.ProfileURL(source), source)
}

type slot struct {
	profile model.Profile
	err     error
}

func (o Orchestrator) Run(ctx context.Context, entity model.Entity) ResultBundle {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("entity", entity.ID))

	bundle := ResultBundle{
		Succeeded: map[model.SourceKind]model.Profile{},
		Handles:   map[model.SourceKind]string{},
	}

	handleList := make([]string, len(o.adapters))
	for i, adapter := range o.adapters {
		source := adapter.Source()
		handle := HandleFor(entity, source)
		if handle == "" {
			bundle.Skipped = append(bundle.Skipped, source)
			continue
		}
		handleList[i] = handle
		bundle.Handles[source] = handle
	}

	slots := make([]slot, len(o.adapters))
	wg := sync.WaitGroup{}
	for i, adapter := range o.adapters {
		if handleList[i] == "" {
			continue
		}
		wg.Add(1)
		go func(i int, adapter scrapers.Adapter) {
			defer wg.Done()
			profile, err := o.fetch(ctx, entity.ID, adapter, handleList[i])
			slots[i] = slot{profile: profile, err: err}
		}(i, adapter)
	}
	wg.Wait()

	for i, adapter := range o.adapters {
		if handleList[i] == "" {
			continue
		}
		source := adapter.Source()
		res := slots[i]
		if res.err != nil {
			kind := model.Classify(res.err)
			bundle.Failed = append(bundle.Failed, Failure{
				Source: source,
				Kind:   kind,
				Err:    res.err,
			})
			slog.WarnContext(
				ctx, "source failed",
				"entity", entity.ID,
				"source", source,
				"handle", handleList[i],
				"kind", kind,
				"err", res.err,
			)
			continue
		}
		bundle.Succeeded[source] = res.profile
	}

	if len(bundle.Failed) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d sources failed", len(bundle.Failed)))
	}
	span.SetAttributes(
		attribute.Int("succeeded", len(bundle.Succeeded)),
		attribute.Int("failed", len(bundle.Failed)),
		attribute.Int("skipped", len(bundle.Skipped)),
	)
	return bundle
}

func (o Orchestrator) fetch(ctx context.Context, entityId string, adapter scrapers.Adapter, handle string) (profile model.Profile, err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		o.tel.ReportBroken(
			report_orchestrator_adapter_panic,
			"source", adapter.Source(),
			"entity", entityId,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		profile = model.Profile{}
		err = fmt.Errorf("%s adapter panicked: %v", adapter.Source(), recovered)
	}()

	profile, err = adapter.Fetch(ctx, handle)
	if err != nil {
		return model.Profile{}, err
	}
	if profile.Source != adapter.Source() {
		o.tel.ReportBroken(report_orchestrator_fetch, "source", adapter.Source(), "returned", profile.Source)
		return model.Profile{}, fmt.Errorf(
			"%s adapter returned a %s profile: %w",
			adapter.Source(), profile.Source, model.ErrParse,
		)
	}
	return profile, nil
}
