package refresh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cptracker-backend/lib/model"
)

type fakeAdapter struct {
	source model.SourceKind
	fetch  func(ctx context.Context, handle string) (model.Profile, error)
	calls  atomic.Int32
}

func (f *fakeAdapter) Source() model.SourceKind {
	return f.source
}

func (f *fakeAdapter) Fetch(ctx context.Context, handle string) (model.Profile, error) {
	f.calls.Add(1)
	return f.fetch(ctx, handle)
}

func succeed(source model.SourceKind, rating int, at time.Time) *fakeAdapter {
	return &fakeAdapter{
		source: source,
		fetch: func(ctx context.Context, handle string) (model.Profile, error) {
			return model.Profile{Source: source, Rating: rating, LastUpdated: at}, nil
		},
	}
}

func fail(source model.SourceKind, err error) *fakeAdapter {
	return &fakeAdapter{
		source: source,
		fetch: func(ctx context.Context, handle string) (model.Profile, error) {
			return model.Profile{}, err
		},
	}
}

// hang blocks until ctx is done, like a source that never answers.
func hang(source model.SourceKind) *fakeAdapter {
	return &fakeAdapter{
		source: source,
		fetch: func(ctx context.Context, handle string) (model.Profile, error) {
			<-ctx.Done()
			return model.Profile{}, fmt.Errorf("%s: %w: %w", handle, model.ErrTransient, ctx.Err())
		},
	}
}
