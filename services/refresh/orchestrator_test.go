package refresh

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers"
	"cptracker-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func TestOrchestratorIsolatesFailures(t *testing.T) {
	tel := telemetry.NewRecorder()
	panicky := &fakeAdapter{
		source: model.CodeChef,
		fetch: func(ctx context.Context, handle string) (model.Profile, error) {
			panic("nil map")
		},
	}
	atcoder := fail(model.AtCoder, fmt.Errorf("user ghost: %w", model.ErrNotFound))
	leetcode := fail(model.LeetCode, fmt.Errorf("graphql: %w", model.ErrTransient))
	codeforces := succeed(model.Codeforces, 1500, fetchedAt)
	gfg := succeed(model.Gfg, 0, fetchedAt)

	// registered out of order on purpose
	orch := NewOrchestrator([]scrapers.Adapter{gfg, atcoder, panicky, leetcode, codeforces}, tel)

	bundle := orch.Run(context.Background(), model.Entity{
		ID: "21CS001",
		Handles: map[model.SourceKind]string{
			model.Codeforces: "tourist",
			model.LeetCode:   "tourist",
			model.CodeChef:   "tourist",
		},
		ProfileURLs: map[model.SourceKind]string{
			model.AtCoder: "https://atcoder.jp/users/ghost",
		},
	})

	require.Len(t, bundle.Succeeded, 1)
	require.Equal(t, 1500, bundle.Succeeded[model.Codeforces].Rating)

	kinds := []model.ErrorKind{}
	sources := []model.SourceKind{}
	for _, f := range bundle.Failed {
		sources = append(sources, f.Source)
		kinds = append(kinds, f.Kind)
	}
	require.Equal(t, []model.SourceKind{model.LeetCode, model.CodeChef, model.AtCoder}, sources)
	require.Equal(t, []model.ErrorKind{model.KindTransient, model.KindUnknown, model.KindNotFound}, kinds)

	require.Equal(t, []model.SourceKind{model.Gfg}, bundle.Skipped)
	require.Zero(t, gfg.calls.Load())

	diff := cmp.Diff(map[model.SourceKind]string{
		model.Codeforces: "tourist",
		model.LeetCode:   "tourist",
		model.CodeChef:   "tourist",
		model.AtCoder:    "ghost",
	}, bundle.Handles)
	require.Empty(t, diff)

	require.Equal(t, []string{report_orchestrator_adapter_panic}, tel.BrokenIds())
}

func TestOrchestratorSkipsEntityWithoutHandles(t *testing.T) {
	codeforces := succeed(model.Codeforces, 1500, fetchedAt)
	orch := NewOrchestrator([]scrapers.Adapter{codeforces}, telemetry.NewRecorder())

	bundle := orch.Run(context.Background(), model.Entity{
		ID:      "21CS002",
		Handles: map[model.SourceKind]string{model.Codeforces: ""},
	})
	require.Empty(t, bundle.Succeeded)
	require.Empty(t, bundle.Failed)
	require.Equal(t, []model.SourceKind{model.Codeforces}, bundle.Skipped)
	require.Zero(t, codeforces.calls.Load())
}

func TestOrchestratorRunsAdaptersConcurrently(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	blocking := func(source model.SourceKind) *fakeAdapter {
		return &fakeAdapter{
			source: source,
			fetch: func(ctx context.Context, handle string) (model.Profile, error) {
				started <- struct{}{}
				<-release
				return model.Profile{Source: source, LastUpdated: fetchedAt}, nil
			},
		}
	}
	orch := NewOrchestrator([]scrapers.Adapter{
		blocking(model.Codeforces),
		blocking(model.AtCoder),
	}, telemetry.NewRecorder())

	done := make(chan ResultBundle)
	go func() {
		done <- orch.Run(context.Background(), model.Entity{
			ID: "21CS003",
			Handles: map[model.SourceKind]string{
				model.Codeforces: "a",
				model.AtCoder:    "b",
			},
		})
	}()

	// both adapters must be in flight before either returns
	<-started
	<-started
	close(release)

	bundle := <-done
	require.Len(t, bundle.Succeeded, 2)
}

func TestOrchestratorRejectsMismatchedProfile(t *testing.T) {
	liar := &fakeAdapter{
		source: model.AtCoder,
		fetch: func(ctx context.Context, handle string) (model.Profile, error) {
			return model.Profile{Source: model.Codeforces, LastUpdated: fetchedAt}, nil
		},
	}
	tel := telemetry.NewRecorder()
	orch := NewOrchestrator([]scrapers.Adapter{liar}, tel)

	bundle := orch.Run(context.Background(), model.Entity{
		ID:      "21CS004",
		Handles: map[model.SourceKind]string{model.AtCoder: "x"},
	})
	require.Len(t, bundle.Failed, 1)
	require.True(t, errors.Is(bundle.Failed[0].Err, model.ErrParse))
	require.Equal(t, []string{report_orchestrator_fetch}, tel.BrokenIds())
}
