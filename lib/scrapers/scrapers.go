// Package scrapers builds the per-source adapters that turn a handle into
// a normalized model.Profile.
package scrapers

import (
	"context"
	"fmt"

	"cptracker-backend/lib/browser"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers/atcoder"
	"cptracker-backend/lib/scrapers/codechef"
	"cptracker-backend/lib/scrapers/codeforces"
	"cptracker-backend/lib/scrapers/gfg"
	"cptracker-backend/lib/scrapers/leetcode"
	"cptracker-backend/lib/scrapers/scrapeutil"
)

// Adapter fetches one source. Fetch never panics past its boundary and
// every error it returns wraps one of the model.Err* sentinels.
type Adapter interface {
	Source() model.SourceKind
	Fetch(ctx context.Context, handle string) (model.Profile, error)
}

// Build creates an adapter for every enabled source, in model.Sources
// order. `shared` supplies the clock, telemetry and instrumentation output
// all adapters use. A browser launcher is only created when a source
// needs one.
func Build(sources map[model.SourceKind]scrapeutil.SourceConfig, browserConfig browser.Config, shared scrapeutil.Options) ([]Adapter, error) {
	var launcher *browser.Launcher
	getLauncher := func() *browser.Launcher {
		if launcher == nil {
			launcher = browser.NewLauncher(browserConfig)
		}
		return launcher
	}

	var adapters []Adapter
	for _, source := range model.Sources {
		config := sources[source]
		if !config.IsEnabled() {
			continue
		}

		opts := config.Options()
		opts.UserAgent = shared.UserAgent
		opts.Time = shared.Time
		opts.Tel = shared.Tel
		opts.Output = shared.Output
		opts.RetrySleep = shared.RetrySleep

		adapter, err := build(source, config, opts, getLauncher)
		if err != nil {
			return nil, fmt.Errorf("build %s adapter: %w", source, err)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func build(source model.SourceKind, config scrapeutil.SourceConfig, opts scrapeutil.Options, launcher func() *browser.Launcher) (Adapter, error) {
	switch source {
	case model.Codeforces:
		return codeforces.New(opts)
	case model.LeetCode:
		return leetcode.New(opts)
	case model.CodeChef:
		if config.Render {
			return codechef.New(opts, launcher())
		}
		return codechef.New(opts, nil)
	case model.AtCoder:
		return atcoder.New(opts)
	case model.Gfg:
		return gfg.New(opts, launcher())
	}
	return nil, fmt.Errorf("unknown source '%s'", source)
}

// ByKind indexes adapters by their source.
func ByKind(adapters []Adapter) map[model.SourceKind]Adapter {
	out := make(map[model.SourceKind]Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Source()] = a
	}
	return out
}
