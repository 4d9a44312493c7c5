package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cptracker-backend/lib/chrono"
	"cptracker-backend/lib/entitystore"
	"cptracker-backend/lib/notify"
	"cptracker-backend/lib/restyutil"
	"cptracker-backend/lib/scrapers"
	"cptracker-backend/lib/scrapers/scrapeutil"
	"cptracker-backend/lib/telemetry"
	"cptracker-backend/services/ranking"
	"cptracker-backend/services/refresh"

	"github.com/prometheus/client_golang/prometheus"
)

// app is what every command needs, opened from the config file.
type app struct {
	config    Config
	telemetry telemetry.Telemetry
	time      chrono.StandardTime
	store     entitystore.Store
}

func openApp(ctx context.Context) (*app, error) {
	config, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.SetupFromEnv(ctx, "cptracker")
	if err != nil {
		return nil, err
	}
	return newApp(ctx, config, tel)
}

// newApp takes ownership of tel, it is shut down when anything after it
// fails to open.
func newApp(ctx context.Context, config Config, tel telemetry.Telemetry) (a *app, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, tel.Shutdown(ctx))
		}
	}()

	clock, err := chrono.NewStandardTime(config.Schedule.Timezone)
	if err != nil {
		return nil, err
	}
	store, err := entitystore.Open(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		config:    config,
		telemetry: tel,
		time:      clock,
		store:     store,
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(
		a.store.Close(),
		a.telemetry.Shutdown(ctx),
	)
}

func (a *app) adapters() ([]scrapers.Adapter, error) {
	shared := scrapeutil.Options{
		Time: a.time,
		Tel:  telemetry.NewScopedAPI("scrapers", telemetry.SlogAPI{}),
	}
	if verbose {
		output, err := restyutil.NewFilesystemOutput(a.config.DumpDir)
		if err != nil {
			slog.Warn("request dumps disabled", "dir", a.config.DumpDir, "err", err)
		} else {
			shared.Output = output
		}
	}
	return scrapers.Build(a.config.Sources, a.config.Browser.Browser(), shared)
}

func (a *app) scheduler(registerer prometheus.Registerer) (*refresh.Scheduler, error) {
	adapters, err := a.adapters()
	if err != nil {
		return nil, err
	}
	tel := telemetry.NewScopedAPI("refresh", telemetry.SlogAPI{})

	return refresh.NewScheduler(refresh.Options{
		Config:       a.config.Schedule.Refresh(),
		Store:        a.store,
		Orchestrator: refresh.NewOrchestrator(adapters, tel),
		Time:         a.time,
		Tel:          tel,
		Cron:         chrono.NewStandardCron(a.time, tel),
		Notifier:     notify.New(a.config.Notify),
		Registerer:   registerer,
	}), nil
}

func (a *app) ranking() ranking.Engine {
	return ranking.NewEngine(a.store, a.config.Weights)
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err := a.Close(context.WithoutCancel(ctx))
		if err != nil {
			slog.Warn("failed to close", "err", err)
		}
	}()
	return fn(a)
}
