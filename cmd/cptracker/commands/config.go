package commands

import (
	"errors"
	"fmt"

	"cptracker-backend/lib/browser"
	"cptracker-backend/lib/chrono"
	"cptracker-backend/lib/configutil"
	"cptracker-backend/lib/entitystore"
	"cptracker-backend/lib/model"
	"cptracker-backend/lib/notify"
	"cptracker-backend/lib/scrapers/scrapeutil"
	"cptracker-backend/services/ranking"
	"cptracker-backend/services/refresh"

	// schedule.timezone must load on hosts without zoneinfo
	_ "time/tzdata"
)

type ScheduleConfig struct {
	Cron            string              `json:"cron"`
	Timezone        string              `json:"timezone"`
	RefreshInterval configutil.Duration `json:"refresh_interval"`
	Pacing          configutil.Duration `json:"pacing"`
	EntityTimeout   configutil.Duration `json:"entity_timeout"`
}

func (c ScheduleConfig) Refresh() refresh.Config {
	return refresh.Config{
		Cron:            c.Cron,
		RefreshInterval: c.RefreshInterval.Or(refresh.DefaultRefreshInterval),
		Pacing:          c.Pacing.Or(refresh.DefaultPacing),
		EntityTimeout:   c.EntityTimeout.Or(refresh.DefaultEntityTimeout),
	}
}

type BrowserConfig struct {
	ExecPath string `json:"exec_path"`
	// Headless is a pointer so that an explicit false survives merging
	// with the defaults.
	Headless  *bool               `json:"headless"`
	Timeout   configutil.Duration `json:"timeout"`
	UserAgent string              `json:"user_agent"`
}

func (c BrowserConfig) Browser() browser.Config {
	return browser.Config{
		ExecPath:  c.ExecPath,
		Headless:  c.Headless == nil || *c.Headless,
		Timeout:   c.Timeout.Duration,
		UserAgent: c.UserAgent,
	}
}

type AdminConfig struct {
	// Addr is the listen address of the admin endpoints in `serve`, empty
	// disables them.
	Addr string `json:"addr"`
}

type Config struct {
	Store    entitystore.Config                           `json:"store"`
	Schedule ScheduleConfig                               `json:"schedule"`
	Sources  map[model.SourceKind]scrapeutil.SourceConfig `json:"sources"`
	Browser  BrowserConfig                                `json:"browser"`
	Weights  ranking.Config                               `json:"weights"`
	Notify   notify.Config                                `json:"notify"`
	Admin    AdminConfig                                  `json:"admin"`
	// DumpDir receives resty request/response dumps when running with -v.
	DumpDir string `json:"dump_dir"`
}

func defaultConfig() Config {
	return Config{
		Store: entitystore.Config{
			Driver:        entitystore.DriverSqlite,
			File:          "<dev_state>/cptracker.db",
			ErrorLogLimit: entitystore.DefaultErrorLogLimit,
		},
		Schedule: ScheduleConfig{
			Cron: refresh.DefaultCron,
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:9470",
		},
		DumpDir: "<dev_state>/resty",
	}
}

func (c *Config) Validate() error {
	var errs []error

	err := c.Store.Validate()
	if err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	err = chrono.ValidateSpec(c.Schedule.Cron)
	if err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}
	_, err = chrono.NewStandardTime(c.Schedule.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}

	for source := range c.Sources {
		if !source.Valid() {
			errs = append(errs, fmt.Errorf("sources: %w", unknownSource(string(source))))
		}
	}

	err = c.Weights.Validate()
	if err != nil {
		errs = append(errs, fmt.Errorf("weights: %w", err))
	}

	if c.Notify.Smtp.Server != "" && len(c.Notify.To) == 0 {
		errs = append(errs, fmt.Errorf("notify: smtp server is set but there are no recipients"))
	}
	return errors.Join(errs...)
}

func readConfig(path string) (Config, error) {
	config, err := configutil.ReadConfig(path, defaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("read config '%s': %w", path, err)
	}
	return config, nil
}
