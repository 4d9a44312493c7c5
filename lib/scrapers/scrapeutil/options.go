package scrapeutil

import (
	"context"
	"math"
	"time"

	"cptracker-backend/lib/chrono"
	"cptracker-backend/lib/configutil"
	"cptracker-backend/lib/restyutil"
	"cptracker-backend/lib/retry"
	"cptracker-backend/lib/telemetry"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// SourceConfig is the `sources.<kind>` block of the config file.
type SourceConfig struct {
	// Enabled is a pointer so an omitted key keeps the default (on).
	Enabled          *bool               `json:"enabled"`
	BaseUrl          string              `json:"base_url"`
	Timeout          configutil.Duration `json:"timeout"`
	Rps              float64             `json:"rps"`
	Attempts         int                 `json:"attempts"`
	Backoff          configutil.Duration `json:"backoff"`
	NotFoundTTL      configutil.Duration `json:"not_found_ttl"`
	CloudflareBypass bool                `json:"cloudflare_bypass"`
	// Render switches an HTML source to the headless browser, only
	// codechef honours it.
	Render bool `json:"render"`
}

func (c SourceConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Options is everything a source client needs, adapters fill in BaseUrl
// when the config leaves it empty.
type Options struct {
	BaseUrl          string
	Timeout          time.Duration
	Rps              float64
	Attempts         int
	Backoff          time.Duration
	NotFoundTTL      time.Duration
	CloudflareBypass bool
	UserAgent        string

	Time       chrono.TimeAPI
	Tel        telemetry.API
	Output     restyutil.InstrumentOutput
	RetrySleep func(ctx context.Context, d time.Duration) error
}

func (c SourceConfig) Options() Options {
	return Options{
		BaseUrl:          c.BaseUrl,
		Timeout:          c.Timeout.Duration,
		Rps:              c.Rps,
		Attempts:         c.Attempts,
		Backoff:          c.Backoff.Duration,
		NotFoundTTL:      c.NotFoundTTL.Duration,
		CloudflareBypass: c.CloudflareBypass,
	}
}

func (o Options) withDefaults(defaultBaseUrl string) Options {
	if o.BaseUrl == "" {
		o.BaseUrl = defaultBaseUrl
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Rps <= 0 {
		o.Rps = 2
	}
	if o.Attempts <= 0 {
		o.Attempts = retry.DefaultAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = retry.DefaultBackoff
	}
	if o.NotFoundTTL <= 0 {
		o.NotFoundTTL = 6 * time.Hour
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Time == nil {
		utc, _ := chrono.NewStandardTime("")
		o.Time = utc
	}
	if o.Tel == nil {
		o.Tel = telemetry.SlogAPI{}
	}
	return o
}

func (o Options) burst() int {
	return int(math.Max(1, math.Ceil(o.Rps)))
}
