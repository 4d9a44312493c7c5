package scrapeutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/restyutil"
	"cptracker-backend/lib/retry"
	"cptracker-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("lib/scrapers")

const (
	report_client_fetch = "client.fetch"
)

// Client is the part every source adapter shares: a rate limited resty
// client, the retry policy and the not-found cache.
type Client struct {
	Http *resty.Client

	source   model.SourceKind
	options  Options
	policy   retry.Policy
	notFound *NotFoundCache
	tel      telemetry.API
}

func NewClient(source model.SourceKind, defaultBaseUrl string, opts Options) (*Client, error) {
	opts = opts.withDefaults(defaultBaseUrl)

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)

	// max burst >= rps just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(opts.Rps), opts.burst())
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	tel := telemetry.NewScopedAPI(string(source), opts.Tel)
	restyutil.InstrumentClient(httpClient, string(source), otel.Tracer(fmt.Sprintf("lib/scrapers/%s/http", source)), opts.Output)

	return &Client{
		Http:    httpClient,
		source:  source,
		options: opts,
		policy: retry.Policy{
			Attempts: opts.Attempts,
			Backoff:  opts.Backoff,
			Sleep:    opts.RetrySleep,
		},
		notFound: NewNotFoundCache(opts.NotFoundTTL),
		tel:      tel,
	}, nil
}

func (c *Client) Source() model.SourceKind {
	return c.source
}

func (c *Client) BaseUrl() string {
	return c.options.BaseUrl
}

func (c *Client) Tel() telemetry.API {
	return c.tel
}

// Fetch runs `fetch` for `handle` through the retry policy. Known-missing
// handles fail fast from the cache and fresh not-found results are
// remembered. LastUpdated is stamped when the attempt does not set it.
func (c *Client) Fetch(ctx context.Context, handle string, fetch func(ctx context.Context, handle string) (model.Profile, error)) (model.Profile, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("%s:Fetch", c.source))
	defer span.End()
	span.SetAttributes(attribute.String("handle", handle))

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return model.Profile{}, fmt.Errorf("%s: empty handle: %w", c.source, model.ErrNotFound)
	}
	if c.notFound.Has(handle) {
		span.SetAttributes(attribute.Bool("cached_not_found", true))
		return model.Profile{}, fmt.Errorf("%s: %s (cached): %w", c.source, handle, model.ErrNotFound)
	}

	profile, err := retry.Value(ctx, c.policy, func(ctx context.Context) (model.Profile, error) {
		return fetch(ctx, handle)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if errors.Is(err, model.ErrNotFound) {
			c.notFound.Add(handle)
		}
		if errors.Is(err, model.ErrParse) {
			c.tel.ReportBroken(report_client_fetch, "handle", handle, "err", err)
		}
		return model.Profile{}, fmt.Errorf("%s: %w", c.source, err)
	}

	profile.Source = c.source
	if profile.LastUpdated.IsZero() {
		profile.LastUpdated = c.options.Time.Now()
	}
	err = profile.Validate()
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, "handle", handle, "err", err)
		return model.Profile{}, fmt.Errorf("%s: %w: %w", c.source, model.ErrParse, err)
	}
	return profile, nil
}

// CheckResponse turns a resty result into a taxonomy error, nil means a
// 2xx response.
func CheckResponse(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request: %w: %w", model.ErrTransient, err)
	}
	return StatusError(res.StatusCode(), res.Request.URL)
}

func StatusError(status int, url string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("GET %s: status %d: %w", url, status, model.ErrNotFound)
	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status >= 500:
		return fmt.Errorf("GET %s: status %d: %w", url, status, model.ErrTransient)
	}
	return fmt.Errorf("GET %s: unexpected status %d", url, status)
}
