package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cptracker-backend/lib/model"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/browser")

const DefaultTimeout = 45 * time.Second

type Config struct {
	// ExecPath is the chrome/chromium binary, empty lets chromedp search PATH.
	ExecPath  string
	Headless  bool
	Timeout   time.Duration
	UserAgent string
}

// Renderer produces the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// Launcher starts one disposable browser per session, nothing is shared
// between sessions so a crashed page never leaks into the next fetch.
type Launcher struct {
	config Config
	live   atomic.Int64
}

func NewLauncher(config Config) *Launcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Launcher{config: config}
}

// Live is the number of sessions acquired and not yet closed.
func (l *Launcher) Live() int64 {
	return l.live.Load()
}

type Session struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	launcher      *Launcher
	once          sync.Once
}

// Acquire launches a browser. The returned session must be closed, even
// when a later step fails.
func (l *Launcher) Acquire(ctx context.Context) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", l.config.Headless))
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}
	if l.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.config.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	session := &Session{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		launcher:      l,
	}
	l.live.Add(1)

	// the first Run starts the browser process
	err := chromedp.Run(browserCtx)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("launch browser: %w: %w", model.ErrResource, err)
	}
	return session, nil
}

// Close terminates the browser process, it is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = chromedp.Cancel(s.ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.cancelBrowser()
		s.cancelAlloc()
		s.launcher.live.Add(-1)
	})
	return err
}

// Render navigates to `url`, waits until `waitSelector` is visible and
// returns the outer HTML of the document.
func (s *Session) Render(url, waitSelector string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(
		ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w: %w", url, model.ErrTransient, err)
	}
	return html, nil
}

// Render acquires a session, renders a single page and releases the
// session on every path out, including cancellation.
func (l *Launcher) Render(ctx context.Context, url, waitSelector string) (string, error) {
	ctx, span := tracer.Start(ctx, "Render")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	session, err := l.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return "", err
	}
	defer func() {
		err := session.Close()
		if err != nil {
			slog.WarnContext(ctx, "failed to close browser session", "err", err)
		}
	}()

	html, err := session.Render(url, waitSelector, l.config.Timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render page")
		return "", err
	}
	return html, nil
}
