// Package notify mails a digest of failed sources after a refresh run.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"cptracker-backend/lib/model"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Config struct {
	Smtp SmtpConfig `json:"smtp"`
	To   []string   `json:"to"`
	// MinFailures is the number of failed sources a run needs before a
	// digest is sent, defaults to 1.
	MinFailures int `json:"min_failures"`
}

func (c Config) Enabled() bool {
	return c.Smtp.Server != "" && len(c.To) > 0
}

type FailureLine struct {
	EntityId string
	Source   model.SourceKind
	Kind     model.ErrorKind
	Message  string
}

// Digest summarizes one refresh run.
type Digest struct {
	RunId         string
	Trigger       string
	StartedAt     time.Time
	Duration      time.Duration
	Entities      int
	Succeeded     int
	Failed        int
	Skipped       int
	PersistErrors int
	Failures      []FailureLine
}

type Notifier interface {
	NotifyRun(ctx context.Context, digest Digest) error
}

// Noop is used when no smtp server is configured.
type Noop struct{}

func (Noop) NotifyRun(context.Context, Digest) error {
	return nil
}

type EmailNotifier struct {
	config Config
}

func NewEmailNotifier(config Config) EmailNotifier {
	if config.MinFailures <= 0 {
		config.MinFailures = 1
	}
	return EmailNotifier{config: config}
}

// New returns an EmailNotifier when smtp is configured and Noop otherwise.
func New(config Config) Notifier {
	if !config.Enabled() {
		return Noop{}
	}
	return NewEmailNotifier(config)
}

func RenderDigest(d Digest) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Refresh run %s (%s) started %s, took %s.\n\n", d.RunId, d.Trigger, d.StartedAt.Format(time.RFC1123), d.Duration.Round(time.Second))
	fmt.Fprintf(&out, "entities:       %d\n", d.Entities)
	fmt.Fprintf(&out, "succeeded:      %d\n", d.Succeeded)
	fmt.Fprintf(&out, "failed:         %d\n", d.Failed)
	fmt.Fprintf(&out, "skipped:        %d\n", d.Skipped)
	fmt.Fprintf(&out, "persist errors: %d\n", d.PersistErrors)

	if len(d.Failures) > 0 {
		out.WriteString("\nFailures:\n")
		for _, f := range d.Failures {
			fmt.Fprintf(&out, "- %s %s [%s] %s\n", f.EntityId, f.Source, f.Kind, f.Message)
		}
	}
	return out.String()
}

func (n EmailNotifier) NotifyRun(ctx context.Context, digest Digest) error {
	if len(digest.Failures) < n.config.MinFailures && digest.PersistErrors == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "NotifyRun")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("cptracker <%s>", n.config.Smtp.EmailAddress)
	mail.To = n.config.To
	mail.Subject = fmt.Sprintf("cptracker: %d failed sources in run %s", len(digest.Failures), digest.RunId)
	mail.Text = []byte(RenderDigest(digest))

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}
