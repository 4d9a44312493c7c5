package chrono

import (
	"context"
	"fmt"

	"cptracker-backend/lib/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI is the interface that anything depending on things to happen on a cron job should use.
type CronAPI interface {
	Cron(spec string, callback func()) error
	Start()
	// Stop prevents further fires, the returned context is done once
	// running callbacks have returned.
	Stop() context.Context
}

// StandardCron is the standard implementation of CronAPI using `github.com/robfig/cron/v3`
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron(location TimeAPI, tel telemetry.API) StandardCron {
	cronner := cron.New(
		cron.WithLogger(cronLogger{tel: tel}),
		cron.WithLocation(location.Location()),
	)
	return StandardCron{cron: cronner}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

func (s StandardCron) Start() {
	s.cron.Start()
}

func (s StandardCron) Stop() context.Context {
	return s.cron.Stop()
}

// ValidateSpec reports whether `spec` is something StandardCron accepts.
func ValidateSpec(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

type cronLogger struct {
	tel telemetry.API
}

// robfig/cron already passes alternating keys and values
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(fmt.Sprintf("cron: %s", msg), keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{"err", fmt.Errorf("%s: %w", msg, err)}, keysAndValues...)
	l.tel.ReportBroken("cron", params...)
}
