package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorder()
	scoped := NewScopedAPI("scheduler", NewScopedAPI("refresh", recorder))

	scoped.ReportBroken("run", "boom")
	scoped.ReportWarning("tick", 1)
	scoped.ReportCount("entities", 3)

	require.Equal(t, []string{"refresh.scheduler.run"}, recorder.BrokenIds())
	require.Equal(t, []any{"boom"}, recorder.Broken()[0].Params)
	require.Equal(t, []string{"refresh.scheduler.tick"}, recorder.WarningIds())
	require.EqualValues(t, 3, recorder.Count("refresh.scheduler.entities"))
}

func TestSlogAPIAttributes(t *testing.T) {
	var out bytes.Buffer
	api := SlogAPI{Logger: slog.New(slog.NewTextHandler(&out, nil))}

	api.ReportWarning("scheduler.skipped", "trigger", "timer")
	require.Contains(t, out.String(), "id=scheduler.skipped trigger=timer")

	out.Reset()
	api.ReportBroken("scheduler.persist", errors.New("disk full"))
	require.Contains(t, out.String(), `params.0="disk full"`)
}
