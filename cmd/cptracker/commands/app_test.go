package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cptracker-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

func testTelemetry() telemetry.Telemetry {
	return telemetry.Telemetry{
		TracerProvider: trace.NewTracerProvider(),
		MeterProvider:  metric.NewMeterProvider(),
	}
}

func recording(tel telemetry.Telemetry) bool {
	_, span := tel.TracerProvider.Tracer("test").Start(context.Background(), "span")
	defer span.End()
	return span.IsRecording()
}

func TestNewAppShutsDownTelemetryOnError(t *testing.T) {
	ctx := context.Background()

	t.Run("bad timezone", func(t *testing.T) {
		config := defaultConfig()
		config.Schedule.Timezone = "Mars/Olympus"
		tel := testTelemetry()
		require.True(t, recording(tel))

		_, err := newApp(ctx, config, tel)
		require.Error(t, err)
		require.False(t, recording(tel))
	})

	t.Run("store does not open", func(t *testing.T) {
		config := defaultConfig()
		// the parent is a regular file so the database cannot be created
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, nil, 0600))
		config.Store.File = filepath.Join(blocker, "cptracker.db")
		tel := testTelemetry()

		_, err := newApp(ctx, config, tel)
		require.ErrorContains(t, err, "open store")
		require.False(t, recording(tel))
	})
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()
	config := defaultConfig()
	config.Store.File = filepath.Join(t.TempDir(), "cptracker.db")
	tel := testTelemetry()

	a, err := newApp(ctx, config, tel)
	require.NoError(t, err)
	require.True(t, recording(tel))
	require.NoError(t, a.Close(ctx))
}
