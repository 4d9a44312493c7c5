package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cptracker-backend/lib/model"
	"cptracker-backend/lib/scrapers"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestAdminHandler(t *testing.T) {
	f := newFixture(t)
	f.create(t, model.Entity{
		ID:      "21CS010",
		Handles: map[model.SourceKind]string{model.Codeforces: "admin"},
	})

	codeforces := newBlocker(model.Codeforces)
	registry := prometheus.NewRegistry()
	s := NewScheduler(Options{
		Store:        f.store,
		Orchestrator: NewOrchestrator([]scrapers.Adapter{codeforces}, f.tel),
		Time:         f.time,
		Tel:          f.tel,
		Registerer:   registry,
	})

	server := httptest.NewServer(NewAdminHandler(s, registry))
	defer server.Close()
	client := resty.New().SetBaseURL(server.URL)

	res, err := client.R().Post("/refresh")
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, res.StatusCode())
	<-codeforces.entered

	res, err = client.R().Post("/refresh")
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, res.StatusCode())
	require.Contains(t, res.String(), "previous run still active")

	res, err = client.R().Get("/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Contains(t, res.String(), `"active":true`)

	close(codeforces.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	res, err = client.R().Get("/metrics")
	require.NoError(t, err)
	require.Contains(t, res.String(), `cptracker_refresh_runs_total{trigger="manual"} 1`)
	require.Contains(t, res.String(), `cptracker_refresh_runs_refused_total{trigger="manual"} 1`)

	res, err = client.R().Get("/refresh")
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode())
}
