package refresh

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type triggerResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// NewAdminHandler serves the manual trigger, health and metrics endpoints.
//
//	POST /refresh  202 when a run was started, 409 when one is active
//	GET  /healthz  200 with whether a run is active
//	GET  /metrics  prometheus exposition of `gatherer`
func NewAdminHandler(scheduler *Scheduler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		res := triggerResponse{Started: scheduler.Trigger(r.Context())}
		status := http.StatusAccepted
		if res.Started {
			res.Message = "refresh run started"
		} else {
			res.Message = ErrRunActive.Error()
			status = http.StatusConflict
		}
		writeJson(w, status, res)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJson(w, http.StatusOK, map[string]any{
			"ok":     true,
			"active": scheduler.Active(),
		})
	})

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write admin response", "err", err)
	}
}
