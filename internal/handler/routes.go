package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the server mux. events serves the SSE stream; gatherer
// backs /metrics.
func Routes(h *CMDBHandler, events http.Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/reports/latest", h.LatestReport)
	mux.HandleFunc("POST /api/v1/sync", h.TriggerSync)
	mux.HandleFunc("GET /api/v1/adapters", h.ListAdapters)
	mux.HandleFunc("GET /api/v1/models/{model}/entities", h.ListEntities)
	mux.HandleFunc("GET /api/v1/entities/{id}/associations", h.ListAssociations)
	mux.HandleFunc("GET /api/v1/export", h.Export)

	if events != nil {
		mux.Handle("GET /events", events)
	}

	return Chain(mux, Recover, RequestID, Logger)
}
