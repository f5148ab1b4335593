// Package handler implements the HTTP status and inventory API.
//
// Routes:
//
//	GET  /healthz                              liveness and store ping
//	GET  /metrics                              Prometheus metrics
//	GET  /api/v1/reports/latest?source=        latest cycle report
//	POST /api/v1/sync?wait=true                trigger a collection cycle
//	GET  /api/v1/adapters                      registered adapters
//	GET  /api/v1/models/{model}/entities       paged entity listing
//	GET  /api/v1/entities/{id}/associations    outgoing associations
//	GET  /events                               Server-Sent Events stream
//
// Every route runs behind Recover, RequestID and Logger middleware. Errors
// are JSON ErrorResponse bodies.
package handler
