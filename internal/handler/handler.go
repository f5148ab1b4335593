package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"kubecmdb/internal/adapter"
	"kubecmdb/internal/codec"
	"kubecmdb/internal/domain"
	"kubecmdb/internal/repository"
	"kubecmdb/internal/service"
)

// SyncTrigger allows triggering collection from the handler
type SyncTrigger interface {
	TriggerSyncAll(ctx context.Context) error
	// StartSyncAll starts a sync in the background; ErrSyncInProgress when
	// one is already running
	StartSyncAll() error
	ListAdapters() []adapter.AdapterInfo
}

// Pinger reports store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// CMDBHandler handles the status and inventory API
type CMDBHandler struct {
	sync      *service.SyncService
	inventory *service.InventoryService
	trigger   SyncTrigger
	pinger    Pinger
	source    string
}

// NewCMDBHandler creates a handler. source is the default for report lookups.
func NewCMDBHandler(sync *service.SyncService, inventory *service.InventoryService, source string) *CMDBHandler {
	return &CMDBHandler{
		sync:      sync,
		inventory: inventory,
		source:    source,
	}
}

// SetSyncTrigger sets the sync trigger (adapter registry)
func (h *CMDBHandler) SetSyncTrigger(t SyncTrigger) {
	h.trigger = t
}

// SetPinger sets the store health check
func (h *CMDBHandler) SetPinger(p Pinger) {
	h.pinger = p
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Health reports liveness and store reachability
func (h *CMDBHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, "Store unavailable", err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// LatestReport returns the most recent cycle report for ?source= (default:
// the configured source)
func (h *CMDBHandler) LatestReport(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = h.source
	}
	report, ok := h.sync.Latest(source)
	if !ok {
		writeError(w, "Not found", "no completed cycle for source "+source, http.StatusNotFound)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

// TriggerSync starts a collection and reconciliation for every adapter. With
// ?wait=true it blocks until the cycle is done. Either way a cycle already
// running yields 409.
func (h *CMDBHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, "Sync not configured", "No adapters are registered", http.StatusServiceUnavailable)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := h.trigger.TriggerSyncAll(r.Context()); err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, adapter.ErrSyncInProgress) {
				status = http.StatusConflict
			}
			writeError(w, "Sync failed", err.Error(), status)
			return
		}
		writeJSON(w, map[string]string{"status": "sync_completed"}, http.StatusOK)
		return
	}

	if err := h.trigger.StartSyncAll(); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, adapter.ErrSyncInProgress) {
			status = http.StatusConflict
		}
		writeError(w, "Sync not started", err.Error(), status)
		return
	}
	writeJSON(w, map[string]string{"status": "sync_triggered"}, http.StatusAccepted)
}

// ListAdapters returns the registered adapters
func (h *CMDBHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeJSON(w, []adapter.AdapterInfo{}, http.StatusOK)
		return
	}
	writeJSON(w, h.trigger.ListAdapters(), http.StatusOK)
}

var knownModels = func() map[string]bool {
	m := map[string]bool{domain.ModelCluster: true}
	for _, c := range domain.Categories {
		m[c.ModelID()] = true
	}
	return m
}()

// ListEntities returns one page of a model's entities. Query parameters:
// page, page_size, order, filter=field:value (equality, repeatable) and
// contains=field:value (substring, repeatable).
func (h *CMDBHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	modelID := r.PathValue("model")
	if !knownModels[modelID] {
		writeError(w, "Not found", "unknown model "+modelID, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, "Invalid page", err.Error(), http.StatusBadRequest)
		return
	}
	size, err := intParam(q.Get("page_size"))
	if err != nil {
		writeError(w, "Invalid page_size", err.Error(), http.StatusBadRequest)
		return
	}

	var filters []repository.Filter
	for _, param := range []string{"filter", "contains"} {
		for _, raw := range q[param] {
			field, value, ok := strings.Cut(raw, ":")
			if !ok || field == "" {
				writeError(w, "Invalid "+param, "expected field:value, got "+raw, http.StatusBadRequest)
				return
			}
			if param == "contains" {
				filters = append(filters, repository.Filter{Field: field, Type: repository.FilterContains, Value: value})
				continue
			}
			filters = append(filters, equalityFilter(field, value))
		}
	}

	result, err := h.inventory.ListEntities(r.Context(), modelID, filters, page, size, q.Get("order"))
	if err != nil {
		klog.ErrorS(err, "Failed to list entities", "model", modelID)
		writeError(w, "Failed to list entities", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

// ListAssociations returns an entity's outgoing associations
func (h *CMDBHandler) ListAssociations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, "Invalid entity ID", err.Error(), http.StatusBadRequest)
		return
	}
	edges, err := h.inventory.Associations(r.Context(), id)
	if err != nil {
		klog.ErrorS(err, "Failed to list associations", "id", id)
		writeError(w, "Failed to list associations", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, edges, http.StatusOK)
}

// Export renders the inventory of ?source= (default: the configured source;
// "*" for every source) in ?format= (default json)
func (h *CMDBHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	exporter, err := codec.ForFormat(format)
	if err != nil {
		writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	source := q.Get("source")
	switch source {
	case "":
		source = h.source
	case "*":
		source = ""
	}

	snap, err := h.inventory.Snapshot(r.Context(), source)
	if err != nil {
		klog.ErrorS(err, "Failed to build snapshot", "source", source)
		writeError(w, "Failed to export", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	if err := exporter.Export(snap, w); err != nil {
		klog.ErrorS(err, "Failed to write export", "format", exporter.Format())
	}
}

// equalityFilter matches value as written and, when it parses as a bool or
// number, as that JSON value too. SQLite reads JSON booleans as 1 and 0.
func equalityFilter(field, value string) repository.Filter {
	var typed any
	switch value {
	case "true":
		typed = int64(1)
	case "false":
		typed = int64(0)
	default:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			typed = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			typed = f
		}
	}
	if typed == nil {
		return repository.Eq(field, value)
	}
	return repository.Filter{Field: field, Type: repository.FilterIn, Value: []any{value, typed}}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		klog.ErrorS(err, "Failed to encode JSON")
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
