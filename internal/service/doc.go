// Package service coordinates the HTTP surface, adapters and reconciliation.
//
// SyncService is the adapter registry's reconcile callback: it runs the
// reconcile.Controller over each collection, keeps the latest CycleReport per
// source, records metrics and publishes cycle events.
//
// InventoryService serves paged read access to reconciled entities and their
// associations.
//
// EventBus fans events out to subscribers (the SSE hub) without blocking on
// slow readers.
package service
