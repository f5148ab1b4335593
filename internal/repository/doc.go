// Package repository defines the graph store abstraction the reconciliation
// engine writes through.
//
// # GraphStore
//
// GraphStore exposes entity CRUD, edge CRUD and filtered querying by field
// predicates. Implementations own persistence and validation; callers only
// request mutations. Every write takes the model's schema.Validator, which
// the store consults before touching data.
//
// # SchemaStore
//
// SchemaStore serves per-model attribute schemas. A validator is built from
// them once per reconciliation run.
//
// # SQLite Implementation
//
// The sqlite subpackage stores entities as JSON documents keyed by model,
// edges with a uniqueness constraint on (dedup key, source, target), and
// model attribute schemas. It is exercised with in-memory databases in tests.
package repository
