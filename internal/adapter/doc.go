// Package adapter connects telemetry sources to reconciliation.
//
// An Adapter pulls the current state of one cluster and returns it as a
// normalized domain.Collection. The Registry owns adapter lifecycle: it runs
// a polling loop per enabled polling adapter, serves manual triggers, and
// hands every collection to its ReconcileFunc.
//
// KubernetesAdapter is the only adapter: it queries the metric catalog
// through a telemetry.Gateway (Prometheus or ClickHouse) and runs the
// normalizer over the samples. It publishes collect_started,
// collect_completed and collect_failed progress events.
package adapter
