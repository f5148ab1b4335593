// Package reconcile converges the graph store onto a freshly normalized
// entity set.
//
// For each category the Engine loads the entities previously collected from
// the same source, diffs them against the desired records by identity key,
// and applies deletions, additions and updates in that order. Deletions run
// first so identity slots are free before additions claim them. Every item
// is written independently; one failure never aborts its batch. Once all
// writes of a category are done, desired associations of the written
// entities are resolved against the store and created if absent.
//
// The Controller runs the categories in their fixed order (node, namespace,
// workload, pod). Categories are separated by a barrier: a category's
// associations only target entities of earlier categories or of its own
// completed writes.
//
// Nothing is persisted between runs. Each run gets a RunContext holding the
// per-model validators, the source identifier and the collection time.
package reconcile
