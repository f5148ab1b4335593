// Package domain defines the core types of the Kubernetes configuration
// database.
//
// # Samples and Records
//
// RawSample is one metric sample from the telemetry gateway. The normalizer
// joins samples into Records, the desired state of one entity per category
// (node, namespace, workload, pod). A Collection holds every record built
// from one source in one pass.
//
// # Entities and Identity
//
// StoredEntity is an entity as held by the graph store: a storage id, a
// model id and an attribute map. IdentityKey is the composite of a model's
// unique-key attribute values and is how desired records are matched to
// stored entities across cycles.
//
// # Associations
//
// DesiredAssociation names an edge target by model and identity. Association
// is the stored edge between two entity ids. Each category manages a fixed
// set of relation schemas (ManagedRelations).
//
// # Models
//
// ModelSpec and AttributeSpec describe the attribute schema the store
// validates writes against.
package domain
