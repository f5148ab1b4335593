package normalize

import (
	"kubecmdb/internal/domain"
)

func normalizeNamespaces(source string, samples []domain.RawSample) []domain.Record {
	records := make([]domain.Record, 0, len(samples))
	for _, s := range samples {
		ns := s.Attr("namespace")
		records = append(records, domain.NamespaceRecord{
			InstName: namespaceIdentity(source, ns),
			Name:     ns,
			Cluster:  source,
		})
	}
	return records
}

// namespaceIdentity returns "" for a missing namespace so the record fails
// validation instead of producing "source/"
func namespaceIdentity(source, namespace string) string {
	if namespace == "" {
		return ""
	}
	return join(source, namespace)
}
