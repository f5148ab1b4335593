// Package codec renders inventory snapshots in export formats.
package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"kubecmdb/internal/domain"
)

// Snapshot is the reconciled inventory of one source at a point in time
type Snapshot struct {
	Source       string                `json:"source"`
	Entities     []domain.StoredEntity `json:"entities"`
	Associations []domain.Association  `json:"associations"`
}

// Exporter writes a snapshot in one format
type Exporter interface {
	Export(s *Snapshot, w io.Writer) error
	Format() string
	ContentType() string
}

var exporters = map[string]Exporter{}

func register(e Exporter) {
	exporters[e.Format()] = e
}

func init() {
	register(NewJSONCodec())
	register(NewYAMLCodec())
	register(NewAnsibleCodec())
}

// ForFormat returns the exporter registered under name
func ForFormat(name string) (Exporter, error) {
	e, ok := exporters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown export format %q (supported: %s)", name, strings.Join(Formats(), ", "))
	}
	return e, nil
}

// Formats lists the supported format names
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
