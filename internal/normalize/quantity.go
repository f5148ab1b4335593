package normalize

import (
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
)

const gib = 1 << 30

// parseQuantity reads a sample value. Plain numerals (including exponent
// notation) are parsed directly; suffixed quantities such as "2Gi" or "500m"
// go through the Kubernetes quantity parser.
func parseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, false
	}
	return q.AsApproximateFloat64(), true
}

// toGiB converts a byte count to whole binary gigabytes, truncating. A zero
// or unparseable sample counts as absent.
func toGiB(s string) *int64 {
	v, ok := parseQuantity(s)
	if !ok || v == 0 {
		return nil
	}
	return ptr.To(int64(v / gib))
}

// toCores returns a CPU quantity as floating-point cores, unconverted
func toCores(s string) *float64 {
	v, ok := parseQuantity(s)
	if !ok || v == 0 {
		return nil
	}
	return ptr.To(v)
}

// optional returns nil for an empty string
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.To(s)
}
