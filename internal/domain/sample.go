package domain

import "time"

// RawSample is one metric sample as returned by the telemetry gateway. It is
// produced per query and never persisted.
type RawSample struct {
	MetricName string            `json:"metric_name"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
	Value      string            `json:"value"`
}

// Attr returns the attribute value for key, or "" when absent
func (s RawSample) Attr(key string) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes[key]
}
