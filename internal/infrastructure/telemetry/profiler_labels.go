package telemetry

import (
	"context"
	"sort"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelTenantID  = "tenant_id"
	ProfilingLabelOperation = "operation"
	ProfilingLabelUF        = "uf"
)

// Manifest operations used as profiling labels
const (
	OperationTransmit      = "transmit"
	OperationRetryPending  = "retry_pending"
	OperationRenderDAMDFE  = "render_damdfe"
	OperationManifestEvent = "manifest_event"
)

// maxLabelValueLength bounds label values to keep cardinality in check
const maxLabelValueLength = 128

// highCardinalityLabels are never attached to profiles
var highCardinalityLabels = map[string]bool{
	"user_id":     true,
	"request_id":  true,
	"manifest_id": true,
	"access_key":  true,
	"trace_id":    true,
}

// ManifestOperationLabels returns the labels of a manifest operation
func ManifestOperationLabels(operation, tenantID string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}
	return labels
}

// WithProfilingLabels runs fn with Pyroscope labels attached to the
// goroutine, so CPU time can be sliced by operation and tenant.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels drops empty and high-cardinality labels, truncates long
// values and returns key/value pairs sorted by key.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if k == "" || v == "" || highCardinalityLabels[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		v := labels[k]
		if len(v) > maxLabelValueLength {
			v = v[:maxLabelValueLength]
		}
		pairs = append(pairs, k, v)
	}
	return pairs
}
