package core

import "context"

// NopMetricsRecorder is the default sink when no recorder is injected.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// TaggedMetricsRecorder stamps a fixed tag set onto every emission
// before delegating. Per-call tags win on key collisions.
type TaggedMetricsRecorder struct {
	next MetricsRecorder
	base map[string]string
}

func NewTaggedMetricsRecorder(next MetricsRecorder, base map[string]string) TaggedMetricsRecorder {
	return TaggedMetricsRecorder{
		next: next,
		base: cloneTags(base),
	}
}

func (r TaggedMetricsRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r.next == nil {
		return
	}
	r.next.IncCounter(ctx, name, value, r.mergeTags(tags))
}

func (r TaggedMetricsRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r.next == nil {
		return
	}
	r.next.ObserveHistogram(ctx, name, value, r.mergeTags(tags))
}

func (r TaggedMetricsRecorder) mergeTags(tags map[string]string) map[string]string {
	merged := cloneTags(r.base)
	for key, value := range tags {
		merged[key] = value
	}
	return merged
}

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = TaggedMetricsRecorder{}
)
