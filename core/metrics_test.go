package core

import (
	"context"
	"testing"
)

type captureMetricsRecorder struct {
	counterName string
	counterTags map[string]string
	histName    string
	histTags    map[string]string
}

func (r *captureMetricsRecorder) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	r.counterName = name
	r.counterTags = tags
}

func (r *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, _ float64, tags map[string]string) {
	r.histName = name
	r.histTags = tags
}

func TestTaggedMetricsRecorderMergesBaseTags(t *testing.T) {
	sink := &captureMetricsRecorder{}
	recorder := NewTaggedMetricsRecorder(sink, map[string]string{
		"service": "bankfeed",
		"status":  "base",
	})

	recorder.IncCounter(context.Background(), "bankfeed.refresh_credentials.total", 1, map[string]string{
		"status": "success",
	})

	if sink.counterName != "bankfeed.refresh_credentials.total" {
		t.Fatalf("unexpected counter name %q", sink.counterName)
	}
	if sink.counterTags["service"] != "bankfeed" {
		t.Fatalf("expected base service tag, got %v", sink.counterTags)
	}
	if sink.counterTags["status"] != "success" {
		t.Fatalf("expected per-call tag to win, got %v", sink.counterTags)
	}

	recorder.ObserveHistogram(context.Background(), "bankfeed.refresh_credentials.duration_ms", 12, nil)
	if sink.histTags["service"] != "bankfeed" {
		t.Fatalf("expected base tag on histogram, got %v", sink.histTags)
	}
}

func TestTaggedMetricsRecorderNilDelegateIsSafe(t *testing.T) {
	recorder := NewTaggedMetricsRecorder(nil, map[string]string{"service": "bankfeed"})
	recorder.IncCounter(context.Background(), "noop", 1, nil)
	recorder.ObserveHistogram(context.Background(), "noop", 1, nil)
}

func TestNewServiceStampsServiceTagOnMetrics(t *testing.T) {
	sink := &captureMetricsRecorder{}
	service, err := NewService(Config{ServiceName: "bankfeed-test"}, WithMetricsRecorder(sink))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	service.recordCounter(context.Background(), "bankfeed.probe.total", 1, map[string]string{"operation": "probe"})
	if sink.counterTags["service"] != "bankfeed-test" {
		t.Fatalf("expected service tag stamped on emissions, got %v", sink.counterTags)
	}
	if sink.counterTags["operation"] != "probe" {
		t.Fatalf("expected per-call tags preserved, got %v", sink.counterTags)
	}
}
