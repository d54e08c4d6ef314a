package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// metric tag keys promoted from log fields so operators can slice
// counters the same way they filter logs.
var traceableTagKeys = []string{"provider_key", "user_id", "provider_link_id", "connection_id"}

type operationOutcome struct {
	name     string
	status   string
	duration time.Duration
	err      error
	fields   map[string]any
}

func newOperationOutcome(startedAt time.Time, operation string, err error, fields map[string]any) operationOutcome {
	name := strings.TrimSpace(strings.ToLower(operation))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	if name == "" {
		name = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	return operationOutcome{
		name:     name,
		status:   status,
		duration: time.Since(startedAt),
		err:      err,
		fields:   fields,
	}
}

func (o operationOutcome) logFields() map[string]any {
	merged := make(map[string]any, len(o.fields)+4)
	for key, value := range o.fields {
		merged[key] = value
	}
	merged["event_type"] = o.name
	merged["status"] = o.status
	merged["duration_ms"] = o.duration.Milliseconds()
	if o.err != nil {
		merged["error"] = o.err.Error()
	}
	return merged
}

func (o operationOutcome) metricTags() map[string]string {
	tags := map[string]string{
		"operation": o.name,
		"status":    o.status,
	}
	for _, key := range traceableTagKeys {
		raw, ok := o.fields[key]
		if !ok || raw == nil {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	outcome := newOperationOutcome(startedAt, operation, err, fields)
	tags := outcome.metricTags()

	s.recordCounter(ctx, "bankfeed."+outcome.name+".total", 1, tags)
	s.recordHistogram(ctx, "bankfeed."+outcome.name+".duration_ms", float64(outcome.duration.Milliseconds()), tags)

	s.emitLog(ctx, outcome)
}

func (s *Service) emitLog(ctx context.Context, outcome operationOutcome) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}

	fields := outcome.logFields()
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	if outcome.err != nil {
		logger.Error(outcome.name+" failed", args...)
		return
	}
	logger.Info(outcome.name+" succeeded", args...)
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}
