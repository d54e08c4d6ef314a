package core

import (
	"context"
	"fmt"
	"time"
)

const (
	RefreshJobPath          = "bankfeed.refresh"
	defaultDueRefreshBatch  = 50
	defaultDueRefreshWindow = time.Minute
)

type EnqueueDueRefreshesOptions struct {
	Before time.Time
	Limit  int
}

type EnqueueDueRefreshesResult struct {
	Scanned  int
	Enqueued int
}

// EnqueueDueRefreshes scans connections whose next sync is due and
// enqueues one refresh job per connection. The job id doubles as an
// idempotency key so a rescan cannot double-book a connection within
// the same window.
func (s *Service) EnqueueDueRefreshes(ctx context.Context, opts EnqueueDueRefreshesOptions) (result EnqueueDueRefreshesResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = result.Scanned
		fields["enqueued"] = result.Enqueued
		s.observeOperation(ctx, startedAt, "enqueue_due_refreshes", err, fields)
	}()

	if s == nil {
		return EnqueueDueRefreshesResult{}, fmt.Errorf("core: service is nil")
	}
	if s.connectionStore == nil {
		err = s.mapError(fmt.Errorf("core: connection store is not configured"))
		return EnqueueDueRefreshesResult{}, err
	}
	if s.jobEnqueuer == nil {
		err = s.mapError(fmt.Errorf("core: job enqueuer is not configured"))
		return EnqueueDueRefreshesResult{}, err
	}

	before := opts.Before
	if before.IsZero() {
		before = time.Now().UTC().Add(defaultDueRefreshWindow)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultDueRefreshBatch
	}

	due, err := s.connectionStore.ListDue(ctx, before, limit)
	if err != nil {
		err = s.mapError(err)
		return EnqueueDueRefreshesResult{}, err
	}
	result.Scanned = len(due)

	window := before.Truncate(defaultDueRefreshWindow).Unix()
	for _, connection := range due {
		msg := &JobExecutionMessage{
			JobID:      fmt.Sprintf("%s:%s:%d", RefreshJobPath, connection.ID, window),
			ScriptPath: RefreshJobPath,
			Parameters: map[string]any{
				"provider_link_id": connection.ProviderLinkID,
				"connection_id":    connection.ID,
			},
			IdempotencyKey: fmt.Sprintf("%s:%s:%d", RefreshJobPath, connection.ID, window),
			DedupPolicy:    "drop",
		}
		if enqueueErr := s.jobEnqueuer.Enqueue(ctx, msg); enqueueErr != nil {
			err = s.mapError(enqueueErr)
			return result, err
		}
		result.Enqueued++
	}
	return result, nil
}
