package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoffSchedulerDelays(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{
		Initial: time.Second,
		Max:     10 * time.Second,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 8 * time.Second},
		{attempt: 5, want: 10 * time.Second},
		{attempt: 9, want: 10 * time.Second},
	}
	for _, tc := range cases {
		if got := scheduler.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestMemoryConnectionLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryConnectionLocker()

	handle, err := locker.Acquire(ctx, "conn_1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := locker.Acquire(ctx, "conn_1", time.Minute); err == nil {
		t.Fatalf("expected second acquire to conflict")
	}
	// a different connection is unaffected
	if _, err := locker.Acquire(ctx, "conn_2", time.Minute); err != nil {
		t.Fatalf("acquire other connection: %v", err)
	}

	if err := handle.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(ctx, "conn_1", time.Minute); err != nil {
		t.Fatalf("expected reacquire after unlock, got %v", err)
	}
}

func TestMemoryConnectionLockerExpiresStaleLocks(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryConnectionLocker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker.nowFn = func() time.Time { return now }

	if _, err := locker.Acquire(ctx, "conn_1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := locker.Acquire(ctx, "conn_1", time.Minute); err != nil {
		t.Fatalf("expected stale lock to be reclaimable, got %v", err)
	}
}

func TestRunRefreshWithRetry_SucceedsAfterTransientFailure(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t)
	link := fixture.seedLink(t, "user_1")

	if _, err := fixture.service.StoreInitialCredentials(ctx, StoreCredentialsInput{
		ProviderLinkID: link.ID,
		UserID:         "user_1",
		Tokens:         TokenPayload{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	calls := 0
	fixture.adapter.refreshFn = func(context.Context, string) (TokenPayload, error) {
		calls++
		if calls == 1 {
			return TokenPayload{}, errors.New("token endpoint returned 503")
		}
		return TokenPayload{AccessToken: "access-2"}, nil
	}

	result, err := fixture.service.RunRefreshWithRetry(ctx, link.ID, "user_1", RefreshRunOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("run refresh: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %d", result.Attempts)
	}
	if string(result.Credential.AccessTokenCiphertext) != "enc:access-2" {
		t.Fatalf("expected refreshed credential in result")
	}
	if result.Expired {
		t.Fatalf("expected connection to survive a transient failure")
	}
}

func TestRunRefreshWithRetry_StopsAtMaxAttempts(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t)
	link := fixture.seedLink(t, "user_1")

	if _, err := fixture.service.StoreInitialCredentials(ctx, StoreCredentialsInput{
		ProviderLinkID: link.ID,
		UserID:         "user_1",
		Tokens:         TokenPayload{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	fixture.adapter.refreshFn = func(context.Context, string) (TokenPayload, error) {
		return TokenPayload{}, errors.New("token endpoint returned 503")
	}

	result, err := fixture.service.RunRefreshWithRetry(ctx, link.ID, "user_1", RefreshRunOptions{MaxAttempts: 2})
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if result.Attempts != 2 {
		t.Fatalf("expected two attempts, got %d", result.Attempts)
	}
	if fixture.adapter.refreshed != 2 {
		t.Fatalf("expected two upstream calls, got %d", fixture.adapter.refreshed)
	}
}

func TestRunRefreshWithRetry_UnrecoverableErrorExpiresConnection(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t)
	link := fixture.seedLink(t, "user_1")
	conn := fixture.connectionForLink(t, link.ID)

	// credential without a refresh token cannot ever refresh
	if _, err := fixture.credentials.Create(ctx, Credential{
		ConnectionID:          conn.ID,
		AccessTokenCiphertext: []byte("enc:access-1"),
	}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	if err := conn.MarkConnected(time.Now().UTC()); err != nil {
		t.Fatalf("activate connection: %v", err)
	}
	if _, err := fixture.connections.Update(ctx, conn); err != nil {
		t.Fatalf("persist connection: %v", err)
	}

	result, err := fixture.service.RunRefreshWithRetry(ctx, link.ID, "user_1", RefreshRunOptions{MaxAttempts: 5})
	if !IsMissingRefreshToken(err) {
		t.Fatalf("expected missing refresh token error, got %v", err)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected no retries for an unrecoverable error, got %d attempts", result.Attempts)
	}
	if !result.Expired {
		t.Fatalf("expected connection to be expired")
	}

	updated := fixture.connectionForLink(t, link.ID)
	if updated.Status != ConnectionStatusExpired {
		t.Fatalf("expected expired status, got %s", updated.Status)
	}
	if updated.NextSyncAt != nil {
		t.Fatalf("expected sync schedule to clear on expiry")
	}
}

func TestRunRefreshWithRetry_RequiresProviderLinkID(t *testing.T) {
	fixture := newServiceFixture(t)
	if _, err := fixture.service.RunRefreshWithRetry(context.Background(), "  ", "user_1", RefreshRunOptions{}); err == nil {
		t.Fatalf("expected missing provider link id to fail")
	}
}
