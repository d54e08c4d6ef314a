package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
)

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// ConnectionLocker serializes token refreshes per connection so two
// callers never spend the same refresh token against the upstream.
type ConnectionLocker interface {
	Acquire(ctx context.Context, connectionID string, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

// NextDelay doubles per completed attempt starting from Initial and
// never exceeds Max.
func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	initial, ceiling := s.Initial, s.Max
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	if ceiling <= 0 {
		ceiling = defaultRefreshMaxBackoff
	}

	delay := initial
	for step := 1; step < attempt; step++ {
		delay *= 2
		if delay >= ceiling {
			break
		}
	}
	return min(delay, ceiling)
}

type RefreshRunResult struct {
	Attempts   int
	Credential Credential
	Expired    bool
}

type RefreshRunOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// RunRefreshWithRetry wraps RefreshCredentials with a bounded retry
// loop for background jobs. Unrecoverable upstream rejections (an
// invalidated grant) stop retrying immediately and expire the
// connection; interactive callers should use RefreshCredentials, which
// never retries.
func (s *Service) RunRefreshWithRetry(ctx context.Context, providerLinkID, userID string, opts RefreshRunOptions) (RefreshRunResult, error) {
	if s == nil {
		return RefreshRunResult{}, fmt.Errorf("core: service is nil")
	}
	providerLinkID = strings.TrimSpace(providerLinkID)
	if providerLinkID == "" {
		return RefreshRunResult{}, s.mapError(fmt.Errorf("core: provider link id is required"))
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		credential, err := s.RefreshCredentials(ctx, providerLinkID, userID)
		if err == nil {
			return RefreshRunResult{Attempts: attempt, Credential: credential}, nil
		}
		lastErr = err

		if isUnrecoverableRefreshError(err) {
			_ = s.expireConnectionForLink(ctx, providerLinkID, err)
			return RefreshRunResult{Attempts: attempt, Expired: true}, s.mapError(err)
		}
		if attempt == maxAttempts {
			return RefreshRunResult{Attempts: attempt}, s.mapError(err)
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshBackoffScheduler != nil {
			delay = s.refreshBackoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, s.mapError(waitErr)
		}
	}

	return RefreshRunResult{Attempts: maxAttempts}, s.mapError(lastErr)
}

func (s *Service) expireConnectionForLink(ctx context.Context, providerLinkID string, source error) error {
	if s == nil || s.connectionStore == nil {
		return nil
	}
	connection, err := s.connectionStore.GetByProviderLink(ctx, providerLinkID)
	if err != nil {
		return err
	}
	reason := strings.TrimSpace(fmt.Sprint(source))
	if reason == "" {
		reason = "refresh failed"
	}
	if err := connection.MarkExpired(time.Now().UTC(), reason); err != nil {
		return err
	}
	_, err = s.connectionStore.Update(ctx, connection)
	return err
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if IsMissingRefreshToken(err) || IsNotFound(err) || IsOwnershipDenied(err) || IsNotConnected(err) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "reauthorization required")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MemoryConnectionLocker is a single-process locker. Entries expire by
// TTL so a crashed holder cannot wedge a connection forever.
type MemoryConnectionLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryConnectionLocker() *MemoryConnectionLocker {
	return &MemoryConnectionLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryConnectionLocker) Acquire(_ context.Context, connectionID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: connection locker is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, fmt.Errorf("core: connection id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expiresAt, held := l.locks[connectionID]; held && now.Before(expiresAt) {
		return nil, fmt.Errorf("core: refresh lock already held for connection %q", connectionID)
	}
	l.locks[connectionID] = now.Add(ttl)

	handle := &memoryLockHandle{connectionID: connectionID}
	handle.release = func() {
		l.mu.Lock()
		delete(l.locks, connectionID)
		l.mu.Unlock()
	}
	return handle, nil
}

type memoryLockHandle struct {
	connectionID string
	release      func()
	once         sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.release == nil {
		return nil
	}
	h.once.Do(h.release)
	return nil
}
