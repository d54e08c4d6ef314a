package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidConnectionStatusTransition = errors.New("core: invalid connection status transition")
	ErrInvalidAuditAction                = errors.New("core: invalid audit action")
)

const (
	DefaultSyncFrequencyMinutes = 360
	MaxSyncBackoffMinutes       = 1440
	ConnectionErrorThreshold    = 3
)

// ProviderLink is a user-owned, named instance of an institution.
// ProviderKey is immutable once created; Alias is unique per user.
type ProviderLink struct {
	ID          string
	UserID      string
	ProviderKey string
	Alias       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (l ProviderLink) Validate() error {
	if strings.TrimSpace(l.UserID) == "" {
		return fmt.Errorf("core: provider link user id is required")
	}
	if strings.TrimSpace(l.ProviderKey) == "" {
		return fmt.Errorf("core: provider link provider key is required")
	}
	if strings.TrimSpace(l.Alias) == "" {
		return fmt.Errorf("core: provider link alias is required")
	}
	return nil
}

type ConnectionStatus string

const (
	ConnectionStatusPending ConnectionStatus = "pending"
	ConnectionStatusActive  ConnectionStatus = "active"
	ConnectionStatusExpired ConnectionStatus = "expired"
	ConnectionStatusRevoked ConnectionStatus = "revoked"
	ConnectionStatusError   ConnectionStatus = "error"
)

type Connection struct {
	ID                   string
	ProviderLinkID       string
	Status               ConnectionStatus
	ConnectedAt          *time.Time
	LastSyncAt           *time.Time
	NextSyncAt           *time.Time
	SyncFrequencyMinutes int
	ErrorCount           int
	ErrorMessage         string
	AccountsCount        int
	AccountsList         []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (c *Connection) TransitionTo(status ConnectionStatus, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		return nil
	}
	if !connectionTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnectionStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func connectionTransitionAllowed(current, next ConnectionStatus) bool {
	allowed := map[ConnectionStatus]map[ConnectionStatus]struct{}{
		ConnectionStatusPending: {
			ConnectionStatusActive:  {},
			ConnectionStatusRevoked: {},
		},
		ConnectionStatusActive: {
			ConnectionStatusExpired: {},
			ConnectionStatusError:   {},
			ConnectionStatusRevoked: {},
		},
		ConnectionStatusExpired: {
			ConnectionStatusActive:  {},
			ConnectionStatusRevoked: {},
		},
		ConnectionStatusError: {
			ConnectionStatusActive:  {},
			ConnectionStatusExpired: {},
			ConnectionStatusRevoked: {},
		},
		ConnectionStatusRevoked: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// MarkConnected records the first successful credential exchange. The
// connection leaves pending, error state clears, and the next sync is
// scheduled at the nominal frequency.
func (c *Connection) MarkConnected(now time.Time) error {
	if c == nil {
		return nil
	}
	now = now.UTC()
	if err := c.TransitionTo(ConnectionStatusActive, now); err != nil {
		return err
	}
	c.ErrorCount = 0
	c.ErrorMessage = ""
	connectedAt := now
	c.ConnectedAt = &connectedAt
	c.scheduleNextSync(now, c.nominalFrequency())
	return nil
}

// MarkSyncSuccessful resets error state and reschedules at the nominal
// frequency. Accounts are updated only when the caller supplies them.
func (c *Connection) MarkSyncSuccessful(now time.Time, accounts []string) error {
	if c == nil {
		return nil
	}
	now = now.UTC()
	if err := c.TransitionTo(ConnectionStatusActive, now); err != nil {
		return err
	}
	c.ErrorCount = 0
	c.ErrorMessage = ""
	lastSync := now
	c.LastSyncAt = &lastSync
	if accounts != nil {
		c.AccountsList = append([]string(nil), accounts...)
		c.AccountsCount = len(accounts)
	}
	c.scheduleNextSync(now, c.nominalFrequency())
	return nil
}

// MarkSyncFailed increments the error counter and pushes the next sync
// out with exponential backoff, capped at 24 hours. The connection
// flips to error once the counter reaches the threshold; below the
// threshold, or when the current status has no legal path to error
// (expired connections being retried, for example), the status stays
// put and only the counter and backoff move.
func (c *Connection) MarkSyncFailed(now time.Time, message string) error {
	if c == nil {
		return nil
	}
	now = now.UTC()
	c.ErrorCount++
	c.ErrorMessage = strings.TrimSpace(message)
	if c.ErrorCount >= ConnectionErrorThreshold &&
		c.Status != ConnectionStatusError &&
		connectionTransitionAllowed(c.Status, ConnectionStatusError) {
		if err := c.TransitionTo(ConnectionStatusError, now); err != nil {
			return err
		}
	} else {
		c.UpdatedAt = now
	}
	c.scheduleNextSync(now, c.backoffInterval())
	return nil
}

// MarkExpired records a credential that can no longer be refreshed.
func (c *Connection) MarkExpired(now time.Time, message string) error {
	if c == nil {
		return nil
	}
	now = now.UTC()
	if err := c.TransitionTo(ConnectionStatusExpired, now); err != nil {
		return err
	}
	if strings.TrimSpace(message) != "" {
		c.ErrorMessage = strings.TrimSpace(message)
	}
	c.NextSyncAt = nil
	return nil
}

// MarkRevoked is terminal. Reconnection re-runs the exchange flow and
// re-enters at pending.
func (c *Connection) MarkRevoked(now time.Time, reason string) error {
	if c == nil {
		return nil
	}
	now = now.UTC()
	if err := c.TransitionTo(ConnectionStatusRevoked, now); err != nil {
		return err
	}
	if strings.TrimSpace(reason) != "" {
		c.ErrorMessage = strings.TrimSpace(reason)
	}
	c.NextSyncAt = nil
	return nil
}

// resetForReconnect yields a fresh pending state after a revoke, ready
// for a new exchange flow. It bypasses the transition map on purpose:
// revoked is terminal for the old credential, not for the link.
func (c *Connection) resetForReconnect(now time.Time) {
	if c == nil {
		return
	}
	c.Status = ConnectionStatusPending
	c.ErrorCount = 0
	c.ErrorMessage = ""
	c.ConnectedAt = nil
	c.LastSyncAt = nil
	c.NextSyncAt = nil
	c.UpdatedAt = now.UTC()
}

func (c *Connection) nominalFrequency() time.Duration {
	minutes := c.SyncFrequencyMinutes
	if minutes <= 0 {
		minutes = DefaultSyncFrequencyMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c *Connection) backoffInterval() time.Duration {
	minutes := c.SyncFrequencyMinutes
	if minutes <= 0 {
		minutes = DefaultSyncFrequencyMinutes
	}
	backoff := minutes
	for i := 0; i < c.ErrorCount; i++ {
		backoff *= 2
		if backoff >= MaxSyncBackoffMinutes {
			backoff = MaxSyncBackoffMinutes
			break
		}
	}
	if backoff > MaxSyncBackoffMinutes {
		backoff = MaxSyncBackoffMinutes
	}
	return time.Duration(backoff) * time.Minute
}

func (c *Connection) scheduleNextSync(now time.Time, interval time.Duration) {
	next := now.Add(interval)
	c.NextSyncAt = &next
}

const DefaultCredentialRefreshWindow = 5 * time.Minute

// Credential holds the token material for a connection. Token values
// only ever appear here as ciphertext.
type Credential struct {
	ID                     string
	ConnectionID           string
	AccessTokenCiphertext  []byte
	RefreshTokenCiphertext []byte
	IDToken                string
	ExpiresAt              *time.Time
	Scope                  string
	RefreshCount           int
	LastRefreshedAt        *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (c Credential) HasRefreshToken() bool {
	return len(c.RefreshTokenCiphertext) > 0
}

func (c Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.UTC().Before(c.ExpiresAt.UTC())
}

func (c Credential) IsExpiringSoon(now time.Time) bool {
	return c.expiresWithin(now, DefaultCredentialRefreshWindow)
}

func (c Credential) expiresWithin(now time.Time, lead time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.UTC().Before(c.ExpiresAt.UTC().Add(-lead))
}

func (c Credential) NeedsRefresh(now time.Time) bool {
	return c.NeedsRefreshWithin(now, DefaultCredentialRefreshWindow)
}

// NeedsRefreshWithin applies a caller-supplied lead window, so the
// service can honor the configured refresh.lead_window_minutes.
func (c Credential) NeedsRefreshWithin(now time.Time, lead time.Duration) bool {
	if lead < 0 {
		lead = 0
	}
	return c.IsExpired(now) || c.expiresWithin(now, lead)
}

// ApplyRotation replaces the access-token ciphertext and, only when the
// upstream supplied one, the refresh-token ciphertext. A nil
// refreshCiphertext means the provider did not rotate and the stored
// value stays. RefreshCount advances by exactly one per call.
func (c *Credential) ApplyRotation(accessCiphertext, refreshCiphertext []byte, expiresIn *time.Duration, idToken string, now time.Time) {
	if c == nil {
		return
	}
	now = now.UTC()
	c.AccessTokenCiphertext = append([]byte(nil), accessCiphertext...)
	if refreshCiphertext != nil {
		c.RefreshTokenCiphertext = append([]byte(nil), refreshCiphertext...)
	}
	if expiresIn != nil {
		expiresAt := now.Add(*expiresIn)
		c.ExpiresAt = &expiresAt
	}
	if strings.TrimSpace(idToken) != "" {
		c.IDToken = idToken
	}
	c.RefreshCount++
	refreshedAt := now
	c.LastRefreshedAt = &refreshedAt
	c.UpdatedAt = now
}

type AuditAction string

const (
	AuditActionCredentialCreated       AuditAction = "credential-created"
	AuditActionCredentialUpdated       AuditAction = "credential-updated"
	AuditActionCredentialRefreshed     AuditAction = "credential-refreshed"
	AuditActionCredentialRefreshFailed AuditAction = "credential-refresh-failed"
	AuditActionCredentialRevoked       AuditAction = "credential-revoked"
)

func (a AuditAction) Validate() error {
	switch a {
	case AuditActionCredentialCreated,
		AuditActionCredentialUpdated,
		AuditActionCredentialRefreshed,
		AuditActionCredentialRefreshFailed,
		AuditActionCredentialRevoked:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuditAction, a)
	}
}

// SystemActor identifies audit records written by background jobs
// rather than an end user.
const SystemActor = "system"

// AuditRecord is append-only; rows are never updated or deleted except
// through provider-link cascade.
type AuditRecord struct {
	ID             string
	ConnectionID   string
	ProviderLinkID string
	Actor          string
	Action         AuditAction
	Details        map[string]any
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}
