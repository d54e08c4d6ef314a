package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenPayload is the normalized result of an upstream token endpoint
// call. RefreshToken is empty when the provider chose not to rotate.
type TokenPayload struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Scope        string
	ExpiresIn    *time.Duration
}

func (p TokenPayload) HasRefreshToken() bool {
	return p.RefreshToken != ""
}

// Adapter talks to one institution's OAuth2 token endpoint.
type Adapter interface {
	Key() string
	Configured() bool
	ExchangeCode(ctx context.Context, code, redirectURI string) (TokenPayload, error)
	RefreshTokens(ctx context.Context, refreshToken string) (TokenPayload, error)
}

// AdapterEntry snapshots the configured flag at registration time so a
// lookup never races a credential reload.
type AdapterEntry struct {
	Adapter    Adapter
	Configured bool
}

type Registry interface {
	Register(adapter Adapter) error
	Lookup(providerKey string) (AdapterEntry, bool)
	List() []AdapterEntry
}

type CreateProviderLinkInput struct {
	UserID               string
	ProviderKey          string
	Alias                string
	SyncFrequencyMinutes int
}

type ProviderLinkStore interface {
	Create(ctx context.Context, in CreateProviderLinkInput) (ProviderLink, error)
	Get(ctx context.Context, id string) (ProviderLink, error)
	ListByUser(ctx context.Context, userID string) ([]ProviderLink, error)
	Delete(ctx context.Context, id string) error
}

type ConnectionStore interface {
	Create(ctx context.Context, conn Connection) (Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	GetByProviderLink(ctx context.Context, providerLinkID string) (Connection, error)
	Update(ctx context.Context, conn Connection) (Connection, error)
	ListDue(ctx context.Context, before time.Time, limit int) ([]Connection, error)
}

type CredentialStore interface {
	Create(ctx context.Context, cred Credential) (Credential, error)
	GetByConnection(ctx context.Context, connectionID string) (Credential, error)
	Update(ctx context.Context, cred Credential) (Credential, error)
	DeleteByConnection(ctx context.Context, connectionID string) error
}

type AuditFilter struct {
	ConnectionID   string
	ProviderLinkID string
	Action         AuditAction
	Limit          int
	Offset         int
}

type AuditPage struct {
	Records []AuditRecord
	Total   int
}

type AuditStore interface {
	Append(ctx context.Context, record AuditRecord) (AuditRecord, error)
	List(ctx context.Context, filter AuditFilter) (AuditPage, error)
}

// TxRunner executes fn inside one atomic unit of work. Stores resolved
// through the same factory observe the transaction via ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type StoreProvider interface {
	ProviderLinkStore() ProviderLinkStore
	ConnectionStore() ConnectionStore
	CredentialStore() CredentialStore
	AuditStore() AuditStore
	TxRunner() TxRunner
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// RequesterContext carries who asked for a mutation, for the audit
// trail. Zero value means a system actor.
type RequesterContext struct {
	UserID    string
	IPAddress string
	UserAgent string
}

func (r RequesterContext) Actor() string {
	if r.UserID == "" {
		return SystemActor
	}
	return r.UserID
}

// CredentialMetadata is the decrypt-free view of a credential used by
// status displays.
type CredentialMetadata struct {
	Found           bool
	HasAccessToken  bool
	HasRefreshToken bool
	ExpiresAt       *time.Time
	IsExpired       bool
	NeedsRefresh    bool
	RefreshCount    int
	LastRefreshedAt *time.Time
	Scope           string
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent describes one execution attempt of a queued refresh job.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
