package bankfeed

import "github.com/goliatone/go-bankfeed/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Adapter = core.Adapter
type Registry = core.Registry
type SecretProvider = core.SecretProvider
type ConnectionLocker = core.ConnectionLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult
type ProviderLinkStore = core.ProviderLinkStore
type ConnectionStore = core.ConnectionStore
type CredentialStore = core.CredentialStore
type AuditStore = core.AuditStore
type TxRunner = core.TxRunner

type ProviderLink = core.ProviderLink
type Connection = core.Connection
type Credential = core.Credential
type CredentialMetadata = core.CredentialMetadata
type TokenPayload = core.TokenPayload
type AuditRecord = core.AuditRecord
type AuditFilter = core.AuditFilter
type AuditPage = core.AuditPage
type RequesterContext = core.RequesterContext

type StoreCredentialsInput = core.StoreCredentialsInput
type CreateProviderLinkInput = core.CreateProviderLinkInput

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithConnectionLocker        = core.WithConnectionLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithRegistry                = core.WithRegistry
	WithProviderLinkStore       = core.WithProviderLinkStore
	WithConnectionStore         = core.WithConnectionStore
	WithCredentialStore         = core.WithCredentialStore
	WithAuditStore              = core.WithAuditStore
	WithTxRunner                = core.WithTxRunner
	WithJobEnqueuer             = core.WithJobEnqueuer
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
