package bankfeed

import (
	"fmt"

	bankfeedcommand "github.com/goliatone/go-bankfeed/command"
	bankfeedquery "github.com/goliatone/go-bankfeed/query"
)

// CommandQueryService is the surface the facade needs from the credential
// service. *core.Service satisfies it.
type CommandQueryService interface {
	bankfeedcommand.MutatingService
	bankfeedquery.AccessTokenReader
	bankfeedquery.CredentialMetadataReader
	bankfeedquery.AuditTrailReader
}

type Commands struct {
	StoreCredentials    *bankfeedcommand.StoreCredentialsCommand
	RefreshCredentials  *bankfeedcommand.RefreshCredentialsCommand
	RevokeCredentials   *bankfeedcommand.RevokeCredentialsCommand
	CreateProviderLink  *bankfeedcommand.CreateProviderLinkCommand
	DeleteProviderLink  *bankfeedcommand.DeleteProviderLinkCommand
	RecordSyncSuccess   *bankfeedcommand.RecordSyncSuccessCommand
	RecordSyncFailure   *bankfeedcommand.RecordSyncFailureCommand
	RunRefreshWithRetry *bankfeedcommand.RunRefreshWithRetryCommand
	EnqueueDueRefreshes *bankfeedcommand.EnqueueDueRefreshesCommand
}

type Queries struct {
	GetAccessToken        *bankfeedquery.GetAccessTokenQuery
	GetCredentialMetadata *bankfeedquery.GetCredentialMetadataQuery
	ListAuditTrail        *bankfeedquery.ListAuditTrailQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	auditReader bankfeedquery.AuditTrailReader
}

// WithAuditTrailReader swaps the audit query source, e.g. a read replica.
func WithAuditTrailReader(reader bankfeedquery.AuditTrailReader) FacadeOption {
	return func(options *facadeOptions) {
		options.auditReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bankfeed: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	auditReader := cfg.auditReader
	if auditReader == nil {
		auditReader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StoreCredentials:    bankfeedcommand.NewStoreCredentialsCommand(service),
		RefreshCredentials:  bankfeedcommand.NewRefreshCredentialsCommand(service),
		RevokeCredentials:   bankfeedcommand.NewRevokeCredentialsCommand(service),
		CreateProviderLink:  bankfeedcommand.NewCreateProviderLinkCommand(service),
		DeleteProviderLink:  bankfeedcommand.NewDeleteProviderLinkCommand(service),
		RecordSyncSuccess:   bankfeedcommand.NewRecordSyncSuccessCommand(service),
		RecordSyncFailure:   bankfeedcommand.NewRecordSyncFailureCommand(service),
		RunRefreshWithRetry: bankfeedcommand.NewRunRefreshWithRetryCommand(service),
		EnqueueDueRefreshes: bankfeedcommand.NewEnqueueDueRefreshesCommand(service),
	}
	facade.queries = Queries{
		GetAccessToken:        bankfeedquery.NewGetAccessTokenQuery(service),
		GetCredentialMetadata: bankfeedquery.NewGetCredentialMetadataQuery(service),
		ListAuditTrail:        bankfeedquery.NewListAuditTrailQuery(auditReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
