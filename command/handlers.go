package command

import (
	"context"

	"github.com/goliatone/go-bankfeed/core"
	gocmd "github.com/goliatone/go-command"
)

type MutatingService interface {
	StoreInitialCredentials(ctx context.Context, in core.StoreCredentialsInput) (core.Credential, error)
	RefreshCredentials(ctx context.Context, providerLinkID, userID string) (core.Credential, error)
	RevokeCredentials(ctx context.Context, providerLinkID, userID string, requester core.RequesterContext) error
	CreateProviderLink(ctx context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error)
	DeleteProviderLink(ctx context.Context, providerLinkID, userID string) error
	RecordSyncSuccess(ctx context.Context, providerLinkID string, accounts []string) error
	RecordSyncFailure(ctx context.Context, providerLinkID, reason string) error
	RunRefreshWithRetry(ctx context.Context, providerLinkID, userID string, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
	EnqueueDueRefreshes(ctx context.Context, opts core.EnqueueDueRefreshesOptions) (core.EnqueueDueRefreshesResult, error)
}

type StoreCredentialsCommand struct {
	service MutatingService
}

func NewStoreCredentialsCommand(service MutatingService) *StoreCredentialsCommand {
	return &StoreCredentialsCommand{service: service}
}

func (c *StoreCredentialsCommand) Execute(ctx context.Context, msg StoreCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.StoreInitialCredentials(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCredentialsCommand struct {
	service MutatingService
}

func NewRefreshCredentialsCommand(service MutatingService) *RefreshCredentialsCommand {
	return &RefreshCredentialsCommand{service: service}
}

func (c *RefreshCredentialsCommand) Execute(ctx context.Context, msg RefreshCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshCredentials(ctx, msg.ProviderLinkID, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeCredentialsCommand struct {
	service MutatingService
}

func NewRevokeCredentialsCommand(service MutatingService) *RevokeCredentialsCommand {
	return &RevokeCredentialsCommand{service: service}
}

func (c *RevokeCredentialsCommand) Execute(ctx context.Context, msg RevokeCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	return c.service.RevokeCredentials(ctx, msg.ProviderLinkID, msg.UserID, msg.Requester)
}

type CreateProviderLinkCommand struct {
	service MutatingService
}

func NewCreateProviderLinkCommand(service MutatingService) *CreateProviderLinkCommand {
	return &CreateProviderLinkCommand{service: service}
}

func (c *CreateProviderLinkCommand) Execute(ctx context.Context, msg CreateProviderLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provider link service is required")
	}
	out, err := c.service.CreateProviderLink(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteProviderLinkCommand struct {
	service MutatingService
}

func NewDeleteProviderLinkCommand(service MutatingService) *DeleteProviderLinkCommand {
	return &DeleteProviderLinkCommand{service: service}
}

func (c *DeleteProviderLinkCommand) Execute(ctx context.Context, msg DeleteProviderLinkMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provider link service is required")
	}
	return c.service.DeleteProviderLink(ctx, msg.ProviderLinkID, msg.UserID)
}

type RecordSyncSuccessCommand struct {
	service MutatingService
}

func NewRecordSyncSuccessCommand(service MutatingService) *RecordSyncSuccessCommand {
	return &RecordSyncSuccessCommand{service: service}
}

func (c *RecordSyncSuccessCommand) Execute(ctx context.Context, msg RecordSyncSuccessMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	return c.service.RecordSyncSuccess(ctx, msg.ProviderLinkID, msg.Accounts)
}

type RecordSyncFailureCommand struct {
	service MutatingService
}

func NewRecordSyncFailureCommand(service MutatingService) *RecordSyncFailureCommand {
	return &RecordSyncFailureCommand{service: service}
}

func (c *RecordSyncFailureCommand) Execute(ctx context.Context, msg RecordSyncFailureMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	return c.service.RecordSyncFailure(ctx, msg.ProviderLinkID, msg.Reason)
}

type RunRefreshWithRetryCommand struct {
	service MutatingService
}

func NewRunRefreshWithRetryCommand(service MutatingService) *RunRefreshWithRetryCommand {
	return &RunRefreshWithRetryCommand{service: service}
}

func (c *RunRefreshWithRetryCommand) Execute(ctx context.Context, msg RunRefreshWithRetryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh runner service is required")
	}
	out, err := c.service.RunRefreshWithRetry(ctx, msg.ProviderLinkID, msg.UserID, msg.Options)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnqueueDueRefreshesCommand struct {
	service MutatingService
}

func NewEnqueueDueRefreshesCommand(service MutatingService) *EnqueueDueRefreshesCommand {
	return &EnqueueDueRefreshesCommand{service: service}
}

func (c *EnqueueDueRefreshesCommand) Execute(ctx context.Context, msg EnqueueDueRefreshesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh scheduler service is required")
	}
	out, err := c.service.EnqueueDueRefreshes(ctx, msg.Options)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
