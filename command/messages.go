package command

import (
	"strings"

	"github.com/goliatone/go-bankfeed/core"
)

const (
	TypeStoreCredentials    = "bankfeed.command.credentials.store"
	TypeRefreshCredentials  = "bankfeed.command.credentials.refresh"
	TypeRevokeCredentials   = "bankfeed.command.credentials.revoke"
	TypeCreateProviderLink  = "bankfeed.command.provider_link.create"
	TypeDeleteProviderLink  = "bankfeed.command.provider_link.delete"
	TypeRecordSyncSuccess   = "bankfeed.command.sync.record_success"
	TypeRecordSyncFailure   = "bankfeed.command.sync.record_failure"
	TypeRunRefreshWithRetry = "bankfeed.command.refresh.run_with_retry"
	TypeEnqueueDueRefreshes = "bankfeed.command.refresh.enqueue_due"
)

type StoreCredentialsMessage struct {
	Input core.StoreCredentialsInput
}

func (StoreCredentialsMessage) Type() string { return TypeStoreCredentials }

func (m StoreCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.Input.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.Input.UserID) == "" {
		return commandRequiredField("user_id")
	}
	if strings.TrimSpace(m.Input.Tokens.AccessToken) == "" {
		return commandRequiredField("access_token")
	}
	return nil
}

type RefreshCredentialsMessage struct {
	ProviderLinkID string
	UserID         string
}

func (RefreshCredentialsMessage) Type() string { return TypeRefreshCredentials }

func (m RefreshCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandRequiredField("user_id")
	}
	return nil
}

type RevokeCredentialsMessage struct {
	ProviderLinkID string
	UserID         string
	Requester      core.RequesterContext
}

func (RevokeCredentialsMessage) Type() string { return TypeRevokeCredentials }

func (m RevokeCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandRequiredField("user_id")
	}
	return nil
}

type CreateProviderLinkMessage struct {
	Input core.CreateProviderLinkInput
}

func (CreateProviderLinkMessage) Type() string { return TypeCreateProviderLink }

func (m CreateProviderLinkMessage) Validate() error {
	if strings.TrimSpace(m.Input.UserID) == "" {
		return commandRequiredField("user_id")
	}
	if strings.TrimSpace(m.Input.ProviderKey) == "" {
		return commandRequiredField("provider_key")
	}
	if strings.TrimSpace(m.Input.Alias) == "" {
		return commandRequiredField("alias")
	}
	return nil
}

type DeleteProviderLinkMessage struct {
	ProviderLinkID string
	UserID         string
}

func (DeleteProviderLinkMessage) Type() string { return TypeDeleteProviderLink }

func (m DeleteProviderLinkMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandRequiredField("user_id")
	}
	return nil
}

type RecordSyncSuccessMessage struct {
	ProviderLinkID string
	Accounts       []string
}

func (RecordSyncSuccessMessage) Type() string { return TypeRecordSyncSuccess }

func (m RecordSyncSuccessMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	return nil
}

type RecordSyncFailureMessage struct {
	ProviderLinkID string
	Reason         string
}

func (RecordSyncFailureMessage) Type() string { return TypeRecordSyncFailure }

func (m RecordSyncFailureMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.Reason) == "" {
		return commandRequiredField("failure_reason")
	}
	return nil
}

type RunRefreshWithRetryMessage struct {
	ProviderLinkID string
	UserID         string
	Options        core.RefreshRunOptions
}

func (RunRefreshWithRetryMessage) Type() string { return TypeRunRefreshWithRetry }

func (m RunRefreshWithRetryMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return commandRequiredField("provider_link_id")
	}
	return nil
}

type EnqueueDueRefreshesMessage struct {
	Options core.EnqueueDueRefreshesOptions
}

func (EnqueueDueRefreshesMessage) Type() string { return TypeEnqueueDueRefreshes }

func (m EnqueueDueRefreshesMessage) Validate() error {
	if m.Options.Limit < 0 {
		return commandValidationError("limit", "limit must not be negative")
	}
	return nil
}
