package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StoreCredentialsMessage]    = (*StoreCredentialsCommand)(nil)
	_ gocmd.Commander[RefreshCredentialsMessage]  = (*RefreshCredentialsCommand)(nil)
	_ gocmd.Commander[RevokeCredentialsMessage]   = (*RevokeCredentialsCommand)(nil)
	_ gocmd.Commander[CreateProviderLinkMessage]  = (*CreateProviderLinkCommand)(nil)
	_ gocmd.Commander[DeleteProviderLinkMessage]  = (*DeleteProviderLinkCommand)(nil)
	_ gocmd.Commander[RecordSyncSuccessMessage]   = (*RecordSyncSuccessCommand)(nil)
	_ gocmd.Commander[RecordSyncFailureMessage]   = (*RecordSyncFailureCommand)(nil)
	_ gocmd.Commander[RunRefreshWithRetryMessage] = (*RunRefreshWithRetryCommand)(nil)
	_ gocmd.Commander[EnqueueDueRefreshesMessage] = (*EnqueueDueRefreshesCommand)(nil)
)
