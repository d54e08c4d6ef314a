package sqlstore

import "github.com/goliatone/go-bankfeed/core"

var (
	_ core.ProviderLinkStore      = (*ProviderLinkStore)(nil)
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.AuditStore             = (*AuditStore)(nil)
	_ core.TxRunner               = (*TxRunner)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
