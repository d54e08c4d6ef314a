package query

import (
	"github.com/goliatone/go-bankfeed/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetAccessTokenMessage, string]                         = (*GetAccessTokenQuery)(nil)
	_ gocmd.Querier[GetCredentialMetadataMessage, core.CredentialMetadata] = (*GetCredentialMetadataQuery)(nil)
	_ gocmd.Querier[ListAuditTrailMessage, core.AuditPage]                 = (*ListAuditTrailQuery)(nil)
)
