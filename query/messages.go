package query

import (
	"strings"

	"github.com/goliatone/go-bankfeed/core"
)

const (
	TypeGetAccessToken        = "bankfeed.query.credentials.access_token"
	TypeGetCredentialMetadata = "bankfeed.query.credentials.metadata"
	TypeListAuditTrail        = "bankfeed.query.audit.list"
)

type GetAccessTokenMessage struct {
	ProviderLinkID string
	UserID         string
}

func (GetAccessTokenMessage) Type() string { return TypeGetAccessToken }

func (m GetAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return queryRequiredField("provider_link_id")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return queryRequiredField("user_id")
	}
	return nil
}

type GetCredentialMetadataMessage struct {
	ProviderLinkID string
}

func (GetCredentialMetadataMessage) Type() string { return TypeGetCredentialMetadata }

func (m GetCredentialMetadataMessage) Validate() error {
	if strings.TrimSpace(m.ProviderLinkID) == "" {
		return queryRequiredField("provider_link_id")
	}
	return nil
}

type ListAuditTrailMessage struct {
	Filter core.AuditFilter
}

func (ListAuditTrailMessage) Type() string { return TypeListAuditTrail }

func (m ListAuditTrailMessage) Validate() error {
	if strings.TrimSpace(m.Filter.ConnectionID) == "" && strings.TrimSpace(m.Filter.ProviderLinkID) == "" {
		return queryValidationError("filter", "connection id or provider link id is required")
	}
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}
