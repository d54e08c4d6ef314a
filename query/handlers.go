package query

import (
	"context"

	"github.com/goliatone/go-bankfeed/core"
)

// AccessTokenReader resolves a usable token, refreshing behind the scenes
// when the stored one is close to expiry.
type AccessTokenReader interface {
	GetValidAccessToken(ctx context.Context, providerLinkID, userID string) (string, error)
}

type CredentialMetadataReader interface {
	GetCredentialMetadata(ctx context.Context, providerLinkID string) (core.CredentialMetadata, error)
}

type AuditTrailReader interface {
	ListAuditTrail(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error)
}

type GetAccessTokenQuery struct {
	reader AccessTokenReader
}

func NewGetAccessTokenQuery(reader AccessTokenReader) *GetAccessTokenQuery {
	return &GetAccessTokenQuery{reader: reader}
}

func (q *GetAccessTokenQuery) Query(ctx context.Context, msg GetAccessTokenMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: access token reader is required")
	}
	return q.reader.GetValidAccessToken(ctx, msg.ProviderLinkID, msg.UserID)
}

type GetCredentialMetadataQuery struct {
	reader CredentialMetadataReader
}

func NewGetCredentialMetadataQuery(reader CredentialMetadataReader) *GetCredentialMetadataQuery {
	return &GetCredentialMetadataQuery{reader: reader}
}

func (q *GetCredentialMetadataQuery) Query(ctx context.Context, msg GetCredentialMetadataMessage) (core.CredentialMetadata, error) {
	if q == nil || q.reader == nil {
		return core.CredentialMetadata{}, queryDependencyError("query: credential metadata reader is required")
	}
	return q.reader.GetCredentialMetadata(ctx, msg.ProviderLinkID)
}

type ListAuditTrailQuery struct {
	reader AuditTrailReader
}

func NewListAuditTrailQuery(reader AuditTrailReader) *ListAuditTrailQuery {
	return &ListAuditTrailQuery{reader: reader}
}

func (q *ListAuditTrailQuery) Query(ctx context.Context, msg ListAuditTrailMessage) (core.AuditPage, error) {
	if q == nil || q.reader == nil {
		return core.AuditPage{}, queryDependencyError("query: audit trail reader is required")
	}
	return q.reader.ListAuditTrail(ctx, msg.Filter)
}
