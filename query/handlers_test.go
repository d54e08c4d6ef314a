package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeed/core"
	"github.com/goliatone/go-bankfeed/query"
)

type stubReaders struct {
	getValidAccessTokenFn   func(ctx context.Context, providerLinkID, userID string) (string, error)
	getCredentialMetadataFn func(ctx context.Context, providerLinkID string) (core.CredentialMetadata, error)
	listAuditTrailFn        func(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error)
}

func (s *stubReaders) GetValidAccessToken(ctx context.Context, providerLinkID, userID string) (string, error) {
	if s.getValidAccessTokenFn == nil {
		return "", nil
	}
	return s.getValidAccessTokenFn(ctx, providerLinkID, userID)
}

func (s *stubReaders) GetCredentialMetadata(ctx context.Context, providerLinkID string) (core.CredentialMetadata, error) {
	if s.getCredentialMetadataFn == nil {
		return core.CredentialMetadata{}, nil
	}
	return s.getCredentialMetadataFn(ctx, providerLinkID)
}

func (s *stubReaders) ListAuditTrail(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	if s.listAuditTrailFn == nil {
		return core.AuditPage{}, nil
	}
	return s.listAuditTrailFn(ctx, filter)
}

func TestGetAccessTokenQuery_DelegatesToReader(t *testing.T) {
	reader := &stubReaders{
		getValidAccessTokenFn: func(_ context.Context, providerLinkID, userID string) (string, error) {
			if providerLinkID != "link-1" {
				t.Fatalf("expected provider link link-1, got %q", providerLinkID)
			}
			if userID != "user-1" {
				t.Fatalf("expected user user-1, got %q", userID)
			}
			return "token-abc", nil
		},
	}

	token, err := query.NewGetAccessTokenQuery(reader).Query(context.Background(), query.GetAccessTokenMessage{
		ProviderLinkID: "link-1",
		UserID:         "user-1",
	})
	if err != nil {
		t.Fatalf("expected token, got error: %v", err)
	}
	if token != "token-abc" {
		t.Fatalf("expected token-abc, got %q", token)
	}
}

func TestGetCredentialMetadataQuery_DelegatesToReader(t *testing.T) {
	expiry := time.Now().Add(45 * time.Minute).UTC()
	reader := &stubReaders{
		getCredentialMetadataFn: func(_ context.Context, providerLinkID string) (core.CredentialMetadata, error) {
			if providerLinkID != "link-2" {
				t.Fatalf("expected provider link link-2, got %q", providerLinkID)
			}
			return core.CredentialMetadata{
				Found:           true,
				ExpiresAt:       &expiry,
				Scope:           "accounts transactions",
				RefreshCount:    3,
				HasRefreshToken: true,
			}, nil
		},
	}

	metadata, err := query.NewGetCredentialMetadataQuery(reader).Query(context.Background(), query.GetCredentialMetadataMessage{
		ProviderLinkID: "link-2",
	})
	if err != nil {
		t.Fatalf("expected metadata, got error: %v", err)
	}
	if metadata.RefreshCount != 3 {
		t.Fatalf("expected refresh count 3, got %d", metadata.RefreshCount)
	}
	if !metadata.HasRefreshToken {
		t.Fatal("expected has refresh token to be true")
	}
}

func TestListAuditTrailQuery_DelegatesFilter(t *testing.T) {
	reader := &stubReaders{
		listAuditTrailFn: func(_ context.Context, filter core.AuditFilter) (core.AuditPage, error) {
			if filter.ConnectionID != "conn-1" {
				t.Fatalf("expected connection conn-1, got %q", filter.ConnectionID)
			}
			if filter.Limit != 10 {
				t.Fatalf("expected limit 10, got %d", filter.Limit)
			}
			return core.AuditPage{
				Records: []core.AuditRecord{{ConnectionID: "conn-1", Action: core.AuditActionCredentialRefreshed}},
				Total:   1,
			}, nil
		},
	}

	page, err := query.NewListAuditTrailQuery(reader).Query(context.Background(), query.ListAuditTrailMessage{
		Filter: core.AuditFilter{ConnectionID: "conn-1", Limit: 10},
	})
	if err != nil {
		t.Fatalf("expected page, got error: %v", err)
	}
	if page.Total != 1 || len(page.Records) != 1 {
		t.Fatalf("expected one record, got total %d len %d", page.Total, len(page.Records))
	}
}

func TestQueries_PropagateReaderErrors(t *testing.T) {
	boom := errors.New("reader exploded")
	reader := &stubReaders{
		getValidAccessTokenFn: func(context.Context, string, string) (string, error) {
			return "", boom
		},
		listAuditTrailFn: func(context.Context, core.AuditFilter) (core.AuditPage, error) {
			return core.AuditPage{}, boom
		},
	}

	if _, err := query.NewGetAccessTokenQuery(reader).Query(context.Background(), query.GetAccessTokenMessage{
		ProviderLinkID: "link-1",
		UserID:         "user-1",
	}); !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}

	if _, err := query.NewListAuditTrailQuery(reader).Query(context.Background(), query.ListAuditTrailMessage{
		Filter: core.AuditFilter{ConnectionID: "conn-1"},
	}); !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{
			name: "access token requires link",
			err: query.GetAccessTokenMessage{
				UserID: "user-1",
			}.Validate(),
			wantErr: true,
		},
		{
			name: "access token requires user",
			err: query.GetAccessTokenMessage{
				ProviderLinkID: "link-1",
			}.Validate(),
			wantErr: true,
		},
		{
			name: "metadata requires link",
			err: query.GetCredentialMetadataMessage{
				ProviderLinkID: " ",
			}.Validate(),
			wantErr: true,
		},
		{
			name: "audit requires a scope",
			err: query.ListAuditTrailMessage{
				Filter: core.AuditFilter{Limit: 5},
			}.Validate(),
			wantErr: true,
		},
		{
			name: "audit rejects negative offset",
			err: query.ListAuditTrailMessage{
				Filter: core.AuditFilter{ConnectionID: "conn-1", Offset: -1},
			}.Validate(),
			wantErr: true,
		},
		{
			name: "audit accepts provider link scope",
			err: query.ListAuditTrailMessage{
				Filter: core.AuditFilter{ProviderLinkID: "link-1", Limit: 25},
			}.Validate(),
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.wantErr && tc.err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tc.wantErr && tc.err != nil {
				t.Fatalf("expected valid message, got %v", tc.err)
			}
		})
	}
}
