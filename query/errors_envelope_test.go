package query_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-bankfeed/core"
	"github.com/goliatone/go-bankfeed/query"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetAccessTokenMessage_ValidateReturnsRichError(t *testing.T) {
	err := query.GetAccessTokenMessage{}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected goerrors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %s", rich.Category)
	}
	if rich.TextCode != core.BankfeedErrorBadInput {
		t.Fatalf("expected %s text code, got %s", core.BankfeedErrorBadInput, rich.TextCode)
	}
}

func TestGetCredentialMetadataQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *query.GetCredentialMetadataQuery
	_, err := q.Query(context.Background(), query.GetCredentialMetadataMessage{ProviderLinkID: "link-1"})
	if err == nil {
		t.Fatal("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected goerrors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %s", rich.Category)
	}
	if rich.TextCode != core.BankfeedErrorInternal {
		t.Fatalf("expected %s text code, got %s", core.BankfeedErrorInternal, rich.TextCode)
	}
}
