package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeed/core"
	gocmd "github.com/goliatone/go-command"
)

type stubMutatingService struct {
	storeCredentialsFn    func(ctx context.Context, in core.StoreCredentialsInput) (core.Credential, error)
	refreshCredentialsFn  func(ctx context.Context, providerLinkID, userID string) (core.Credential, error)
	revokeCredentialsFn   func(ctx context.Context, providerLinkID, userID string, requester core.RequesterContext) error
	createProviderLinkFn  func(ctx context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error)
	deleteProviderLinkFn  func(ctx context.Context, providerLinkID, userID string) error
	recordSyncSuccessFn   func(ctx context.Context, providerLinkID string, accounts []string) error
	recordSyncFailureFn   func(ctx context.Context, providerLinkID, reason string) error
	runRefreshWithRetryFn func(ctx context.Context, providerLinkID, userID string, opts core.RefreshRunOptions) (core.RefreshRunResult, error)
	enqueueDueRefreshesFn func(ctx context.Context, opts core.EnqueueDueRefreshesOptions) (core.EnqueueDueRefreshesResult, error)
}

func (s stubMutatingService) StoreInitialCredentials(ctx context.Context, in core.StoreCredentialsInput) (core.Credential, error) {
	if s.storeCredentialsFn != nil {
		return s.storeCredentialsFn(ctx, in)
	}
	return core.Credential{}, nil
}

func (s stubMutatingService) RefreshCredentials(ctx context.Context, providerLinkID, userID string) (core.Credential, error) {
	if s.refreshCredentialsFn != nil {
		return s.refreshCredentialsFn(ctx, providerLinkID, userID)
	}
	return core.Credential{}, nil
}

func (s stubMutatingService) RevokeCredentials(ctx context.Context, providerLinkID, userID string, requester core.RequesterContext) error {
	if s.revokeCredentialsFn != nil {
		return s.revokeCredentialsFn(ctx, providerLinkID, userID, requester)
	}
	return nil
}

func (s stubMutatingService) CreateProviderLink(ctx context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error) {
	if s.createProviderLinkFn != nil {
		return s.createProviderLinkFn(ctx, in)
	}
	return core.ProviderLink{}, nil
}

func (s stubMutatingService) DeleteProviderLink(ctx context.Context, providerLinkID, userID string) error {
	if s.deleteProviderLinkFn != nil {
		return s.deleteProviderLinkFn(ctx, providerLinkID, userID)
	}
	return nil
}

func (s stubMutatingService) RecordSyncSuccess(ctx context.Context, providerLinkID string, accounts []string) error {
	if s.recordSyncSuccessFn != nil {
		return s.recordSyncSuccessFn(ctx, providerLinkID, accounts)
	}
	return nil
}

func (s stubMutatingService) RecordSyncFailure(ctx context.Context, providerLinkID, reason string) error {
	if s.recordSyncFailureFn != nil {
		return s.recordSyncFailureFn(ctx, providerLinkID, reason)
	}
	return nil
}

func (s stubMutatingService) RunRefreshWithRetry(ctx context.Context, providerLinkID, userID string, opts core.RefreshRunOptions) (core.RefreshRunResult, error) {
	if s.runRefreshWithRetryFn != nil {
		return s.runRefreshWithRetryFn(ctx, providerLinkID, userID, opts)
	}
	return core.RefreshRunResult{}, nil
}

func (s stubMutatingService) EnqueueDueRefreshes(ctx context.Context, opts core.EnqueueDueRefreshesOptions) (core.EnqueueDueRefreshesResult, error) {
	if s.enqueueDueRefreshesFn != nil {
		return s.enqueueDueRefreshesFn(ctx, opts)
	}
	return core.EnqueueDueRefreshesResult{}, nil
}

func TestStoreCredentialsCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Credential{ID: "cred_1", ConnectionID: "conn_1", RefreshCount: 0}
	called := false

	svc := stubMutatingService{
		storeCredentialsFn: func(_ context.Context, in core.StoreCredentialsInput) (core.Credential, error) {
			called = true
			if in.ProviderLinkID != "link_1" {
				t.Fatalf("expected provider link link_1, got %q", in.ProviderLinkID)
			}
			return expected, nil
		},
	}

	cmd := NewStoreCredentialsCommand(svc)
	collector := gocmd.NewResult[core.Credential]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, StoreCredentialsMessage{Input: core.StoreCredentialsInput{
		ProviderLinkID: "link_1",
		UserID:         "usr_1",
		Tokens:         core.TokenPayload{AccessToken: "at"},
	}})
	if err != nil {
		t.Fatalf("execute store credentials: %v", err)
	}
	if !called {
		t.Fatalf("expected store credentials invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != expected.ID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("refresh", func(t *testing.T) {
		expected := core.Credential{ID: "cred_1", RefreshCount: 3}
		called := false
		svc := stubMutatingService{
			refreshCredentialsFn: func(_ context.Context, providerLinkID, userID string) (core.Credential, error) {
				called = true
				if providerLinkID != "link_1" || userID != "usr_1" {
					t.Fatalf("unexpected refresh payload: %q %q", providerLinkID, userID)
				}
				return expected, nil
			},
		}
		cmd := NewRefreshCredentialsCommand(svc)
		collector := gocmd.NewResult[core.Credential]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RefreshCredentialsMessage{ProviderLinkID: "link_1", UserID: "usr_1"}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		if !called {
			t.Fatalf("expected refresh invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected refresh result")
		}
		if stored.RefreshCount != 3 {
			t.Fatalf("unexpected refresh result: %#v", stored)
		}
	})

	t.Run("revoke", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			revokeCredentialsFn: func(_ context.Context, providerLinkID, userID string, requester core.RequesterContext) error {
				called = true
				if providerLinkID != "link_1" || userID != "usr_1" {
					t.Fatalf("unexpected revoke payload: %q %q", providerLinkID, userID)
				}
				if requester.IPAddress != "10.0.0.1" {
					t.Fatalf("expected requester context to pass through")
				}
				return nil
			},
		}
		cmd := NewRevokeCredentialsCommand(svc)
		msg := RevokeCredentialsMessage{
			ProviderLinkID: "link_1",
			UserID:         "usr_1",
			Requester:      core.RequesterContext{UserID: "usr_1", IPAddress: "10.0.0.1"},
		}
		if err := cmd.Execute(context.Background(), msg); err != nil {
			t.Fatalf("execute revoke: %v", err)
		}
		if !called {
			t.Fatalf("expected revoke invocation")
		}
	})

	t.Run("provider link lifecycle", func(t *testing.T) {
		createdCalled := false
		deletedCalled := false
		svc := stubMutatingService{
			createProviderLinkFn: func(_ context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error) {
				createdCalled = true
				return core.ProviderLink{ID: "link_1", Alias: in.Alias}, nil
			},
			deleteProviderLinkFn: func(_ context.Context, providerLinkID, userID string) error {
				deletedCalled = true
				if providerLinkID != "link_1" {
					t.Fatalf("unexpected delete target %q", providerLinkID)
				}
				return nil
			},
		}
		createCmd := NewCreateProviderLinkCommand(svc)
		collector := gocmd.NewResult[core.ProviderLink]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := createCmd.Execute(ctx, CreateProviderLinkMessage{Input: core.CreateProviderLinkInput{
			UserID:      "usr_1",
			ProviderKey: "truelayer",
			Alias:       "Checking",
		}})
		if err != nil {
			t.Fatalf("execute create provider link: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || stored.ID != "link_1" {
			t.Fatalf("expected created link result, got %#v", stored)
		}

		deleteCmd := NewDeleteProviderLinkCommand(svc)
		if err := deleteCmd.Execute(context.Background(), DeleteProviderLinkMessage{ProviderLinkID: "link_1", UserID: "usr_1"}); err != nil {
			t.Fatalf("execute delete provider link: %v", err)
		}
		if !createdCalled || !deletedCalled {
			t.Fatalf("expected create and delete invocations")
		}
	})

	t.Run("sync results", func(t *testing.T) {
		successCalled := false
		failureCalled := false
		svc := stubMutatingService{
			recordSyncSuccessFn: func(_ context.Context, providerLinkID string, accounts []string) error {
				successCalled = true
				if len(accounts) != 2 {
					t.Fatalf("expected accounts to pass through, got %v", accounts)
				}
				return nil
			},
			recordSyncFailureFn: func(_ context.Context, providerLinkID, reason string) error {
				failureCalled = true
				if reason != "upstream timeout" {
					t.Fatalf("unexpected failure reason %q", reason)
				}
				return nil
			},
		}
		successCmd := NewRecordSyncSuccessCommand(svc)
		if err := successCmd.Execute(context.Background(), RecordSyncSuccessMessage{
			ProviderLinkID: "link_1",
			Accounts:       []string{"acct_1", "acct_2"},
		}); err != nil {
			t.Fatalf("execute record sync success: %v", err)
		}
		failureCmd := NewRecordSyncFailureCommand(svc)
		if err := failureCmd.Execute(context.Background(), RecordSyncFailureMessage{
			ProviderLinkID: "link_1",
			Reason:         "upstream timeout",
		}); err != nil {
			t.Fatalf("execute record sync failure: %v", err)
		}
		if !successCalled || !failureCalled {
			t.Fatalf("expected sync result invocations")
		}
	})

	t.Run("refresh runner", func(t *testing.T) {
		svc := stubMutatingService{
			runRefreshWithRetryFn: func(_ context.Context, providerLinkID, userID string, opts core.RefreshRunOptions) (core.RefreshRunResult, error) {
				if opts.MaxAttempts != 5 {
					t.Fatalf("expected max attempts to pass through, got %d", opts.MaxAttempts)
				}
				return core.RefreshRunResult{Attempts: 2}, nil
			},
		}
		cmd := NewRunRefreshWithRetryCommand(svc)
		collector := gocmd.NewResult[core.RefreshRunResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, RunRefreshWithRetryMessage{
			ProviderLinkID: "link_1",
			UserID:         "usr_1",
			Options:        core.RefreshRunOptions{MaxAttempts: 5},
		})
		if err != nil {
			t.Fatalf("execute run refresh with retry: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || stored.Attempts != 2 {
			t.Fatalf("expected refresh run result, got %#v", stored)
		}
	})

	t.Run("enqueue due refreshes", func(t *testing.T) {
		before := time.Now().UTC()
		svc := stubMutatingService{
			enqueueDueRefreshesFn: func(_ context.Context, opts core.EnqueueDueRefreshesOptions) (core.EnqueueDueRefreshesResult, error) {
				if !opts.Before.Equal(before) {
					t.Fatalf("expected before cutoff to pass through")
				}
				return core.EnqueueDueRefreshesResult{Scanned: 4, Enqueued: 3}, nil
			},
		}
		cmd := NewEnqueueDueRefreshesCommand(svc)
		collector := gocmd.NewResult[core.EnqueueDueRefreshesResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, EnqueueDueRefreshesMessage{Options: core.EnqueueDueRefreshesOptions{Before: before, Limit: 10}})
		if err != nil {
			t.Fatalf("execute enqueue due refreshes: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || stored.Enqueued != 3 {
			t.Fatalf("expected enqueue result, got %#v", stored)
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	svcErr := fmt.Errorf("boom")
	svc := stubMutatingService{
		refreshCredentialsFn: func(context.Context, string, string) (core.Credential, error) {
			return core.Credential{}, svcErr
		},
	}
	cmd := NewRefreshCredentialsCommand(svc)
	if err := cmd.Execute(context.Background(), RefreshCredentialsMessage{ProviderLinkID: "link_1", UserID: "usr_1"}); err == nil {
		t.Fatalf("expected service error to propagate")
	}
}
