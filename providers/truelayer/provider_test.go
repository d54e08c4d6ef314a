package truelayer

import (
	"strings"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	adapter, err := New(Config{ClientID: "client_1", ClientSecret: "secret_1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if adapter.Key() != ProviderKey {
		t.Fatalf("expected key %q, got %q", ProviderKey, adapter.Key())
	}
	if !adapter.Configured() {
		t.Fatalf("expected adapter with credentials to report configured")
	}

	authURL, ok := adapter.(interface {
		AuthorizationURL(redirectURI, state string, scopes []string) string
	})
	if !ok {
		t.Fatalf("expected adapter to build authorization urls")
	}
	raw := authURL.AuthorizationURL("https://app.example/callback", "", nil)
	if !strings.HasPrefix(raw, AuthURL) {
		t.Fatalf("expected default auth url, got %q", raw)
	}
	if !strings.Contains(raw, "offline_access") {
		t.Fatalf("expected default scopes to include offline_access, got %q", raw)
	}
}

func TestNewHonorsOverrides(t *testing.T) {
	adapter, err := New(Config{
		ClientID: "client_1",
		AuthURL:  "https://sandbox.truelayer.example/",
		TokenURL: "https://sandbox.truelayer.example/connect/token",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if adapter.Configured() {
		t.Fatalf("expected adapter without secret to report unconfigured")
	}
}
