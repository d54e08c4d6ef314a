package tink

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
	raw := authURL.AuthorizationURL("", "", nil)
	if !strings.HasPrefix(raw, AuthURL) {
		t.Fatalf("expected default auth url, got %q", raw)
	}
	if !strings.Contains(raw, "provider-consents%3Aread") {
		t.Fatalf("expected default scopes in consent url, got %q", raw)
	}
}
