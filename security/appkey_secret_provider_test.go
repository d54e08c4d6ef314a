package security

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newTestProvider(t *testing.T, opts ...Option) *AppKeySecretProvider {
	t.Helper()
	provider, err := NewAppKeySecretProviderFromString("bankfeed-test-key", opts...)
	if err != nil {
		t.Fatalf("NewAppKeySecretProviderFromString returned error: %v", err)
	}
	return provider
}

func TestAppKeySecretProviderRoundTrip(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		plaintext string
	}{
		{name: "token", plaintext: "at_live_f4c1a55e"},
		{name: "empty", plaintext: ""},
		{name: "unicode", plaintext: "bänk-fééd-令牌"},
		{name: "json payload", plaintext: `{"refresh_token":"rt_1","scope":"accounts"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := provider.Encrypt(ctx, []byte(tc.plaintext))
			if err != nil {
				t.Fatalf("Encrypt returned error: %v", err)
			}
			if !strings.HasPrefix(string(sealed), envelopePrefix) {
				t.Fatalf("expected envelope prefix, got %q", sealed)
			}
			if strings.Contains(string(sealed), tc.plaintext) && tc.plaintext != "" {
				t.Fatalf("ciphertext leaks plaintext: %q", sealed)
			}

			opened, err := provider.Decrypt(ctx, sealed)
			if err != nil {
				t.Fatalf("Decrypt returned error: %v", err)
			}
			if string(opened) != tc.plaintext {
				t.Fatalf("expected plaintext %q, got %q", tc.plaintext, opened)
			}
		})
	}
}

func TestAppKeySecretProviderEncryptIsNonDeterministic(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	first, err := provider.Encrypt(ctx, []byte("rt_repeat"))
	if err != nil {
		t.Fatalf("first Encrypt returned error: %v", err)
	}
	second, err := provider.Encrypt(ctx, []byte("rt_repeat"))
	if err != nil {
		t.Fatalf("second Encrypt returned error: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct envelopes for repeated plaintext")
	}
}

func TestAppKeySecretProviderRequiresKeyMaterial(t *testing.T) {
	if _, err := NewAppKeySecretProvider(nil); err == nil {
		t.Fatalf("expected error for nil key material")
	}
	if _, err := NewAppKeySecretProviderFromString("   "); err == nil {
		t.Fatalf("expected error for blank key material")
	}
}

func TestAppKeySecretProviderDecryptFailures(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	sealed, err := provider.Encrypt(ctx, []byte("rt_victim"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	tampered := bytes.Clone(sealed)
	idx := bytes.Index(tampered, []byte(`"ciphertext":"`)) + len(`"ciphertext":"`)
	if tampered[idx] == 'A' {
		tampered[idx] = 'B'
	} else {
		tampered[idx] = 'A'
	}

	otherKey := newTestProvider(t)
	otherKey.key = normalizeKey([]byte("a-completely-different-secret"))

	cases := []struct {
		name       string
		provider   *AppKeySecretProvider
		ciphertext []byte
		wantSubstr string
	}{
		{name: "empty ciphertext", provider: provider, ciphertext: nil, wantSubstr: "ciphertext is required"},
		{name: "missing envelope prefix", provider: provider, ciphertext: []byte("plain-old-token"), wantSubstr: "missing envelope prefix"},
		{name: "prefixed but not json", provider: provider, ciphertext: []byte(envelopePrefix + "plain-old-token"), wantSubstr: "decode envelope"},
		{name: "tampered payload", provider: provider, ciphertext: tampered, wantSubstr: "decrypt payload"},
		{name: "wrong key", provider: otherKey, ciphertext: sealed, wantSubstr: "decrypt payload"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.provider.Decrypt(ctx, tc.ciphertext); err == nil || !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSubstr, err)
			}
		})
	}
}

func TestAppKeySecretProviderRejectsMismatchedMetadata(t *testing.T) {
	writer := newTestProvider(t, WithKeyID("key-a"), WithVersion(2))
	ctx := context.Background()

	sealed, err := writer.Encrypt(ctx, []byte("rt_rotate"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	wrongID := newTestProvider(t, WithKeyID("key-b"), WithVersion(2))
	if _, err := wrongID.Decrypt(ctx, sealed); err == nil || !strings.Contains(err.Error(), "key id mismatch") {
		t.Fatalf("expected key id mismatch, got %v", err)
	}

	wrongVersion := newTestProvider(t, WithKeyID("key-a"), WithVersion(3))
	if _, err := wrongVersion.Decrypt(ctx, sealed); err == nil || !strings.Contains(err.Error(), "key version mismatch") {
		t.Fatalf("expected key version mismatch, got %v", err)
	}
}

func TestAppKeySecretProviderKeyNormalization(t *testing.T) {
	exact := []byte("0123456789abcdef0123456789abcdef")
	if got := normalizeKey(exact); !bytes.Equal(got, exact) {
		t.Fatalf("expected 32-byte material used verbatim")
	}

	short := normalizeKey([]byte("short"))
	if len(short) != 32 {
		t.Fatalf("expected derived key of 32 bytes, got %d", len(short))
	}
	if bytes.Equal(short, normalizeKey([]byte("other"))) {
		t.Fatalf("expected distinct derived keys for distinct secrets")
	}
	if !bytes.Equal(short, normalizeKey([]byte("short"))) {
		t.Fatalf("expected stable derivation for the same secret")
	}
}

func TestAppKeySecretProviderMetadataOptions(t *testing.T) {
	provider := newTestProvider(t)
	if id, version := provider.Metadata(); id != "app-key" || version != 1 {
		t.Fatalf("expected default metadata app-key/1, got %s/%d", id, version)
	}

	custom := newTestProvider(t, WithKeyID("  vault-2026  "), WithVersion(4))
	if custom.KeyID() != "vault-2026" {
		t.Fatalf("expected trimmed key id, got %q", custom.KeyID())
	}
	if custom.Version() != 4 {
		t.Fatalf("expected version 4, got %d", custom.Version())
	}

	ignored := newTestProvider(t, WithKeyID("   "), WithVersion(0), nil)
	if ignored.KeyID() != "app-key" || ignored.Version() != 1 {
		t.Fatalf("expected blank option values ignored, got %s/%d", ignored.KeyID(), ignored.Version())
	}
}

func TestAppKeySecretProviderEnvelopeShape(t *testing.T) {
	provider := newTestProvider(t, WithKeyID("key-a"), WithVersion(2))
	sealed, err := provider.Encrypt(context.Background(), []byte("rt_shape"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	var parsed envelope
	payload := strings.TrimPrefix(string(sealed), envelopePrefix)
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		t.Fatalf("envelope is not valid JSON: %v", err)
	}
	if parsed.KeyID != "key-a" || parsed.Version != 2 {
		t.Fatalf("unexpected metadata %s/%d", parsed.KeyID, parsed.Version)
	}
	if parsed.Algorithm != "aes-256-gcm" {
		t.Fatalf("unexpected algorithm %q", parsed.Algorithm)
	}
	if parsed.Nonce == "" || parsed.Ciphertext == "" {
		t.Fatalf("expected nonce and ciphertext fields to be populated")
	}
}
