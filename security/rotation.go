package security

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-bankfeed/core"
)

// KeyRotationWindow gates when a key version is allowed to encrypt/decrypt.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

// EnvelopeMetadata identifies which key sealed a stored ciphertext.
type EnvelopeMetadata struct {
	KeyID   string
	Version int
}

// ParseEnvelopeMetadata reads kid/ver out of a stored ciphertext
// without decrypting. Rotation sweeps use it to find rows still sealed
// under a retiring key.
func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{KeyID: parsed.KeyID, Version: parsed.Version}, nil
}

// Reencrypt re-wraps a ciphertext sealed by old under next. Stored
// rows keep their shape, so key rotation needs no schema change.
func Reencrypt(ctx context.Context, old, next core.SecretProvider, ciphertext []byte) ([]byte, error) {
	if old == nil || next == nil {
		return nil, fmt.Errorf("security: both secret providers are required")
	}
	plaintext, err := old.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: reencrypt decrypt step: %w", err)
	}
	sealed, err := next.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("security: reencrypt encrypt step: %w", err)
	}
	return sealed, nil
}
