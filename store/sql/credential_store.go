package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeed/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) Create(ctx context.Context, cred core.Credential) (core.Credential, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	if strings.TrimSpace(cred.ConnectionID) == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: connection id is required")
	}
	if len(cred.AccessTokenCiphertext) == 0 {
		return core.Credential{}, fmt.Errorf("sqlstore: access token ciphertext is required")
	}

	record := newCredentialRecord(cred, time.Now().UTC())
	if tx, ok := txFromContext(ctx); ok {
		created, err := s.repo.CreateTx(ctx, tx, record)
		if err != nil {
			return core.Credential{}, err
		}
		return created.toDomain(), nil
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Credential{}, err
	}
	return created.toDomain(), nil
}

func (s *CredentialStore) GetByConnection(ctx context.Context, connectionID string) (core.Credential, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	trimmed := strings.TrimSpace(connectionID)
	if trimmed == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: connection id is required")
	}
	record := new(credentialRecord)
	err := storeDB(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.connection_id = ?", trimmed).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Credential{}, fmt.Errorf("sqlstore: credential for connection %s not found", trimmed)
		}
		return core.Credential{}, err
	}
	return record.toDomain(), nil
}

func (s *CredentialStore) Update(ctx context.Context, cred core.Credential) (core.Credential, error) {
	if s == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	trimmed := strings.TrimSpace(cred.ID)
	if trimmed == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: credential id is required")
	}
	now := time.Now().UTC()
	record := newCredentialRecord(cred, now)
	record.CreatedAt = cred.CreatedAt
	result, err := storeDB(ctx, s.db).NewUpdate().
		Model(record).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return core.Credential{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Credential{}, err
	}
	if affected == 0 {
		return core.Credential{}, fmt.Errorf("sqlstore: credential %s not found", trimmed)
	}
	cred.UpdatedAt = now
	return cred, nil
}

// DeleteByConnection hard-deletes the token material. Revocation keeps
// the connection and audit rows; only ciphertext leaves the database.
func (s *CredentialStore) DeleteByConnection(ctx context.Context, connectionID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	trimmed := strings.TrimSpace(connectionID)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	result, err := storeDB(ctx, s.db).NewDelete().
		Model((*credentialRecord)(nil)).
		Where("connection_id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: credential for connection %s not found", trimmed)
	}
	return nil
}
