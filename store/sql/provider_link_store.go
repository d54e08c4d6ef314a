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

type ProviderLinkStore struct {
	db   *bun.DB
	repo repository.Repository[*providerLinkRecord]
}

func (s *ProviderLinkStore) Create(ctx context.Context, in core.CreateProviderLinkInput) (core.ProviderLink, error) {
	if s == nil || s.repo == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	link := core.ProviderLink{
		UserID:      strings.TrimSpace(in.UserID),
		ProviderKey: strings.TrimSpace(in.ProviderKey),
		Alias:       strings.TrimSpace(in.Alias),
	}
	if err := link.Validate(); err != nil {
		return core.ProviderLink{}, err
	}

	record := newProviderLinkRecord(core.CreateProviderLinkInput{
		UserID:      link.UserID,
		ProviderKey: link.ProviderKey,
		Alias:       link.Alias,
	}, time.Now().UTC())

	if tx, ok := txFromContext(ctx); ok {
		created, err := s.repo.CreateTx(ctx, tx, record)
		if err != nil {
			return core.ProviderLink{}, err
		}
		return created.toDomain(), nil
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.ProviderLink{}, err
	}
	return created.toDomain(), nil
}

func (s *ProviderLinkStore) Get(ctx context.Context, id string) (core.ProviderLink, error) {
	if s == nil || s.db == nil {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link id is required")
	}
	record := new(providerLinkRecord)
	err := storeDB(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProviderLink{}, fmt.Errorf("sqlstore: provider link %s not found", trimmed)
		}
		return core.ProviderLink{}, err
	}
	return record.toDomain(), nil
}

func (s *ProviderLinkStore) ListByUser(ctx context.Context, userID string) ([]core.ProviderLink, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: provider link store is not configured")
	}
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmed),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ProviderLink, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Delete removes the link and everything hanging off it. The schema
// cascades connections, credentials, and audit rows.
func (s *ProviderLinkStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: provider link store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: provider link id is required")
	}
	result, err := storeDB(ctx, s.db).NewDelete().
		Model((*providerLinkRecord)(nil)).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: provider link %s not found", trimmed)
	}
	return nil
}
