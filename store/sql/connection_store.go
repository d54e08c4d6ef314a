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

type ConnectionStore struct {
	db   *bun.DB
	repo repository.Repository[*connectionRecord]
}

func (s *ConnectionStore) Create(ctx context.Context, conn core.Connection) (core.Connection, error) {
	if s == nil || s.repo == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(conn.ProviderLinkID) == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: provider link id is required")
	}
	if strings.TrimSpace(string(conn.Status)) == "" {
		conn.Status = core.ConnectionStatusPending
	}
	if conn.SyncFrequencyMinutes <= 0 {
		conn.SyncFrequencyMinutes = core.DefaultSyncFrequencyMinutes
	}

	record := newConnectionRecord(conn, time.Now().UTC())
	if tx, ok := txFromContext(ctx); ok {
		created, err := s.repo.CreateTx(ctx, tx, record)
		if err != nil {
			return core.Connection{}, err
		}
		return created.toDomain(), nil
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Connection{}, err
	}
	return created.toDomain(), nil
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: connection id is required")
	}
	record := new(connectionRecord)
	err := storeDB(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, fmt.Errorf("sqlstore: connection %s not found", trimmed)
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) GetByProviderLink(ctx context.Context, providerLinkID string) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(providerLinkID)
	if trimmed == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: provider link id is required")
	}
	record := new(connectionRecord)
	err := storeDB(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.provider_link_id = ?", trimmed).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, fmt.Errorf("sqlstore: connection for provider link %s not found", trimmed)
		}
		return core.Connection{}, err
	}
	return record.toDomain(), nil
}

func (s *ConnectionStore) Update(ctx context.Context, conn core.Connection) (core.Connection, error) {
	if s == nil || s.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmed := strings.TrimSpace(conn.ID)
	if trimmed == "" {
		return core.Connection{}, fmt.Errorf("sqlstore: connection id is required")
	}
	now := time.Now().UTC()
	record := newConnectionRecord(conn, now)
	record.CreatedAt = conn.CreatedAt
	result, err := storeDB(ctx, s.db).NewUpdate().
		Model(record).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return core.Connection{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.Connection{}, err
	}
	if affected == 0 {
		return core.Connection{}, fmt.Errorf("sqlstore: connection %s not found", trimmed)
	}
	conn.UpdatedAt = now
	return conn, nil
}

// ListDue returns connections whose next sync is at or before the
// given instant. Expired and revoked connections never come back.
func (s *ConnectionStore) ListDue(ctx context.Context, before time.Time, limit int) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.next_sync_at IS NOT NULL").
				Where("?TableAlias.next_sync_at <= ?", before.UTC()).
				Where("?TableAlias.status IN (?)", bun.In([]string{
					string(core.ConnectionStatusActive),
					string(core.ConnectionStatusError),
				}))
		}),
		repository.OrderBy("next_sync_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Connection, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
