package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeed/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const defaultAuditPageSize = 50

// AuditStore is append-only. There is no update or delete path; rows
// disappear only through the provider-link cascade.
type AuditStore struct {
	db   *bun.DB
	repo repository.Repository[*auditRecordRow]
}

func (s *AuditStore) Append(ctx context.Context, record core.AuditRecord) (core.AuditRecord, error) {
	if s == nil || s.repo == nil {
		return core.AuditRecord{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	if strings.TrimSpace(record.ConnectionID) == "" {
		return core.AuditRecord{}, fmt.Errorf("sqlstore: audit connection id is required")
	}
	if strings.TrimSpace(record.ProviderLinkID) == "" {
		return core.AuditRecord{}, fmt.Errorf("sqlstore: audit provider link id is required")
	}
	if err := record.Action.Validate(); err != nil {
		return core.AuditRecord{}, err
	}
	if strings.TrimSpace(record.Actor) == "" {
		record.Actor = core.SystemActor
	}
	record.Details = core.RedactSensitiveMap(record.Details)

	row := newAuditRecordRow(record, time.Now().UTC())
	if tx, ok := txFromContext(ctx); ok {
		created, err := s.repo.CreateTx(ctx, tx, row)
		if err != nil {
			return core.AuditRecord{}, err
		}
		return created.toDomain(), nil
	}
	created, err := s.repo.Create(ctx, row)
	if err != nil {
		return core.AuditRecord{}, err
	}
	return created.toDomain(), nil
}

func (s *AuditStore) List(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	if s == nil || s.repo == nil {
		return core.AuditPage{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	criteria := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return applyAuditFilter(q, filter)
		}),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	}

	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.AuditPage{}, err
	}

	out := make([]core.AuditRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return core.AuditPage{Records: out, Total: total}, nil
}

func applyAuditFilter(q *bun.SelectQuery, filter core.AuditFilter) *bun.SelectQuery {
	if connectionID := strings.TrimSpace(filter.ConnectionID); connectionID != "" {
		q = q.Where("?TableAlias.connection_id = ?", connectionID)
	}
	if providerLinkID := strings.TrimSpace(filter.ProviderLinkID); providerLinkID != "" {
		q = q.Where("?TableAlias.provider_link_id = ?", providerLinkID)
	}
	if action := strings.TrimSpace(string(filter.Action)); action != "" {
		q = q.Where("?TableAlias.action = ?", action)
	}
	return q
}
