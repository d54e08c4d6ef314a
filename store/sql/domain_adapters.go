package sqlstore

import (
	"time"

	"github.com/goliatone/go-bankfeed/core"
)

func newProviderLinkRecord(in core.CreateProviderLinkInput, now time.Time) *providerLinkRecord {
	return &providerLinkRecord{
		UserID:      in.UserID,
		ProviderKey: in.ProviderKey,
		Alias:       in.Alias,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *providerLinkRecord) toDomain() core.ProviderLink {
	if r == nil {
		return core.ProviderLink{}
	}
	return core.ProviderLink{
		ID:          r.ID,
		UserID:      r.UserID,
		ProviderKey: r.ProviderKey,
		Alias:       r.Alias,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newConnectionRecord(conn core.Connection, now time.Time) *connectionRecord {
	record := &connectionRecord{
		ID:                   conn.ID,
		ProviderLinkID:       conn.ProviderLinkID,
		Status:               string(conn.Status),
		SyncFrequencyMinutes: conn.SyncFrequencyMinutes,
		ErrorCount:           conn.ErrorCount,
		ErrorMessage:         conn.ErrorMessage,
		AccountsCount:        conn.AccountsCount,
		AccountsList:         copyStringList(conn.AccountsList),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	record.ConnectedAt = copyTimePtr(conn.ConnectedAt)
	record.LastSyncAt = copyTimePtr(conn.LastSyncAt)
	record.NextSyncAt = copyTimePtr(conn.NextSyncAt)
	return record
}

func (r *connectionRecord) toDomain() core.Connection {
	if r == nil {
		return core.Connection{}
	}
	return core.Connection{
		ID:                   r.ID,
		ProviderLinkID:       r.ProviderLinkID,
		Status:               core.ConnectionStatus(r.Status),
		ConnectedAt:          copyTimePtr(r.ConnectedAt),
		LastSyncAt:           copyTimePtr(r.LastSyncAt),
		NextSyncAt:           copyTimePtr(r.NextSyncAt),
		SyncFrequencyMinutes: r.SyncFrequencyMinutes,
		ErrorCount:           r.ErrorCount,
		ErrorMessage:         r.ErrorMessage,
		AccountsCount:        r.AccountsCount,
		AccountsList:         copyStringList(r.AccountsList),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func newCredentialRecord(cred core.Credential, now time.Time) *credentialRecord {
	record := &credentialRecord{
		ID:                     cred.ID,
		ConnectionID:           cred.ConnectionID,
		AccessTokenCiphertext:  append([]byte(nil), cred.AccessTokenCiphertext...),
		RefreshTokenCiphertext: append([]byte(nil), cred.RefreshTokenCiphertext...),
		IDToken:                cred.IDToken,
		Scope:                  cred.Scope,
		RefreshCount:           cred.RefreshCount,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	record.ExpiresAt = copyTimePtr(cred.ExpiresAt)
	record.LastRefreshedAt = copyTimePtr(cred.LastRefreshedAt)
	return record
}

func (r *credentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		ID:                     r.ID,
		ConnectionID:           r.ConnectionID,
		AccessTokenCiphertext:  append([]byte(nil), r.AccessTokenCiphertext...),
		RefreshTokenCiphertext: append([]byte(nil), r.RefreshTokenCiphertext...),
		IDToken:                r.IDToken,
		ExpiresAt:              copyTimePtr(r.ExpiresAt),
		Scope:                  r.Scope,
		RefreshCount:           r.RefreshCount,
		LastRefreshedAt:        copyTimePtr(r.LastRefreshedAt),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

func newAuditRecordRow(record core.AuditRecord, now time.Time) *auditRecordRow {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return &auditRecordRow{
		ID:             record.ID,
		ConnectionID:   record.ConnectionID,
		ProviderLinkID: record.ProviderLinkID,
		Actor:          record.Actor,
		Action:         string(record.Action),
		Details:        copyAnyMap(record.Details),
		IPAddress:      record.IPAddress,
		UserAgent:      record.UserAgent,
		CreatedAt:      createdAt,
	}
}

func (r *auditRecordRow) toDomain() core.AuditRecord {
	if r == nil {
		return core.AuditRecord{}
	}
	return core.AuditRecord{
		ID:             r.ID,
		ConnectionID:   r.ConnectionID,
		ProviderLinkID: r.ProviderLinkID,
		Actor:          r.Actor,
		Action:         core.AuditAction(r.Action),
		Details:        copyAnyMap(r.Details),
		IPAddress:      r.IPAddress,
		UserAgent:      r.UserAgent,
		CreatedAt:      r.CreatedAt,
	}
}

func copyTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func copyStringList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
