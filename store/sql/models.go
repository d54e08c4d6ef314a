package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type providerLinkRecord struct {
	bun.BaseModel `bun:"table:bankfeed_provider_links,alias:bpl"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	ProviderKey string    `bun:"provider_key,notnull"`
	Alias       string    `bun:"alias,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type connectionRecord struct {
	bun.BaseModel `bun:"table:bankfeed_connections,alias:bc"`

	ID                   string     `bun:"id,pk"`
	ProviderLinkID       string     `bun:"provider_link_id,notnull"`
	Status               string     `bun:"status,notnull"`
	ConnectedAt          *time.Time `bun:"connected_at,nullzero"`
	LastSyncAt           *time.Time `bun:"last_sync_at,nullzero"`
	NextSyncAt           *time.Time `bun:"next_sync_at,nullzero"`
	SyncFrequencyMinutes int        `bun:"sync_frequency_minutes,notnull"`
	ErrorCount           int        `bun:"error_count,notnull"`
	ErrorMessage         string     `bun:"error_message"`
	AccountsCount        int        `bun:"accounts_count,notnull"`
	AccountsList         []string   `bun:"accounts_list,type:jsonb,notnull"`
	CreatedAt            time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type credentialRecord struct {
	bun.BaseModel `bun:"table:bankfeed_credentials,alias:bcr"`

	ID                     string     `bun:"id,pk"`
	ConnectionID           string     `bun:"connection_id,notnull"`
	AccessTokenCiphertext  []byte     `bun:"access_token_ciphertext,notnull"`
	RefreshTokenCiphertext []byte     `bun:"refresh_token_ciphertext"`
	IDToken                string     `bun:"id_token"`
	ExpiresAt              *time.Time `bun:"expires_at,nullzero"`
	Scope                  string     `bun:"scope"`
	RefreshCount           int        `bun:"refresh_count,notnull"`
	LastRefreshedAt        *time.Time `bun:"last_refreshed_at,nullzero"`
	CreatedAt              time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type auditRecordRow struct {
	bun.BaseModel `bun:"table:bankfeed_audit_records,alias:bar"`

	ID             string         `bun:"id,pk"`
	ConnectionID   string         `bun:"connection_id,notnull"`
	ProviderLinkID string         `bun:"provider_link_id,notnull"`
	Actor          string         `bun:"actor,notnull"`
	Action         string         `bun:"action,notnull"`
	Details        map[string]any `bun:"details,type:jsonb,notnull"`
	IPAddress      string         `bun:"ip_address"`
	UserAgent      string         `bun:"user_agent"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
