// internal/model/sources.go
package model

import "time"

// Conversation is a live chat thread. One of the three recipient sources;
// it wins dedup precedence because it carries the freshest display name.
type Conversation struct {
	ID             int        `db:"id" json:"id"`
	WaID           string     `db:"wa_id" json:"wa_id"`
	Name           string     `db:"name" json:"name"`
	Channel        string     `db:"channel" json:"channel"`
	Status         string     `db:"status" json:"status"`
	Tags           []string   `db:"tags" json:"tags"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
}

// Contact is an externally-synced address book entry.
type Contact struct {
	ID         int        `db:"id" json:"id"`
	Phone      string     `db:"phone" json:"phone"`
	Name       string     `db:"name" json:"name"`
	IsVerified bool       `db:"is_verified" json:"is_verified"`
	Tags       []string   `db:"tags" json:"tags"`
	SyncedAt   *time.Time `db:"synced_at" json:"synced_at,omitempty"`
}

// ImportedContact comes from a manual CSV/XLSX upload.
type ImportedContact struct {
	ID          int       `db:"id" json:"id"`
	Phone       string    `db:"phone" json:"phone"`
	Name        string    `db:"name" json:"name"`
	ImportBatch string    `db:"import_batch" json:"import_batch"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
