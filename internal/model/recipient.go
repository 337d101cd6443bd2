// internal/model/recipient.go
package model

import "time"

// Recipient delivery statuses, in precedence order. A status callback may
// only move a recipient forward (see broadcast.StatusRank).
const (
	RecipientPending   = "pending"
	RecipientSent      = "sent"
	RecipientDelivered = "delivered"
	RecipientRead      = "read"
	RecipientFailed    = "failed"
)

// Recipient origin sources, in dedup precedence order.
const (
	SourceConversation = "conversation"
	SourceContact      = "contact"
	SourceImport       = "import"
)

type Recipient struct {
	ID                int        `db:"id" json:"id"`
	CampaignID        int        `db:"campaign_id" json:"campaign_id"`
	WaID              string     `db:"wa_id" json:"wa_id"`
	DisplayName       string     `db:"display_name" json:"display_name"`
	Source            string     `db:"source" json:"source"`
	SourceRefID       int        `db:"source_ref_id" json:"source_ref_id"`
	Status            string     `db:"status" json:"status"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt            *time.Time `db:"read_at" json:"read_at,omitempty"`
	FailedAt          *time.Time `db:"failed_at" json:"failed_at,omitempty"`
	Error             string     `db:"error" json:"error,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}
