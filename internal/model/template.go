// internal/model/template.go
package model

import "time"

// Template approval statuses mirror the provider's review lifecycle. Only
// approved templates can be broadcast.
const (
	TemplatePending  = "pending"
	TemplateApproved = "approved"
	TemplateRejected = "rejected"
)

type Template struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Language  string    `db:"language" json:"language"`
	Status    string    `db:"status" json:"status"`
	Body      string    `db:"body" json:"body"`
	Variables []string  `db:"variables" json:"variables"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
