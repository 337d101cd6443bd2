// internal/model/segment.go
package model

import "time"

// Rule types understood by the segment resolver.
const (
	RuleTag          = "tag"
	RuleChannel      = "channel"
	RuleStatus       = "status"
	RuleLastActivity = "last_activity"
	RuleSource       = "source"
	RuleVerified     = "verified"
)

// Rule operators.
const (
	OpHas        = "has"
	OpNotHas     = "not_has"
	OpIs         = "is"
	OpWithinDays = "within_days"
)

// SegmentRule is one clause of a segment's rule list. Rules are stored as a
// jsonb array and interpreted per source; they are evaluated on demand, never
// as stored results.
type SegmentRule struct {
	Type     string `json:"type"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type Segment struct {
	ID             int           `db:"id" json:"id"`
	Name           string        `db:"name" json:"name"`
	Rules          []SegmentRule `db:"rules" json:"rules"`
	EstimatedCount int           `db:"estimated_count" json:"estimated_count"`
	IsActive       bool          `db:"is_active" json:"is_active"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}
