// internal/model/broadcast_job.go
package model

import "time"

// BroadcastJob statuses. A job is the coordination row for one campaign's
// send loop; it is never user-facing.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobPaused    = "paused"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type BroadcastJob struct {
	ID         int        `db:"id" json:"id"`
	CampaignID int        `db:"campaign_id" json:"campaign_id"`
	Status     string     `db:"status" json:"status"`
	Progress   int        `db:"progress" json:"progress"`
	LockedAt   *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy   string     `db:"locked_by" json:"locked_by,omitempty"`
	LastError  string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
