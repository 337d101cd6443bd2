// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNoRecipients signals that a segment resolved to an empty target list at
// launch time. It is a launch failure, not a vacuous completion.
var ErrNoRecipients = errors.New("segment resolved to zero recipients")

// ErrCampaignNotFound is a typed not-found error.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrSegmentNotFound struct {
	SegmentID int
}

func (e *ErrSegmentNotFound) Error() string {
	return fmt.Sprintf("segment with ID %d not found", e.SegmentID)
}

func NewSegmentNotFound(id int) error {
	return &ErrSegmentNotFound{SegmentID: id}
}

// ErrTemplateNotApproved rejects a launch before the job ever runs.
type ErrTemplateNotApproved struct {
	TemplateID int
	Status     string
}

func (e *ErrTemplateNotApproved) Error() string {
	return fmt.Sprintf("template %d is not approved (status %q)", e.TemplateID, e.Status)
}

func NewTemplateNotApproved(id int, status string) error {
	return &ErrTemplateNotApproved{TemplateID: id, Status: status}
}
