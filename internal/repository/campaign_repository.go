package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/model"
)

type CampaignRepositoryInterface interface {
	GetByID(id int) (*model.Campaign, error)
	UpdateStatus(campaignID int, status string) error
	MarkScheduled(campaignID int) error
	MarkStarted(campaignID int, totalRecipients int) error
	MarkCompleted(campaignID int) error
	MarkFailed(campaignID int, errorMessage string) error
	IncrementCounter(campaignID int, counter string) error
	FinalizeCounters(campaignID int, counts map[string]int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

// Aggregate counters a single send/callback may bump.
var counterColumns = map[string]string{
	"sent":      "sent_count",
	"failed":    "failed_count",
	"delivered": "delivered_count",
	"read":      "read_count",
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, template_id, segment_id, status,
               sent_count, failed_count, delivered_count, read_count, total_recipients,
               started_at, completed_at, error_message, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	var errorMessage sql.NullString
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.TemplateID, &c.SegmentID, &c.Status,
		&c.SentCount, &c.FailedCount, &c.DeliveredCount, &c.ReadCount, &c.TotalRecipients,
		&c.StartedAt, &c.CompletedAt, &errorMessage, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	c.ErrorMessage = errorMessage.String
	return &c, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

// MarkScheduled is the enqueue-side transition: status back to scheduled and
// any previous launch error cleared.
func (r *CampaignRepository) MarkScheduled(campaignID int) error {
	query := `UPDATE campaigns SET status='scheduled', error_message=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, campaignID)
	return err
}

func (r *CampaignRepository) MarkStarted(campaignID int, totalRecipients int) error {
	query := `
        UPDATE campaigns
        SET status='running', total_recipients=$2,
            started_at=COALESCE(started_at, NOW()), updated_at=NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, campaignID, totalRecipients)
	return err
}

func (r *CampaignRepository) MarkCompleted(campaignID int) error {
	query := `UPDATE campaigns SET status='completed', completed_at=NOW(), updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, campaignID)
	return err
}

func (r *CampaignRepository) MarkFailed(campaignID int, errorMessage string) error {
	query := `UPDATE campaigns SET status='failed', error_message=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, campaignID, errorMessage)
	return err
}

func (r *CampaignRepository) IncrementCounter(campaignID int, counter string) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	query := fmt.Sprintf(`UPDATE campaigns SET %s=%s+1, updated_at=NOW() WHERE id=$1`, column, column)
	_, err := r.DB.Exec(query, campaignID)
	return err
}

// FinalizeCounters rewrites the aggregates from a recipient status breakdown
// at completion. Incremental counters are lagging and may have missed late
// callbacks; the recipient rows are the source of truth.
func (r *CampaignRepository) FinalizeCounters(campaignID int, counts map[string]int) error {
	read := counts[model.RecipientRead]
	delivered := counts[model.RecipientDelivered] + read
	sent := counts[model.RecipientSent] + delivered
	failed := counts[model.RecipientFailed]
	total := sent + failed + counts[model.RecipientPending]

	query := `
        UPDATE campaigns
        SET sent_count=$2, failed_count=$3, delivered_count=$4, read_count=$5,
            total_recipients=$6, updated_at=NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, campaignID, sent, failed, delivered, read, total)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
