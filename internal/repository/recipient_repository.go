package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sasaflow/wabroadcast/internal/model"
)

type RecipientRepositoryInterface interface {
	BulkInsert(recipients []model.Recipient) (int, error)
	CountByCampaign(campaignID int) (int, error)
	FetchPendingBatch(campaignID, limit int) ([]model.Recipient, error)
	MarkSent(id int, providerMessageID string) error
	MarkFailed(id int, sendError string) error
	FindByProviderMessageID(providerMessageID string) (*model.Recipient, error)
	TransitionStatus(id int, from, to string, at time.Time) (bool, error)
	StatusCounts(campaignID int) (map[string]int, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// Status timestamp column written on each callback transition.
var statusTimestampColumns = map[string]string{
	model.RecipientSent:      "sent_at",
	model.RecipientDelivered: "delivered_at",
	model.RecipientRead:      "read_at",
	model.RecipientFailed:    "failed_at",
}

// BulkInsert inserts resolved recipients as pending rows. Duplicate
// (campaign_id, wa_id) pairs are ignored rather than failed, so two workers
// racing through populate cannot error out or double-insert.
func (r *RecipientRepository) BulkInsert(recipients []model.Recipient) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	query := `INSERT INTO campaign_recipients (campaign_id, wa_id, display_name, source, source_ref_id, status, created_at) VALUES `
	args := []interface{}{}
	argPos := 1

	for i, rec := range recipients {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, 'pending', NOW())", argPos, argPos+1, argPos+2, argPos+3, argPos+4)
		args = append(args, rec.CampaignID, rec.WaID, rec.DisplayName, rec.Source, rec.SourceRefID)
		argPos += 5
	}
	query += ` ON CONFLICT (campaign_id, wa_id) DO NOTHING`

	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (r *RecipientRepository) CountByCampaign(campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=$1`, campaignID).Scan(&count)
	return count, err
}

// FetchPendingBatch returns up to limit pending recipients in insertion
// order. A resumed run naturally skips rows a previous worker already sent.
func (r *RecipientRepository) FetchPendingBatch(campaignID, limit int) ([]model.Recipient, error) {
	query := `
        SELECT id, campaign_id, wa_id, display_name, source, source_ref_id, status
        FROM campaign_recipients
        WHERE campaign_id=$1 AND status='pending'
        ORDER BY id ASC
        LIMIT $2
    `
	rows, err := r.DB.Query(query, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batch := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.WaID, &rec.DisplayName, &rec.Source, &rec.SourceRefID, &rec.Status); err != nil {
			return nil, err
		}
		batch = append(batch, rec)
	}
	return batch, rows.Err()
}

func (r *RecipientRepository) MarkSent(id int, providerMessageID string) error {
	query := `UPDATE campaign_recipients SET status='sent', provider_message_id=$2, sent_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id, providerMessageID)
	return err
}

func (r *RecipientRepository) MarkFailed(id int, sendError string) error {
	query := `UPDATE campaign_recipients SET status='failed', error=$2, failed_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id, sendError)
	return err
}

// FindByProviderMessageID returns nil when no recipient matches: not every
// provider callback belongs to a broadcast.
func (r *RecipientRepository) FindByProviderMessageID(providerMessageID string) (*model.Recipient, error) {
	query := `
        SELECT id, campaign_id, wa_id, display_name, source, source_ref_id, status, provider_message_id
        FROM campaign_recipients
        WHERE provider_message_id=$1
    `
	var rec model.Recipient
	err := r.DB.QueryRow(query, providerMessageID).Scan(
		&rec.ID, &rec.CampaignID, &rec.WaID, &rec.DisplayName,
		&rec.Source, &rec.SourceRefID, &rec.Status, &rec.ProviderMessageID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// TransitionStatus moves a recipient from one status to another, writing the
// matching timestamp column. The WHERE status=$from guard makes the update a
// compare-and-swap: a replayed or interleaved callback affects zero rows and
// reports false, so callers can bump aggregate counters exactly once.
func (r *RecipientRepository) TransitionStatus(id int, from, to string, at time.Time) (bool, error) {
	column, ok := statusTimestampColumns[to]
	if !ok {
		return false, fmt.Errorf("unknown recipient status %q", to)
	}
	query := fmt.Sprintf(`UPDATE campaign_recipients SET status=$1, %s=$2 WHERE id=$3 AND status=$4`, column)
	res, err := r.DB.Exec(query, to, at, id, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *RecipientRepository) StatusCounts(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{
		model.RecipientPending:   0,
		model.RecipientSent:      0,
		model.RecipientDelivered: 0,
		model.RecipientRead:      0,
		model.RecipientFailed:    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
