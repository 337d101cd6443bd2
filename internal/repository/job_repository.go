package repository

import (
	"database/sql"
	"time"

	"github.com/sasaflow/wabroadcast/internal/model"
)

type JobRepositoryInterface interface {
	GetByID(id int) (*model.BroadcastJob, error)
	GetByCampaignID(campaignID int) (*model.BroadcastJob, error)
	Reset(campaignID int) error
	ClaimNext(workerID string, staleTimeout time.Duration) (*model.BroadcastJob, error)
	RenewLock(id int, processed int) error
	Pause(campaignID int) (bool, error)
	Resume(campaignID int) (bool, error)
	Complete(id int) error
	Fail(id int, lastError string) error
}

// JobRepository persists broadcast_jobs, the single coordination row per
// campaign. The claim path is the only place multiple workers race; every
// mutation there is a conditional UPDATE so the database decides the winner.
type JobRepository struct {
	DB *sql.DB
}

const jobColumns = `id, campaign_id, status, progress, locked_at, locked_by, last_error, created_at, updated_at`

func scanJob(row *sql.Row) (*model.BroadcastJob, error) {
	var j model.BroadcastJob
	var lockedBy, lastError sql.NullString
	err := row.Scan(&j.ID, &j.CampaignID, &j.Status, &j.Progress, &j.LockedAt, &lockedBy, &lastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.LockedBy = lockedBy.String
	j.LastError = lastError.String
	return &j, nil
}

func (r *JobRepository) GetByID(id int) (*model.BroadcastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM broadcast_jobs WHERE id=$1`
	job, err := scanJob(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (r *JobRepository) GetByCampaignID(campaignID int) (*model.BroadcastJob, error) {
	query := `SELECT ` + jobColumns + ` FROM broadcast_jobs WHERE campaign_id=$1`
	job, err := scanJob(r.DB.QueryRow(query, campaignID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// Reset creates the job row for a campaign, or puts an existing one back to
// pending with progress 0 and the lock and error cleared. Safe to call on a
// completed or failed campaign to relaunch it, and safe to call twice.
func (r *JobRepository) Reset(campaignID int) error {
	query := `
        INSERT INTO broadcast_jobs (campaign_id, status, progress, created_at, updated_at)
        VALUES ($1, 'pending', 0, NOW(), NOW())
        ON CONFLICT (campaign_id) DO UPDATE
        SET status='pending', progress=0, locked_at=NULL, locked_by=NULL, last_error=NULL, updated_at=NOW()
    `
	_, err := r.DB.Exec(query, campaignID)
	return err
}

// ClaimNext picks the oldest eligible job and claims it with a test-and-set
// UPDATE. Eligible means pending, or running with a lock older than
// staleTimeout (a dead worker). Returns nil when there is nothing to claim or
// another worker won the race for the candidate; the caller simply polls
// again later.
func (r *JobRepository) ClaimNext(workerID string, staleTimeout time.Duration) (*model.BroadcastJob, error) {
	staleSecs := int(staleTimeout.Seconds())

	selectQuery := `
        SELECT ` + jobColumns + `
        FROM broadcast_jobs
        WHERE status='pending'
           OR (status='running' AND locked_at < NOW() - ($1 * INTERVAL '1 second'))
        ORDER BY created_at ASC
        LIMIT 1
    `
	candidate, err := scanJob(r.DB.QueryRow(selectQuery, staleSecs))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Same predicate as the select: the UPDATE is the lock acquisition, and
	// it must fail if anyone locked the row between the two statements.
	claimQuery := `
        UPDATE broadcast_jobs
        SET status='running', locked_at=NOW(), locked_by=$2, updated_at=NOW()
        WHERE id=$1
          AND (locked_at IS NULL OR locked_at < NOW() - ($3 * INTERVAL '1 second'))
    `
	res, err := r.DB.Exec(claimQuery, candidate.ID, workerID, staleSecs)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race. Not an error.
		return nil, nil
	}

	now := time.Now()
	candidate.Status = model.JobRunning
	candidate.LockedAt = &now
	candidate.LockedBy = workerID
	return candidate, nil
}

// RenewLock refreshes locked_at so a long-running job is not reclaimed as
// stale, and accumulates progress by the number of recipients just processed.
func (r *JobRepository) RenewLock(id int, processed int) error {
	query := `
        UPDATE broadcast_jobs
        SET locked_at=NOW(), progress=progress+$2, updated_at=NOW()
        WHERE id=$1
    `
	_, err := r.DB.Exec(query, id, processed)
	return err
}

// Pause is only meaningful while the job is running; the worker notices at
// the next batch boundary.
func (r *JobRepository) Pause(campaignID int) (bool, error) {
	query := `UPDATE broadcast_jobs SET status='paused', updated_at=NOW() WHERE campaign_id=$1 AND status='running'`
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// Resume puts a paused job back to pending with the lock cleared, to be
// picked up by the next poll tick on any worker.
func (r *JobRepository) Resume(campaignID int) (bool, error) {
	query := `
        UPDATE broadcast_jobs
        SET status='pending', locked_at=NULL, locked_by=NULL, updated_at=NOW()
        WHERE campaign_id=$1 AND status='paused'
    `
	res, err := r.DB.Exec(query, campaignID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *JobRepository) Complete(id int) error {
	query := `UPDATE broadcast_jobs SET status='completed', locked_at=NULL, locked_by=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *JobRepository) Fail(id int, lastError string) error {
	query := `UPDATE broadcast_jobs SET status='failed', last_error=$2, locked_at=NULL, locked_by=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id, lastError)
	return err
}

var _ JobRepositoryInterface = (*JobRepository)(nil)
