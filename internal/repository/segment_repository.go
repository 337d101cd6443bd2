package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/model"
)

type SegmentRepositoryInterface interface {
	GetByID(id int) (*model.Segment, error)
	UpdateEstimatedCount(id, count int) error
}

type SegmentRepository struct {
	DB *sql.DB
}

func (r *SegmentRepository) GetByID(id int) (*model.Segment, error) {
	query := `SELECT id, name, rules, estimated_count, is_active, created_at, updated_at FROM segments WHERE id=$1`
	var s model.Segment
	var rules []byte
	err := r.DB.QueryRow(query, id).Scan(&s.ID, &s.Name, &rules, &s.EstimatedCount, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSegmentNotFound(id)
		}
		return nil, err
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &s.Rules); err != nil {
			return nil, fmt.Errorf("segment %d has malformed rules: %w", id, err)
		}
	}
	return &s, nil
}

// UpdateEstimatedCount refreshes the cached column a segment editor sees.
func (r *SegmentRepository) UpdateEstimatedCount(id, count int) error {
	query := `UPDATE segments SET estimated_count=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id, count)
	return err
}

var _ SegmentRepositoryInterface = (*SegmentRepository)(nil)
