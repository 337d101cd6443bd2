package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sasaflow/wabroadcast/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(id int) (*model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

// GetByID returns nil when the template does not exist.
func (r *TemplateRepository) GetByID(id int) (*model.Template, error) {
	query := `SELECT id, name, language, status, body, variables, created_at FROM templates WHERE id=$1`
	var t model.Template
	var variables []byte
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.Name, &t.Language, &t.Status, &t.Body, &variables, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &t.Variables); err != nil {
			return nil, fmt.Errorf("template %d has malformed variables: %w", id, err)
		}
	}
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
