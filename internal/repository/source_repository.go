package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sasaflow/wabroadcast/internal/model"
)

// SourceFilter is the per-source projection of a segment's rule list. The
// resolver classifies rules into this struct once; each source query applies
// the predicates it understands.
type SourceFilter struct {
	Tag              string // rows must carry this tag
	ExcludedTag      string // rows must not carry this tag; rows with no tags qualify
	TagNone          bool   // rows must have no tags at all
	Channel          string // conversations only
	Status           string // conversations only
	ActiveWithinDays int    // conversations only, 0 = no recency bound
	Verified         *bool  // contacts only
}

type SourceRepositoryInterface interface {
	Conversations(f SourceFilter) ([]model.Conversation, error)
	Contacts(f SourceFilter) ([]model.Contact, error)
	ImportedContacts(f SourceFilter) ([]model.ImportedContact, error)
}

// SourceRepository reads the three recipient sources. All three are owned by
// other parts of the system; this repository only ever selects from them.
type SourceRepository struct {
	DB *sql.DB
}

// tagPredicates appends jsonb tag conditions shared by conversations and
// contacts. "no tags at all" satisfies both TagNone and ExcludedTag.
func tagPredicates(query string, args []interface{}, argPos int, f SourceFilter) (string, []interface{}, int) {
	if f.Tag != "" {
		query += fmt.Sprintf(" AND tags @> jsonb_build_array($%d::text)", argPos)
		args = append(args, f.Tag)
		argPos++
	}
	if f.ExcludedTag != "" {
		query += fmt.Sprintf(" AND (tags IS NULL OR tags = '[]'::jsonb OR NOT tags @> jsonb_build_array($%d::text))", argPos)
		args = append(args, f.ExcludedTag)
		argPos++
	}
	if f.TagNone {
		query += " AND (tags IS NULL OR tags = '[]'::jsonb)"
	}
	return query, args, argPos
}

func (r *SourceRepository) Conversations(f SourceFilter) ([]model.Conversation, error) {
	query := `SELECT id, wa_id, name, channel, status, tags, last_activity_at FROM conversations WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	query, args, argPos = tagPredicates(query, args, argPos, f)
	if f.Channel != "" {
		query += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, f.Channel)
		argPos++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, f.Status)
		argPos++
	}
	if f.ActiveWithinDays > 0 {
		query += fmt.Sprintf(" AND last_activity_at >= NOW() - ($%d * INTERVAL '1 day')", argPos)
		args = append(args, f.ActiveWithinDays)
		argPos++
	}
	query += " ORDER BY id ASC"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		var tags []byte
		if err := rows.Scan(&c.ID, &c.WaID, &c.Name, &c.Channel, &c.Status, &tags, &c.LastActivityAt); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &c.Tags); err != nil {
				return nil, fmt.Errorf("conversation %d has malformed tags: %w", c.ID, err)
			}
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *SourceRepository) Contacts(f SourceFilter) ([]model.Contact, error) {
	query := `SELECT id, phone, name, is_verified, tags, synced_at FROM contacts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	query, args, argPos = tagPredicates(query, args, argPos, f)
	if f.Verified != nil {
		query += fmt.Sprintf(" AND is_verified=$%d", argPos)
		args = append(args, *f.Verified)
		argPos++
	}
	query += " ORDER BY id ASC"

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		var tags []byte
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.IsVerified, &tags, &c.SyncedAt); err != nil {
			return nil, err
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &c.Tags); err != nil {
				return nil, fmt.Errorf("contact %d has malformed tags: %w", c.ID, err)
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *SourceRepository) ImportedContacts(f SourceFilter) ([]model.ImportedContact, error) {
	// Imports carry no tags or activity; any filter that reached this far is
	// trivially satisfied (the resolver excludes the source otherwise).
	query := `SELECT id, phone, name, import_batch, created_at FROM imported_contacts ORDER BY id ASC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	imports := []model.ImportedContact{}
	for rows.Next() {
		var c model.ImportedContact
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &c.ImportBatch, &c.CreatedAt); err != nil {
			return nil, err
		}
		imports = append(imports, c)
	}
	return imports, rows.Err()
}

var _ SourceRepositoryInterface = (*SourceRepository)(nil)
