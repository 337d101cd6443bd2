// internal/broadcast/materializer.go
package broadcast

import (
	"github.com/rs/zerolog"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
	"github.com/sasaflow/wabroadcast/internal/segment"
)

// Rows per INSERT statement, well under the Postgres parameter cap.
const insertChunkSize = 500

// Materializer persists a campaign's resolved recipient list exactly once.
// Any existing row for the campaign makes Populate a no-op, which is what
// lets a worker resume after a crash mid-populate without re-inserting.
type Materializer struct {
	Recipients repository.RecipientRepositoryInterface
	Segments   *segment.Service
	Log        zerolog.Logger
}

// Populate resolves and inserts recipients, returning the campaign's total
// recipient count. Returns ErrNoRecipients when the segment resolves to an
// empty list, which is a launch failure, distinct from "already materialized".
func (m *Materializer) Populate(campaign *model.Campaign) (int, error) {
	existing, err := m.Recipients.CountByCampaign(campaign.ID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		m.Log.Debug().Int("campaign_id", campaign.ID).Int("recipients", existing).Msg("recipients already materialized")
		return existing, nil
	}

	var candidates []segment.Candidate
	if campaign.SegmentID != nil {
		candidates, err = m.Segments.Resolve(*campaign.SegmentID)
	} else {
		// No segment: broadcast to every source, unfiltered.
		candidates, err = m.Segments.ResolveRules(nil)
	}
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, appErrors.ErrNoRecipients
	}

	rows := make([]model.Recipient, len(candidates))
	for i, c := range candidates {
		rows[i] = model.Recipient{
			CampaignID:  campaign.ID,
			WaID:        c.WaID,
			DisplayName: c.DisplayName,
			Source:      c.Source,
			SourceRefID: c.SourceRefID,
			Status:      model.RecipientPending,
		}
	}

	inserted := 0
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := m.Recipients.BulkInsert(rows[start:end])
		if err != nil {
			return 0, err
		}
		inserted += n
	}

	m.Log.Info().Int("campaign_id", campaign.ID).Int("resolved", len(rows)).Int("inserted", inserted).Msg("recipients materialized")

	// Count from the store rather than trusting inserted: a racing populate
	// may have won some of the conflicts.
	return m.Recipients.CountByCampaign(campaign.ID)
}
