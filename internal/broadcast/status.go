// internal/broadcast/status.go
package broadcast

import (
	"time"

	"github.com/sasaflow/wabroadcast/internal/model"
)

// StatusRank orders the forward-only delivery progression. failed sits
// outside the ladder: terminal once reached, and applicable from any rung
// except read.
var StatusRank = map[string]int{
	model.RecipientPending:   0,
	model.RecipientSent:      1,
	model.RecipientDelivered: 2,
	model.RecipientRead:      3,
}

// allowTransition guards callback application so a late or replayed callback
// never regresses a recipient.
func allowTransition(current, next string) bool {
	if current == model.RecipientFailed {
		return false
	}
	if next == model.RecipientFailed {
		// A provider may report a late failure after sent or delivered, but
		// a message the contact already read did not fail.
		return current != model.RecipientRead
	}
	return StatusRank[next] > StatusRank[current]
}

// HandleStatusCallback applies one provider delivery-status callback onto
// the matching recipient row and bumps the campaign aggregate at most once
// per transition. Unknown provider message ids are a no-op: not every
// callback belongs to a broadcast. It runs concurrently with an active send
// loop, so the row update is a compare-and-swap, never a blind overwrite.
func (s *Service) HandleStatusCallback(providerMessageID, status string, timestamp time.Time) error {
	if status != model.RecipientFailed {
		if _, known := StatusRank[status]; !known {
			s.Log.Debug().Str("status", status).Msg("ignoring unknown callback status")
			return nil
		}
	}

	rec, err := s.Recipients.FindByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if !allowTransition(rec.Status, status) {
		return nil
	}

	applied, err := s.Recipients.TransitionStatus(rec.ID, rec.Status, status, timestamp)
	if err != nil {
		return err
	}
	if !applied {
		// Someone else advanced the row between our read and write; their
		// transition already counted.
		return nil
	}

	switch status {
	case model.RecipientDelivered, model.RecipientRead, model.RecipientFailed:
		if err := s.Campaigns.IncrementCounter(rec.CampaignID, status); err != nil {
			return err
		}
	}
	return nil
}
