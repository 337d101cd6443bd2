// internal/broadcast/service.go
package broadcast

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/events"
	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// Service is the operations surface the rest of the system calls: enqueue,
// pause, resume, stats, and the provider status callback.
type Service struct {
	Campaigns  repository.CampaignRepositoryInterface
	Jobs       repository.JobRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Templates  repository.TemplateRepositoryInterface
	Segments   repository.SegmentRepositoryInterface
	Events     events.Publisher
	Log        zerolog.Logger
}

// Enqueue validates the launch and resets/creates the job row to pending
// with progress 0 and any stale lock or error cleared. Idempotent, and safe
// to call on a completed or failed campaign to relaunch it.
func (s *Service) Enqueue(campaignID int) error {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}

	tmpl, err := s.Templates.GetByID(campaign.TemplateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return fmt.Errorf("campaign %d references missing template %d", campaignID, campaign.TemplateID)
	}
	if tmpl.Status != model.TemplateApproved {
		return appErrors.NewTemplateNotApproved(tmpl.ID, tmpl.Status)
	}
	if campaign.SegmentID != nil {
		if _, err := s.Segments.GetByID(*campaign.SegmentID); err != nil {
			return err
		}
	}

	if err := s.Jobs.Reset(campaignID); err != nil {
		return err
	}
	if err := s.Campaigns.MarkScheduled(campaignID); err != nil {
		return err
	}

	s.Log.Info().Int("campaign_id", campaignID).Msg("campaign enqueued")
	return nil
}

// Pause requests the running worker to stop at its next batch boundary.
// A campaign that is not running is left untouched.
func (s *Service) Pause(campaignID int) error {
	paused, err := s.Jobs.Pause(campaignID)
	if err != nil {
		return err
	}
	if !paused {
		return nil
	}
	if err := s.Campaigns.UpdateStatus(campaignID, model.CampaignPaused); err != nil {
		return err
	}
	publishCampaignEvent(s.Events, s.Log, events.CampaignPaused, campaignID, "")
	s.Log.Info().Int("campaign_id", campaignID).Msg("campaign paused")
	return nil
}

// Resume puts a paused job back to pending with the lock cleared; the next
// poll tick on any worker picks it up and continues from the remaining
// pending recipients.
func (s *Service) Resume(campaignID int) error {
	resumed, err := s.Jobs.Resume(campaignID)
	if err != nil {
		return err
	}
	if !resumed {
		return nil
	}
	if err := s.Campaigns.UpdateStatus(campaignID, model.CampaignScheduled); err != nil {
		return err
	}
	s.Log.Info().Int("campaign_id", campaignID).Msg("campaign resumed")
	return nil
}

// Stats is a snapshot of recipient statuses for one campaign.
type Stats struct {
	CampaignID int            `json:"campaign_id"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
}

func (s *Service) GetStats(campaignID int) (*Stats, error) {
	if _, err := s.Campaigns.GetByID(campaignID); err != nil {
		return nil, err
	}
	counts, err := s.Recipients.StatusCounts(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	return &Stats{CampaignID: campaignID, Total: total, ByStatus: counts}, nil
}

func publishCampaignEvent(p events.Publisher, log zerolog.Logger, event string, campaignID int, errMsg string) {
	if p == nil {
		return
	}
	payload := events.CampaignEvent{
		CampaignID: campaignID,
		Event:      event,
		Error:      errMsg,
		OccurredAt: time.Now(),
	}
	if err := p.Publish(event, payload); err != nil {
		log.Warn().Err(err).Str("event", event).Int("campaign_id", campaignID).Msg("failed to publish campaign event")
	}
}
