// internal/broadcast/sender.go
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/provider"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// ThrottledSender delivers one message at a time, pacing with a fixed
// inter-send delay derived from the provider rate limit. Deliberately not a
// token bucket: a burst followed by idle time is not "caught up", the loop
// just paces steadily.
type ThrottledSender struct {
	Provider   provider.Sender
	Recipients repository.RecipientRepositoryInterface
	Campaigns  repository.CampaignRepositoryInterface
	Delay      time.Duration
	Sleep      func(time.Duration) // time.Sleep outside tests
	Log        zerolog.Logger
}

// PacingDelay converts a messages-per-second rate into the inter-send delay.
func PacingDelay(ratePerSecond int) time.Duration {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return time.Second / time.Duration(ratePerSecond)
}

// SendTo resolves template variables, invokes the provider, and records the
// per-recipient outcome. Provider errors (and panics) are converted into a
// failed recipient so one bad address never aborts the batch; only store
// errors propagate, because losing the store is a job-level failure.
func (s *ThrottledSender) SendTo(ctx context.Context, campaign *model.Campaign, tmpl *model.Template, rec model.Recipient) error {
	providerMessageID, sendErr := s.send(ctx, tmpl, rec)

	if sendErr != nil {
		s.Log.Warn().
			Int("campaign_id", campaign.ID).
			Str("wa_id", rec.WaID).
			Err(sendErr).
			Msg("send failed")
		if err := s.Recipients.MarkFailed(rec.ID, sendErr.Error()); err != nil {
			return err
		}
		if err := s.Campaigns.IncrementCounter(campaign.ID, "failed"); err != nil {
			return err
		}
	} else {
		if err := s.Recipients.MarkSent(rec.ID, providerMessageID); err != nil {
			return err
		}
		if err := s.Campaigns.IncrementCounter(campaign.ID, "sent"); err != nil {
			return err
		}
	}

	s.Sleep(s.Delay)
	return nil
}

func (s *ThrottledSender) send(ctx context.Context, tmpl *model.Template, rec model.Recipient) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	components := resolveVariables(tmpl, rec)
	return s.Provider.Send(ctx, rec.WaID, tmpl.Name, tmpl.Language, components)
}

// resolveVariables maps a template's declared variables onto positional
// component values. Known names substitute recipient fields; a "static:"
// prefix passes its suffix through; anything else is passed verbatim.
func resolveVariables(tmpl *model.Template, rec model.Recipient) []string {
	components := make([]string, 0, len(tmpl.Variables))
	for _, variable := range tmpl.Variables {
		switch {
		case variable == "name":
			name := rec.DisplayName
			if name == "" {
				name = rec.WaID
			}
			components = append(components, name)
		case variable == "wa_id", variable == "phone":
			components = append(components, rec.WaID)
		case strings.HasPrefix(variable, "static:"):
			components = append(components, strings.TrimPrefix(variable, "static:"))
		default:
			components = append(components, variable)
		}
	}
	return components
}
