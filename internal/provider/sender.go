package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender is the outbound messaging provider contract. The wire format is the
// provider's concern; the broadcast core only needs ok/error plus the
// provider-assigned message id.
type Sender interface {
	Send(ctx context.Context, waID, templateName, language string, components []string) (providerMessageID string, err error)
}

// StubSender logs instead of sending. Used for local runs without provider
// credentials.
type StubSender struct {
	Log zerolog.Logger
}

func (s *StubSender) Send(_ context.Context, waID, templateName, language string, components []string) (string, error) {
	id := fmt.Sprintf("stub-%s", uuid.NewString())
	s.Log.Info().
		Str("wa_id", waID).
		Str("template", templateName).
		Str("language", language).
		Strs("components", components).
		Str("provider_message_id", id).
		Msg("stub send")
	return id, nil
}

var _ Sender = (*StubSender)(nil)
