package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Publisher fans campaign lifecycle events out to the rest of the platform.
// It is strictly one-way: workers never coordinate through it, the relational
// store is the only coordination primitive.
type Publisher interface {
	Publish(event string, payload any) error
	Close() error
}

// Campaign lifecycle event names.
const (
	CampaignStarted   = "campaign.started"
	CampaignCompleted = "campaign.completed"
	CampaignFailed    = "campaign.failed"
	CampaignPaused    = "campaign.paused"
)

// CampaignEvent is the payload published for every lifecycle event.
type CampaignEvent struct {
	CampaignID int       `json:"campaign_id"`
	Event      string    `json:"event"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AmqpPublisher publishes to a topic exchange, one routing key per event.
type AmqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAmqpPublisher(url, exchange string) (*AmqpPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AmqpPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AmqpPublisher) Publish(event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		p.exchange,
		event, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *AmqpPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// NopPublisher is used when AMQP is not configured; the broadcast core works
// the same without it.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
func (NopPublisher) Close() error              { return nil }

var _ Publisher = (*AmqpPublisher)(nil)
var _ Publisher = NopPublisher{}
