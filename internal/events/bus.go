package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Topic is the single topic domain events are published on.
const Topic = "promptwell.events"

// Domain event types.
const (
	// CreditAdded is emitted after a credit grant.
	CreditAdded = "credit_added"
	// CreditRemoved is emitted after an admin removes a credit entry.
	CreditRemoved = "credit_removed"
	// CreditExpired is emitted for each entry transitioned by the expiry sweep.
	CreditExpired = "credit_expired"
	// RequestCompleted is emitted after a successful, billed request.
	RequestCompleted = "request_completed"
	// RequestFailed is emitted after a failed request.
	RequestFailed = "request_failed"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher abstracts fire-and-forget domain event emission. Implementations
// must never block the request path on a slow consumer.
type Publisher interface {
	Publish(eventType string, data map[string]any)
}

// Bus publishes domain events over an in-process watermill channel.
type Bus struct {
	pub *gochannel.GoChannel
}

// NewBus constructs an in-process event bus.
func NewBus() *Bus {
	return &Bus{
		pub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NopLogger{}),
	}
}

// Publish emits one event. Failures are logged and otherwise ignored; event
// delivery is best-effort by contract.
func (b *Bus) Publish(eventType string, data map[string]any) {
	if b == nil || b.pub == nil {
		return
	}
	evt := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
	payload, errMarshal := json.Marshal(evt)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("events: marshal event failed")
		return
	}
	msg := message.NewMessage(evt.ID, payload)
	if errPublish := b.pub.Publish(Topic, msg); errPublish != nil {
		log.WithError(errPublish).Warnf("events: publish %s failed", eventType)
	}
}

// Subscribe returns a channel of raw event messages for host-side consumers.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pub.Subscribe(ctx, Topic)
}

// Close shuts the bus down and releases subscriber channels.
func (b *Bus) Close() error {
	if b == nil || b.pub == nil {
		return nil
	}
	return b.pub.Close()
}

// NopPublisher discards all events. Useful for tests and callers that do
// not consume events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(string, map[string]any) {}
