package providers

import (
	"context"

	"github.com/clinscribe/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// consultation processing events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ConsultationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ConsultationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event streams
const (
	// EventChannelConsultationUpdates is the channel carrying every
	// consultation processing event
	EventChannelConsultationUpdates = "consultation:updates"

	// EventChannelConsultationPrefix is the prefix for per-consultation channels
	EventChannelConsultationPrefix = "consultation:"
)

// GetConsultationChannel returns the channel name for a specific consultation
func GetConsultationChannel(consultationID string) string {
	return EventChannelConsultationPrefix + consultationID
}
