package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Delimiter separates the human-readable description from the chat identity
// in a published event. Publish strips it from descriptions, so the last
// occurrence in a payload always marks the identity boundary.
const Delimiter = "::"

// DefaultChannel is the Redis channel trade events are published on.
const DefaultChannel = "trade_channel"

// Publisher is the fire-and-forget side of the notification bus.
type Publisher interface {
	Publish(ctx context.Context, description, userID string) error
}

// Bus publishes trade events to a single Redis pub/sub channel. Delivery is
// at-most-once: events published while no subscriber is connected are lost.
type Bus struct {
	client  *redis.Client
	channel string
}

// NewBus creates a new bus on the given channel. An empty channel name
// selects DefaultChannel.
func NewBus(client *redis.Client, channel string) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{client: client, channel: channel}
}

// Publish encodes the event and sends it to the channel.
func (b *Bus) Publish(ctx context.Context, description, userID string) error {
	if err := b.client.Publish(ctx, b.channel, Encode(description, userID)).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Encode builds the wire payload "<description><delimiter><user_id>". Any
// delimiter occurrence inside the description is replaced with a space so
// Split can always recover the original pair.
func Encode(description, userID string) string {
	description = strings.ReplaceAll(description, Delimiter, " ")
	return description + Delimiter + userID
}

// Split recovers the description and chat identity from a payload.
func Split(event string) (description, userID string, err error) {
	i := strings.LastIndex(event, Delimiter)
	if i < 0 {
		return "", "", fmt.Errorf("event payload has no delimiter: %q", event)
	}
	description = event[:i]
	userID = event[i+len(Delimiter):]
	if userID == "" {
		return "", "", fmt.Errorf("event payload has no chat identity: %q", event)
	}
	return description, userID, nil
}
