package notification

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
)

// Sender delivers a routed notification to a chat identity.
type Sender interface {
	Send(chatID, text string) error
}

// Subscriber reads the notification channel continuously and forwards each
// event to the chat identity encoded in its payload.
type Subscriber struct {
	client  *redis.Client
	channel string
	sender  Sender
}

// NewSubscriber creates a new subscriber for the given channel. An empty
// channel name selects DefaultChannel.
func NewSubscriber(client *redis.Client, channel string, sender Sender) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel, sender: sender}
}

// Run subscribes to the channel and forwards events until the context is
// cancelled. Malformed payloads and delivery failures are logged and
// skipped; they never stop the loop.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	log.Printf("Subscribed to notification channel %q", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.forward(msg.Payload)
		}
	}
}

// forward routes a single event payload to its chat identity.
func (s *Subscriber) forward(payload string) {
	description, chatID, err := Split(payload)
	if err != nil {
		log.Printf("Dropping malformed notification: %v", err)
		return
	}
	if err := s.sender.Send(chatID, description); err != nil {
		log.Printf("Failed to deliver notification to %s: %v", chatID, err)
	}
}
