package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher publishes job messages to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber consumes job messages from a topic
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces.
// The raw watermill sides are exposed for the message router.
type PubSub interface {
	Publisher
	Subscriber

	WatermillPublisher() message.Publisher
	WatermillSubscriber() message.Subscriber
}
