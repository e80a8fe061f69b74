package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/pubsub"
)

// PubSub implements pubsub.PubSub on watermill's gochannel. It backs the
// job queue in local mode and in tests, where the worker shares the process.
type PubSub struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

// NewPubSub creates a new memory-based pubsub
func NewPubSub(logger *logger.Logger) pubsub.PubSub {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			// a job enqueued before the worker subscribes is still delivered
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: false,
			OutputChannelBuffer:            100,
		},
		logger.GetWatermillLogger(),
	)

	return &PubSub{
		pubsub: goChannel,
		logger: logger,
	}
}

func (p *PubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.pubsub.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.pubsub.Subscribe(ctx, topic)
}

func (p *PubSub) WatermillPublisher() message.Publisher {
	return p.pubsub
}

func (p *PubSub) WatermillSubscriber() message.Subscriber {
	return p.pubsub
}

func (p *PubSub) Close() error {
	return p.pubsub.Close()
}
