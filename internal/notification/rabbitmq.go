package notification

import (
	"context"
	"encoding/json"
	"sync"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQNotifier publishes notifications to a topic exchange for downstream
// channels such as push and SMS. The routing key is the notification kind.
type RabbitMQNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logger.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// NewRabbitMQNotifier dials the broker and declares the exchange once
func NewRabbitMQNotifier(url, exchange string, logger *logger.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to rabbitmq").
			Mark(ierr.ErrSystem)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to open rabbitmq channel").
			Mark(ierr.ErrSystem)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to declare notification exchange").
			Mark(ierr.ErrSystem)
	}

	return &RabbitMQNotifier{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (r *RabbitMQNotifier) Notify(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode notification").
			Mark(ierr.ErrSystem)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(ctx,
		r.exchange,     // exchange
		string(n.Kind), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Timestamp:    n.CreatedAt,
			Body:         body,
		})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish notification").
			Mark(ierr.ErrSystem)
	}

	r.logger.Debugw("published notification",
		"exchange", r.exchange,
		"routing_key", n.Kind,
		"user_id", n.UserID,
	)
	return nil
}

// Close gracefully closes the channel and connection
func (r *RabbitMQNotifier) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
