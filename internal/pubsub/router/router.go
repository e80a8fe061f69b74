package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/pubsub"
	"github.com/flexprice/mealsub/internal/sentry"
)

// Router manages all message routing
type Router struct {
	router *message.Router
	pubsub pubsub.PubSub
	logger *logger.Logger
	sentry *sentry.Service
	config *config.JobsConfig
}

// NewRouter creates the job message router. Messages that still fail after
// the retry budget go to the poison topic on the same transport.
func NewRouter(cfg *config.Configuration, logger *logger.Logger, sentry *sentry.Service, ps pubsub.PubSub) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{CloseTimeout: 30 * time.Second},
		logger.GetWatermillLogger(),
	)
	if err != nil {
		return nil, err
	}

	poisonQueue, err := middleware.PoisonQueue(ps.WatermillPublisher(), cfg.Jobs.PoisonTopic())
	if err != nil {
		return nil, err
	}

	interval := cfg.Jobs.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	// Add middleware in correct order
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,     // Recover from panics
		middleware.CorrelationID, // Add correlation IDs
		middleware.Retry{
			MaxRetries:          cfg.Jobs.MaxRetries,
			InitialInterval:     interval,
			MaxInterval:         interval * 10,
			Multiplier:          2,
			RandomizationFactor: 0.5,
			Logger:              logger.GetWatermillLogger(),
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Infow("retrying job message",
					"retry_number", retryNum,
					"max_retries", cfg.Jobs.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		pubsub: ps,
		logger: logger,
		sentry: sentry,
		config: &cfg.Jobs,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages.
// Errors that a retry cannot fix are reported and the message is acked.
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	handlerFunc func(msg *message.Message) error,
	middlewares ...message.HandlerMiddleware,
) {
	handler := r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		r.pubsub.WatermillSubscriber(),
		func(msg *message.Message) error {
			err := handlerFunc(msg)
			if err == nil {
				return nil
			}

			r.sentry.CaptureException(err)
			r.logger.Errorw("handler failed",
				"handler", handlerName,
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)
			if !shouldRetry(r.logger, err) {
				return nil
			}
			return err
		},
	)

	for _, middleware := range middlewares {
		handler.AddMiddleware(middleware)
	}
}

// Run blocks until ctx is cancelled or the router is closed
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting router")
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing router")
	return r.router.Close()
}
