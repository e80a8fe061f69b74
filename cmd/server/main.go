package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/mealsub/internal/api"
	v1 "github.com/flexprice/mealsub/internal/api/v1"
	"github.com/flexprice/mealsub/internal/cache"
	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/integration/stripe"
	"github.com/flexprice/mealsub/internal/jobs"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/pubsub"
	pubsubRouter "github.com/flexprice/mealsub/internal/pubsub/router"
	"github.com/flexprice/mealsub/internal/repository"
	"github.com/flexprice/mealsub/internal/sentry"
	"github.com/flexprice/mealsub/internal/service"
	"github.com/flexprice/mealsub/internal/temporal"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			config.NewConfig,

			logger.NewLogger,

			sentry.NewSentryService,

			provideCache,

			provideDB,
			provideDBClient,

			repository.NewSubscriptionRepository,
			repository.NewDailyOrderRepository,
			repository.NewWalletRepository,
			repository.NewPaymentRepository,
			repository.NewCustomerProfileRepository,
			repository.NewProductRepository,
			repository.NewSettingsRepository,

			provideCardGateway,
			provideNotifier,
		),
	)

	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSettingsService,
			service.NewSubscriptionService,
			service.NewDailyOrderService,
			service.NewWalletService,
			service.NewSubscriptionJobService,
		),
	)

	opts = append(opts,
		fx.Provide(
			providePubSub,
			provideQueue,
			provideLocker,

			pubsubRouter.NewRouter,
			jobs.NewWorker,
			jobs.NewScheduler,

			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			validator.NewValidator,
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideCache(cfg *config.Configuration) cache.Cache {
	return cache.NewInMemoryCacheWithExpiration(cfg.Cache.SettingsTTL)
}

func provideDB(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing database connections")
			db.Close()
			return nil
		},
	})
	return db, nil
}

func provideDBClient(db *postgres.DB) postgres.IClient {
	return db
}

func provideCardGateway(cfg *config.Configuration, log *logger.Logger) payment.CardGateway {
	return stripe.NewGateway(cfg, log)
}

// provideNotifier fans out to every enabled channel
func provideNotifier(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (notification.Notifier, error) {
	var channels []notification.Notifier

	email := notification.NewEmailNotifier(notification.EmailConfig{
		Enabled:      cfg.Postmark.Enabled,
		ServerToken:  cfg.Postmark.ServerToken,
		AccountToken: cfg.Postmark.AccountToken,
		FromAddress:  cfg.Postmark.FromAddress,
	}, log)
	if email.IsEnabled() {
		channels = append(channels, email)
	}

	if cfg.RabbitMQ.Enabled {
		rmq, err := notification.NewRabbitMQNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				rmq.Close()
				return nil
			},
		})
		channels = append(channels, rmq)
	}

	if len(channels) == 0 {
		log.Info("no notification channel enabled, notifications are dropped")
		return notification.NewNoopNotifier(), nil
	}

	return notification.NewDispatcher(
		log,
		cfg.Notifications.RatePerSecond,
		cfg.Notifications.Concurrency,
		channels...,
	), nil
}

func providePubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	ps, err := jobs.NewPubSub(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}

func provideQueue(cfg *config.Configuration, log *logger.Logger, ps pubsub.PubSub) jobs.Queue {
	return jobs.NewQueue(cfg, log, ps)
}

func provideLocker(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (jobs.Locker, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	locker, closeFn, err := jobs.NewLocker(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeFn()
		},
	})
	return locker, nil
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	db *postgres.DB,
	queue jobs.Queue,
	subscriptionService service.SubscriptionService,
	dailyOrderService service.DailyOrderService,
	walletService service.WalletService,
	settingsService service.SettingsService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(db, logger),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, logger),
		DailyOrder:   v1.NewDailyOrderHandler(dailyOrderService, logger),
		Wallet:       v1.NewWalletHandler(walletService, logger),
		Settings:     v1.NewSettingsHandler(settingsService, logger),
		Jobs:         v1.NewJobsHandler(queue, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	worker *jobs.Worker,
	scheduler *jobs.Scheduler,
	queue jobs.Queue,
	log *logger.Logger,
) error {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, worker, log)
		return startScheduler(lc, cfg, scheduler, queue, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeWorker:
		startMessageRouter(lc, router, worker, log)
	case types.ModeScheduler:
		return startScheduler(lc, cfg, scheduler, queue, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
	return nil
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	worker *jobs.Worker,
	log *logger.Logger,
) {
	worker.RegisterHandlers(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return router.Close()
		},
	})
}

func startScheduler(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	scheduler *jobs.Scheduler,
	queue jobs.Queue,
	log *logger.Logger,
) error {
	if cfg.Scheduler.Driver == types.SchedulerDriverTemporal {
		return startTemporalTrigger(lc, cfg, queue, log)
	}
	scheduler.RegisterWithLifecycle(lc)
	return nil
}

// startTemporalTrigger schedules the daily cron workflow and runs the worker
// that executes it
func startTemporalTrigger(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	queue jobs.Queue,
	log *logger.Logger,
) error {
	client, err := temporal.NewTemporalClient(&cfg.Temporal, log)
	if err != nil {
		return err
	}
	svc := temporal.NewService(client, cfg, log)

	// appended first so the client closes after the worker has stopped
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.StartDailyMaintenance(ctx)
			return err
		},
		OnStop: func(ctx context.Context) error {
			svc.Close()
			return nil
		},
	})

	temporal.NewWorker(client, &cfg.Temporal, queue, log).RegisterWithLifecycle(lc)
	return nil
}
