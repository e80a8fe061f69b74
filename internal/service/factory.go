package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/settings"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/notification"
	"github.com/flexprice/mealsub/internal/postgres"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubRepo        subscription.Repository
	DailyOrderRepo dailyorder.Repository
	WalletRepo     wallet.Repository
	PaymentRepo    payment.Repository
	CustomerRepo   payment.CustomerRepository
	ProductRepo    product.Repository
	SettingsRepo   settings.Repository

	// Collaborators
	CardGateway payment.CardGateway
	Notifier    notification.Notifier

	// Now is the service clock. Tests pin it.
	Now func() time.Time
	// Picker draws random products for auto-fill and swaps
	Picker *Picker
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	subRepo subscription.Repository,
	dailyOrderRepo dailyorder.Repository,
	walletRepo wallet.Repository,
	paymentRepo payment.Repository,
	customerRepo payment.CustomerRepository,
	productRepo product.Repository,
	settingsRepo settings.Repository,
	cardGateway payment.CardGateway,
	notifier notification.Notifier,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		SubRepo:        subRepo,
		DailyOrderRepo: dailyOrderRepo,
		WalletRepo:     walletRepo,
		PaymentRepo:    paymentRepo,
		CustomerRepo:   customerRepo,
		ProductRepo:    productRepo,
		SettingsRepo:   settingsRepo,
		CardGateway:    cardGateway,
		Notifier:       notifier,
		Now:            func() time.Time { return time.Now().UTC() },
		Picker:         NewPicker(rand.Uint64()),
	}
}

func (p ServiceParams) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// Picker is a seeded uniform random source safe for concurrent use
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPicker(seed uint64) *Picker {
	return &Picker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// IntN returns a uniform value in [0, n). n must be positive.
func (p *Picker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// pick returns a uniformly chosen element of items
func pick[T any](p *Picker, items []T) T {
	return items[p.IntN(len(items))]
}
