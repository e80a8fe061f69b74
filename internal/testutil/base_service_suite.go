package testutil

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories used by service tests
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	DailyOrderRepo   *InMemoryDailyOrderStore
	WalletRepo       *InMemoryWalletStore
	PaymentRepo      *InMemoryPaymentStore
	CustomerRepo     *InMemoryCustomerProfileStore
	ProductRepo      *InMemoryProductStore
	SettingsRepo     *InMemorySettingsStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	db       *MockPostgresClient
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
	gateway  *MockCardGateway
	notifier *RecordingNotifier
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo
	cfg.Stripe.ChargeTimeout = time.Second
	cfg.Stripe.VerifyAttempts = 2
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	s.gateway = NewMockCardGateway()
	s.notifier = NewRecordingNotifier()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		DailyOrderRepo:   NewInMemoryDailyOrderStore(),
		WalletRepo:       NewInMemoryWalletStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		CustomerRepo:     NewInMemoryCustomerProfileStore(),
		ProductRepo:      NewInMemoryProductStore(),
		SettingsRepo:     NewInMemorySettingsStore(),
	}

	s.db = NewMockPostgresClient(s.logger,
		s.stores.SubscriptionRepo,
		s.stores.DailyOrderRepo,
		s.stores.WalletRepo,
		s.stores.PaymentRepo,
		s.stores.CustomerRepo,
		s.stores.ProductRepo,
		s.stores.SettingsRepo,
	)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.DailyOrderRepo.Clear()
	s.stores.WalletRepo.Clear()
	s.stores.PaymentRepo.Clear()
	s.stores.CustomerRepo.Clear()
	s.stores.ProductRepo.Clear()
	s.stores.SettingsRepo.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the transactional test database
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetCardGateway() *MockCardGateway {
	return s.gateway
}

func (s *BaseServiceTestSuite) GetNotifier() *RecordingNotifier {
	return s.notifier
}

// GetNow returns the pinned test clock
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// SetNow moves the pinned test clock
func (s *BaseServiceTestSuite) SetNow(now time.Time) {
	s.now = now.UTC()
}

// Clock is a time source that follows SetNow
func (s *BaseServiceTestSuite) Clock() func() time.Time {
	return s.GetNow
}

// Today is midnight UTC of the pinned clock
func (s *BaseServiceTestSuite) Today() time.Time {
	return types.StartOfDay(s.now)
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// CreateProduct stores an active published product
func (s *BaseServiceTestSuite) CreateProduct(name string, mealType types.MealType, price, cost int64, tags ...string) *product.Product {
	p := &product.Product{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT),
		Name:      name,
		MealType:  mealType,
		Tags:      tags,
		Price:     decimal.NewFromInt(price),
		CostPrice: decimal.NewFromInt(cost),
		Currency:  types.DefaultCurrency,
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.stores.ProductRepo.Create(s.ctx, p))
	return p
}

// CreateWallet stores an active wallet for userID holding balance
func (s *BaseServiceTestSuite) CreateWallet(userID string, balance int64) *wallet.Wallet {
	w := &wallet.Wallet{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WALLET),
		UserID:       userID,
		Currency:     types.DefaultCurrency,
		Balance:      decimal.NewFromInt(balance),
		TotalSpent:   decimal.Zero,
		TotalCredits: decimal.NewFromInt(balance),
		WalletStatus: types.WalletStatusActive,
		BaseModel:    types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.stores.WalletRepo.Create(s.ctx, w))
	return w
}
