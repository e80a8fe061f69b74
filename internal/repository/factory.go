package repository

import (
	"github.com/flexprice/mealsub/internal/cache"
	"github.com/flexprice/mealsub/internal/domain/dailyorder"
	"github.com/flexprice/mealsub/internal/domain/payment"
	"github.com/flexprice/mealsub/internal/domain/product"
	"github.com/flexprice/mealsub/internal/domain/settings"
	"github.com/flexprice/mealsub/internal/domain/subscription"
	"github.com/flexprice/mealsub/internal/domain/wallet"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	postgresRepo "github.com/flexprice/mealsub/internal/repository/postgres"
)

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewDailyOrderRepository(db *postgres.DB, logger *logger.Logger) dailyorder.Repository {
	return postgresRepo.NewDailyOrderRepository(db, logger)
}

func NewWalletRepository(db *postgres.DB, logger *logger.Logger) wallet.Repository {
	return postgresRepo.NewWalletRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewCustomerProfileRepository(db *postgres.DB, logger *logger.Logger) payment.CustomerRepository {
	return postgresRepo.NewCustomerProfileRepository(db, logger)
}

func NewProductRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) product.Repository {
	return postgresRepo.NewProductRepository(db, logger, cache)
}

func NewSettingsRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) settings.Repository {
	return postgresRepo.NewSettingsRepository(db, logger, cache)
}
