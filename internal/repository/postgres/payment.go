package postgres

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/domain/payment"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
)

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (
			id, subscription_id, user_id, purpose, method, amount, currency, payment_status,
			gateway_transaction_id, idempotency_key, failure_reason, metadata, completed_at,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :subscription_id, :user_id, :purpose, :method, :amount, :currency, :payment_status,
			:gateway_transaction_id, :idempotency_key, :failure_reason, :metadata, :completed_at,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"subscription_id", p.SubscriptionID,
		"purpose", p.Purpose,
		"method", p.Method,
		"amount", p.Amount,
	)

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return createError(err, "payment", map[string]any{
			"idempotency_key": p.IdempotencyKey,
		})
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.NamedGetContext(ctx, &p,
		`SELECT * FROM payments WHERE id = :id AND status = :status`,
		map[string]interface{}{"id": id, "status": types.StatusPublished})
	if err != nil {
		return nil, notFoundOrDatabase(err, "payment", id)
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments SET
			payment_status = :payment_status,
			gateway_transaction_id = :gateway_transaction_id,
			failure_reason = :failure_reason,
			metadata = :metadata,
			completed_at = :completed_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status = :status`

	p.Touch(ctx)

	result, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return databaseError(err, "Failed to update payment")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ierr.NewErrorf("payment %s not found", p.ID).
			WithHintf("Payment %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.NamedGetContext(ctx, &p,
		`SELECT * FROM payments WHERE idempotency_key = :key AND status = :status`,
		map[string]interface{}{"key": key, "status": types.StatusPublished})
	if err != nil {
		return nil, notFoundOrDatabase(err, "payment", key)
	}
	return &p, nil
}

func (r *paymentRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.NamedSelectContext(ctx, &payments, `
		SELECT * FROM payments
		WHERE subscription_id = :subscription_id AND status = :status
		ORDER BY created_at ASC`,
		map[string]interface{}{"subscription_id": subscriptionID, "status": types.StatusPublished})
	if err != nil {
		return nil, databaseError(err, "Failed to list payments")
	}
	return payments, nil
}

type customerProfileRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCustomerProfileRepository(db *postgres.DB, logger *logger.Logger) payment.CustomerRepository {
	return &customerProfileRepository{
		db:     db,
		logger: logger,
	}
}

func (r *customerProfileRepository) GetByUserID(ctx context.Context, userID string) (*payment.CustomerProfile, error) {
	var profile payment.CustomerProfile
	err := r.db.NamedGetContext(ctx, &profile,
		`SELECT * FROM customer_profiles WHERE user_id = :user_id`,
		map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, notFoundOrDatabase(err, "customer profile", userID)
	}
	return &profile, nil
}

func (r *customerProfileRepository) Upsert(ctx context.Context, profile *payment.CustomerProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO customer_profiles (user_id, customer_ref, default_payment_method_ref, created_at, updated_at)
		VALUES (:user_id, :customer_ref, :default_payment_method_ref, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			customer_ref = EXCLUDED.customer_ref,
			default_payment_method_ref = EXCLUDED.default_payment_method_ref,
			updated_at = EXCLUDED.updated_at`, profile)
	if err != nil {
		return databaseError(err, "Failed to save customer profile")
	}
	return nil
}
