package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/jmoiron/sqlx"
)

// SlowQueryThreshold is the duration above which a query is logged at warn
const SlowQueryThreshold = 500 * time.Millisecond

// TracedQuerier logs every statement with its duration, request and transaction
type TracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

func NewTracedQuerier(q Querier, logger *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{
		Querier: q,
		logger:  logger,
		txID:    txID,
	}
}

// trace starts timing query and returns the func that logs its outcome
func (tq *TracedQuerier) trace(ctx context.Context, query string, args []interface{}) func(error) {
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		fields := []interface{}{
			"duration_ms", elapsed.Milliseconds(),
			"query", query,
			"params", fmt.Sprintf("%+v", args),
		}
		if tq.txID != "" {
			fields = append(fields, "tx_id", tq.txID)
		}
		if requestID := types.GetRequestID(ctx); requestID != "" {
			fields = append(fields, "request_id", requestID)
		}

		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			tq.logger.Errorw("database query failed", append(fields, "error", err.Error())...)
		case elapsed > SlowQueryThreshold:
			tq.logger.Warnw("slow database query", fields...)
		default:
			tq.logger.Debugw("database query completed", fields...)
		}
	}
}

func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	done := tq.trace(ctx, query, args)
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	done(err)
	return result, err
}

func (tq *TracedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	done := tq.trace(ctx, query, args)
	rows, err := tq.Querier.QueryContext(ctx, query, args...)
	done(err)
	return rows, err
}

// QueryxContext is the path named queries take
func (tq *TracedQuerier) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	done := tq.trace(ctx, query, args)
	rows, err := tq.Querier.QueryxContext(ctx, query, args...)
	done(err)
	return rows, err
}

func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, args)
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	done(err)
	return err
}

func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, args)
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	done(err)
	return err
}
