package postgres

import (
	"context"
	"database/sql"
	"fmt"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// notFoundOrDatabase maps sql.ErrNoRows to ierr.ErrNotFound and everything else to ierr.ErrDatabase
func notFoundOrDatabase(err error, entity, id string) error {
	if ierr.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s %s was not found", entity, id).
			WithReportableDetails(map[string]any{
				"entity": entity,
				"id":     id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return databaseError(err, fmt.Sprintf("Failed to get %s", entity))
}

// createError maps unique violations to ierr.ErrAlreadyExists
func createError(err error, entity string, details map[string]any) error {
	var pqErr *pq.Error
	if ierr.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return ierr.WithError(err).
			WithHintf("A %s with these details already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	return databaseError(err, fmt.Sprintf("Failed to create %s", entity))
}

func databaseError(err error, hint string) error {
	return ierr.WithError(err).
		WithHint(hint).
		Mark(ierr.ErrDatabase)
}

// pagination renders the ORDER BY / LIMIT / OFFSET tail for a validated filter.
// Sort columns are whitelisted per table.
func pagination(f *types.QueryFilter, sortable map[string]string) string {
	if f == nil {
		f = &types.DefaultQueryFilter
	}
	column, ok := sortable[f.GetSort()]
	if !ok {
		column = sortable["created_at"]
	}
	order := "DESC"
	if f.GetOrder() == "asc" {
		order = "ASC"
	}
	tail := fmt.Sprintf(" ORDER BY %s %s", column, order)
	if !f.IsUnlimited() {
		tail += fmt.Sprintf(" LIMIT %d OFFSET %d", f.GetLimit(), f.GetOffset())
	}
	return tail
}

// namedCount runs a named COUNT(*) query
func namedCount(ctx context.Context, db *postgres.DB, query string, params map[string]interface{}) (int, error) {
	rows, err := db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}
