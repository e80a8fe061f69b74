package types

import (
	"time"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// QueryFilter represents a generic query filter with optional fields
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" form:"limit"`
	Offset *int    `json:"offset,omitempty" form:"offset"`
	Sort   *string `json:"sort,omitempty" form:"sort"`
	Order  *string `json:"order,omitempty" form:"order"`
}

// DefaultQueryFilter defines default values for query filters
var DefaultQueryFilter = QueryFilter{
	Limit:  lo.ToPtr(50),
	Offset: lo.ToPtr(0),
	Sort:   lo.ToPtr("created_at"),
	Order:  lo.ToPtr("desc"),
}

// NoLimitQueryFilter returns a filter with no pagination limits
func NoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(0),
		Offset: lo.ToPtr(0),
		Sort:   lo.ToPtr("created_at"),
		Order:  lo.ToPtr("asc"),
	}
}

// GetLimit returns the limit value or default if not set
func (f QueryFilter) GetLimit() int {
	if f.Limit == nil {
		return *DefaultQueryFilter.Limit
	}
	return *f.Limit
}

// GetOffset returns the offset value or default if not set
func (f QueryFilter) GetOffset() int {
	if f.Offset == nil {
		return *DefaultQueryFilter.Offset
	}
	return *f.Offset
}

// GetSort returns the sort value or default if not set
func (f QueryFilter) GetSort() string {
	if f.Sort == nil {
		return *DefaultQueryFilter.Sort
	}
	return *f.Sort
}

// GetOrder returns the order value or default if not set
func (f QueryFilter) GetOrder() string {
	if f.Order == nil {
		return *DefaultQueryFilter.Order
	}
	return *f.Order
}

// IsUnlimited reports whether pagination is disabled
func (f QueryFilter) IsUnlimited() bool {
	return f.Limit != nil && *f.Limit == 0
}

func (f QueryFilter) Validate() error {
	if f.Limit != nil && *f.Limit < 0 {
		return ierr.NewError("limit must be non-negative").
			WithHint("Limit must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset must be non-negative").
			WithHint("Offset must be zero or greater").
			Mark(ierr.ErrValidation)
	}
	if f.Order != nil && *f.Order != "asc" && *f.Order != "desc" {
		return ierr.NewError("invalid order").
			WithHint("Order must be asc or desc").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionFilter filters subscriptions by owner and status
type SubscriptionFilter struct {
	*QueryFilter
	UserID   string               `json:"user_id,omitempty" form:"user_id"`
	Statuses []SubscriptionStatus `json:"statuses,omitempty" form:"status"`
}

func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{QueryFilter: lo.ToPtr(DefaultQueryFilter)}
}

func (f *SubscriptionFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = lo.ToPtr(DefaultQueryFilter)
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DailyOrderFilter filters daily orders by owner, subscription and date range.
// From and To are inclusive calendar days.
type DailyOrderFilter struct {
	*QueryFilter
	UserID         string     `json:"user_id,omitempty" form:"user_id"`
	SubscriptionID string     `json:"subscription_id,omitempty" form:"subscription_id"`
	From           *time.Time `json:"from,omitempty" form:"from" time_format:"2006-01-02"`
	To             *time.Time `json:"to,omitempty" form:"to" time_format:"2006-01-02"`
}

func NewDailyOrderFilter() *DailyOrderFilter {
	return &DailyOrderFilter{QueryFilter: lo.ToPtr(DefaultQueryFilter)}
}

func (f *DailyOrderFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = lo.ToPtr(DefaultQueryFilter)
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return ierr.NewError("invalid date range").
			WithHint("The end date must not be before the start date").
			WithReportableDetails(map[string]any{
				"from": f.From,
				"to":   f.To,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ProductFilter selects active catalog products
type ProductFilter struct {
	MealTypes   []MealType `json:"meal_types,omitempty"`
	Preferences []string   `json:"preferences,omitempty"`
	ActiveOnly  bool       `json:"active_only,omitempty"`
}

// PaginationResponse echoes the page a list response covers
type PaginationResponse struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResponse is one page of items
type ListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

func NewListResponse[T any](items []T, total, limit, offset int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items:      items,
		Pagination: PaginationResponse{Total: total, Limit: limit, Offset: offset},
	}
}
