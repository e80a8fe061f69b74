package dto

import (
	"time"

	"github.com/flexprice/mealsub/internal/types"
	"github.com/flexprice/mealsub/internal/validator"
)

// SettingResponse represents a setting in API responses
type SettingResponse struct {
	Key         types.SettingKey       `json:"key"`
	Category    types.SettingCategory  `json:"category"`
	Value       map[string]interface{} `json:"value"`
	Description string                 `json:"description,omitempty"`
	// IsDefault is true when nothing is stored and the builtin default applies
	IsDefault bool       `json:"is_default"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// UpdateSettingRequest replaces the given top level fields of a setting value
type UpdateSettingRequest struct {
	Value map[string]interface{} `json:"value" validate:"required"`
}

func (r *UpdateSettingRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SubscriptionSettingsResponse is the read-only view served to storefronts
type SubscriptionSettingsResponse struct {
	DiscountSlabs types.DiscountSlabsConfig `json:"discount_slabs"`
	ChangeWindow  types.ChangeWindowConfig  `json:"change_window"`
	PausePolicy   types.PausePolicyConfig   `json:"pause_policy"`
	RefundPolicy  types.RefundPolicyConfig  `json:"refund_policy"`
	AutoRenew     types.AutoRenewConfig     `json:"auto_renew"`
}
