package types

import (
	"github.com/shopspring/decimal"
)

type SettingKey string

const (
	SettingKeyDiscountSlabs SettingKey = "discount_slabs"
	SettingKeyChangeWindow  SettingKey = "change_window"
	SettingKeyPausePolicy   SettingKey = "pause_policy"
	SettingKeyRefundPolicy  SettingKey = "refund_policy"
	SettingKeyAutoRenew     SettingKey = "auto_renew"
)

func (s SettingKey) String() string {
	return string(s)
}

// SettingCategory groups settings for the admin surface
type SettingCategory string

const (
	SettingCategoryPricing   SettingCategory = "pricing"
	SettingCategorySchedule  SettingCategory = "schedule"
	SettingCategoryLifecycle SettingCategory = "lifecycle"
	SettingCategoryRefund    SettingCategory = "refund"
	SettingCategoryRenewal   SettingCategory = "renewal"
)

// SettingCategories maps each key to its category
var SettingCategories = map[SettingKey]SettingCategory{
	SettingKeyDiscountSlabs: SettingCategoryPricing,
	SettingKeyChangeWindow:  SettingCategorySchedule,
	SettingKeyPausePolicy:   SettingCategoryLifecycle,
	SettingKeyRefundPolicy:  SettingCategoryRefund,
	SettingKeyAutoRenew:     SettingCategoryRenewal,
}

// DiscountSlabsConfig maps an exact plan duration in days to a percentage discount
type DiscountSlabsConfig struct {
	Slabs map[int]decimal.Decimal `json:"slabs"`
}

// PercentFor returns the discount percent for an exact duration, zero when unmatched
func (c DiscountSlabsConfig) PercentFor(durationDays int) decimal.Decimal {
	if pct, ok := c.Slabs[durationDays]; ok {
		return pct
	}
	return decimal.Zero
}

// ChangeWindowConfig is the number of leading days whose meals stay editable
type ChangeWindowConfig struct {
	Days int `json:"days"`
}

// PausePolicyConfig caps how many times a subscription may be paused
type PausePolicyConfig struct {
	MaxPauseTimes int `json:"max_pause_times"`
}

// RefundPolicyConfig selects the refund formula
type RefundPolicyConfig struct {
	Policy    RefundPolicy `json:"policy"`
	GraceDays int          `json:"grace_days"`
}

// AutoRenewConfig toggles the auto-renew job globally
type AutoRenewConfig struct {
	Enabled bool `json:"enabled"`
}

// Defaults used when a key is absent from the store
var (
	DefaultDiscountSlabs = DiscountSlabsConfig{
		Slabs: map[int]decimal.Decimal{
			7:  decimal.NewFromInt(2),
			14: decimal.NewFromInt(5),
			28: decimal.NewFromInt(10),
		},
	}
	DefaultChangeWindow = ChangeWindowConfig{Days: 3}
	DefaultPausePolicy  = PausePolicyConfig{MaxPauseTimes: 2}
	DefaultRefundPolicy = RefundPolicyConfig{Policy: RefundPolicyPartial, GraceDays: 1}
	DefaultAutoRenew    = AutoRenewConfig{Enabled: true}
)
