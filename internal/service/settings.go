package service

import (
	"context"
	"fmt"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/domain/settings"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
	typesSettings "github.com/flexprice/mealsub/internal/types/settings"
	"github.com/samber/lo"
)

// SettingsService is the configuration store. Reads fall back to the
// registered default when a key has never been set.
type SettingsService interface {
	GetSettingByKey(ctx context.Context, key types.SettingKey) (*dto.SettingResponse, error)
	UpdateSettingByKey(ctx context.Context, key types.SettingKey, req *dto.UpdateSettingRequest) (*dto.SettingResponse, error)
	DeleteSettingByKey(ctx context.Context, key types.SettingKey) error
	ListSettings(ctx context.Context) ([]*dto.SettingResponse, error)
	GetSubscriptionSettings(ctx context.Context) (*dto.SubscriptionSettingsResponse, error)

	DiscountSlabs(ctx context.Context) (types.DiscountSlabsConfig, error)
	ChangeWindow(ctx context.Context) (types.ChangeWindowConfig, error)
	PausePolicy(ctx context.Context) (types.PausePolicyConfig, error)
	RefundPolicy(ctx context.Context) (types.RefundPolicyConfig, error)
	AutoRenew(ctx context.Context) (types.AutoRenewConfig, error)
}

type settingsService struct {
	ServiceParams
	registry *typesSettings.SettingRegistry
}

func NewSettingsService(params ServiceParams) SettingsService {
	registry := typesSettings.NewSettingRegistry()

	typesSettings.Register(
		registry,
		types.SettingKeyDiscountSlabs,
		types.DefaultDiscountSlabs,
		validateDiscountSlabs,
		"Percentage discount per exact plan duration in days",
	)

	typesSettings.Register(
		registry,
		types.SettingKeyChangeWindow,
		types.DefaultChangeWindow,
		validateChangeWindow,
		"Number of leading plan days whose meals can still be changed",
	)

	typesSettings.Register(
		registry,
		types.SettingKeyPausePolicy,
		types.DefaultPausePolicy,
		validatePausePolicy,
		"Maximum number of pauses per subscription",
	)

	typesSettings.Register(
		registry,
		types.SettingKeyRefundPolicy,
		types.DefaultRefundPolicy,
		validateRefundPolicy,
		"Refund formula and grace period",
	)

	typesSettings.Register(
		registry,
		types.SettingKeyAutoRenew,
		types.DefaultAutoRenew,
		nil,
		"Global switch for the auto-renew job",
	)

	return &settingsService{
		ServiceParams: params,
		registry:      registry,
	}
}

func validateDiscountSlabs(config types.DiscountSlabsConfig) error {
	for days, pct := range config.Slabs {
		if days <= 0 {
			return fmt.Errorf("slab duration must be positive, got %d", days)
		}
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("discount for %d days must be between 0 and 100, got %s", days, pct)
		}
	}
	return nil
}

func validateChangeWindow(config types.ChangeWindowConfig) error {
	if config.Days < 0 {
		return fmt.Errorf("change window days must be >= 0")
	}
	return nil
}

func validatePausePolicy(config types.PausePolicyConfig) error {
	if config.MaxPauseTimes < 0 {
		return fmt.Errorf("max_pause_times must be >= 0")
	}
	return nil
}

func validateRefundPolicy(config types.RefundPolicyConfig) error {
	if config.GraceDays < 0 {
		return fmt.Errorf("grace_days must be >= 0")
	}
	return config.Policy.Validate()
}

// GetSetting retrieves a setting with compile-time type safety
func GetSetting[T any](
	s *settingsService,
	ctx context.Context,
	key types.SettingKey,
) (T, error) {
	var zero T

	settingType, err := typesSettings.GetType[T](s.registry, key)
	if err != nil {
		return zero, ierr.WithError(err).
			WithHintf("Unknown setting type for key %s", key).
			Mark(ierr.ErrValidation)
	}

	setting, err := s.SettingsRepo.GetByKey(ctx, key)
	if ierr.IsNotFound(err) {
		return settingType.DefaultValue, nil
	}
	if err != nil {
		return zero, err
	}

	typedValue, err := typesSettings.ConvertToType[T](setting.Value, settingType.DefaultValue)
	if err != nil {
		return zero, ierr.WithError(err).
			WithHintf("Failed to convert setting %s", key).
			Mark(ierr.ErrValidation)
	}

	// a stored value that no longer validates must not break pricing or jobs
	if settingType.Validator != nil {
		if err := settingType.Validator(typedValue); err != nil {
			s.Logger.Warnw("stored setting is invalid, using default",
				"key", key,
				"error", err,
			)
			return settingType.DefaultValue, nil
		}
	}

	return typedValue, nil
}

// UpdateSetting validates and stores a typed value
func UpdateSetting[T any](
	s *settingsService,
	ctx context.Context,
	key types.SettingKey,
	value T,
) error {
	settingType, err := typesSettings.GetType[T](s.registry, key)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Unknown setting type for key %s", key).
			Mark(ierr.ErrValidation)
	}

	if settingType.Validator != nil {
		if err := settingType.Validator(value); err != nil {
			return ierr.WithError(err).
				WithHintf("Validation failed for setting %s", key).
				WithReportableDetails(map[string]any{"key": key}).
				Mark(ierr.ErrValidation)
		}
	}

	valueMap, err := typesSettings.ConvertFromType(value)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to convert setting %s", key).
			Mark(ierr.ErrValidation)
	}

	return s.SettingsRepo.Upsert(ctx, &settings.Setting{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SETTING),
		Key:       key,
		Value:     valueMap,
		Category:  settingType.Category,
		BaseModel: types.GetDefaultBaseModel(ctx),
	})
}

// updateSettingByKey merges the request into the current value, then stores the typed result
func updateSettingByKey[T any](s *settingsService, ctx context.Context, key types.SettingKey, req *dto.UpdateSettingRequest) (*dto.SettingResponse, error) {
	current, err := GetSetting[T](s, ctx, key)
	if err != nil {
		return nil, err
	}
	currentMap, err := typesSettings.ConvertFromType(current)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Value {
		currentMap[k] = v
	}

	var zero T
	merged, err := typesSettings.ConvertToType[T](currentMap, zero)
	if err != nil {
		return nil, err
	}

	if err := UpdateSetting(s, ctx, key, merged); err != nil {
		return nil, err
	}

	s.Logger.Infow("setting updated", "key", key, "updated_by", types.GetUserID(ctx))
	return s.GetSettingByKey(ctx, key)
}

func getSettingByKey[T any](s *settingsService, ctx context.Context, key types.SettingKey) (*dto.SettingResponse, error) {
	value, err := GetSetting[T](s, ctx, key)
	if err != nil {
		return nil, err
	}
	valueMap, err := typesSettings.ConvertFromType(value)
	if err != nil {
		return nil, err
	}

	def, _ := s.registry.Definition(key)
	resp := &dto.SettingResponse{
		Key:         key,
		Category:    def.Category,
		Value:       valueMap,
		Description: def.Description,
		IsDefault:   true,
	}

	stored, err := s.SettingsRepo.GetByKey(ctx, key)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if stored != nil {
		resp.IsDefault = false
		resp.UpdatedAt = lo.ToPtr(stored.UpdatedAt)
		resp.UpdatedBy = stored.UpdatedBy
	}
	return resp, nil
}

func (s *settingsService) GetSettingByKey(ctx context.Context, key types.SettingKey) (*dto.SettingResponse, error) {
	switch key {
	case types.SettingKeyDiscountSlabs:
		return getSettingByKey[types.DiscountSlabsConfig](s, ctx, key)
	case types.SettingKeyChangeWindow:
		return getSettingByKey[types.ChangeWindowConfig](s, ctx, key)
	case types.SettingKeyPausePolicy:
		return getSettingByKey[types.PausePolicyConfig](s, ctx, key)
	case types.SettingKeyRefundPolicy:
		return getSettingByKey[types.RefundPolicyConfig](s, ctx, key)
	case types.SettingKeyAutoRenew:
		return getSettingByKey[types.AutoRenewConfig](s, ctx, key)
	default:
		return nil, unknownSettingKey(key)
	}
}

func (s *settingsService) UpdateSettingByKey(ctx context.Context, key types.SettingKey, req *dto.UpdateSettingRequest) (*dto.SettingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch key {
	case types.SettingKeyDiscountSlabs:
		return updateSettingByKey[types.DiscountSlabsConfig](s, ctx, key, req)
	case types.SettingKeyChangeWindow:
		return updateSettingByKey[types.ChangeWindowConfig](s, ctx, key, req)
	case types.SettingKeyPausePolicy:
		return updateSettingByKey[types.PausePolicyConfig](s, ctx, key, req)
	case types.SettingKeyRefundPolicy:
		return updateSettingByKey[types.RefundPolicyConfig](s, ctx, key, req)
	case types.SettingKeyAutoRenew:
		return updateSettingByKey[types.AutoRenewConfig](s, ctx, key, req)
	default:
		return nil, unknownSettingKey(key)
	}
}

// DeleteSettingByKey removes the stored value so the default applies again
func (s *settingsService) DeleteSettingByKey(ctx context.Context, key types.SettingKey) error {
	if !s.registry.Has(key) {
		return unknownSettingKey(key)
	}
	if _, err := s.SettingsRepo.GetByKey(ctx, key); err != nil {
		return err
	}
	return s.SettingsRepo.DeleteByKey(ctx, key)
}

func (s *settingsService) ListSettings(ctx context.Context) ([]*dto.SettingResponse, error) {
	keys := s.registry.Keys()
	items := make([]*dto.SettingResponse, 0, len(keys))
	for _, key := range keys {
		resp, err := s.GetSettingByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		items = append(items, resp)
	}
	return items, nil
}

func (s *settingsService) GetSubscriptionSettings(ctx context.Context) (*dto.SubscriptionSettingsResponse, error) {
	var (
		resp dto.SubscriptionSettingsResponse
		err  error
	)
	if resp.DiscountSlabs, err = s.DiscountSlabs(ctx); err != nil {
		return nil, err
	}
	if resp.ChangeWindow, err = s.ChangeWindow(ctx); err != nil {
		return nil, err
	}
	if resp.PausePolicy, err = s.PausePolicy(ctx); err != nil {
		return nil, err
	}
	if resp.RefundPolicy, err = s.RefundPolicy(ctx); err != nil {
		return nil, err
	}
	if resp.AutoRenew, err = s.AutoRenew(ctx); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *settingsService) DiscountSlabs(ctx context.Context) (types.DiscountSlabsConfig, error) {
	return GetSetting[types.DiscountSlabsConfig](s, ctx, types.SettingKeyDiscountSlabs)
}

func (s *settingsService) ChangeWindow(ctx context.Context) (types.ChangeWindowConfig, error) {
	return GetSetting[types.ChangeWindowConfig](s, ctx, types.SettingKeyChangeWindow)
}

func (s *settingsService) PausePolicy(ctx context.Context) (types.PausePolicyConfig, error) {
	return GetSetting[types.PausePolicyConfig](s, ctx, types.SettingKeyPausePolicy)
}

func (s *settingsService) RefundPolicy(ctx context.Context) (types.RefundPolicyConfig, error) {
	return GetSetting[types.RefundPolicyConfig](s, ctx, types.SettingKeyRefundPolicy)
}

func (s *settingsService) AutoRenew(ctx context.Context) (types.AutoRenewConfig, error) {
	return GetSetting[types.AutoRenewConfig](s, ctx, types.SettingKeyAutoRenew)
}

func unknownSettingKey(key types.SettingKey) error {
	return ierr.NewErrorf("unknown setting key: %s", key).
		WithHintf("Setting %s does not exist", key).
		Mark(ierr.ErrValidation)
}
