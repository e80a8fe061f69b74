package service

import (
	"testing"

	"github.com/flexprice/mealsub/internal/api/dto"
	domainSettings "github.com/flexprice/mealsub/internal/domain/settings"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/testutil"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SettingsServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SettingsService
}

func TestSettingsService(t *testing.T) {
	suite.Run(t, new(SettingsServiceSuite))
}

func (s *SettingsServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSettingsService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *SettingsServiceSuite) TestDefaultsWhenNothingStored() {
	ctx := s.GetContext()

	window, err := s.service.ChangeWindow(ctx)
	s.NoError(err)
	s.Equal(3, window.Days)

	pause, err := s.service.PausePolicy(ctx)
	s.NoError(err)
	s.Equal(2, pause.MaxPauseTimes)

	refund, err := s.service.RefundPolicy(ctx)
	s.NoError(err)
	s.Equal(types.RefundPolicyPartial, refund.Policy)

	autoRenew, err := s.service.AutoRenew(ctx)
	s.NoError(err)
	s.True(autoRenew.Enabled)

	slabs, err := s.service.DiscountSlabs(ctx)
	s.NoError(err)
	s.True(slabs.PercentFor(28).Equal(decimal.NewFromInt(10)))

	resp, err := s.service.GetSettingByKey(ctx, types.SettingKeyChangeWindow)
	s.NoError(err)
	s.True(resp.IsDefault)
	s.Nil(resp.UpdatedAt)
}

func (s *SettingsServiceSuite) TestUpdateMergesAndStores() {
	ctx := s.GetContext()

	resp, err := s.service.UpdateSettingByKey(ctx, types.SettingKeyRefundPolicy, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"policy": "full"},
	})
	s.Require().NoError(err)
	s.False(resp.IsDefault)
	s.Equal("full", resp.Value["policy"])

	refund, err := s.service.RefundPolicy(ctx)
	s.NoError(err)
	s.Equal(types.RefundPolicyFull, refund.Policy)
	// untouched fields keep their previous value
	s.Equal(1, refund.GraceDays)
}

func (s *SettingsServiceSuite) TestUpdateDiscountSlabs() {
	ctx := s.GetContext()

	_, err := s.service.UpdateSettingByKey(ctx, types.SettingKeyDiscountSlabs, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{
			"slabs": map[string]interface{}{"7": "3", "30": "12"},
		},
	})
	s.Require().NoError(err)

	slabs, err := s.service.DiscountSlabs(ctx)
	s.NoError(err)
	s.True(slabs.PercentFor(7).Equal(decimal.NewFromInt(3)))
	s.True(slabs.PercentFor(30).Equal(decimal.NewFromInt(12)))
	s.True(slabs.PercentFor(14).IsZero())
}

func (s *SettingsServiceSuite) TestUpdateRejectsInvalidValue() {
	ctx := s.GetContext()

	_, err := s.service.UpdateSettingByKey(ctx, types.SettingKeyChangeWindow, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"days": -1},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	window, err := s.service.ChangeWindow(ctx)
	s.NoError(err)
	s.Equal(3, window.Days)
}

func (s *SettingsServiceSuite) TestUnknownKey() {
	_, err := s.service.GetSettingByKey(s.GetContext(), types.SettingKey("delivery_fee"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SettingsServiceSuite) TestInvalidStoredValueFallsBackToDefault() {
	ctx := s.GetContext()
	s.Require().NoError(s.GetStores().SettingsRepo.Upsert(ctx, &domainSettings.Setting{
		ID:        s.GetUUID(),
		Key:       types.SettingKeyPausePolicy,
		Value:     map[string]interface{}{"max_pause_times": -4},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}))

	pause, err := s.service.PausePolicy(ctx)
	s.NoError(err)
	s.Equal(2, pause.MaxPauseTimes)
}

func (s *SettingsServiceSuite) TestDeleteRestoresDefault() {
	ctx := s.GetContext()

	_, err := s.service.UpdateSettingByKey(ctx, types.SettingKeyChangeWindow, &dto.UpdateSettingRequest{
		Value: map[string]interface{}{"days": 5},
	})
	s.Require().NoError(err)

	s.NoError(s.service.DeleteSettingByKey(ctx, types.SettingKeyChangeWindow))

	window, err := s.service.ChangeWindow(ctx)
	s.NoError(err)
	s.Equal(3, window.Days)

	err = s.service.DeleteSettingByKey(ctx, types.SettingKeyChangeWindow)
	s.True(ierr.IsNotFound(err))
}

func (s *SettingsServiceSuite) TestListSettingsAndSubscriptionView() {
	ctx := s.GetContext()

	items, err := s.service.ListSettings(ctx)
	s.NoError(err)
	s.Len(items, 5)

	view, err := s.service.GetSubscriptionSettings(ctx)
	s.NoError(err)
	s.Equal(3, view.ChangeWindow.Days)
	s.Equal(2, view.PausePolicy.MaxPauseTimes)
}
