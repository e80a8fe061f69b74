package testutil

import (
	"context"
	"time"

	domainSettings "github.com/flexprice/mealsub/internal/domain/settings"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
)

// InMemorySettingsStore implements an in-memory settings repository keyed by setting key
type InMemorySettingsStore struct {
	*InMemoryStore[*domainSettings.Setting]
}

// NewInMemorySettingsStore creates a new in-memory settings store
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{
		InMemoryStore: NewInMemoryStore(cloneSetting),
	}
}

// GetByKey retrieves a setting by key
func (s *InMemorySettingsStore) GetByKey(ctx context.Context, key types.SettingKey) (*domainSettings.Setting, error) {
	setting, err := s.InMemoryStore.Get(ctx, string(key))
	if err != nil || setting.Status != types.StatusPublished {
		return nil, ierr.NewErrorf("setting %s not found", key).
			WithHintf("Setting %s was not found", key).
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrNotFound)
	}
	return setting, nil
}

func (s *InMemorySettingsStore) Upsert(ctx context.Context, setting *domainSettings.Setting) error {
	setting.UpdatedAt = time.Now().UTC()
	if setting.Status == "" {
		setting.Status = types.StatusPublished
	}
	if err := s.InMemoryStore.Update(ctx, string(setting.Key), setting); err == nil {
		return nil
	}
	return s.InMemoryStore.Create(ctx, string(setting.Key), setting)
}

func (s *InMemorySettingsStore) List(ctx context.Context) ([]*domainSettings.Setting, error) {
	return s.InMemoryStore.List(ctx, nil,
		func(_ context.Context, setting *domainSettings.Setting) bool {
			return setting.Status == types.StatusPublished
		},
		func(a, b *domainSettings.Setting) bool { return a.Key < b.Key })
}

func (s *InMemorySettingsStore) DeleteByKey(ctx context.Context, key types.SettingKey) error {
	setting, err := s.GetByKey(ctx, key)
	if err != nil {
		return nil
	}
	setting.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, string(key), setting)
}
