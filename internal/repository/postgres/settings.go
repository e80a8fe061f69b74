package postgres

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/cache"
	"github.com/flexprice/mealsub/internal/domain/settings"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/internal/types"
)

type settingsRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	cache  cache.Cache
}

// NewSettingsRepository creates a settings repository backed by postgres with a
// read-through cache in front of GetByKey
func NewSettingsRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) settings.Repository {
	return &settingsRepository{
		db:     db,
		logger: logger,
		cache:  cache,
	}
}

func (r *settingsRepository) GetByKey(ctx context.Context, key types.SettingKey) (*settings.Setting, error) {
	if cached := r.getCache(ctx, key); cached != nil {
		return cached, nil
	}

	var s settings.Setting
	err := r.db.NamedGetContext(ctx, &s,
		`SELECT * FROM settings WHERE key = :key AND status = :status`,
		map[string]interface{}{"key": key, "status": types.StatusPublished})
	if err != nil {
		return nil, notFoundOrDatabase(err, "setting", string(key))
	}

	r.setCache(ctx, &s)
	return &s, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *settings.Setting) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.UpdatedBy = types.GetUserID(ctx)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
		s.CreatedBy = s.UpdatedBy
	}
	if s.Status == "" {
		s.Status = types.StatusPublished
	}

	r.logger.Debugw("upserting setting", "key", s.Key)

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO settings (id, key, value, category, status, created_at, updated_at, created_by, updated_by)
		VALUES (:id, :key, :value, :category, :status, :created_at, :updated_at, :created_by, :updated_by)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`, s)
	if err != nil {
		return databaseError(err, "Failed to save setting")
	}

	r.deleteCache(ctx, s.Key)
	return nil
}

func (r *settingsRepository) List(ctx context.Context) ([]*settings.Setting, error) {
	var out []*settings.Setting
	err := r.db.NamedSelectContext(ctx, &out,
		`SELECT * FROM settings WHERE status = :status ORDER BY key ASC`,
		map[string]interface{}{"status": types.StatusPublished})
	if err != nil {
		return nil, databaseError(err, "Failed to list settings")
	}
	return out, nil
}

func (r *settingsRepository) DeleteByKey(ctx context.Context, key types.SettingKey) error {
	_, err := r.db.NamedExecContext(ctx,
		`UPDATE settings SET status = :deleted, updated_at = NOW() WHERE key = :key AND status = :status`,
		map[string]interface{}{
			"key":     key,
			"deleted": types.StatusDeleted,
			"status":  types.StatusPublished,
		})
	if err != nil {
		return databaseError(err, "Failed to delete setting")
	}
	r.deleteCache(ctx, key)
	return nil
}

func (r *settingsRepository) getCache(ctx context.Context, key types.SettingKey) *settings.Setting {
	s, _ := cache.Fetch[*settings.Setting](ctx, r.cache, cache.GenerateKey(cache.PrefixSettings, string(key)))
	return s
}

func (r *settingsRepository) setCache(ctx context.Context, s *settings.Setting) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, cache.GenerateKey(cache.PrefixSettings, string(s.Key)), s, 0)
}

func (r *settingsRepository) deleteCache(ctx context.Context, key types.SettingKey) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, cache.GenerateKey(cache.PrefixSettings, string(key)))
}
