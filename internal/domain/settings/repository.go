package settings

import (
	"context"

	"github.com/flexprice/mealsub/internal/types"
)

// Repository defines the interface for settings persistence operations
type Repository interface {
	// GetByKey returns ierr.ErrNotFound when the key has never been set
	GetByKey(ctx context.Context, key types.SettingKey) (*Setting, error)
	// Upsert creates the setting or replaces the value of an existing key
	Upsert(ctx context.Context, setting *Setting) error
	List(ctx context.Context) ([]*Setting, error)
	DeleteByKey(ctx context.Context, key types.SettingKey) error
}
