package settings

import (
	"fmt"
	"sort"

	"github.com/flexprice/mealsub/internal/types"
)

// SettingType defines a type-safe setting configuration
type SettingType[T any] struct {
	Key          types.SettingKey
	Category     types.SettingCategory
	DefaultValue T
	Validator    func(T) error
	Description  string
}

// Definition is the untyped view of a registered setting used for listings
type Definition struct {
	Key          types.SettingKey
	Category     types.SettingCategory
	DefaultValue any
	Description  string
}

// SettingRegistry holds the setting definitions.
// It is populated once at service construction and only read afterwards.
type SettingRegistry struct {
	types       map[types.SettingKey]interface{}
	definitions map[types.SettingKey]Definition
}

// NewSettingRegistry creates a new setting registry
func NewSettingRegistry() *SettingRegistry {
	return &SettingRegistry{
		types:       make(map[types.SettingKey]interface{}),
		definitions: make(map[types.SettingKey]Definition),
	}
}

// Register registers a new setting type with compile-time type safety
func Register[T any](
	r *SettingRegistry,
	key types.SettingKey,
	defaultValue T,
	validator func(T) error,
	description string,
) {
	category := types.SettingCategories[key]
	r.types[key] = SettingType[T]{
		Key:          key,
		Category:     category,
		DefaultValue: defaultValue,
		Validator:    validator,
		Description:  description,
	}
	r.definitions[key] = Definition{
		Key:          key,
		Category:     category,
		DefaultValue: defaultValue,
		Description:  description,
	}
}

// GetType returns the SettingType for a given key with compile-time type safety
func GetType[T any](r *SettingRegistry, key types.SettingKey) (SettingType[T], error) {
	typ, exists := r.types[key]
	if !exists {
		return SettingType[T]{}, fmt.Errorf("unknown setting key: %s", key)
	}

	settingType, ok := typ.(SettingType[T])
	if !ok {
		return SettingType[T]{}, fmt.Errorf("type mismatch for key %s", key)
	}

	return settingType, nil
}

// Has checks if a setting key is registered
func (r *SettingRegistry) Has(key types.SettingKey) bool {
	_, exists := r.types[key]
	return exists
}

// Definition returns the untyped definition of a key
func (r *SettingRegistry) Definition(key types.SettingKey) (Definition, bool) {
	d, ok := r.definitions[key]
	return d, ok
}

// Keys returns all registered setting keys in lexical order
func (r *SettingRegistry) Keys() []types.SettingKey {
	keys := make([]types.SettingKey, 0, len(r.types))
	for key := range r.types {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
