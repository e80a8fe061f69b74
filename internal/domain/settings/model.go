package settings

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/flexprice/mealsub/internal/types"
)

// Setting is one runtime configuration entry managed by administrators
type Setting struct {
	// ID is the unique identifier for the setting
	ID string `db:"id" json:"id"`

	// Key is the setting key
	Key types.SettingKey `db:"key" json:"key"`

	// Value is the JSON value of the setting
	Value Value `db:"value" json:"value"`

	// Category groups the setting on the admin surface
	Category types.SettingCategory `db:"category" json:"category"`

	types.BaseModel
}

// Value is a JSONB object column
type Value map[string]interface{}

func (v *Value) Scan(src interface{}) error {
	result := make(Value)
	if err := types.ScanJSONB(src, &result); err != nil {
		return err
	}
	*v = result
	return nil
}

func (v Value) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(map[string]interface{}(v))
}
