package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a free-form string map stored as JSONB, used on payments
type Metadata map[string]string

func (m *Metadata) Scan(value interface{}) error {
	result := make(Metadata)
	if err := ScanJSONB(value, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// ScanJSONB decodes a JSONB column into dest. NULL leaves dest untouched.
func ScanJSONB(value interface{}, dest interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
	return json.Unmarshal(raw, dest)
}
