package subscription

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/flexprice/mealsub/internal/types"
)

// JSONB column types. Each marshals to an empty array or object instead of null.

type MealSlots []MealSlot

func (m *MealSlots) Scan(src interface{}) error { return types.ScanJSONB(src, m) }

func (m MealSlots) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]MealSlot(m))
}

type FreezeHistory []FreezeEntry

func (f *FreezeHistory) Scan(src interface{}) error { return types.ScanJSONB(src, f) }

func (f FreezeHistory) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]FreezeEntry(f))
}

type SwapHistory []SwapEntry

func (s *SwapHistory) Scan(src interface{}) error { return types.ScanJSONB(src, s) }

func (s SwapHistory) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]SwapEntry(s))
}

type MealTypeList []types.MealType

func (m *MealTypeList) Scan(src interface{}) error { return types.ScanJSONB(src, m) }

func (m MealTypeList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]types.MealType(m))
}

type StringList []string

func (s *StringList) Scan(src interface{}) error { return types.ScanJSONB(src, s) }

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (p *PaymentState) Scan(src interface{}) error { return types.ScanJSONB(src, p) }

func (p PaymentState) Value() (driver.Value, error) {
	return json.Marshal(p)
}
