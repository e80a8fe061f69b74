package settings

import (
	"encoding/json"
	"sort"

	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// ConvertToType decodes a stored JSONB value into T. Top level keys missing
// from value keep their default; keys present replace the default wholesale.
func ConvertToType[T any](value map[string]interface{}, defaultValue T) (T, error) {
	if value == nil {
		return defaultValue, nil
	}

	defaults, err := ConvertFromType(defaultValue)
	if err != nil {
		return defaultValue, err
	}

	var result T
	if err := transcode(lo.Assign(defaults, value), &result); err != nil {
		fields := lo.Keys(value)
		sort.Strings(fields)
		return result, ierr.WithError(err).
			WithHint("Stored setting does not match its expected shape").
			WithReportableDetails(map[string]any{"fields": fields}).
			Mark(ierr.ErrValidation)
	}
	return result, nil
}

// ConvertFromType flattens a typed setting into the map stored in JSONB
func ConvertFromType[T any](value T) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := transcode(value, &result); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Setting value is not a JSON object").
			Mark(ierr.ErrValidation)
	}
	return result, nil
}

// transcode copies src into dst through JSON. This is what turns the
// float64 numbers of a decoded map back into ints.
func transcode(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
