package audit

import (
	"sync"

	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-workspaces/pkg/types"
)

// SanitizerConfig controls the masker applied to audit values before they
// reach storage.
type SanitizerConfig struct {
	Masker *masker.Masker
}

var defaultMaskerOnce sync.Once

// DefaultMasker returns a configured masker instance with the default denylist.
func DefaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		registerDefaultMaskFields(masker.Default)
	})
	return masker.Default
}

// SanitizeRecord masks the old and new values of a record whose changed
// field sits on the denylist. Records for other fields pass through as is.
func SanitizeRecord(mask *masker.Masker, record types.HistoryRecord) types.HistoryRecord {
	if record.FieldChanged == "" {
		return record
	}
	if mask == nil {
		mask = DefaultMasker()
	}
	if mask == nil {
		return record
	}
	record.OldValue = maskValue(mask, record.FieldChanged, record.OldValue)
	record.NewValue = maskValue(mask, record.FieldChanged, record.NewValue)
	return record
}

// SanitizeRecords masks sensitive values for every record in the slice.
func SanitizeRecords(mask *masker.Masker, records []types.HistoryRecord) []types.HistoryRecord {
	if len(records) == 0 {
		return records
	}
	out := make([]types.HistoryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, SanitizeRecord(mask, record))
	}
	return out
}

func maskValue(mask *masker.Masker, field, value string) string {
	if value == "" {
		return value
	}
	masked, err := mask.Mask(map[string]any{field: value})
	if err != nil {
		return ""
	}
	payload, ok := masked.(map[string]any)
	if !ok {
		return ""
	}
	out, ok := payload[field].(string)
	if !ok {
		return ""
	}
	return out
}

func registerDefaultMaskFields(mask *masker.Masker) {
	if mask == nil {
		return
	}
	for _, field := range []string{"secret", "token", "password", "api_key", "webhook_secret"} {
		mask.RegisterMaskField(field, "filled4")
	}
}
