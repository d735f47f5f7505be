package audit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// Diff compares two snapshots over an ordered list of tracked fields and
// returns one change per field whose normalized forms differ. Fields absent
// from both snapshots are skipped; a field present on only one side diffs
// against the empty string.
func Diff(prev, next map[string]any, fields []string) types.ChangeSet {
	var changes types.ChangeSet
	for _, field := range fields {
		oldValue, hadOld := prev[field]
		newValue, hadNew := next[field]
		if !hadOld && !hadNew {
			continue
		}
		oldText := NormalizeValue(oldValue)
		newText := NormalizeValue(newValue)
		if oldText == newText {
			continue
		}
		changes = append(changes, types.FieldChange{
			Field: field,
			Old:   oldText,
			New:   newText,
		})
	}
	return changes
}

// NormalizeValue renders a snapshot value into its canonical audit string.
// Timestamps normalize to RFC 3339 UTC so equal instants in different zones
// never produce a spurious change; nil renders as the empty string.
func NormalizeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case uuid.UUID:
		if v == uuid.Nil {
			return ""
		}
		return v.String()
	case *uuid.UUID:
		if v == nil || *v == uuid.Nil {
			return ""
		}
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
