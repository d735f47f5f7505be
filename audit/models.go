package audit

import (
	"time"

	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// HistoryEntry is the persistence model for one audit row. Rows are
// append-only; nothing in this package updates or deletes them.
type HistoryEntry struct {
	bun.BaseModel `bun:"table:history,alias:h"`

	ID           uuid.UUID           `bun:"id,pk,type:uuid"`
	WorkspaceID  uuid.UUID           `bun:"workspace_id,notnull,type:uuid"`
	EntityID     uuid.UUID           `bun:"entity_id,notnull,type:uuid"`
	Action       types.HistoryAction `bun:"action,notnull"`
	FieldChanged string              `bun:"field_changed"`
	OldValue     string              `bun:"old_value"`
	NewValue     string              `bun:"new_value"`
	ChangedBy    uuid.UUID           `bun:"changed_by,notnull,type:uuid"`
	ChangedAt    time.Time           `bun:"changed_at,notnull"`
}
