package workspace

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Workspace is the persistence model for one tenant. AdminID carries full
// implicit authority inside the workspace; it is consulted by the gate, not
// by the role tables.
type Workspace struct {
	bun.BaseModel `bun:"table:workspaces,alias:w"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	AdminID   uuid.UUID `bun:"admin_id,notnull,type:uuid"`
	CreatedBy uuid.UUID `bun:"created_by,notnull,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
