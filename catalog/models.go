package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Permission represents the schema stored in permissions. The
// (entity, operation) pair carries a unique index; rows are vocabulary and
// are never deleted.
type Permission struct {
	bun.BaseModel `bun:"table:permissions"`

	ID        uuid.UUID `bun:",pk,type:uuid"`
	Entity    string    `bun:"entity,notnull"`
	Operation string    `bun:"operation,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
