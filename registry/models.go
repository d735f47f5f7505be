package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role represents the schema stored in roles. Name is unique within a
// workspace, not globally.
type Role struct {
	bun.BaseModel `bun:"table:roles"`

	ID               uuid.UUID `bun:",pk,type:uuid"`
	WorkspaceID      uuid.UUID `bun:"workspace_id,type:uuid,notnull"`
	Name             string    `bun:"name,notnull"`
	Description      string    `bun:"description"`
	IsAdministrative bool      `bun:"is_administrative,notnull"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
	CreatedBy        uuid.UUID `bun:"created_by,type:uuid,notnull"`
	UpdatedBy        uuid.UUID `bun:"updated_by,type:uuid,notnull"`
}

// RoleGrant represents rows from role_grants. The composite primary key
// makes re-granting a no-op.
type RoleGrant struct {
	bun.BaseModel `bun:"table:role_grants"`

	RoleID       uuid.UUID `bun:"role_id,type:uuid,pk"`
	PermissionID uuid.UUID `bun:"permission_id,type:uuid,pk"`
}
