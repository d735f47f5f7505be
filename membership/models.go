package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Membership is the persistence model for one role binding. The composite
// primary key (user_id, workspace_id) enforces at most one role per user per
// workspace at the schema level.
type Membership struct {
	bun.BaseModel `bun:"table:memberships,alias:m"`

	UserID      uuid.UUID `bun:"user_id,pk,type:uuid"`
	WorkspaceID uuid.UUID `bun:"workspace_id,pk,type:uuid"`
	RoleID      uuid.UUID `bun:"role_id,notnull,type:uuid"`
	AssignedAt  time.Time `bun:"assigned_at,notnull"`
	AssignedBy  uuid.UUID `bun:"assigned_by,notnull,type:uuid"`
}

// User is the projection of the application user table the resolver needs
// for eligibility checks.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	Name       string    `bun:"name,notnull"`
	Email      string    `bun:"email,notnull"`
	IsActive   bool      `bun:"is_active,notnull"`
	IsVerified bool      `bun:"is_verified,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
