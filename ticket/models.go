package ticket

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Ticket status and classification defaults.
const (
	StatusOpen       = "OPEN"
	StatusInProgress = "IN_PROGRESS"
	StatusClosed     = "CLOSED"

	DefaultPriority = "MEDIUM"
	DefaultType     = "GENERAL"
	DefaultKind     = "TASK"
)

// Ticket is the persistence model for one work item. Every mutation to a
// tracked field leaves a row in the audit trail.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	WorkspaceID uuid.UUID  `bun:"workspace_id,notnull,type:uuid"`
	Title       string     `bun:"title,notnull"`
	Description string     `bun:"description,notnull"`
	Status      string     `bun:"status,notnull"`
	Priority    string     `bun:"priority,notnull"`
	TicketType  string     `bun:"ticket_type,notnull"`
	Type        string     `bun:"type,notnull"`
	AssignedTo  *uuid.UUID `bun:"assigned_to,type:uuid"`
	ParentID    *uuid.UUID `bun:"parent_id,type:uuid"`
	DueDate     *time.Time `bun:"due_date"`
	CreatedBy   uuid.UUID  `bun:"created_by,notnull,type:uuid"`
	UpdatedBy   *uuid.UUID `bun:"updated_by,type:uuid"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

// Comment is one note on a ticket. Comments participate in workspace
// resolution: an inbound comment id resolves through its ticket.
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	WorkspaceID uuid.UUID  `bun:"workspace_id,notnull,type:uuid"`
	TicketID    uuid.UUID  `bun:"ticket_id,notnull,type:uuid"`
	UserID      uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	Message     string     `bun:"message,notnull"`
	ParentID    *uuid.UUID `bun:"parent_id,type:uuid"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}
