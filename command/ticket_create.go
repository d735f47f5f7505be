package command

import (
	"context"
	"strings"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/ticket"
	"github.com/google/uuid"
)

// TicketCreateInput opens a work item in a workspace.
type TicketCreateInput struct {
	WorkspaceID uuid.UUID
	Title       string
	Description string
	Priority    string
	TicketType  string
	Type        string
	AssignedTo  *uuid.UUID
	ParentID    *uuid.UUID
	DueDate     *time.Time
	Actor       types.ActorRef
	Result      *ticket.Ticket
}

// Validate implements gocommand.Message.
func (input TicketCreateInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case strings.TrimSpace(input.Title) == "":
		return ErrTicketTitleRequired
	default:
		return nil
	}
}

// TicketCreateCommand opens tickets behind the gate.
type TicketCreateCommand struct {
	tickets    *ticket.Repository
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewTicketCreateCommand wires the ticket creation handler.
func NewTicketCreateCommand(tickets *ticket.Repository, workspaces types.WorkspaceStore, gate authz.Gate) *TicketCreateCommand {
	return &TicketCreateCommand{
		tickets:    tickets,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[TicketCreateInput] = (*TicketCreateCommand)(nil)

// Execute validates, gates, and creates the ticket together with its CREATE
// audit row.
func (c *TicketCreateCommand) Execute(ctx context.Context, input TicketCreateInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	if c.workspaces == nil {
		return types.ErrMissingWorkspaceStore
	}
	workspace, err := c.workspaces.Get(ctx, input.WorkspaceID)
	if err != nil {
		return err
	}
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityTicket, types.OperationCreate); err != nil {
		return err
	}
	record, err := c.tickets.Create(ctx, ticket.CreateInput{
		WorkspaceID: input.WorkspaceID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		TicketType:  input.TicketType,
		Type:        input.Type,
		AssignedTo:  input.AssignedTo,
		ParentID:    input.ParentID,
		DueDate:     input.DueDate,
		ActorID:     input.Actor.ID,
	})
	if err != nil {
		return err
	}
	if input.Result != nil && record != nil {
		*input.Result = *record
	}
	return nil
}
