package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/ticket"
	"github.com/google/uuid"
)

// TicketDeleteInput removes a ticket, its comments, and direct children.
type TicketDeleteInput struct {
	TicketID uuid.UUID
	Actor    types.ActorRef
}

// Type implements gocommand.Message.
func (TicketDeleteInput) Type() string {
	return "command.ticket.delete"
}

// Validate implements gocommand.Message.
func (input TicketDeleteInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.TicketID == uuid.Nil:
		return ErrTicketIDRequired
	default:
		return nil
	}
}

// TicketDeleteCommand deletes tickets behind the gate.
type TicketDeleteCommand struct {
	tickets    *ticket.Repository
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewTicketDeleteCommand wires the ticket deletion handler.
func NewTicketDeleteCommand(tickets *ticket.Repository, workspaces types.WorkspaceStore, gate authz.Gate) *TicketDeleteCommand {
	return &TicketDeleteCommand{
		tickets:    tickets,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[TicketDeleteInput] = (*TicketDeleteCommand)(nil)

// Execute loads the ticket, gates against its workspace, and deletes it.
func (c *TicketDeleteCommand) Execute(ctx context.Context, input TicketDeleteInput) error {
	if err := input.Validate(); err != nil {
		return err
	}
	current, err := c.tickets.Get(ctx, input.TicketID)
	if err != nil {
		return err
	}
	if c.workspaces == nil {
		return types.ErrMissingWorkspaceStore
	}
	workspace, err := c.workspaces.Get(ctx, current.WorkspaceID)
	if err != nil {
		return err
	}
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityTicket, types.OperationDelete); err != nil {
		return err
	}
	return c.tickets.Delete(ctx, input.TicketID, input.Actor.ID)
}
