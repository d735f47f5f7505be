package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/ticket"
	"github.com/google/uuid"
)

// TicketUpdateInput applies a partial patch to a ticket.
type TicketUpdateInput struct {
	TicketID uuid.UUID
	Patch    ticket.Patch
	Actor    types.ActorRef
	Result   *ticket.Ticket
}

// Type implements gocommand.Message.
func (TicketUpdateInput) Type() string {
	return "command.ticket.update"
}

// Validate implements gocommand.Message.
func (input TicketUpdateInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.TicketID == uuid.Nil:
		return ErrTicketIDRequired
	default:
		return nil
	}
}

// TicketUpdateCommand patches tickets behind the gate. The workspace is
// derived from the ticket itself, never trusted from the caller.
type TicketUpdateCommand struct {
	tickets    *ticket.Repository
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewTicketUpdateCommand wires the ticket update handler.
func NewTicketUpdateCommand(tickets *ticket.Repository, workspaces types.WorkspaceStore, gate authz.Gate) *TicketUpdateCommand {
	return &TicketUpdateCommand{
		tickets:    tickets,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[TicketUpdateInput] = (*TicketUpdateCommand)(nil)

// Execute loads the ticket, gates against its workspace, and applies the
// patch with its audit rows.
func (c *TicketUpdateCommand) Execute(ctx context.Context, input TicketUpdateInput) error {
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
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityTicket, types.OperationUpdate); err != nil {
		return err
	}
	record, err := c.tickets.Update(ctx, input.TicketID, input.Patch, input.Actor.ID)
	if err != nil {
		return err
	}
	if input.Result != nil && record != nil {
		*input.Result = *record
	}
	return nil
}
