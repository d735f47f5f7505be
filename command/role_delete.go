package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// RoleDeleteInput removes a workspace role.
type RoleDeleteInput struct {
	RoleID      uuid.UUID
	WorkspaceID uuid.UUID
	Actor       types.ActorRef
}

// Type implements gocommand.Message.
func (RoleDeleteInput) Type() string {
	return "command.role.delete"
}

// Validate implements gocommand.Message.
func (input RoleDeleteInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case input.RoleID == uuid.Nil:
		return ErrRoleIDRequired
	default:
		return nil
	}
}

// RoleDeleteCommand deletes a role behind the gate. The store refuses while
// memberships still reference the role.
type RoleDeleteCommand struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleDeleteCommand wires a role deletion handler.
func NewRoleDeleteCommand(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleDeleteCommand {
	return &RoleDeleteCommand{
		store:      store,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[RoleDeleteInput] = (*RoleDeleteCommand)(nil)

// Execute validates and forwards the deletion to the store.
func (c *RoleDeleteCommand) Execute(ctx context.Context, input RoleDeleteInput) error {
	if c.store == nil {
		return types.ErrMissingRoleStore
	}
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
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityRole, types.OperationDelete); err != nil {
		return err
	}
	return c.store.DeleteRole(ctx, input.RoleID, input.WorkspaceID, input.Actor.ID)
}
