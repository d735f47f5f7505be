package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// AssignRoleInput binds one user to a role inside a workspace. Re-assigning
// replaces the user's existing binding.
type AssignRoleInput struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	RoleID      uuid.UUID
	Actor       types.ActorRef
}

// Type implements gocommand.Message.
func (AssignRoleInput) Type() string {
	return "command.role.assign"
}

// Validate implements gocommand.Message.
func (input AssignRoleInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case input.UserID == uuid.Nil:
		return ErrUserIDRequired
	case input.RoleID == uuid.Nil:
		return ErrRoleIDRequired
	default:
		return nil
	}
}

// AssignRoleCommand upserts a single membership behind the gate.
type AssignRoleCommand struct {
	store      types.RoleStore
	resolver   types.MembershipResolver
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewAssignRoleCommand wires a single assignment handler.
func NewAssignRoleCommand(store types.RoleStore, resolver types.MembershipResolver, workspaces types.WorkspaceStore, gate authz.Gate) *AssignRoleCommand {
	return &AssignRoleCommand{
		store:      store,
		resolver:   resolver,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[AssignRoleInput] = (*AssignRoleCommand)(nil)

// Execute verifies the role belongs to the workspace, then upserts the
// binding. The operation is idempotent.
func (c *AssignRoleCommand) Execute(ctx context.Context, input AssignRoleInput) error {
	if c.resolver == nil {
		return types.ErrMissingResolver
	}
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
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityUserRole, types.OperationCreate); err != nil {
		return err
	}
	// rejects roles from other workspaces with NotFound
	if _, err := c.store.GetRole(ctx, input.RoleID, input.WorkspaceID); err != nil {
		return err
	}
	return c.resolver.Upsert(ctx, types.Membership{
		UserID:      input.UserID,
		WorkspaceID: input.WorkspaceID,
		RoleID:      input.RoleID,
		AssignedBy:  input.Actor.ID,
	})
}
