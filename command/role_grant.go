package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// RoleGrantInput adds permission pairs to a role. Replace swaps the full
// grant set instead of appending.
type RoleGrantInput struct {
	RoleID      uuid.UUID
	WorkspaceID uuid.UUID
	Grants      []types.PermissionPair
	Replace     bool
	Actor       types.ActorRef
}

// Type implements gocommand.Message.
func (RoleGrantInput) Type() string {
	return "command.role.grant"
}

// Validate implements gocommand.Message.
func (input RoleGrantInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case input.RoleID == uuid.Nil:
		return ErrRoleIDRequired
	case len(input.Grants) == 0 && !input.Replace:
		return ErrGrantsRequired
	default:
		return nil
	}
}

// RoleGrantCommand mutates a role's grants behind the gate.
type RoleGrantCommand struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleGrantCommand wires a grant mutation handler.
func NewRoleGrantCommand(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleGrantCommand {
	return &RoleGrantCommand{
		store:      store,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[RoleGrantInput] = (*RoleGrantCommand)(nil)

// Execute validates and applies the grant mutation. Granting is idempotent;
// replacing with an empty set revokes everything.
func (c *RoleGrantCommand) Execute(ctx context.Context, input RoleGrantInput) error {
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
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityRole, types.OperationUpdate); err != nil {
		return err
	}
	if input.Replace {
		return c.store.ReplaceGrants(ctx, input.RoleID, input.WorkspaceID, input.Grants)
	}
	return c.store.Grant(ctx, input.RoleID, input.WorkspaceID, input.Grants)
}
