package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// RoleUpdateInput mutates role metadata; a non-nil Grants slice replaces the
// full grant set atomically, and a non-nil IsAdministrative sets or clears
// the administrative flag.
type RoleUpdateInput struct {
	RoleID           uuid.UUID
	WorkspaceID      uuid.UUID
	Name             string
	Description      string
	IsAdministrative *bool
	Grants           []types.PermissionPair
	Actor            types.ActorRef
	Result           *types.RoleDefinition
}

// Type implements gocommand.Message.
func (RoleUpdateInput) Type() string {
	return "command.role.update"
}

// Validate implements gocommand.Message.
func (input RoleUpdateInput) Validate() error {
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

// RoleUpdateCommand updates a role behind the gate.
type RoleUpdateCommand struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleUpdateCommand wires a role update handler.
func NewRoleUpdateCommand(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleUpdateCommand {
	return &RoleUpdateCommand{
		store:      store,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[RoleUpdateInput] = (*RoleUpdateCommand)(nil)

// Execute validates and forwards the update payload to the store.
func (c *RoleUpdateCommand) Execute(ctx context.Context, input RoleUpdateInput) error {
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
	role, err := c.store.UpdateRole(ctx, input.RoleID, types.RoleMutation{
		WorkspaceID:      input.WorkspaceID,
		Name:             strings.TrimSpace(input.Name),
		Description:      strings.TrimSpace(input.Description),
		IsAdministrative: input.IsAdministrative,
		Grants:           input.Grants,
		ActorID:          input.Actor.ID,
	})
	if err != nil {
		return err
	}
	if input.Result != nil && role != nil {
		*input.Result = *role
	}
	return nil
}
