package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// RoleCreateInput carries data for creating workspace roles.
type RoleCreateInput struct {
	WorkspaceID      uuid.UUID
	Name             string
	Description      string
	IsAdministrative bool
	Grants           []types.PermissionPair
	Actor            types.ActorRef
	Result           *types.RoleDefinition
}

// Type implements gocommand.Message.
func (RoleCreateInput) Type() string {
	return "command.role.create"
}

// Validate implements gocommand.Message.
func (input RoleCreateInput) Validate() error {
	return validateRoleMutation(input.Actor, input.WorkspaceID, strings.TrimSpace(input.Name))
}

// RoleCreateCommand invokes the injected role store behind the gate.
type RoleCreateCommand struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleCreateCommand wires a role creation handler.
func NewRoleCreateCommand(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleCreateCommand {
	return &RoleCreateCommand{
		store:      store,
		workspaces: workspaces,
		gate:       safeGate(gate),
	}
}

var _ gocommand.Commander[RoleCreateInput] = (*RoleCreateCommand)(nil)

// Execute validates and forwards the creation payload to the store.
func (c *RoleCreateCommand) Execute(ctx context.Context, input RoleCreateInput) error {
	if c.store == nil {
		return types.ErrMissingRoleStore
	}
	if err := input.Validate(); err != nil {
		return err
	}
	workspace, err := c.loadWorkspace(ctx, input.WorkspaceID)
	if err != nil {
		return err
	}
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityRole, types.OperationCreate); err != nil {
		return err
	}
	role, err := c.store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID:      input.WorkspaceID,
		Name:             strings.TrimSpace(input.Name),
		Description:      strings.TrimSpace(input.Description),
		IsAdministrative: &input.IsAdministrative,
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

func (c *RoleCreateCommand) loadWorkspace(ctx context.Context, id uuid.UUID) (*types.WorkspaceRecord, error) {
	if c.workspaces == nil {
		return nil, types.ErrMissingWorkspaceStore
	}
	return c.workspaces.Get(ctx, id)
}
