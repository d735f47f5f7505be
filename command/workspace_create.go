package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// WorkspaceCreateInput carries workspace provisioning payloads.
type WorkspaceCreateInput struct {
	Name    string
	AdminID uuid.UUID
	Actor   types.ActorRef
	Result  *types.WorkspaceRecord
}

// Type implements gocommand.Message.
func (WorkspaceCreateInput) Type() string {
	return "command.workspace.create"
}

// Validate implements gocommand.Message.
func (input WorkspaceCreateInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case strings.TrimSpace(input.Name) == "":
		return ErrWorkspaceNameRequired
	case input.AdminID == uuid.Nil:
		return ErrAdminIDRequired
	default:
		return nil
	}
}

// WorkspaceCreateCommand provisions a workspace with its starter roles.
// Only super actors pass the gate; no role grants this operation.
type WorkspaceCreateCommand struct {
	store types.WorkspaceStore
	gate  authz.Gate
}

// NewWorkspaceCreateCommand wires the provisioning handler.
func NewWorkspaceCreateCommand(store types.WorkspaceStore, gate authz.Gate) *WorkspaceCreateCommand {
	return &WorkspaceCreateCommand{
		store: store,
		gate:  safeGate(gate),
	}
}

var _ gocommand.Commander[WorkspaceCreateInput] = (*WorkspaceCreateCommand)(nil)

// Execute validates, gates, and provisions.
func (c *WorkspaceCreateCommand) Execute(ctx context.Context, input WorkspaceCreateInput) error {
	if c.store == nil {
		return types.ErrMissingWorkspaceStore
	}
	if err := input.Validate(); err != nil {
		return err
	}
	if err := authz.Require(ctx, c.gate, input.Actor, nil, types.EntityWorkspace, types.OperationCreate); err != nil {
		return err
	}
	record, err := c.store.Provision(ctx, types.WorkspaceMutation{
		Name:    strings.TrimSpace(input.Name),
		AdminID: input.AdminID,
		ActorID: input.Actor.ID,
	})
	if err != nil {
		return err
	}
	if input.Result != nil && record != nil {
		*input.Result = *record
	}
	return nil
}
