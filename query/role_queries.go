package query

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

var errRoleIDRequired = errors.New("go-workspaces: role id required")

// RoleListQuery lists workspace roles for admin surfaces.
type RoleListQuery struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleListQuery builds the list query.
func NewRoleListQuery(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleListQuery {
	return &RoleListQuery{
		store:      store,
		workspaces: workspaces,
		gate:       authz.Ensure(gate),
	}
}

var _ gocommand.Querier[types.RoleFilter, types.RolePage] = (*RoleListQuery)(nil)

// Query forwards to the role store.
func (q *RoleListQuery) Query(ctx context.Context, filter types.RoleFilter) (types.RolePage, error) {
	if q.store == nil {
		return types.RolePage{}, types.ErrMissingRoleStore
	}
	if err := filter.Validate(); err != nil {
		return types.RolePage{}, err
	}
	workspace, err := loadWorkspace(ctx, q.workspaces, filter.WorkspaceID)
	if err != nil {
		return types.RolePage{}, err
	}
	if err := authz.Require(ctx, q.gate, filter.Actor, workspace, types.EntityRole, types.OperationRead); err != nil {
		return types.RolePage{}, err
	}
	return q.store.ListRoles(ctx, filter)
}

// RoleDetailInput fetches a single role by ID.
type RoleDetailInput struct {
	RoleID      uuid.UUID
	WorkspaceID uuid.UUID
	Actor       types.ActorRef
}

// Type implements gocommand.Message.
func (RoleDetailInput) Type() string {
	return "query.role.detail"
}

// Validate implements gocommand.Message.
func (input RoleDetailInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return types.ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return types.ErrWorkspaceIDRequired
	case input.RoleID == uuid.Nil:
		return errRoleIDRequired
	default:
		return nil
	}
}

// RoleDetailQuery loads one role with its grants.
type RoleDetailQuery struct {
	store      types.RoleStore
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewRoleDetailQuery constructs the detail query.
func NewRoleDetailQuery(store types.RoleStore, workspaces types.WorkspaceStore, gate authz.Gate) *RoleDetailQuery {
	return &RoleDetailQuery{
		store:      store,
		workspaces: workspaces,
		gate:       authz.Ensure(gate),
	}
}

var _ gocommand.Querier[RoleDetailInput, *types.RoleDefinition] = (*RoleDetailQuery)(nil)

// Query fetches role detail scoped to the workspace.
func (q *RoleDetailQuery) Query(ctx context.Context, input RoleDetailInput) (*types.RoleDefinition, error) {
	if q.store == nil {
		return nil, types.ErrMissingRoleStore
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	workspace, err := loadWorkspace(ctx, q.workspaces, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(ctx, q.gate, input.Actor, workspace, types.EntityRole, types.OperationRead); err != nil {
		return nil, err
	}
	return q.store.GetRole(ctx, input.RoleID, input.WorkspaceID)
}

func loadWorkspace(ctx context.Context, store types.WorkspaceStore, id uuid.UUID) (*types.WorkspaceRecord, error) {
	if store == nil {
		return nil, types.ErrMissingWorkspaceStore
	}
	return store.Get(ctx, id)
}
