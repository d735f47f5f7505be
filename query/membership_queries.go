package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// MembershipLister pages role bindings inside a workspace. The Bun-backed
// membership resolver satisfies it.
type MembershipLister interface {
	ListMembers(ctx context.Context, workspaceID uuid.UUID, p types.Pagination) ([]types.Membership, int, error)
}

// MembershipListInput pages members of one workspace.
type MembershipListInput struct {
	WorkspaceID uuid.UUID
	Pagination  types.Pagination
	Actor       types.ActorRef
}

// Type implements gocommand.Message.
func (MembershipListInput) Type() string {
	return "query.membership.list"
}

// Validate implements gocommand.Message.
func (input MembershipListInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return types.ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return types.ErrWorkspaceIDRequired
	default:
		return nil
	}
}

// MembershipPage is one page of workspace members.
type MembershipPage struct {
	Members []types.Membership
	Total   int
}

// MembershipListQuery lists a workspace's role bindings behind USER:READ.
type MembershipListQuery struct {
	members    MembershipLister
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewMembershipListQuery builds the member list query.
func NewMembershipListQuery(members MembershipLister, workspaces types.WorkspaceStore, gate authz.Gate) *MembershipListQuery {
	return &MembershipListQuery{
		members:    members,
		workspaces: workspaces,
		gate:       authz.Ensure(gate),
	}
}

var _ gocommand.Querier[MembershipListInput, MembershipPage] = (*MembershipListQuery)(nil)

// Query enforces USER:READ then pages the bindings.
func (q *MembershipListQuery) Query(ctx context.Context, input MembershipListInput) (MembershipPage, error) {
	if q.members == nil {
		return MembershipPage{}, types.ErrMissingResolver
	}
	if err := input.Validate(); err != nil {
		return MembershipPage{}, err
	}
	workspace, err := loadWorkspace(ctx, q.workspaces, input.WorkspaceID)
	if err != nil {
		return MembershipPage{}, err
	}
	if err := authz.Require(ctx, q.gate, input.Actor, workspace, types.EntityUser, types.OperationRead); err != nil {
		return MembershipPage{}, err
	}
	members, total, err := q.members.ListMembers(ctx, input.WorkspaceID, input.Pagination)
	if err != nil {
		return MembershipPage{}, err
	}
	return MembershipPage{Members: members, Total: total}, nil
}

// WorkspaceResolveInput maps a workspace, ticket, or comment reference to
// the actor's grant in the owning workspace.
type WorkspaceResolveInput struct {
	Ref   types.WorkspaceRef
	Actor types.ActorRef
}

// Type implements gocommand.Message.
func (WorkspaceResolveInput) Type() string {
	return "query.workspace.resolve"
}

// Validate implements gocommand.Message.
func (input WorkspaceResolveInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return types.ErrActorRequired
	case input.Ref.Empty():
		return goerrors.New("go-workspaces: workspace reference required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	default:
		return nil
	}
}

// WorkspaceResolveQuery resolves heterogeneous references through the gate,
// returning the actor's per-request grant.
type WorkspaceResolveQuery struct {
	gate authz.Gate
}

// NewWorkspaceResolveQuery builds the resolve query.
func NewWorkspaceResolveQuery(gate authz.Gate) *WorkspaceResolveQuery {
	return &WorkspaceResolveQuery{gate: authz.Ensure(gate)}
}

var _ gocommand.Querier[WorkspaceResolveInput, *authz.Grant] = (*WorkspaceResolveQuery)(nil)

// Query resolves the reference and assembles the grant.
func (q *WorkspaceResolveQuery) Query(ctx context.Context, input WorkspaceResolveInput) (*authz.Grant, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return q.gate.Resolve(ctx, input.Actor, input.Ref)
}
