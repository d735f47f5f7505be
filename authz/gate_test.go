package authz

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	workspaceID  uuid.UUID
	members      map[uuid.UUID]types.CapabilitySet
	resolveErr   error
	capabilities func(userID uuid.UUID) types.CapabilitySet
}

func (f *fakeResolver) ResolveWorkspace(_ context.Context, ref types.WorkspaceRef) (uuid.UUID, error) {
	if f.resolveErr != nil {
		return uuid.Nil, f.resolveErr
	}
	if ref.Empty() {
		return uuid.Nil, types.ErrWorkspaceIDRequired
	}
	return f.workspaceID, nil
}

func (f *fakeResolver) MembershipOf(_ context.Context, userID, _ uuid.UUID) (*types.Membership, error) {
	if _, ok := f.members[userID]; !ok {
		return nil, nil
	}
	return &types.Membership{UserID: userID, WorkspaceID: f.workspaceID}, nil
}

func (f *fakeResolver) IsMember(_ context.Context, userID, _ uuid.UUID) (bool, error) {
	_, ok := f.members[userID]
	return ok, nil
}

func (f *fakeResolver) CapabilitiesFor(_ context.Context, userID, _ uuid.UUID) (types.CapabilitySet, error) {
	if f.capabilities != nil {
		return f.capabilities(userID), nil
	}
	caps, ok := f.members[userID]
	if !ok {
		return types.NewCapabilitySet(), nil
	}
	return caps, nil
}

func (f *fakeResolver) Upsert(context.Context, types.Membership) error { return nil }

func (f *fakeResolver) Remove(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (f *fakeResolver) RemoveByRole(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeWorkspaceStore struct {
	records map[uuid.UUID]*types.WorkspaceRecord
}

func (f *fakeWorkspaceStore) Provision(context.Context, types.WorkspaceMutation) (*types.WorkspaceRecord, error) {
	return nil, nil
}

func (f *fakeWorkspaceStore) Get(_ context.Context, id uuid.UUID) (*types.WorkspaceRecord, error) {
	record, ok := f.records[id]
	if !ok {
		return nil, goerrors.New("go-workspaces: workspace not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}
	return record, nil
}

func newFixture(t *testing.T) (Gate, *fakeResolver, *types.WorkspaceRecord) {
	t.Helper()
	workspace := &types.WorkspaceRecord{ID: uuid.New(), AdminID: uuid.New()}
	resolver := &fakeResolver{
		workspaceID: workspace.ID,
		members:     map[uuid.UUID]types.CapabilitySet{},
	}
	store := &fakeWorkspaceStore{records: map[uuid.UUID]*types.WorkspaceRecord{workspace.ID: workspace}}
	gate, err := NewGate(resolver, store)
	require.NoError(t, err)
	return gate, resolver, workspace
}

func TestGate_WorkspaceCreateRequiresSuper(t *testing.T) {
	ctx := context.Background()
	gate, resolver, workspace := newFixture(t)

	member := types.ActorRef{ID: uuid.New()}
	resolver.members[member.ID] = types.NewCapabilitySet(
		types.PermissionPair{Entity: types.EntityWorkspace, Operation: types.OperationManage},
	)

	// even a MANAGE grant on workspaces does not unlock creation
	decision, err := gate.Authorize(ctx, member, workspace, types.EntityWorkspace, types.OperationCreate)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// nor does being the workspace admin
	decision, err = gate.Authorize(ctx, types.ActorRef{ID: workspace.AdminID}, workspace, types.EntityWorkspace, types.OperationCreate)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	super := types.ActorRef{ID: uuid.New(), Super: true}
	decision, err = gate.Authorize(ctx, super, nil, types.EntityWorkspace, types.OperationCreate)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestGate_SuperBypass(t *testing.T) {
	ctx := context.Background()
	gate, _, workspace := newFixture(t)

	super := types.ActorRef{ID: uuid.New(), Type: types.ActorTypeSuperAdmin}
	for _, op := range []types.Operation{
		types.OperationRead, types.OperationUpdate, types.OperationDelete,
	} {
		decision, err := gate.Authorize(ctx, super, workspace, types.EntityTicket, op)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "super must bypass %s", op)
	}
}

func TestGate_WorkspaceAdminImplicitAuthority(t *testing.T) {
	ctx := context.Background()
	gate, resolver, workspace := newFixture(t)

	// admin holds no membership row at all
	admin := types.ActorRef{ID: workspace.AdminID}
	require.NotContains(t, resolver.members, admin.ID)

	decision, err := gate.Authorize(ctx, admin, workspace, types.EntityRole, types.OperationDelete)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestGate_MembershipLadder(t *testing.T) {
	ctx := context.Background()
	gate, resolver, workspace := newFixture(t)

	outsider := types.ActorRef{ID: uuid.New()}
	decision, err := gate.Authorize(ctx, outsider, workspace, types.EntityTicket, types.OperationRead)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "not a member")

	member := types.ActorRef{ID: uuid.New()}
	resolver.members[member.ID] = types.NewCapabilitySet(
		types.PermissionPair{Entity: types.EntityTicket, Operation: types.OperationRead},
	)

	decision, err = gate.Authorize(ctx, member, workspace, types.EntityTicket, types.OperationRead)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = gate.Authorize(ctx, member, workspace, types.EntityTicket, types.OperationDelete)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// MANAGE subsumes every operation on the entity
	resolver.members[member.ID] = types.NewCapabilitySet(
		types.PermissionPair{Entity: types.EntityTicket, Operation: types.OperationManage},
	)
	decision, err = gate.Authorize(ctx, member, workspace, types.EntityTicket, types.OperationDelete)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestGate_Resolve(t *testing.T) {
	ctx := context.Background()
	gate, resolver, workspace := newFixture(t)

	member := types.ActorRef{ID: uuid.New()}
	resolver.members[member.ID] = types.NewCapabilitySet(
		types.PermissionPair{Entity: types.EntityComment, Operation: types.OperationCreate},
	)

	grant, err := gate.Resolve(ctx, member, types.WorkspaceRef{WorkspaceID: workspace.ID})
	require.NoError(t, err)
	require.Equal(t, workspace.ID, grant.WorkspaceID)
	require.False(t, grant.IsSuper)
	require.False(t, grant.IsWorkspaceAdmin)
	require.True(t, grant.Allows(types.EntityComment, types.OperationCreate))
	require.False(t, grant.Allows(types.EntityTicket, types.OperationDelete))

	adminGrant, err := gate.Resolve(ctx, types.ActorRef{ID: workspace.AdminID}, types.WorkspaceRef{WorkspaceID: workspace.ID})
	require.NoError(t, err)
	require.True(t, adminGrant.IsWorkspaceAdmin)
	require.True(t, adminGrant.Allows(types.EntityTicket, types.OperationDelete))
}

func TestRequire_DenialIsForbidden(t *testing.T) {
	ctx := context.Background()
	gate, _, workspace := newFixture(t)

	err := Require(ctx, gate, types.ActorRef{ID: uuid.New()}, workspace, types.EntityTicket, types.OperationRead)
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryAuthz, richErr.Category)

	require.NoError(t, Require(ctx, NopGate(), types.ActorRef{ID: uuid.New()}, workspace, types.EntityTicket, types.OperationRead))
	require.NoError(t, Require(ctx, nil, types.ActorRef{ID: uuid.New()}, workspace, types.EntityTicket, types.OperationRead))
}
