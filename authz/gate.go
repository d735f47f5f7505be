package authz

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// Decision is the outcome of one authorization check. Reason is only set on
// denials and is safe to surface to callers.
type Decision struct {
	Allowed bool
	Reason  string
}

// Grant is the per-request authorization context: the resolved workspace,
// the actor's effective capabilities, and the two implicit authority flags.
// Build one per request via Resolve; never reuse across requests.
type Grant struct {
	WorkspaceID      uuid.UUID
	Actor            types.ActorRef
	Capabilities     types.CapabilitySet
	IsSuper          bool
	IsWorkspaceAdmin bool
}

// Allows reports whether the grant covers the operation, honoring the two
// bypass tiers before consulting capabilities.
func (g *Grant) Allows(entity types.EntityType, op types.Operation) bool {
	if g == nil {
		return false
	}
	if g.IsSuper || g.IsWorkspaceAdmin {
		return true
	}
	return g.Capabilities.Allows(entity, op)
}

// Gate decides whether an actor may perform an operation against an entity
// inside a workspace. It is intentionally small so callers can swap custom
// gates in tests if needed.
type Gate interface {
	Authorize(ctx context.Context, actor types.ActorRef, workspace *types.WorkspaceRecord, entity types.EntityType, op types.Operation) (Decision, error)
	Resolve(ctx context.Context, actor types.ActorRef, ref types.WorkspaceRef) (*Grant, error)
}

type gate struct {
	resolver   types.MembershipResolver
	workspaces types.WorkspaceStore
}

// NewGate builds the default gate from the supplied resolver and workspace
// store.
func NewGate(resolver types.MembershipResolver, workspaces types.WorkspaceStore) (Gate, error) {
	if resolver == nil {
		return nil, types.ErrMissingResolver
	}
	if workspaces == nil {
		return nil, types.ErrMissingWorkspaceStore
	}
	return gate{resolver: resolver, workspaces: workspaces}, nil
}

// Ensure returns a non-nil gate so command constructors can accept nil gates
// when tests instantiate them directly.
func Ensure(g Gate) Gate {
	if g == nil {
		return nopGate{}
	}
	return g
}

// NopGate returns a gate that allows everything and resolves nothing.
func NopGate() Gate {
	return nopGate{}
}

// Authorize runs the decision ladder. The order matters: workspace creation
// is reserved to super actors before the general super bypass, so a plain
// member can never create workspaces no matter what roles they hold.
func (g gate) Authorize(ctx context.Context, actor types.ActorRef, workspace *types.WorkspaceRecord, entity types.EntityType, op types.Operation) (Decision, error) {
	if actor.ID == uuid.Nil {
		return Decision{}, types.ErrActorRequired
	}

	pair := types.PermissionPair{Entity: entity, Operation: op}.Normalize()
	if pair.Entity == types.EntityWorkspace && pair.Operation == types.OperationCreate {
		if actor.IsSuper() {
			return Decision{Allowed: true}, nil
		}
		return Decision{Reason: "only super administrators can create workspaces"}, nil
	}

	if actor.IsSuper() {
		return Decision{Allowed: true}, nil
	}

	if workspace == nil {
		return Decision{}, types.ErrWorkspaceIDRequired
	}
	if actor.ID == workspace.AdminID {
		return Decision{Allowed: true}, nil
	}

	member, err := g.resolver.IsMember(ctx, actor.ID, workspace.ID)
	if err != nil {
		return Decision{}, err
	}
	if !member {
		return Decision{Reason: "actor is not a member of the workspace"}, nil
	}

	caps, err := g.resolver.CapabilitiesFor(ctx, actor.ID, workspace.ID)
	if err != nil {
		return Decision{}, err
	}
	if caps.Allows(pair.Entity, pair.Operation) {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: "role does not grant " + pair.Key()}, nil
}

// Resolve maps the reference to its workspace and assembles the actor's
// per-request grant.
func (g gate) Resolve(ctx context.Context, actor types.ActorRef, ref types.WorkspaceRef) (*Grant, error) {
	if actor.ID == uuid.Nil {
		return nil, types.ErrActorRequired
	}
	workspaceID, err := g.resolver.ResolveWorkspace(ctx, ref)
	if err != nil {
		return nil, err
	}
	workspace, err := g.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	grant := &Grant{
		WorkspaceID:      workspaceID,
		Actor:            actor,
		IsSuper:          actor.IsSuper(),
		IsWorkspaceAdmin: actor.ID == workspace.AdminID,
	}
	if grant.IsSuper || grant.IsWorkspaceAdmin {
		grant.Capabilities = types.NewCapabilitySet()
		return grant, nil
	}
	caps, err := g.resolver.CapabilitiesFor(ctx, actor.ID, workspaceID)
	if err != nil {
		return nil, err
	}
	grant.Capabilities = caps
	return grant, nil
}

type nopGate struct{}

func (nopGate) Authorize(context.Context, types.ActorRef, *types.WorkspaceRecord, types.EntityType, types.Operation) (Decision, error) {
	return Decision{Allowed: true}, nil
}

func (nopGate) Resolve(_ context.Context, actor types.ActorRef, ref types.WorkspaceRef) (*Grant, error) {
	return &Grant{WorkspaceID: ref.WorkspaceID, Actor: actor, IsSuper: true}, nil
}

// Require converts a denial into a Forbidden error carrying the denial
// reason. Commands call this instead of branching on Decision themselves.
func Require(ctx context.Context, g Gate, actor types.ActorRef, workspace *types.WorkspaceRecord, entity types.EntityType, op types.Operation) error {
	decision, err := Ensure(g).Authorize(ctx, actor, workspace, entity, op)
	if err != nil {
		return err
	}
	if decision.Allowed {
		return nil
	}
	return goerrors.New("go-workspaces: operation not permitted", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{
			"reason":    decision.Reason,
			"entity":    string(entity),
			"operation": string(op),
		})
}
