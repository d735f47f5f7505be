package command

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

const featureBulkAssign = "workspaces.bulk_assign"

func safeGate(g authz.Gate) authz.Gate {
	return authz.Ensure(g)
}

func featureEnabled(ctx context.Context, gate featuregate.FeatureGate, key string, workspaceID, userID uuid.UUID) (bool, error) {
	if gate == nil {
		return true, nil
	}
	scopeSet := featureScopeSet(workspaceID, userID)
	if scopeSet == nil {
		return gate.Enabled(ctx, key)
	}
	return gate.Enabled(ctx, key, featuregate.WithScopeSet(*scopeSet))
}

func featureScopeSet(workspaceID, userID uuid.UUID) *featuregate.ScopeSet {
	tenant := ""
	if workspaceID != uuid.Nil {
		tenant = workspaceID.String()
	}
	user := ""
	if userID != uuid.Nil {
		user = userID.String()
	}
	if tenant == "" && user == "" {
		return nil
	}
	return &featuregate.ScopeSet{
		System:   true,
		TenantID: tenant,
		UserID:   user,
	}
}

func validateRoleMutation(actor types.ActorRef, workspaceID uuid.UUID, name string) error {
	switch {
	case actor.ID == uuid.Nil:
		return ErrActorRequired
	case workspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case name == "":
		return ErrRoleNameRequired
	default:
		return nil
	}
}
