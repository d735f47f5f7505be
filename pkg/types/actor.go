package types

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// ActorTypeSuperAdmin marks the distinguished super-identity that
	// bypasses every per-workspace check.
	ActorTypeSuperAdmin = "super_admin"
	// ActorTypeMember marks ordinary identities subject to membership and
	// grant checks.
	ActorTypeMember = "member"
)

// ActorRef identifies the acting principal on a command or query. The super
// flag is carried on the authenticated identity, never as a membership row.
type ActorRef struct {
	ID    uuid.UUID
	Type  string
	Super bool
}

// TypeName normalizes the actor type for comparisons.
func (a ActorRef) TypeName() string {
	return strings.ToLower(strings.TrimSpace(a.Type))
}

// IsSuper reports whether the actor is the global-bypass super-identity.
func (a ActorRef) IsSuper() bool {
	return a.Super || a.TypeName() == ActorTypeSuperAdmin
}
