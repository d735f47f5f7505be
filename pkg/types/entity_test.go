package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionPair_Normalize(t *testing.T) {
	pair := PermissionPair{Entity: " ticket ", Operation: "update"}.Normalize()
	require.Equal(t, EntityTicket, pair.Entity)
	require.Equal(t, OperationUpdate, pair.Operation)
	require.Equal(t, "TICKET:UPDATE", pair.Key())
}

func TestCapabilitySet_Allows(t *testing.T) {
	set := NewCapabilitySet(
		PermissionPair{Entity: EntityTicket, Operation: OperationRead},
		PermissionPair{Entity: EntityComment, Operation: OperationManage},
	)

	require.True(t, set.Allows(EntityTicket, OperationRead))
	require.False(t, set.Allows(EntityTicket, OperationUpdate))

	// MANAGE subsumes every operation on its entity type.
	require.True(t, set.Allows(EntityComment, OperationCreate))
	require.True(t, set.Allows(EntityComment, OperationDelete))
	require.False(t, set.Allows(EntityRole, OperationRead))
}

func TestCapabilitySet_IgnoresInvalidPairs(t *testing.T) {
	set := NewCapabilitySet(PermissionPair{Entity: EntityTicket})
	require.Empty(t, set.Keys())
}

func TestActorRef_IsSuper(t *testing.T) {
	require.True(t, ActorRef{Super: true}.IsSuper())
	require.True(t, ActorRef{Type: "SUPER_ADMIN"}.IsSuper())
	require.False(t, ActorRef{Type: ActorTypeMember}.IsSuper())
}
