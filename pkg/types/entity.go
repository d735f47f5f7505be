package types

import (
	"sort"
	"strings"
)

// EntityType identifies the class of object an operation applies to. The
// values mirror the permission vocabulary stored in the catalog.
type EntityType string

const (
	EntityWorkspace EntityType = "WORKSPACE"
	EntityTicket    EntityType = "TICKET"
	EntityComment   EntityType = "COMMENT"
	EntityRole      EntityType = "ROLE"
	EntityUser      EntityType = "USER"
	EntityUserRole  EntityType = "USERROLE"
	EntityHistory   EntityType = "HISTORY"
)

// Operation is an action class applied to an entity type. OperationManage
// subsumes every other operation on the same entity type.
type Operation string

const (
	OperationCreate  Operation = "CREATE"
	OperationRead    Operation = "READ"
	OperationUpdate  Operation = "UPDATE"
	OperationDelete  Operation = "DELETE"
	OperationComment Operation = "COMMENT"
	OperationManage  Operation = "MANAGE"
)

// HistoryAction classifies an audit record.
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "CREATE"
	HistoryActionUpdate HistoryAction = "UPDATE"
	HistoryActionDelete HistoryAction = "DELETE"
	HistoryActionClose  HistoryAction = "CLOSE"
)

// PermissionPair is the (entity, operation) vocabulary unit every grant
// references.
type PermissionPair struct {
	Entity    EntityType
	Operation Operation
}

// Key returns the canonical "ENTITY:OPERATION" form used for capability
// lookups and logging.
func (p PermissionPair) Key() string {
	return string(p.Entity) + ":" + string(p.Operation)
}

// Normalize upper-cases and trims both halves so storage and lookups agree
// regardless of caller formatting.
func (p PermissionPair) Normalize() PermissionPair {
	return PermissionPair{
		Entity:    EntityType(strings.ToUpper(strings.TrimSpace(string(p.Entity)))),
		Operation: Operation(strings.ToUpper(strings.TrimSpace(string(p.Operation)))),
	}
}

// Valid reports whether both halves are present.
func (p PermissionPair) Valid() bool {
	return p.Entity != "" && p.Operation != ""
}

// CapabilitySet is the resolved permission set for one (user, workspace)
// pair. It is produced once per request by the authorization gate and passed
// to downstream handlers; it must not be reused across requests.
type CapabilitySet map[string]struct{}

// NewCapabilitySet builds a set from the provided pairs.
func NewCapabilitySet(pairs ...PermissionPair) CapabilitySet {
	set := make(CapabilitySet, len(pairs))
	for _, pair := range pairs {
		set.Add(pair)
	}
	return set
}

// Add inserts a normalized pair.
func (s CapabilitySet) Add(pair PermissionPair) {
	pair = pair.Normalize()
	if !pair.Valid() {
		return
	}
	s[pair.Key()] = struct{}{}
}

// Allows reports whether the set grants the operation on the entity, either
// directly or through a MANAGE grant on the same entity type.
func (s CapabilitySet) Allows(entity EntityType, op Operation) bool {
	pair := PermissionPair{Entity: entity, Operation: op}.Normalize()
	if _, ok := s[pair.Key()]; ok {
		return true
	}
	manage := PermissionPair{Entity: pair.Entity, Operation: OperationManage}
	_, ok := s[manage.Key()]
	return ok
}

// Keys returns the sorted capability keys, mainly for logging and tests.
func (s CapabilitySet) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
