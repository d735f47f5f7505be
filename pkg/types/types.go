package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pagination supports offset pagination on list queries.
type Pagination struct {
	Limit  int
	Offset int
}

// WorkspaceRef is a heterogeneous reference to a workspace: direct, via a
// ticket, or via a comment. Resolution order is workspace, then ticket, then
// comment; the chain is bounded (comment→ticket→workspace, never deeper).
type WorkspaceRef struct {
	WorkspaceID uuid.UUID
	TicketID    uuid.UUID
	CommentID   uuid.UUID
}

// Empty reports whether no reference was supplied at all.
func (r WorkspaceRef) Empty() bool {
	return r.WorkspaceID == uuid.Nil && r.TicketID == uuid.Nil && r.CommentID == uuid.Nil
}

// RoleMutation describes create/update payloads for workspace roles. A nil
// IsAdministrative leaves the stored flag unchanged on update.
type RoleMutation struct {
	WorkspaceID      uuid.UUID
	Name             string
	Description      string
	IsAdministrative *bool
	Grants           []PermissionPair
	ActorID          uuid.UUID
}

// RoleDefinition mirrors a persisted role with its resolved grants.
type RoleDefinition struct {
	ID               uuid.UUID
	WorkspaceID      uuid.UUID
	Name             string
	Description      string
	IsAdministrative bool
	Grants           []PermissionPair
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        uuid.UUID
	UpdatedBy        uuid.UUID
}

// RoleFilter narrows role listings to one workspace.
type RoleFilter struct {
	Actor       ActorRef
	WorkspaceID uuid.UUID
	Keyword     string
	Pagination  Pagination
}

// Type implements gocommand.Message for query inputs.
func (RoleFilter) Type() string {
	return "query.role.list"
}

// Validate implements gocommand.Message.
func (filter RoleFilter) Validate() error {
	switch {
	case filter.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case filter.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	default:
		return nil
	}
}

// RolePage represents a paginated set of roles ordered by name.
type RolePage struct {
	Roles      []RoleDefinition
	Total      int
	NextOffset int
	HasMore    bool
}

// Membership is the single role binding a user holds within one workspace.
// (user_id, workspace_id) is a first-class composite unique key: assignment
// is an update-in-place upsert, never an additional row.
type Membership struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	RoleID      uuid.UUID
	AssignedAt  time.Time
	AssignedBy  uuid.UUID
}

// WorkspaceMutation carries workspace provisioning input.
type WorkspaceMutation struct {
	Name    string
	AdminID uuid.UUID
	ActorID uuid.UUID
}

// WorkspaceRecord mirrors a persisted workspace. AdminID holds full
// authority over the workspace independent of any role row.
type WorkspaceRecord struct {
	ID        uuid.UUID
	Name      string
	AdminID   uuid.UUID
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// FieldChange captures one tracked field whose normalized old/new forms
// differ.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// ChangeSet is the ordered list of detected field changes for one mutation.
type ChangeSet []FieldChange

// HistoryRecord is one immutable audit entry: a single field change or a
// coarse lifecycle action (CREATE/DELETE/CLOSE).
type HistoryRecord struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	EntityID     uuid.UUID
	Action       HistoryAction
	FieldChanged string
	OldValue     string
	NewValue     string
	ChangedBy    uuid.UUID
	ChangedAt    time.Time
}

// HistoryFilter narrows audit feed queries.
type HistoryFilter struct {
	Actor       ActorRef
	WorkspaceID uuid.UUID
	EntityID    uuid.UUID
	Actions     []HistoryAction
	Since       *time.Time
	Until       *time.Time
	Pagination  Pagination
}

// Type implements gocommand.Message for query inputs.
func (HistoryFilter) Type() string {
	return "query.history.feed"
}

// Validate implements gocommand.Message.
func (filter HistoryFilter) Validate() error {
	if filter.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return nil
}

// HistoryPage represents a time-ordered audit feed response.
type HistoryPage struct {
	Records    []HistoryRecord
	Total      int
	NextOffset int
	HasMore    bool
}

// AssignmentPair is one resolved (subject, grant) binding from a bulk
// assignment.
type AssignmentPair struct {
	Subject string
	Grant   string
	UserID  uuid.UUID
	RoleID  uuid.UUID
}

// AssignmentReport summarizes an applied bulk assignment batch.
type AssignmentReport struct {
	Assigned int
	Pairs    []AssignmentPair
}

// PermissionRecord mirrors one catalog vocabulary row.
type PermissionRecord struct {
	ID        uuid.UUID
	Entity    EntityType
	Operation Operation
}

// PermissionCatalog is the canonical deduplicated permission vocabulary.
// Ensure has get-or-create semantics; no deletion is exposed.
type PermissionCatalog interface {
	Ensure(ctx context.Context, pair PermissionPair) (uuid.UUID, error)
	EnsureAll(ctx context.Context, pairs []PermissionPair) ([]uuid.UUID, error)
	List(ctx context.Context) ([]PermissionRecord, error)
}

// RoleStore persists per-workspace roles and their grants.
type RoleStore interface {
	CreateRole(ctx context.Context, input RoleMutation) (*RoleDefinition, error)
	UpdateRole(ctx context.Context, roleID uuid.UUID, input RoleMutation) (*RoleDefinition, error)
	Grant(ctx context.Context, roleID, workspaceID uuid.UUID, pairs []PermissionPair) error
	ReplaceGrants(ctx context.Context, roleID, workspaceID uuid.UUID, pairs []PermissionPair) error
	DeleteRole(ctx context.Context, roleID, workspaceID uuid.UUID, actor uuid.UUID) error
	ListRoles(ctx context.Context, filter RoleFilter) (RolePage, error)
	GetRole(ctx context.Context, roleID, workspaceID uuid.UUID) (*RoleDefinition, error)
	GrantsFor(ctx context.Context, roleID uuid.UUID) (CapabilitySet, error)
}

// MembershipResolver maps (workspace, user) to a role binding and resolves
// ambiguous inbound references to their owning workspace.
type MembershipResolver interface {
	ResolveWorkspace(ctx context.Context, ref WorkspaceRef) (uuid.UUID, error)
	MembershipOf(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error)
	IsMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error)
	CapabilitiesFor(ctx context.Context, userID, workspaceID uuid.UUID) (CapabilitySet, error)
	Upsert(ctx context.Context, binding Membership) error
	Remove(ctx context.Context, userID, workspaceID uuid.UUID) error
	RemoveByRole(ctx context.Context, roleID, workspaceID uuid.UUID) error
}

// WorkspaceStore provisions and loads workspaces.
type WorkspaceStore interface {
	Provision(ctx context.Context, input WorkspaceMutation) (*WorkspaceRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*WorkspaceRecord, error)
}

// HistoryRepository exposes read-side access to the audit trail.
type HistoryRepository interface {
	ListHistory(ctx context.Context, filter HistoryFilter) (HistoryPage, error)
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures basic logging hooks used by the stores and commands.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// RoleEvent is emitted after a role or grant change commits.
type RoleEvent struct {
	RoleID      uuid.UUID
	WorkspaceID uuid.UUID
	Action      string
	ActorID     uuid.UUID
	OccurredAt  time.Time
}

// MembershipEvent is emitted after an assignment upsert or removal commits.
type MembershipEvent struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	RoleID      uuid.UUID
	Action      string
	ActorID     uuid.UUID
	OccurredAt  time.Time
}

// WorkspaceEvent is emitted after workspace provisioning commits.
type WorkspaceEvent struct {
	WorkspaceID uuid.UUID
	AdminID     uuid.UUID
	ActorID     uuid.UUID
	OccurredAt  time.Time
}

// Hooks groups optional callbacks invoked after key workflows commit.
type Hooks struct {
	AfterRoleChange       func(context.Context, RoleEvent)
	AfterMembershipChange func(context.Context, MembershipEvent)
	AfterWorkspaceCreate  func(context.Context, WorkspaceEvent)
	AfterHistory          func(context.Context, HistoryRecord)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = errors.New("go-workspaces: actor reference required")
	// ErrWorkspaceIDRequired indicates a workspace identifier was omitted.
	ErrWorkspaceIDRequired = errors.New("go-workspaces: workspace id required")
	// ErrUserIDRequired indicates a user identifier was omitted.
	ErrUserIDRequired = errors.New("go-workspaces: user id required")
	// ErrMissingCatalog occurs when no permission catalog was supplied.
	ErrMissingCatalog = errors.New("go-workspaces: missing permission catalog")
	// ErrMissingRoleStore occurs when no role store was supplied.
	ErrMissingRoleStore = errors.New("go-workspaces: missing role store")
	// ErrMissingResolver occurs when no membership resolver was supplied.
	ErrMissingResolver = errors.New("go-workspaces: missing membership resolver")
	// ErrMissingWorkspaceStore occurs when no workspace store was supplied.
	ErrMissingWorkspaceStore = errors.New("go-workspaces: missing workspace store")
	// ErrMissingHistoryRepository occurs when no history repository was supplied.
	ErrMissingHistoryRepository = errors.New("go-workspaces: missing history repository")
	// ErrMissingTicketRepository occurs when no ticket repository was supplied.
	ErrMissingTicketRepository = errors.New("go-workspaces: missing ticket repository")
	// ErrServiceNotReady indicates required dependencies are not wired in.
	ErrServiceNotReady = errors.New("go-workspaces: service not ready")
)
