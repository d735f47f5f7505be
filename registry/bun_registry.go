package registry

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// adminRoleName is the legacy marker for administrative roles created before
// the is_administrative flag existed.
const adminRoleName = "ADMIN"

// RoleStoreConfig configures the Bun-backed role store.
type RoleStoreConfig struct {
	DB      *bun.DB
	Roles   repository.Repository[*Role]
	Catalog types.PermissionCatalog
	Clock   types.Clock
	Hooks   types.Hooks
	Logger  types.Logger
	IDGen   types.IDGenerator
}

// RoleStore persists workspace roles and grants using Bun repositories.
type RoleStore struct {
	db      *bun.DB
	roles   repository.Repository[*Role]
	catalog types.PermissionCatalog
	clock   types.Clock
	hooks   types.Hooks
	logger  types.Logger
	idGen   types.IDGenerator
}

// NewRoleStore constructs the default store. DB and Catalog are required;
// the roles repository is created automatically when not supplied.
func NewRoleStore(cfg RoleStoreConfig) (*RoleStore, error) {
	if cfg.DB == nil {
		return nil, errors.New("role store: db required")
	}
	if cfg.Catalog == nil {
		return nil, types.ErrMissingCatalog
	}
	roles := cfg.Roles
	if roles == nil {
		roles = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Role]{
			NewRecord: func() *Role { return &Role{} },
			GetID: func(role *Role) uuid.UUID {
				if role == nil {
					return uuid.Nil
				}
				return role.ID
			},
			SetID: func(role *Role, id uuid.UUID) {
				if role != nil {
					role.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	return &RoleStore{
		db:      cfg.DB,
		roles:   roles,
		catalog: cfg.Catalog,
		clock:   clock,
		hooks:   cfg.Hooks,
		logger:  logger,
		idGen:   idGen,
	}, nil
}

var _ types.RoleStore = (*RoleStore)(nil)

// CreateRole inserts a role scoped to the workspace and grants the supplied
// permission pairs. Duplicate names within the workspace surface as Conflict.
func (r *RoleStore) CreateRole(ctx context.Context, input types.RoleMutation) (*types.RoleDefinition, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, goerrors.New("go-workspaces: role name required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if input.WorkspaceID == uuid.Nil {
		return nil, types.ErrWorkspaceIDRequired
	}

	permissionIDs, err := r.catalog.EnsureAll(ctx, input.Grants)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	role := &Role{
		ID:               r.idGen.UUID(),
		WorkspaceID:      input.WorkspaceID,
		Name:             name,
		Description:      strings.TrimSpace(input.Description),
		IsAdministrative: input.IsAdministrative != nil && *input.IsAdministrative,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        input.ActorID,
		UpdatedBy:        input.ActorID,
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(role).Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.insertGrants(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		if repository.IsDuplicatedKey(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "go-workspaces: role name already exists in workspace").
				WithCode(goerrors.CodeConflict).
				WithMetadata(map[string]any{"name": name, "workspace_id": input.WorkspaceID.String()})
		}
		return nil, err
	}

	def := r.toDefinition(role, normalizePairs(input.Grants))
	r.emitRoleEvent(ctx, types.RoleEvent{
		RoleID:      role.ID,
		WorkspaceID: role.WorkspaceID,
		Action:      "role.created",
		ActorID:     input.ActorID,
		OccurredAt:  now,
	})
	return def, nil
}

// UpdateRole updates mutable fields and, when grants are supplied, replaces
// the full grant set in the same transaction.
func (r *RoleStore) UpdateRole(ctx context.Context, roleID uuid.UUID, input types.RoleMutation) (*types.RoleDefinition, error) {
	role, err := r.getRole(ctx, roleID, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		role.Name = name
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		role.Description = desc
	}
	if input.IsAdministrative != nil {
		role.IsAdministrative = *input.IsAdministrative
	}
	role.UpdatedAt = r.clock.Now()
	role.UpdatedBy = input.ActorID

	var permissionIDs []uuid.UUID
	if input.Grants != nil {
		permissionIDs, err = r.catalog.EnsureAll(ctx, input.Grants)
		if err != nil {
			return nil, err
		}
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model(role).WherePK().Exec(ctx); err != nil {
			return r.mapError(err)
		}
		if input.Grants == nil {
			return nil
		}
		if _, err := tx.NewDelete().Model((*RoleGrant)(nil)).Where("role_id = ?", role.ID).Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.insertGrants(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		if repository.IsDuplicatedKey(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "go-workspaces: role name already exists in workspace").
				WithCode(goerrors.CodeConflict)
		}
		return nil, err
	}

	grants := normalizePairs(input.Grants)
	if input.Grants == nil {
		if grants, err = r.loadGrantPairs(ctx, role.ID); err != nil {
			return nil, err
		}
	}
	def := r.toDefinition(role, grants)
	r.emitRoleEvent(ctx, types.RoleEvent{
		RoleID:      role.ID,
		WorkspaceID: role.WorkspaceID,
		Action:      "role.updated",
		ActorID:     input.ActorID,
		OccurredAt:  role.UpdatedAt,
	})
	return def, nil
}

// Grant adds permission pairs to a role, idempotently: re-granting an
// existing pair is a no-op thanks to the composite primary key.
func (r *RoleStore) Grant(ctx context.Context, roleID, workspaceID uuid.UUID, pairs []types.PermissionPair) error {
	role, err := r.getRole(ctx, roleID, workspaceID)
	if err != nil {
		return err
	}
	permissionIDs, err := r.catalog.EnsureAll(ctx, pairs)
	if err != nil {
		return err
	}
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.insertGrants(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		return err
	}
	r.emitRoleEvent(ctx, types.RoleEvent{
		RoleID:      role.ID,
		WorkspaceID: role.WorkspaceID,
		Action:      "role.granted",
		OccurredAt:  r.clock.Now(),
	})
	return nil
}

// ReplaceGrants deletes every grant on the role and installs the new set as
// one transaction; no partial state is ever visible.
func (r *RoleStore) ReplaceGrants(ctx context.Context, roleID, workspaceID uuid.UUID, pairs []types.PermissionPair) error {
	role, err := r.getRole(ctx, roleID, workspaceID)
	if err != nil {
		return err
	}
	permissionIDs, err := r.catalog.EnsureAll(ctx, pairs)
	if err != nil {
		return err
	}
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*RoleGrant)(nil)).Where("role_id = ?", role.ID).Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.insertGrants(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		return err
	}
	r.emitRoleEvent(ctx, types.RoleEvent{
		RoleID:      role.ID,
		WorkspaceID: role.WorkspaceID,
		Action:      "role.grants.replaced",
		OccurredAt:  r.clock.Now(),
	})
	return nil
}

// DeleteRole removes a role and its grants. It refuses with Conflict while
// any membership references the role, and refuses deleting an administrative
// role while any membership in the workspace still points at an
// administrative role.
func (r *RoleStore) DeleteRole(ctx context.Context, roleID, workspaceID uuid.UUID, actor uuid.UUID) error {
	role, err := r.getRole(ctx, roleID, workspaceID)
	if err != nil {
		return err
	}

	inUse, err := r.db.NewSelect().
		Table("memberships").
		Where("role_id = ? AND workspace_id = ?", role.ID, workspaceID).
		Count(ctx)
	if err != nil {
		return r.mapError(err)
	}
	if inUse > 0 {
		return goerrors.New("go-workspaces: role is still assigned to users", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithMetadata(map[string]any{"role_id": role.ID.String(), "assignments": inUse})
	}

	if r.isAdministrative(role) {
		adminAssignments, err := r.db.NewSelect().
			TableExpr("memberships AS m").
			Join("JOIN roles AS ro ON ro.id = m.role_id").
			Where("m.workspace_id = ?", workspaceID).
			Where("ro.is_administrative = ? OR ro.name = ?", true, adminRoleName).
			Count(ctx)
		if err != nil {
			return r.mapError(err)
		}
		if adminAssignments > 0 {
			return goerrors.New("go-workspaces: cannot delete administrator role while admin assignments exist", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		}
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*RoleGrant)(nil)).Where("role_id = ?", role.ID).Exec(ctx); err != nil {
			return r.mapError(err)
		}
		if _, err := tx.NewDelete().Model(role).WherePK().Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.emitRoleEvent(ctx, types.RoleEvent{
		RoleID:      role.ID,
		WorkspaceID: role.WorkspaceID,
		Action:      "role.deleted",
		ActorID:     actor,
		OccurredAt:  r.clock.Now(),
	})
	return nil
}

// ListRoles returns paginated workspace roles ordered by name with resolved
// grants.
func (r *RoleStore) ListRoles(ctx context.Context, filter types.RoleFilter) (types.RolePage, error) {
	if filter.WorkspaceID == uuid.Nil {
		return types.RolePage{}, types.ErrWorkspaceIDRequired
	}
	pagination := normalizePagination(filter.Pagination, 50, 200)
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("workspace_id = ?", filter.WorkspaceID).
				OrderExpr("LOWER(name) ASC").
				Limit(pagination.Limit).
				Offset(pagination.Offset)
			if filter.Keyword != "" {
				keyword := "%" + strings.ToLower(strings.TrimSpace(filter.Keyword)) + "%"
				q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", keyword, keyword)
			}
			return q
		},
	}

	records, total, err := r.roles.List(ctx, criteria...)
	if err != nil {
		return types.RolePage{}, err
	}

	grantsByRole, err := r.loadGrants(ctx, roleIDs(records))
	if err != nil {
		return types.RolePage{}, err
	}

	defs := make([]types.RoleDefinition, 0, len(records))
	for _, record := range records {
		defs = append(defs, *r.toDefinition(record, grantsByRole[record.ID]))
	}
	return types.RolePage{
		Roles:      defs,
		Total:      total,
		NextOffset: pagination.Offset + pagination.Limit,
		HasMore:    pagination.Offset+pagination.Limit < total,
	}, nil
}

// GetRole returns a single role with resolved grants.
func (r *RoleStore) GetRole(ctx context.Context, roleID, workspaceID uuid.UUID) (*types.RoleDefinition, error) {
	role, err := r.getRole(ctx, roleID, workspaceID)
	if err != nil {
		return nil, err
	}
	grants, err := r.loadGrantPairs(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return r.toDefinition(role, grants), nil
}

// GrantsFor computes the capability set granted by a single role.
func (r *RoleStore) GrantsFor(ctx context.Context, roleID uuid.UUID) (types.CapabilitySet, error) {
	pairs, err := r.loadGrantPairs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return types.NewCapabilitySet(pairs...), nil
}

func (r *RoleStore) getRole(ctx context.Context, roleID, workspaceID uuid.UUID) (*Role, error) {
	if roleID == uuid.Nil {
		return nil, goerrors.New("go-workspaces: role id required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	role, err := r.roles.GetByID(ctx, roleID.String(), func(q *bun.SelectQuery) *bun.SelectQuery {
		if workspaceID != uuid.Nil {
			q = q.Where("workspace_id = ?", workspaceID)
		}
		return q
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, "go-workspaces: role not found in workspace").
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"role_id": roleID.String()})
		}
		return nil, err
	}
	return role, nil
}

func (r *RoleStore) insertGrants(ctx context.Context, tx bun.Tx, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	grants := make([]RoleGrant, 0, len(permissionIDs))
	seen := make(map[uuid.UUID]struct{}, len(permissionIDs))
	for _, pid := range permissionIDs {
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		grants = append(grants, RoleGrant{RoleID: roleID, PermissionID: pid})
	}
	_, err := tx.NewInsert().
		Model(&grants).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return r.mapError(err)
	}
	return nil
}

type grantRow struct {
	RoleID    uuid.UUID `bun:"role_id"`
	Entity    string    `bun:"entity"`
	Operation string    `bun:"operation"`
}

func (r *RoleStore) loadGrants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]types.PermissionPair, error) {
	out := make(map[uuid.UUID][]types.PermissionPair, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []grantRow
	err := r.db.NewSelect().
		TableExpr("role_grants AS rg").
		ColumnExpr("rg.role_id, p.entity, p.operation").
		Join("JOIN permissions AS p ON p.id = rg.permission_id").
		Where("rg.role_id IN (?)", bun.In(ids)).
		OrderExpr("p.entity ASC, p.operation ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, r.mapError(err)
	}
	for _, row := range rows {
		out[row.RoleID] = append(out[row.RoleID], types.PermissionPair{
			Entity:    types.EntityType(row.Entity),
			Operation: types.Operation(row.Operation),
		})
	}
	return out, nil
}

func (r *RoleStore) loadGrantPairs(ctx context.Context, roleID uuid.UUID) ([]types.PermissionPair, error) {
	grants, err := r.loadGrants(ctx, []uuid.UUID{roleID})
	if err != nil {
		return nil, err
	}
	return grants[roleID], nil
}

func (r *RoleStore) isAdministrative(role *Role) bool {
	if role.IsAdministrative {
		return true
	}
	// Fallback for rows migrated before the flag existed.
	return strings.EqualFold(strings.TrimSpace(role.Name), adminRoleName)
}

func (r *RoleStore) mapError(err error) error {
	if err == nil {
		return nil
	}
	return repository.MapDatabaseError(err, repository.DetectDriver(r.db))
}

func (r *RoleStore) emitRoleEvent(ctx context.Context, event types.RoleEvent) {
	if r.hooks.AfterRoleChange == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("role hook panic", errors.New("panic in AfterRoleChange"), "panic", rec)
		}
	}()
	r.hooks.AfterRoleChange(ctx, event)
}

func (r *RoleStore) toDefinition(record *Role, grants []types.PermissionPair) *types.RoleDefinition {
	if record == nil {
		return nil
	}
	if grants == nil {
		grants = []types.PermissionPair{}
	}
	return &types.RoleDefinition{
		ID:               record.ID,
		WorkspaceID:      record.WorkspaceID,
		Name:             record.Name,
		Description:      record.Description,
		IsAdministrative: record.IsAdministrative,
		Grants:           grants,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
		CreatedBy:        record.CreatedBy,
		UpdatedBy:        record.UpdatedBy,
	}
}

func roleIDs(records []*Role) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids
}

func normalizePairs(pairs []types.PermissionPair) []types.PermissionPair {
	out := make([]types.PermissionPair, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for _, pair := range pairs {
		pair = pair.Normalize()
		if !pair.Valid() {
			continue
		}
		if _, ok := seen[pair.Key()]; ok {
			continue
		}
		seen[pair.Key()] = struct{}{}
		out = append(out, pair)
	}
	return out
}

func normalizePagination(p types.Pagination, def, max int) types.Pagination {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
