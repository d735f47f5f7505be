package membership

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ResolverConfig wires the Bun-backed membership resolver.
type ResolverConfig struct {
	DB          *bun.DB
	Memberships repository.Repository[*Membership]
	Clock       types.Clock
	Hooks       types.Hooks
	Logger      types.Logger
}

// Resolver maps ambiguous workspace references to their owning workspace and
// answers membership questions for the authorization gate.
type Resolver struct {
	db          *bun.DB
	memberships repository.Repository[*Membership]
	clock       types.Clock
	hooks       types.Hooks
	logger      types.Logger
}

// NewResolver constructs the default resolver. Pass WithCache(true) to put a
// read cache in front of the membership store.
func NewResolver(cfg ResolverConfig, options ...ResolverOption) (*Resolver, error) {
	if cfg.DB == nil {
		return nil, errors.New("membership: db required")
	}
	store := cfg.Memberships
	if store == nil {
		store = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Membership]{
			NewRecord: func() *Membership { return &Membership{} },
			GetID: func(rec *Membership) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.UserID
			},
			SetID: func(rec *Membership, id uuid.UUID) {
				if rec != nil {
					rec.UserID = id
				}
			},
		})
	}

	opts := applyResolverOptions(options)
	if opts.CacheEnabled {
		if _, already := store.(*repositorycache.CachedRepository[*Membership]); !already {
			cacheCfg := cache.DefaultConfig()
			if opts.CacheConfig != nil {
				cacheCfg = *opts.CacheConfig
			}
			svc, err := cache.NewCacheService(cacheCfg)
			if err != nil {
				return nil, err
			}
			store = repositorycache.New(store, svc, cache.NewDefaultKeySerializer())
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Resolver{
		db:          cfg.DB,
		memberships: store,
		clock:       clock,
		hooks:       cfg.Hooks,
		logger:      logger,
	}, nil
}

var _ types.MembershipResolver = (*Resolver)(nil)

// ResolveWorkspace maps a heterogeneous reference to the owning workspace id.
// Precedence is workspace, then ticket, then comment; the comment hop goes
// through its ticket and never deeper.
func (r *Resolver) ResolveWorkspace(ctx context.Context, ref types.WorkspaceRef) (uuid.UUID, error) {
	if ref.Empty() {
		return uuid.Nil, goerrors.New("go-workspaces: workspace reference required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if ref.WorkspaceID != uuid.Nil {
		exists, err := r.db.NewSelect().
			Table("workspaces").
			Where("id = ?", ref.WorkspaceID).
			Exists(ctx)
		if err != nil {
			return uuid.Nil, r.mapError(err)
		}
		if !exists {
			return uuid.Nil, notFound("workspace", ref.WorkspaceID)
		}
		return ref.WorkspaceID, nil
	}

	if ref.TicketID != uuid.Nil {
		return r.workspaceOfTicket(ctx, ref.TicketID)
	}

	var ticketID uuid.UUID
	err := r.db.NewSelect().
		Table("comments").
		Column("ticket_id").
		Where("id = ?", ref.CommentID).
		Scan(ctx, &ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, notFound("comment", ref.CommentID)
		}
		return uuid.Nil, r.mapError(err)
	}
	return r.workspaceOfTicket(ctx, ticketID)
}

func (r *Resolver) workspaceOfTicket(ctx context.Context, ticketID uuid.UUID) (uuid.UUID, error) {
	var workspaceID uuid.UUID
	err := r.db.NewSelect().
		Table("tickets").
		Column("workspace_id").
		Where("id = ?", ticketID).
		Scan(ctx, &workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, notFound("ticket", ticketID)
		}
		return uuid.Nil, r.mapError(err)
	}
	return workspaceID, nil
}

// MembershipOf returns the user's role binding in the workspace, or nil when
// the user is not a member.
func (r *Resolver) MembershipOf(ctx context.Context, userID, workspaceID uuid.UUID) (*types.Membership, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	if workspaceID == uuid.Nil {
		return nil, types.ErrWorkspaceIDRequired
	}
	record, err := r.memberships.Get(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ? AND workspace_id = ?", userID, workspaceID)
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &types.Membership{
		UserID:      record.UserID,
		WorkspaceID: record.WorkspaceID,
		RoleID:      record.RoleID,
		AssignedAt:  record.AssignedAt,
		AssignedBy:  record.AssignedBy,
	}, nil
}

// IsMember reports whether the user holds any role in the workspace.
func (r *Resolver) IsMember(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	binding, err := r.MembershipOf(ctx, userID, workspaceID)
	if err != nil {
		return false, err
	}
	return binding != nil, nil
}

type capabilityRow struct {
	Entity    string `bun:"entity"`
	Operation string `bun:"operation"`
}

// CapabilitiesFor resolves the user's effective capability set in one query
// across membership, role grants, and the permission vocabulary. Non-members
// get an empty set, not an error.
func (r *Resolver) CapabilitiesFor(ctx context.Context, userID, workspaceID uuid.UUID) (types.CapabilitySet, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	if workspaceID == uuid.Nil {
		return nil, types.ErrWorkspaceIDRequired
	}
	var rows []capabilityRow
	err := r.db.NewSelect().
		TableExpr("memberships AS m").
		ColumnExpr("p.entity, p.operation").
		Join("JOIN role_grants AS rg ON rg.role_id = m.role_id").
		Join("JOIN permissions AS p ON p.id = rg.permission_id").
		Where("m.user_id = ? AND m.workspace_id = ?", userID, workspaceID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, r.mapError(err)
	}
	set := make(types.CapabilitySet, len(rows))
	for _, row := range rows {
		set.Add(types.PermissionPair{
			Entity:    types.EntityType(row.Entity),
			Operation: types.Operation(row.Operation),
		})
	}
	return set, nil
}

// ListMembers pages through the workspace's role bindings, newest first.
func (r *Resolver) ListMembers(ctx context.Context, workspaceID uuid.UUID, p types.Pagination) ([]types.Membership, int, error) {
	if workspaceID == uuid.Nil {
		return nil, 0, types.ErrWorkspaceIDRequired
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	records, total, err := r.memberships.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("workspace_id = ?", workspaceID).
			OrderExpr("assigned_at DESC").
			Limit(limit).
			Offset(offset)
	})
	if err != nil {
		return nil, 0, r.mapError(err)
	}
	out := make([]types.Membership, 0, len(records))
	for _, record := range records {
		out = append(out, types.Membership{
			UserID:      record.UserID,
			WorkspaceID: record.WorkspaceID,
			RoleID:      record.RoleID,
			AssignedAt:  record.AssignedAt,
			AssignedBy:  record.AssignedBy,
		})
	}
	return out, total, nil
}

// Upsert installs or replaces the user's single role binding in the
// workspace. Re-assigning updates the existing row in place; the composite
// key guarantees no second row can appear.
func (r *Resolver) Upsert(ctx context.Context, binding types.Membership) error {
	switch {
	case binding.UserID == uuid.Nil:
		return types.ErrUserIDRequired
	case binding.WorkspaceID == uuid.Nil:
		return types.ErrWorkspaceIDRequired
	case binding.RoleID == uuid.Nil:
		return goerrors.New("go-workspaces: role id required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if binding.AssignedAt.IsZero() {
		binding.AssignedAt = r.clock.Now()
	}
	record := &Membership{
		UserID:      binding.UserID,
		WorkspaceID: binding.WorkspaceID,
		RoleID:      binding.RoleID,
		AssignedAt:  binding.AssignedAt,
		AssignedBy:  binding.AssignedBy,
	}
	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id, workspace_id) DO UPDATE").
		Set("role_id = EXCLUDED.role_id").
		Set("assigned_at = EXCLUDED.assigned_at").
		Set("assigned_by = EXCLUDED.assigned_by").
		Exec(ctx)
	if err != nil {
		return r.mapError(err)
	}
	r.emitMembershipEvent(ctx, types.MembershipEvent{
		UserID:      binding.UserID,
		WorkspaceID: binding.WorkspaceID,
		RoleID:      binding.RoleID,
		Action:      "membership.assigned",
		ActorID:     binding.AssignedBy,
		OccurredAt:  binding.AssignedAt,
	})
	return nil
}

// Remove drops the user's binding in the workspace. Removing a non-member is
// NotFound.
func (r *Resolver) Remove(ctx context.Context, userID, workspaceID uuid.UUID) error {
	if userID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	if workspaceID == uuid.Nil {
		return types.ErrWorkspaceIDRequired
	}
	res, err := r.db.NewDelete().
		Model((*Membership)(nil)).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Exec(ctx)
	if err != nil {
		return r.mapError(err)
	}
	if err := repository.SQLExpectedCount(res, 1); err != nil {
		return goerrors.New("go-workspaces: membership not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{
				"user_id":      userID.String(),
				"workspace_id": workspaceID.String(),
			})
	}
	r.emitMembershipEvent(ctx, types.MembershipEvent{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Action:      "membership.removed",
		OccurredAt:  r.clock.Now(),
	})
	return nil
}

// RemoveByRole drops every binding using the role inside the workspace.
func (r *Resolver) RemoveByRole(ctx context.Context, roleID, workspaceID uuid.UUID) error {
	if workspaceID == uuid.Nil {
		return types.ErrWorkspaceIDRequired
	}
	_, err := r.db.NewDelete().
		Model((*Membership)(nil)).
		Where("role_id = ? AND workspace_id = ?", roleID, workspaceID).
		Exec(ctx)
	if err != nil {
		return r.mapError(err)
	}
	return nil
}

func (r *Resolver) emitMembershipEvent(ctx context.Context, event types.MembershipEvent) {
	if r.hooks.AfterMembershipChange == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("membership hook panic", errors.New("panic in AfterMembershipChange"), "panic", rec)
		}
	}()
	r.hooks.AfterMembershipChange(ctx, event)
}

func (r *Resolver) mapError(err error) error {
	if err == nil {
		return nil
	}
	return repository.MapDatabaseError(err, repository.DetectDriver(r.db))
}

func notFound(kind string, id uuid.UUID) error {
	return goerrors.New("go-workspaces: "+kind+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id.String()})
}
