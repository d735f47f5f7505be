package workspace

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workspaces/membership"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/registry"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StoreConfig wires the Bun-backed workspace store.
type StoreConfig struct {
	DB         *bun.DB
	Workspaces repository.Repository[*Workspace]
	Catalog    types.PermissionCatalog
	Clock      types.Clock
	Hooks      types.Hooks
	Logger     types.Logger
	IDGen      types.IDGenerator
}

// Store provisions and loads workspaces.
type Store struct {
	db         *bun.DB
	workspaces repository.Repository[*Workspace]
	catalog    types.PermissionCatalog
	clock      types.Clock
	hooks      types.Hooks
	logger     types.Logger
	idGen      types.IDGenerator
}

// NewStore constructs the default store. DB and Catalog are required; the
// catalog seeds the starter role grants during provisioning.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("workspace: db required")
	}
	if cfg.Catalog == nil {
		return nil, types.ErrMissingCatalog
	}
	workspaces := cfg.Workspaces
	if workspaces == nil {
		workspaces = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Workspace]{
			NewRecord: func() *Workspace { return &Workspace{} },
			GetID: func(rec *Workspace) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Workspace, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
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
	return &Store{
		db:         cfg.DB,
		workspaces: workspaces,
		catalog:    cfg.Catalog,
		clock:      clock,
		hooks:      cfg.Hooks,
		logger:     logger,
		idGen:      idGen,
	}, nil
}

var _ types.WorkspaceStore = (*Store)(nil)

// Provision creates the workspace, installs the starter role set, and binds
// the admin user to the administrative role, all in one transaction. The
// admin user must already exist.
func (s *Store) Provision(ctx context.Context, input types.WorkspaceMutation) (*types.WorkspaceRecord, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, goerrors.New("go-workspaces: workspace name required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if input.AdminID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}

	adminExists, err := s.db.NewSelect().
		Table("users").
		Where("id = ?", input.AdminID).
		Exists(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	if !adminExists {
		return nil, goerrors.New("go-workspaces: admin user not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"admin_id": input.AdminID.String()})
	}

	// permission vocabulary is global and idempotent, so it is seeded
	// outside the provisioning transaction
	starters := StarterRoles()
	grantIDs := make(map[string][]uuid.UUID, len(starters))
	for _, starter := range starters {
		ids, err := s.catalog.EnsureAll(ctx, starter.Grants)
		if err != nil {
			return nil, err
		}
		grantIDs[starter.Name] = ids
	}

	now := s.clock.Now()
	record := &Workspace{
		ID:        s.idGen.UUID(),
		Name:      name,
		AdminID:   input.AdminID,
		CreatedBy: input.ActorID,
		CreatedAt: now,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return s.mapError(err)
		}

		var adminRoleID uuid.UUID
		for _, starter := range starters {
			role := &registry.Role{
				ID:               s.idGen.UUID(),
				WorkspaceID:      record.ID,
				Name:             starter.Name,
				Description:      starter.Description,
				IsAdministrative: starter.Administrative,
				CreatedAt:        now,
				UpdatedAt:        now,
				CreatedBy:        input.ActorID,
				UpdatedBy:        input.ActorID,
			}
			if _, err := tx.NewInsert().Model(role).Exec(ctx); err != nil {
				return s.mapError(err)
			}
			if starter.Administrative {
				adminRoleID = role.ID
			}

			grants := make([]registry.RoleGrant, 0, len(grantIDs[starter.Name]))
			seen := make(map[uuid.UUID]struct{})
			for _, pid := range grantIDs[starter.Name] {
				if _, ok := seen[pid]; ok {
					continue
				}
				seen[pid] = struct{}{}
				grants = append(grants, registry.RoleGrant{RoleID: role.ID, PermissionID: pid})
			}
			if len(grants) > 0 {
				if _, err := tx.NewInsert().Model(&grants).Exec(ctx); err != nil {
					return s.mapError(err)
				}
			}
		}

		if adminRoleID == uuid.Nil {
			return errors.New("workspace: starter set has no administrative role")
		}
		binding := &membership.Membership{
			UserID:      input.AdminID,
			WorkspaceID: record.ID,
			RoleID:      adminRoleID,
			AssignedAt:  now,
			AssignedBy:  input.ActorID,
		}
		if _, err := tx.NewInsert().Model(binding).Exec(ctx); err != nil {
			return s.mapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitWorkspaceEvent(ctx, types.WorkspaceEvent{
		WorkspaceID: record.ID,
		AdminID:     record.AdminID,
		ActorID:     input.ActorID,
		OccurredAt:  now,
	})
	return toRecord(record), nil
}

// Get loads one workspace.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*types.WorkspaceRecord, error) {
	if id == uuid.Nil {
		return nil, types.ErrWorkspaceIDRequired
	}
	record, err := s.workspaces.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryNotFound, "go-workspaces: workspace not found").
				WithCode(goerrors.CodeNotFound).
				WithMetadata(map[string]any{"workspace_id": id.String()})
		}
		return nil, err
	}
	return toRecord(record), nil
}

func (s *Store) emitWorkspaceEvent(ctx context.Context, event types.WorkspaceEvent) {
	if s.hooks.AfterWorkspaceCreate == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("workspace hook panic", errors.New("panic in AfterWorkspaceCreate"), "panic", rec)
		}
	}()
	s.hooks.AfterWorkspaceCreate(ctx, event)
}

func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	return repository.MapDatabaseError(err, repository.DetectDriver(s.db))
}

func toRecord(record *Workspace) *types.WorkspaceRecord {
	if record == nil {
		return nil
	}
	return &types.WorkspaceRecord{
		ID:        record.ID,
		Name:      record.Name,
		AdminID:   record.AdminID,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAt,
	}
}
