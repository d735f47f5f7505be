package catalog

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CatalogConfig wires the Bun-backed permission catalog.
type CatalogConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Permission]
	Clock      types.Clock
	IDGen      types.IDGenerator
}

// Catalog persists the deduplicated permission vocabulary.
type Catalog struct {
	store repository.Repository[*Permission]
	clock types.Clock
	idGen types.IDGenerator
}

// NewCatalog constructs the default catalog. Either DB or Repository must be
// provided; when DB is supplied the repository is created automatically.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("catalog: db or repository required")
	}
	store := cfg.Repository
	if store == nil {
		store = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Permission]{
			NewRecord: func() *Permission { return &Permission{} },
			GetID: func(rec *Permission) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Permission, id uuid.UUID) {
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
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}
	return &Catalog{
		store: store,
		clock: clock,
		idGen: idGen,
	}, nil
}

var _ types.PermissionCatalog = (*Catalog)(nil)

// Ensure returns the identifier for the (entity, operation) pair, creating
// the row when it does not exist yet. Concurrent callers racing on the same
// pair converge on one row: the unique index rejects the duplicate insert
// and the loser re-reads the winner's row.
func (c *Catalog) Ensure(ctx context.Context, pair types.PermissionPair) (uuid.UUID, error) {
	pair = pair.Normalize()
	if !pair.Valid() {
		return uuid.Nil, goerrors.New("go-workspaces: permission pair requires entity and operation", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	rec, err := c.store.Get(ctx, selectPair(pair))
	if err == nil {
		return rec.ID, nil
	}
	if !repository.IsRecordNotFound(err) {
		return uuid.Nil, err
	}

	created, err := c.store.Create(ctx, &Permission{
		ID:        c.idGen.UUID(),
		Entity:    string(pair.Entity),
		Operation: string(pair.Operation),
		CreatedAt: c.clock.Now(),
	})
	if err == nil {
		return created.ID, nil
	}
	if !repository.IsDuplicatedKey(err) {
		return uuid.Nil, err
	}

	rec, err = c.store.Get(ctx, selectPair(pair))
	if err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// EnsureAll resolves every pair in order, deduplicating repeated inputs onto
// the same identifier.
func (c *Catalog) EnsureAll(ctx context.Context, pairs []types.PermissionPair) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(pairs))
	seen := make(map[string]uuid.UUID, len(pairs))
	for _, pair := range pairs {
		key := pair.Normalize().Key()
		if id, ok := seen[key]; ok {
			ids = append(ids, id)
			continue
		}
		id, err := c.Ensure(ctx, pair)
		if err != nil {
			return nil, err
		}
		seen[key] = id
		ids = append(ids, id)
	}
	return ids, nil
}

// List returns the full vocabulary ordered by entity then operation.
func (c *Catalog) List(ctx context.Context) ([]types.PermissionRecord, error) {
	rows, _, err := c.store.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("entity ASC, operation ASC")
	})
	if err != nil {
		return nil, err
	}
	records := make([]types.PermissionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.PermissionRecord{
			ID:        row.ID,
			Entity:    types.EntityType(row.Entity),
			Operation: types.Operation(row.Operation),
		})
	}
	return records, nil
}

func selectPair(pair types.PermissionPair) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("entity = ? AND operation = ?", string(pair.Entity), string(pair.Operation))
	}
}
