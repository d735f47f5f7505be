package audit

import (
	"context"
	"errors"

	"github.com/goliatone/go-masker"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sink accepts audit rows on an arbitrary bun.IDB so callers can write them
// inside the same transaction as the mutation they describe. A mutation that
// rolls back must leave no trace in the trail, and this is how that happens.
type Sink interface {
	Record(ctx context.Context, idb bun.IDB, records ...types.HistoryRecord) error
}

// RepositoryConfig wires the Bun-backed history repository. A zero Sanitizer
// falls back to the default denylist masker.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*HistoryEntry]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Sanitizer  SanitizerConfig
}

type historyStore interface {
	repository.Repository[*HistoryEntry]
}

// Repository persists and reads the append-only audit trail.
type Repository struct {
	historyStore
	db     *bun.DB
	clock  types.Clock
	idGen  types.IDGenerator
	masker *masker.Masker
}

// NewRepository constructs a repository that implements both Sink and
// types.HistoryRepository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("audit: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*HistoryEntry]{
			NewRecord: func() *HistoryEntry { return &HistoryEntry{} },
			GetID: func(entry *HistoryEntry) uuid.UUID {
				if entry == nil {
					return uuid.Nil
				}
				return entry.ID
			},
			SetID: func(entry *HistoryEntry, id uuid.UUID) {
				if entry != nil {
					entry.ID = id
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
	mask := cfg.Sanitizer.Masker
	if mask == nil {
		mask = DefaultMasker()
	}
	return &Repository{
		historyStore: repo,
		db:           cfg.DB,
		clock:        clock,
		idGen:        idGen,
		masker:       mask,
	}, nil
}

var (
	_ repository.Repository[*HistoryEntry] = (*Repository)(nil)
	_ Sink                                 = (*Repository)(nil)
	_ types.HistoryRepository              = (*Repository)(nil)
)

// Record inserts audit rows on the supplied connection or transaction.
// Missing ids and timestamps are filled in, values for denylisted fields are
// masked, and everything else is stored as given.
func (r *Repository) Record(ctx context.Context, idb bun.IDB, records ...types.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	if idb == nil {
		idb = r.db
	}
	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entry := toEntry(SanitizeRecord(r.masker, record))
		if entry.ID == uuid.Nil {
			entry.ID = r.idGen.UUID()
		}
		if entry.ChangedAt.IsZero() {
			entry.ChangedAt = r.clock.Now()
		}
		entries = append(entries, entry)
	}
	_, err := idb.NewInsert().Model(&entries).Exec(ctx)
	return err
}

// Changes expands a change set into one UPDATE row per field, all stamped
// with the same actor and instant.
func Changes(workspaceID, entityID, actor uuid.UUID, changes types.ChangeSet) []types.HistoryRecord {
	records := make([]types.HistoryRecord, 0, len(changes))
	for _, change := range changes {
		records = append(records, types.HistoryRecord{
			WorkspaceID:  workspaceID,
			EntityID:     entityID,
			Action:       types.HistoryActionUpdate,
			FieldChanged: change.Field,
			OldValue:     change.Old,
			NewValue:     change.New,
			ChangedBy:    actor,
		})
	}
	return records
}

// Lifecycle builds the synthetic row for a coarse action (CREATE, DELETE)
// that is not tied to a single field. The field column carries the action
// token verbatim and the value columns record the false to true transition.
func Lifecycle(workspaceID, entityID, actor uuid.UUID, action types.HistoryAction) types.HistoryRecord {
	return types.HistoryRecord{
		WorkspaceID:  workspaceID,
		EntityID:     entityID,
		Action:       action,
		FieldChanged: string(action),
		OldValue:     "false",
		NewValue:     "true",
		ChangedBy:    actor,
	}
}

// ListHistory returns a paginated feed ordered newest first.
func (r *Repository) ListHistory(ctx context.Context, filter types.HistoryFilter) (types.HistoryPage, error) {
	pagination := normalizePagination(filter.Pagination, 50, 200)
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.OrderExpr("changed_at DESC, id DESC").
				Limit(pagination.Limit).
				Offset(pagination.Offset)
			return applyHistoryFilter(q, filter)
		},
	}

	rows, total, err := r.List(ctx, criteria...)
	if err != nil {
		return types.HistoryPage{}, err
	}
	records := make([]types.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return types.HistoryPage{
		Records:    records,
		Total:      total,
		NextOffset: pagination.Offset + pagination.Limit,
		HasMore:    pagination.Offset+pagination.Limit < total,
	}, nil
}

// PurgeEntity removes every audit row for the entity on the supplied
// connection. Used only when the entity itself is erased; the DELETE marker
// written to the trail afterwards is what survives.
func (r *Repository) PurgeEntity(ctx context.Context, idb bun.IDB, entityID uuid.UUID) error {
	if idb == nil {
		idb = r.db
	}
	_, err := idb.NewDelete().
		Model((*HistoryEntry)(nil)).
		Where("entity_id = ?", entityID).
		Exec(ctx)
	return err
}

func applyHistoryFilter(q *bun.SelectQuery, filter types.HistoryFilter) *bun.SelectQuery {
	if filter.WorkspaceID != uuid.Nil {
		q = q.Where("workspace_id = ?", filter.WorkspaceID)
	}
	if filter.EntityID != uuid.Nil {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if len(filter.Actions) > 0 {
		q = q.Where("action IN (?)", bun.In(filter.Actions))
	}
	if filter.Since != nil && !filter.Since.IsZero() {
		q = q.Where("changed_at >= ?", filter.Since)
	}
	if filter.Until != nil && !filter.Until.IsZero() {
		q = q.Where("changed_at <= ?", filter.Until)
	}
	return q
}

func toEntry(record types.HistoryRecord) HistoryEntry {
	return HistoryEntry{
		ID:           record.ID,
		WorkspaceID:  record.WorkspaceID,
		EntityID:     record.EntityID,
		Action:       record.Action,
		FieldChanged: record.FieldChanged,
		OldValue:     record.OldValue,
		NewValue:     record.NewValue,
		ChangedBy:    record.ChangedBy,
		ChangedAt:    record.ChangedAt,
	}
}

func toRecord(entry *HistoryEntry) types.HistoryRecord {
	if entry == nil {
		return types.HistoryRecord{}
	}
	return types.HistoryRecord{
		ID:           entry.ID,
		WorkspaceID:  entry.WorkspaceID,
		EntityID:     entry.EntityID,
		Action:       entry.Action,
		FieldChanged: entry.FieldChanged,
		OldValue:     entry.OldValue,
		NewValue:     entry.NewValue,
		ChangedBy:    entry.ChangedBy,
		ChangedAt:    entry.ChangedAt,
	}
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
