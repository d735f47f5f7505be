package ticket

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-workspaces/audit"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TrackedFields is the ordered set of columns whose changes are written to
// the audit trail. Anything else mutates silently.
var TrackedFields = []string{
	"title", "description", "status", "priority",
	"assigned_to", "due_date", "parent_id", "type", "ticket_type",
}

// Trail is the slice of the audit repository the ticket store needs: writing
// rows on its own transactions and erasing an entity's rows during hard
// deletes.
type Trail interface {
	audit.Sink
	PurgeEntity(ctx context.Context, idb bun.IDB, entityID uuid.UUID) error
}

// CreateInput carries ticket creation payloads.
type CreateInput struct {
	WorkspaceID uuid.UUID
	Title       string
	Description string
	Priority    string
	TicketType  string
	Type        string
	AssignedTo  *uuid.UUID
	ParentID    *uuid.UUID
	DueDate     *time.Time
	ActorID     uuid.UUID
}

// Patch carries partial updates; nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	TicketType  *string
	Type        *string
	AssignedTo  *uuid.UUID
	ParentID    *uuid.UUID
	DueDate     *time.Time
}

// CommentInput carries comment creation payloads.
type CommentInput struct {
	TicketID uuid.UUID
	UserID   uuid.UUID
	Message  string
	ParentID *uuid.UUID
}

// RepositoryConfig wires the Bun-backed ticket store.
type RepositoryConfig struct {
	DB       *bun.DB
	Tickets  repository.Repository[*Ticket]
	Trail    Trail
	Resolver types.MembershipResolver
	Clock    types.Clock
	IDGen    types.IDGenerator
	Logger   types.Logger
}

// Repository persists tickets and comments, writing the audit trail inside
// the same transaction as every mutation.
type Repository struct {
	db       *bun.DB
	tickets  repository.Repository[*Ticket]
	trail    Trail
	resolver types.MembershipResolver
	clock    types.Clock
	idGen    types.IDGenerator
	logger   types.Logger
}

// NewRepository constructs the ticket store. DB, Trail, and Resolver are
// required.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("ticket: db required")
	}
	if cfg.Trail == nil {
		return nil, types.ErrMissingHistoryRepository
	}
	if cfg.Resolver == nil {
		return nil, types.ErrMissingResolver
	}
	tickets := cfg.Tickets
	if tickets == nil {
		tickets = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Ticket]{
			NewRecord: func() *Ticket { return &Ticket{} },
			GetID: func(rec *Ticket) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Ticket, id uuid.UUID) {
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
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Repository{
		db:       cfg.DB,
		tickets:  tickets,
		trail:    cfg.Trail,
		resolver: cfg.Resolver,
		clock:    clock,
		idGen:    idGen,
		logger:   logger,
	}, nil
}

// Create validates the referenced parent and assignee, then inserts the
// ticket together with its CREATE audit row in one transaction.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Ticket, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, validation("ticket title required")
	}
	if input.WorkspaceID == uuid.Nil {
		return nil, types.ErrWorkspaceIDRequired
	}
	if input.ParentID != nil {
		if err := r.checkParent(ctx, *input.ParentID, input.WorkspaceID, uuid.Nil); err != nil {
			return nil, err
		}
	}
	if input.AssignedTo != nil {
		if err := r.checkAssignee(ctx, *input.AssignedTo, input.WorkspaceID); err != nil {
			return nil, err
		}
	}

	now := r.clock.Now()
	record := &Ticket{
		ID:          r.idGen.UUID(),
		WorkspaceID: input.WorkspaceID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      StatusOpen,
		Priority:    coalesce(input.Priority, DefaultPriority),
		TicketType:  coalesce(input.TicketType, DefaultKind),
		Type:        coalesce(input.Type, DefaultType),
		AssignedTo:  input.AssignedTo,
		ParentID:    input.ParentID,
		DueDate:     input.DueDate,
		CreatedBy:   input.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.trail.Record(ctx, tx,
			audit.Lifecycle(record.WorkspaceID, record.ID, input.ActorID, types.HistoryActionCreate),
		)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Get loads one ticket.
func (r *Repository) Get(ctx context.Context, ticketID uuid.UUID) (*Ticket, error) {
	record, err := r.tickets.GetByID(ctx, ticketID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound("ticket", ticketID)
		}
		return nil, err
	}
	return record, nil
}

// Update applies the patch and writes one audit row per changed tracked
// field in the same transaction. An empty diff is a no-op that touches
// neither the row nor the trail. A status transition to CLOSED is recorded
// with the CLOSE action.
func (r *Repository) Update(ctx context.Context, ticketID uuid.UUID, patch Patch, actor uuid.UUID) (*Ticket, error) {
	record, err := r.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	updated := *record
	applyPatch(&updated, patch)

	if updated.ParentID != nil {
		if err := r.checkParent(ctx, *updated.ParentID, record.WorkspaceID, record.ID); err != nil {
			return nil, err
		}
	}
	if patch.AssignedTo != nil {
		if err := r.checkAssignee(ctx, *patch.AssignedTo, record.WorkspaceID); err != nil {
			return nil, err
		}
	}

	changes := audit.Diff(snapshot(record), snapshot(&updated), TrackedFields)
	if len(changes) == 0 {
		return record, nil
	}

	updated.UpdatedAt = r.clock.Now()
	updated.UpdatedBy = &actor

	entries := audit.Changes(record.WorkspaceID, record.ID, actor, changes)
	for i := range entries {
		if entries[i].FieldChanged == "status" && entries[i].NewValue == StatusClosed {
			entries[i].Action = types.HistoryActionClose
		}
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model(&updated).WherePK().Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.trail.Record(ctx, tx, entries...)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the ticket, its comments, and its direct children in one
// transaction. The entity's accumulated audit rows are erased and a single
// DELETE marker is left in the trail.
func (r *Repository) Delete(ctx context.Context, ticketID uuid.UUID, actor uuid.UUID) error {
	record, err := r.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var childIDs []uuid.UUID
		if err := tx.NewSelect().
			Model((*Ticket)(nil)).
			Column("id").
			Where("parent_id = ?", record.ID).
			Scan(ctx, &childIDs); err != nil {
			return r.mapError(err)
		}

		targets := append([]uuid.UUID{record.ID}, childIDs...)
		if _, err := tx.NewDelete().
			Model((*Comment)(nil)).
			Where("ticket_id IN (?)", bun.In(targets)).
			Exec(ctx); err != nil {
			return r.mapError(err)
		}
		if len(childIDs) > 0 {
			if _, err := tx.NewDelete().
				Model((*Ticket)(nil)).
				Where("id IN (?)", bun.In(childIDs)).
				Exec(ctx); err != nil {
				return r.mapError(err)
			}
		}
		if _, err := tx.NewDelete().Model(record).WherePK().Exec(ctx); err != nil {
			return r.mapError(err)
		}

		for _, id := range targets {
			if err := r.trail.PurgeEntity(ctx, tx, id); err != nil {
				return err
			}
		}
		return r.trail.Record(ctx, tx,
			audit.Lifecycle(record.WorkspaceID, record.ID, actor, types.HistoryActionDelete),
		)
	})
}

// CreateComment adds a note to an existing ticket.
func (r *Repository) CreateComment(ctx context.Context, input CommentInput) (*Comment, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, validation("comment message required")
	}
	if input.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	parent, err := r.Get(ctx, input.TicketID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	record := &Comment{
		ID:          r.idGen.UUID(),
		WorkspaceID: parent.WorkspaceID,
		TicketID:    parent.ID,
		UserID:      input.UserID,
		Message:     input.Message,
		ParentID:    input.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, r.mapError(err)
	}
	return record, nil
}

// UpdateComment replaces the comment's message.
func (r *Repository) UpdateComment(ctx context.Context, commentID uuid.UUID, message string, actor uuid.UUID) (*Comment, error) {
	if strings.TrimSpace(message) == "" {
		return nil, validation("comment message required")
	}
	comment := new(Comment)
	err := r.db.NewSelect().Model(comment).Where("c.id = ?", commentID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("comment", commentID)
		}
		return nil, r.mapError(err)
	}
	comment.Message = message
	comment.UpdatedAt = r.clock.Now()
	if _, err := r.db.NewUpdate().
		Model(comment).
		Column("message", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, r.mapError(err)
	}
	return comment, nil
}

// DeleteComment removes a comment and drops a DELETE marker for it in the
// same transaction.
func (r *Repository) DeleteComment(ctx context.Context, commentID, actor uuid.UUID) error {
	comment := new(Comment)
	err := r.db.NewSelect().Model(comment).Where("c.id = ?", commentID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("comment", commentID)
		}
		return r.mapError(err)
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model(comment).WherePK().Exec(ctx); err != nil {
			return r.mapError(err)
		}
		return r.trail.Record(ctx, tx,
			audit.Lifecycle(comment.WorkspaceID, comment.ID, actor, types.HistoryActionDelete),
		)
	})
}

func (r *Repository) checkParent(ctx context.Context, parentID, workspaceID, selfID uuid.UUID) error {
	if selfID != uuid.Nil && parentID == selfID {
		return validation("ticket cannot be its own parent")
	}
	parent, err := r.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.WorkspaceID != workspaceID {
		return validation("parent ticket belongs to a different workspace")
	}
	return nil
}

func (r *Repository) checkAssignee(ctx context.Context, userID, workspaceID uuid.UUID) error {
	member, err := r.resolver.IsMember(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if !member {
		return validation("assignee is not a member of the workspace")
	}
	return nil
}

func (r *Repository) mapError(err error) error {
	if err == nil {
		return nil
	}
	return repository.MapDatabaseError(err, repository.DetectDriver(r.db))
}

func applyPatch(record *Ticket, patch Patch) {
	if patch.Title != nil {
		record.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Status != nil {
		record.Status = strings.ToUpper(strings.TrimSpace(*patch.Status))
	}
	if patch.Priority != nil {
		record.Priority = strings.ToUpper(strings.TrimSpace(*patch.Priority))
	}
	if patch.TicketType != nil {
		record.TicketType = *patch.TicketType
	}
	if patch.Type != nil {
		record.Type = *patch.Type
	}
	if patch.AssignedTo != nil {
		record.AssignedTo = patch.AssignedTo
	}
	if patch.ParentID != nil {
		record.ParentID = patch.ParentID
	}
	if patch.DueDate != nil {
		record.DueDate = patch.DueDate
	}
}

func snapshot(record *Ticket) map[string]any {
	return map[string]any{
		"title":       record.Title,
		"description": record.Description,
		"status":      record.Status,
		"priority":    record.Priority,
		"assigned_to": record.AssignedTo,
		"due_date":    record.DueDate,
		"parent_id":   record.ParentID,
		"type":        record.Type,
		"ticket_type": record.TicketType,
	}
}

func coalesce(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return strings.ToUpper(value)
}

func validation(msg string) error {
	return goerrors.New("go-workspaces: "+msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest)
}

func notFound(kind string, id uuid.UUID) error {
	return goerrors.New("go-workspaces: "+kind+" not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{"id": id.String()})
}
