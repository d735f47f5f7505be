package command

import (
	"context"
	"strings"

	gocommand "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/membership"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BulkAssignInput applies pairwise (subject, role name) assignments inside
// one workspace. Subjects[i] is bound to Grants[i]; both slices must have
// the same length.
type BulkAssignInput struct {
	WorkspaceID uuid.UUID
	Subjects    []string
	Grants      []string
	Actor       types.ActorRef
	Report      *types.AssignmentReport
}

// Type implements gocommand.Message.
func (BulkAssignInput) Type() string {
	return "command.role.assign.bulk"
}

// Validate implements gocommand.Message.
func (input BulkAssignInput) Validate() error {
	switch {
	case input.Actor.ID == uuid.Nil:
		return ErrActorRequired
	case input.WorkspaceID == uuid.Nil:
		return ErrWorkspaceIDRequired
	case len(input.Subjects) == 0:
		return ErrAssignmentPairsRequired
	case len(input.Subjects) != len(input.Grants):
		return goerrors.New("go-workspaces: subjects and grants must have the same length", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"subjects": len(input.Subjects),
				"grants":   len(input.Grants),
			})
	default:
		return nil
	}
}

// BulkAssignCommand resolves every pair up front, rejects the whole batch
// when anything is unresolvable, and applies all bindings in a single
// transaction.
type BulkAssignCommand struct {
	db         *bun.DB
	workspaces types.WorkspaceStore
	gate       authz.Gate
	features   featuregate.FeatureGate
	clock      types.Clock
}

// NewBulkAssignCommand wires the batch assignment handler. The feature gate
// is optional; a nil gate leaves the command enabled.
func NewBulkAssignCommand(db *bun.DB, workspaces types.WorkspaceStore, gate authz.Gate, features featuregate.FeatureGate, clock types.Clock) *BulkAssignCommand {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &BulkAssignCommand{
		db:         db,
		workspaces: workspaces,
		gate:       safeGate(gate),
		features:   features,
		clock:      clock,
	}
}

var _ gocommand.Commander[BulkAssignInput] = (*BulkAssignCommand)(nil)

type roleRow struct {
	ID   uuid.UUID `bun:"id"`
	Name string    `bun:"name"`
}

type userRow struct {
	ID         uuid.UUID `bun:"id"`
	Name       string    `bun:"name"`
	IsActive   bool      `bun:"is_active"`
	IsVerified bool      `bun:"is_verified"`
}

// Execute validates the whole batch before touching anything: every role
// and subject must resolve and every subject must be active and verified,
// otherwise the command fails listing all offenders and writes nothing.
func (c *BulkAssignCommand) Execute(ctx context.Context, input BulkAssignInput) error {
	if c.db == nil {
		return goerrors.New("go-workspaces: bulk assignment requires database", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal)
	}
	if err := input.Validate(); err != nil {
		return err
	}

	enabled, err := featureEnabled(ctx, c.features, featureBulkAssign, input.WorkspaceID, input.Actor.ID)
	if err != nil {
		return err
	}
	if !enabled {
		return goerrors.Wrap(ErrBulkAssignDisabled, goerrors.CategoryValidation, "go-workspaces: bulk assignment disabled").
			WithCode(goerrors.CodeBadRequest)
	}

	if c.workspaces == nil {
		return types.ErrMissingWorkspaceStore
	}
	workspace, err := c.workspaces.Get(ctx, input.WorkspaceID)
	if err != nil {
		return err
	}
	if err := authz.Require(ctx, c.gate, input.Actor, workspace, types.EntityUserRole, types.OperationCreate); err != nil {
		return err
	}

	rolesByName, err := c.lookupRoles(ctx, input.WorkspaceID, input.Grants)
	if err != nil {
		return err
	}
	usersByName, err := c.lookupUsers(ctx, input.Subjects)
	if err != nil {
		return err
	}

	var missingRoles, missingUsers, ineligible []string
	pairs := make([]types.AssignmentPair, 0, len(input.Subjects))
	for i := range input.Subjects {
		subject := strings.TrimSpace(input.Subjects[i])
		grant := strings.TrimSpace(input.Grants[i])

		role, roleOK := rolesByName[strings.ToLower(grant)]
		if !roleOK {
			missingRoles = appendUnique(missingRoles, grant)
		}
		user, userOK := usersByName[strings.ToLower(subject)]
		switch {
		case !userOK:
			missingUsers = appendUnique(missingUsers, subject)
		case !user.IsActive || !user.IsVerified:
			ineligible = appendUnique(ineligible, subject)
		}
		if !roleOK || !userOK {
			continue
		}
		pairs = append(pairs, types.AssignmentPair{
			Subject: subject,
			Grant:   role.Name,
			UserID:  user.ID,
			RoleID:  role.ID,
		})
	}

	if len(missingRoles) > 0 || len(missingUsers) > 0 || len(ineligible) > 0 {
		metadata := map[string]any{}
		if len(missingRoles) > 0 {
			metadata["missing_roles"] = missingRoles
		}
		if len(missingUsers) > 0 {
			metadata["missing_users"] = missingUsers
		}
		if len(ineligible) > 0 {
			metadata["ineligible_users"] = ineligible
		}
		return goerrors.New("go-workspaces: bulk assignment batch failed validation", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(metadata)
	}

	// a subject named twice keeps its last pair
	deduped := make([]types.AssignmentPair, 0, len(pairs))
	lastIndex := make(map[uuid.UUID]int, len(pairs))
	for _, pair := range pairs {
		if idx, ok := lastIndex[pair.UserID]; ok {
			deduped[idx] = pair
			continue
		}
		lastIndex[pair.UserID] = len(deduped)
		deduped = append(deduped, pair)
	}

	now := c.clock.Now()
	err = c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, pair := range deduped {
			binding := &membership.Membership{
				UserID:      pair.UserID,
				WorkspaceID: input.WorkspaceID,
				RoleID:      pair.RoleID,
				AssignedAt:  now,
				AssignedBy:  input.Actor.ID,
			}
			if _, err := tx.NewInsert().
				Model(binding).
				On("CONFLICT (user_id, workspace_id) DO UPDATE").
				Set("role_id = EXCLUDED.role_id").
				Set("assigned_at = EXCLUDED.assigned_at").
				Set("assigned_by = EXCLUDED.assigned_by").
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if input.Report != nil {
		*input.Report = types.AssignmentReport{
			Assigned: len(deduped),
			Pairs:    deduped,
		}
	}
	return nil
}

func (c *BulkAssignCommand) lookupRoles(ctx context.Context, workspaceID uuid.UUID, names []string) (map[string]roleRow, error) {
	lowered := loweredSet(names)
	if len(lowered) == 0 {
		return map[string]roleRow{}, nil
	}
	var rows []roleRow
	err := c.db.NewSelect().
		Table("roles").
		Column("id", "name").
		Where("workspace_id = ?", workspaceID).
		Where("LOWER(name) IN (?)", bun.In(lowered)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]roleRow, len(rows))
	for _, row := range rows {
		out[strings.ToLower(row.Name)] = row
	}
	return out, nil
}

func (c *BulkAssignCommand) lookupUsers(ctx context.Context, names []string) (map[string]userRow, error) {
	lowered := loweredSet(names)
	if len(lowered) == 0 {
		return map[string]userRow{}, nil
	}
	var rows []userRow
	err := c.db.NewSelect().
		Table("users").
		Column("id", "name", "is_active", "is_verified").
		Where("LOWER(name) IN (?)", bun.In(lowered)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]userRow, len(rows))
	for _, row := range rows {
		out[strings.ToLower(row.Name)] = row
	}
	return out, nil
}

func loweredSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
