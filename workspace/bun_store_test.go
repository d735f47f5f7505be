package workspace

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/catalog"
	"github.com/goliatone/go-workspaces/membership"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestStore_ProvisionInstallsStarterSet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyWorkspaceDDL(t, db)

	var events []types.WorkspaceEvent
	store := newTestStore(t, db, types.Hooks{
		AfterWorkspaceCreate: func(_ context.Context, evt types.WorkspaceEvent) {
			events = append(events, evt)
		},
	})

	adminID := seedUser(t, db)
	actor := uuid.New()

	record, err := store.Provision(ctx, types.WorkspaceMutation{
		Name:    "payments",
		AdminID: adminID,
		ActorID: actor,
	})
	require.NoError(t, err)
	require.Equal(t, "payments", record.Name)
	require.Equal(t, adminID, record.AdminID)

	roles, err := db.NewSelect().Table("roles").Where("workspace_id = ?", record.ID).Count(ctx)
	require.NoError(t, err)
	require.Equal(t, len(StarterRoles()), roles)

	adminRoles, err := db.NewSelect().
		Table("roles").
		Where("workspace_id = ? AND is_administrative = ?", record.ID, true).
		Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, adminRoles)

	// the admin user is already a member, bound to the administrative role
	resolver, err := membership.NewResolver(membership.ResolverConfig{DB: db})
	require.NoError(t, err)
	caps, err := resolver.CapabilitiesFor(ctx, adminID, record.ID)
	require.NoError(t, err)
	require.True(t, caps.Allows(types.EntityRole, types.OperationDelete))
	require.True(t, caps.Allows(types.EntityTicket, types.OperationComment), "MANAGE on tickets covers everything")
	require.True(t, caps.Allows(types.EntityHistory, types.OperationRead))

	require.Len(t, events, 1)
	require.Equal(t, record.ID, events[0].WorkspaceID)
}

func TestStore_ReviewerStarterRoleIsReadOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyWorkspaceDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	record, err := store.Provision(ctx, types.WorkspaceMutation{
		Name:    "payments",
		AdminID: seedUser(t, db),
		ActorID: uuid.New(),
	})
	require.NoError(t, err)

	var reviewerID uuid.UUID
	err = db.NewSelect().
		Table("roles").
		Column("id").
		Where("workspace_id = ? AND name = ?", record.ID, "Reviewer").
		Scan(ctx, &reviewerID)
	require.NoError(t, err)

	resolver, err := membership.NewResolver(membership.ResolverConfig{DB: db})
	require.NoError(t, err)
	reviewer := seedUser(t, db)
	require.NoError(t, resolver.Upsert(ctx, types.Membership{
		UserID:      reviewer,
		WorkspaceID: record.ID,
		RoleID:      reviewerID,
		AssignedBy:  uuid.New(),
	}))

	caps, err := resolver.CapabilitiesFor(ctx, reviewer, record.ID)
	require.NoError(t, err)
	require.True(t, caps.Allows(types.EntityTicket, types.OperationRead))
	require.True(t, caps.Allows(types.EntityComment, types.OperationCreate))
	require.False(t, caps.Allows(types.EntityTicket, types.OperationUpdate))
	require.False(t, caps.Allows(types.EntityTicket, types.OperationCreate))
}

func TestStore_ProvisionValidations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyWorkspaceDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	_, err := store.Provision(ctx, types.WorkspaceMutation{Name: " ", AdminID: uuid.New()})
	requireCategory(t, err, goerrors.CategoryValidation)

	// unknown admin user
	_, err = store.Provision(ctx, types.WorkspaceMutation{Name: "ops", AdminID: uuid.New()})
	requireCategory(t, err, goerrors.CategoryNotFound)

	workspaces, err := db.NewSelect().Table("workspaces").Count(ctx)
	require.NoError(t, err)
	require.Zero(t, workspaces)
}

func TestStore_ProvisionSharesPermissionVocabulary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyWorkspaceDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	for _, name := range []string{"first", "second"} {
		_, err := store.Provision(ctx, types.WorkspaceMutation{
			Name:    name,
			AdminID: seedUser(t, db),
			ActorID: uuid.New(),
		})
		require.NoError(t, err)
	}

	// both workspaces share one deduplicated catalog
	var distinct int
	err := db.NewSelect().
		TableExpr("(SELECT DISTINCT entity, operation FROM permissions) AS pairs").
		ColumnExpr("COUNT(*)").
		Scan(ctx, &distinct)
	require.NoError(t, err)

	total, err := db.NewSelect().Table("permissions").Count(ctx)
	require.NoError(t, err)
	require.Equal(t, distinct, total)
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyWorkspaceDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	record, err := store.Provision(ctx, types.WorkspaceMutation{
		Name:    "core",
		AdminID: seedUser(t, db),
		ActorID: uuid.New(),
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, record.Name, got.Name)

	_, err = store.Get(ctx, uuid.New())
	requireCategory(t, err, goerrors.CategoryNotFound)
}

func newTestStore(t *testing.T, db *bun.DB, hooks types.Hooks) *Store {
	cat, err := catalog.NewCatalog(catalog.CatalogConfig{DB: db})
	require.NoError(t, err)
	store, err := NewStore(StoreConfig{DB: db, Catalog: cat, Hooks: hooks})
	require.NoError(t, err)
	return store
}

func requireCategory(t *testing.T, err error, category goerrors.Category) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, category, richErr.Category)
}

func seedUser(t *testing.T, db *bun.DB) uuid.UUID {
	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO users (id, name, email, is_active, is_verified) VALUES (?, ?, ?, 1, 1)",
		id, "user-"+id.String()[:8], id.String()[:8]+"@example.com",
	)
	require.NoError(t, err)
	return id
}

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	return db
}

func applyWorkspaceDDL(t *testing.T, db *bun.DB) {
	for _, file := range []string{
		"../data/sql/migrations/sqlite/00001_workspaces.up.sql",
		"../data/sql/migrations/sqlite/00002_roles.up.sql",
	} {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		for _, stmt := range splitSQLStatements(string(content)) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			_, err := db.Exec(stmt)
			require.NoError(t, err, "executing statement %q", stmt)
		}
	}
}

func splitSQLStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(builder.String())
			stmt = strings.TrimSuffix(stmt, ";")
			statements = append(statements, stmt)
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, strings.TrimSpace(builder.String()))
	}
	return statements
}
