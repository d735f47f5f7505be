package registry

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/catalog"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRoleStore_CreateListGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)

	var events []types.RoleEvent
	store := newTestStore(t, db, types.Hooks{
		AfterRoleChange: func(_ context.Context, evt types.RoleEvent) {
			events = append(events, evt)
		},
	})

	workspaceID := seedWorkspace(t, db)
	actor := uuid.New()

	role, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: workspaceID,
		Name:        "Developer",
		Description: "works tickets",
		Grants: []types.PermissionPair{
			{Entity: types.EntityTicket, Operation: types.OperationRead},
			{Entity: types.EntityTicket, Operation: types.OperationUpdate},
			{Entity: types.EntityTicket, Operation: types.OperationComment},
		},
		ActorID: actor,
	})
	require.NoError(t, err)
	require.Equal(t, "Developer", role.Name)
	require.Len(t, role.Grants, 3)

	page, err := store.ListRoles(ctx, types.RoleFilter{
		Actor:       types.ActorRef{ID: actor},
		WorkspaceID: workspaceID,
		Pagination:  types.Pagination{Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, page.Roles, 1)
	require.Equal(t, role.ID, page.Roles[0].ID)
	require.Len(t, page.Roles[0].Grants, 3)

	got, err := store.GetRole(ctx, role.ID, workspaceID)
	require.NoError(t, err)
	require.Equal(t, role.Name, got.Name)

	caps, err := store.GrantsFor(ctx, role.ID)
	require.NoError(t, err)
	require.True(t, caps.Allows(types.EntityTicket, types.OperationUpdate))
	require.False(t, caps.Allows(types.EntityTicket, types.OperationDelete))

	require.Len(t, events, 1)
	require.Equal(t, "role.created", events[0].Action)
}

func TestRoleStore_DuplicateNameConflict(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	input := types.RoleMutation{WorkspaceID: workspaceID, Name: "Lead", ActorID: uuid.New()}

	_, err := store.CreateRole(ctx, input)
	require.NoError(t, err)

	_, err = store.CreateRole(ctx, input)
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryConflict, richErr.Category)

	// same name in another workspace is fine
	_, err = store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: seedWorkspace(t, db),
		Name:        "Lead",
		ActorID:     uuid.New(),
	})
	require.NoError(t, err)
}

func TestRoleStore_GrantIdempotentAndReplace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	role, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: workspaceID,
		Name:        "Reviewer",
		Grants:      []types.PermissionPair{{Entity: types.EntityTicket, Operation: types.OperationRead}},
		ActorID:     uuid.New(),
	})
	require.NoError(t, err)

	readPair := types.PermissionPair{Entity: types.EntityTicket, Operation: types.OperationRead}
	require.NoError(t, store.Grant(ctx, role.ID, workspaceID, []types.PermissionPair{readPair}))
	require.NoError(t, store.Grant(ctx, role.ID, workspaceID, []types.PermissionPair{readPair}))

	got, err := store.GetRole(ctx, role.ID, workspaceID)
	require.NoError(t, err)
	require.Len(t, got.Grants, 1)

	require.NoError(t, store.ReplaceGrants(ctx, role.ID, workspaceID, []types.PermissionPair{
		{Entity: types.EntityComment, Operation: types.OperationCreate},
	}))

	caps, err := store.GrantsFor(ctx, role.ID)
	require.NoError(t, err)
	require.False(t, caps.Allows(types.EntityTicket, types.OperationRead))
	require.True(t, caps.Allows(types.EntityComment, types.OperationCreate))
}

func TestRoleStore_DeleteRole(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	actor := uuid.New()

	role, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: workspaceID,
		Name:        "DevOps",
		ActorID:     actor,
	})
	require.NoError(t, err)

	// assigned roles cannot be removed
	userID := seedUser(t, db, true, true)
	seedMembership(t, db, userID, workspaceID, role.ID)

	err = store.DeleteRole(ctx, role.ID, workspaceID, actor)
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryConflict, richErr.Category)

	_, err = db.NewDelete().Table("memberships").Where("user_id = ?", userID).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, store.DeleteRole(ctx, role.ID, workspaceID, actor))

	_, err = store.GetRole(ctx, role.ID, workspaceID)
	require.Error(t, err)
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryNotFound, richErr.Category)
}

func TestRoleStore_DeleteAdministrativeGuard(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	actor := uuid.New()

	admin, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID:      workspaceID,
		Name:             "Admin",
		IsAdministrative: boolPtr(true),
		ActorID:          actor,
	})
	require.NoError(t, err)

	legacy, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: workspaceID,
		Name:        "ADMIN",
		ActorID:     actor,
	})
	require.NoError(t, err)

	// an admin assignment elsewhere in the workspace blocks deleting any
	// administrative role, even an unassigned one
	userID := seedUser(t, db, true, true)
	seedMembership(t, db, userID, workspaceID, legacy.ID)

	err = store.DeleteRole(ctx, admin.ID, workspaceID, actor)
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryConflict, richErr.Category)

	_, err = db.NewDelete().Table("memberships").Where("user_id = ?", userID).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, store.DeleteRole(ctx, admin.ID, workspaceID, actor))
}

func TestRoleStore_UpdateRoleReplacesGrants(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	actor := uuid.New()

	role, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID: workspaceID,
		Name:        "Lead",
		Grants:      []types.PermissionPair{{Entity: types.EntityTicket, Operation: types.OperationRead}},
		ActorID:     actor,
	})
	require.NoError(t, err)

	updated, err := store.UpdateRole(ctx, role.ID, types.RoleMutation{
		WorkspaceID: workspaceID,
		Description: "triage and review",
		Grants: []types.PermissionPair{
			{Entity: types.EntityTicket, Operation: types.OperationManage},
		},
		ActorID: actor,
	})
	require.NoError(t, err)
	require.Equal(t, "Lead", updated.Name)
	require.Equal(t, "triage and review", updated.Description)
	require.Len(t, updated.Grants, 1)

	caps, err := store.GrantsFor(ctx, role.ID)
	require.NoError(t, err)
	require.True(t, caps.Allows(types.EntityTicket, types.OperationDelete), "MANAGE covers every operation")
}

func TestRoleStore_UpdateRoleAdministrativeFlag(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyRoleDDL(t, db)
	store := newTestStore(t, db, types.Hooks{})

	workspaceID := seedWorkspace(t, db)
	actor := uuid.New()

	role, err := store.CreateRole(ctx, types.RoleMutation{
		WorkspaceID:      workspaceID,
		Name:             "Ops",
		IsAdministrative: boolPtr(true),
		ActorID:          actor,
	})
	require.NoError(t, err)
	require.True(t, role.IsAdministrative)

	// nil leaves the flag as stored
	updated, err := store.UpdateRole(ctx, role.ID, types.RoleMutation{
		WorkspaceID: workspaceID,
		Description: "on call rotation",
		ActorID:     actor,
	})
	require.NoError(t, err)
	require.True(t, updated.IsAdministrative)

	// an explicit false clears it
	updated, err = store.UpdateRole(ctx, role.ID, types.RoleMutation{
		WorkspaceID:      workspaceID,
		IsAdministrative: boolPtr(false),
		ActorID:          actor,
	})
	require.NoError(t, err)
	require.False(t, updated.IsAdministrative)

	fetched, err := store.GetRole(ctx, role.ID, workspaceID)
	require.NoError(t, err)
	require.False(t, fetched.IsAdministrative)
}

func boolPtr(v bool) *bool {
	return &v
}

func newTestStore(t *testing.T, db *bun.DB, hooks types.Hooks) *RoleStore {
	cat, err := catalog.NewCatalog(catalog.CatalogConfig{DB: db})
	require.NoError(t, err)
	store, err := NewRoleStore(RoleStoreConfig{
		DB:      db,
		Catalog: cat,
		Hooks:   hooks,
		Clock:   fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return store
}

func seedWorkspace(t *testing.T, db *bun.DB) uuid.UUID {
	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO workspaces (id, name, admin_id, created_by) VALUES (?, ?, ?, ?)",
		id, "ws-"+id.String()[:8], uuid.New(), uuid.New(),
	)
	require.NoError(t, err)
	return id
}

func seedUser(t *testing.T, db *bun.DB, active, verified bool) uuid.UUID {
	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO users (id, name, email, is_active, is_verified) VALUES (?, ?, ?, ?, ?)",
		id, "user-"+id.String()[:8], id.String()[:8]+"@example.com", active, verified,
	)
	require.NoError(t, err)
	return id
}

func seedMembership(t *testing.T, db *bun.DB, userID, workspaceID, roleID uuid.UUID) {
	_, err := db.Exec(
		"INSERT INTO memberships (user_id, workspace_id, role_id, assigned_at, assigned_by) VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?)",
		userID, workspaceID, roleID, uuid.New(),
	)
	require.NoError(t, err)
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

func applyRoleDDL(t *testing.T, db *bun.DB) {
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

type fixedClock struct {
	t time.Time
}

func (f fixedClock) Now() time.Time {
	return f.t
}
