package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/command"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/query"
	"github.com/goliatone/go-workspaces/ticket"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestService_RequiresDB(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, types.ErrServiceNotReady)
}

func TestService_Ready(t *testing.T) {
	db := newTestDB(t)
	applyDDL(t, db)

	svc, err := New(Config{DB: db})
	require.NoError(t, err)
	require.True(t, svc.Ready())
	require.NoError(t, svc.HealthCheck(context.Background()))
}

// End-to-end: provision a workspace, grow a role, bind a member, and work a
// ticket through its audited lifecycle.
func TestService_WorkspaceLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	svc, err := New(Config{DB: db})
	require.NoError(t, err)

	super := types.ActorRef{ID: uuid.New(), Super: true}
	adminID := seedUser(t, db, "admin", true, true)
	admin := types.ActorRef{ID: adminID}

	workspaceResult := &types.WorkspaceRecord{}
	require.NoError(t, svc.Commands().WorkspaceCreate.Execute(ctx, command.WorkspaceCreateInput{
		Name:    "payments",
		AdminID: adminID,
		Actor:   super,
		Result:  workspaceResult,
	}))
	workspaceID := workspaceResult.ID
	require.NotEqual(t, uuid.Nil, workspaceID)

	// provisioning a workspace is reserved for the super identity
	err = svc.Commands().WorkspaceCreate.Execute(ctx, command.WorkspaceCreateInput{
		Name:    "shadow",
		AdminID: adminID,
		Actor:   admin,
	})
	requireCategory(t, err, goerrors.CategoryAuthz)

	roleResult := &types.RoleDefinition{}
	require.NoError(t, svc.Commands().RoleCreate.Execute(ctx, command.RoleCreateInput{
		WorkspaceID: workspaceID,
		Name:        "Editors",
		Grants: []types.PermissionPair{
			{Entity: types.EntityTicket, Operation: types.OperationCreate},
			{Entity: types.EntityTicket, Operation: types.OperationRead},
			{Entity: types.EntityTicket, Operation: types.OperationUpdate},
			{Entity: types.EntityHistory, Operation: types.OperationRead},
		},
		Actor:  admin,
		Result: roleResult,
	}))

	danaID := seedUser(t, db, "dana", true, true)
	dana := types.ActorRef{ID: danaID}
	require.NoError(t, svc.Commands().AssignRole.Execute(ctx, command.AssignRoleInput{
		WorkspaceID: workspaceID,
		UserID:      danaID,
		RoleID:      roleResult.ID,
		Actor:       admin,
	}))

	ticketResult := &ticket.Ticket{}
	require.NoError(t, svc.Commands().TicketCreate.Execute(ctx, command.TicketCreateInput{
		WorkspaceID: workspaceID,
		Title:       "Reconcile ledger drift",
		Actor:       dana,
		Result:      ticketResult,
	}))

	status := ticket.StatusInProgress
	require.NoError(t, svc.Commands().TicketUpdate.Execute(ctx, command.TicketUpdateInput{
		TicketID: ticketResult.ID,
		Patch:    ticket.Patch{Status: &status},
		Actor:    dana,
	}))

	// dana's role has no TICKET:DELETE grant
	err = svc.Commands().TicketDelete.Execute(ctx, command.TicketDeleteInput{
		TicketID: ticketResult.ID,
		Actor:    dana,
	})
	requireCategory(t, err, goerrors.CategoryAuthz)

	feed, err := svc.Queries().HistoryFeed.Query(ctx, types.HistoryFilter{
		Actor:       dana,
		WorkspaceID: workspaceID,
		EntityID:    ticketResult.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 2, feed.Total) // CREATE marker plus one status change

	members, err := svc.Queries().MembershipList.Query(ctx, query.MembershipListInput{
		WorkspaceID: workspaceID,
		Actor:       admin,
	})
	require.NoError(t, err)
	// admin binding from provisioning plus dana
	require.Equal(t, 2, members.Total)

	grant, err := svc.Queries().WorkspaceResolve.Query(ctx, query.WorkspaceResolveInput{
		Ref:   types.WorkspaceRef{TicketID: ticketResult.ID},
		Actor: dana,
	})
	require.NoError(t, err)
	require.Equal(t, workspaceID, grant.WorkspaceID)
	require.True(t, grant.Allows(types.EntityTicket, types.OperationUpdate))
	require.False(t, grant.Allows(types.EntityRole, types.OperationDelete))

	roles, err := svc.Queries().RoleList.Query(ctx, types.RoleFilter{
		Actor:       admin,
		WorkspaceID: workspaceID,
	})
	require.NoError(t, err)
	// the starter set plus Editors
	require.Greater(t, roles.Total, 1)
}

func requireCategory(t *testing.T, err error, category goerrors.Category) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, category, richErr.Category)
}

func seedUser(t *testing.T, db *bun.DB, name string, active, verified bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		"INSERT INTO users (id, name, email, is_active, is_verified) VALUES (?, ?, ?, ?, ?)",
		id, name, name+"@example.com", active, verified,
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

func applyDDL(t *testing.T, db *bun.DB) {
	for _, file := range []string{
		"../data/sql/migrations/sqlite/00001_workspaces.up.sql",
		"../data/sql/migrations/sqlite/00002_roles.up.sql",
		"../data/sql/migrations/sqlite/00003_tickets.up.sql",
		"../data/sql/migrations/sqlite/00004_history.up.sql",
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
