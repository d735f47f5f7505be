package catalog

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestCatalog_EnsureGetOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyCatalogDDL(t, db)

	cat, err := NewCatalog(CatalogConfig{DB: db})
	require.NoError(t, err)

	pair := types.PermissionPair{Entity: "ticket", Operation: "update"}

	first, err := cat.Ensure(ctx, pair)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first)

	// same pair, different casing, same row
	second, err := cat.Ensure(ctx, types.PermissionPair{Entity: "TICKET", Operation: "Update"})
	require.NoError(t, err)
	require.Equal(t, first, second)

	records, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, types.EntityTicket, records[0].Entity)
	require.Equal(t, types.OperationUpdate, records[0].Operation)
}

func TestCatalog_EnsureRejectsPartialPair(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyCatalogDDL(t, db)

	cat, err := NewCatalog(CatalogConfig{DB: db})
	require.NoError(t, err)

	_, err = cat.Ensure(ctx, types.PermissionPair{Entity: "TICKET"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	require.Equal(t, goerrors.CategoryValidation, richErr.Category)
}

func TestCatalog_EnsureAllDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyCatalogDDL(t, db)

	cat, err := NewCatalog(CatalogConfig{DB: db})
	require.NoError(t, err)

	ids, err := cat.EnsureAll(ctx, []types.PermissionPair{
		{Entity: "TICKET", Operation: "READ"},
		{Entity: "ticket", Operation: "read"},
		{Entity: "TICKET", Operation: "UPDATE"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, ids[0], ids[1])
	require.NotEqual(t, ids[0], ids[2])

	records, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestCatalog_EnsureConvergesUnderRace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyCatalogDDL(t, db)

	cat, err := NewCatalog(CatalogConfig{DB: db})
	require.NoError(t, err)

	pair := types.PermissionPair{Entity: "HISTORY", Operation: "READ"}
	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = cat.Ensure(ctx, pair)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}

	records, err := cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
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

func applyCatalogDDL(t *testing.T, db *bun.DB) {
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
