package migrations

import (
	workspaces "github.com/goliatone/go-workspaces"
)

func init() {
	Register(workspaces.GetMigrationsFS())
}
