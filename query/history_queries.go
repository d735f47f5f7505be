package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/google/uuid"
)

// HistoryFeedQuery pages through a workspace's change feed, newest first.
type HistoryFeedQuery struct {
	history    types.HistoryRepository
	workspaces types.WorkspaceStore
	gate       authz.Gate
}

// NewHistoryFeedQuery builds the feed query.
func NewHistoryFeedQuery(history types.HistoryRepository, workspaces types.WorkspaceStore, gate authz.Gate) *HistoryFeedQuery {
	return &HistoryFeedQuery{
		history:    history,
		workspaces: workspaces,
		gate:       authz.Ensure(gate),
	}
}

var _ gocommand.Querier[types.HistoryFilter, types.HistoryPage] = (*HistoryFeedQuery)(nil)

// Query enforces HISTORY:READ then forwards the filter.
func (q *HistoryFeedQuery) Query(ctx context.Context, filter types.HistoryFilter) (types.HistoryPage, error) {
	if q.history == nil {
		return types.HistoryPage{}, types.ErrMissingHistoryRepository
	}
	if err := filter.Validate(); err != nil {
		return types.HistoryPage{}, err
	}
	if filter.WorkspaceID == uuid.Nil {
		return types.HistoryPage{}, types.ErrWorkspaceIDRequired
	}
	workspace, err := loadWorkspace(ctx, q.workspaces, filter.WorkspaceID)
	if err != nil {
		return types.HistoryPage{}, err
	}
	if err := authz.Require(ctx, q.gate, filter.Actor, workspace, types.EntityHistory, types.OperationRead); err != nil {
		return types.HistoryPage{}, err
	}
	return q.history.ListHistory(ctx, filter)
}
