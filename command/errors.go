package command

import (
	"errors"

	"github.com/goliatone/go-workspaces/pkg/types"
)

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = types.ErrActorRequired
	// ErrWorkspaceIDRequired indicates a workspace identifier was omitted.
	ErrWorkspaceIDRequired = types.ErrWorkspaceIDRequired
	// ErrUserIDRequired occurs when assignment commands omit the user.
	ErrUserIDRequired = types.ErrUserIDRequired
	// ErrWorkspaceNameRequired occurs when provisioning omits the name.
	ErrWorkspaceNameRequired = errors.New("go-workspaces: workspace name required")
	// ErrAdminIDRequired occurs when provisioning omits the admin user.
	ErrAdminIDRequired = errors.New("go-workspaces: admin user id required")
	// ErrRoleNameRequired occurs when a role command omits the role name.
	ErrRoleNameRequired = errors.New("go-workspaces: role name required")
	// ErrRoleIDRequired signals the role ID was missing.
	ErrRoleIDRequired = errors.New("go-workspaces: role id required")
	// ErrGrantsRequired occurs when a grant command carries no pairs.
	ErrGrantsRequired = errors.New("go-workspaces: permission pairs required")
	// ErrTicketIDRequired signals the ticket ID was missing.
	ErrTicketIDRequired = errors.New("go-workspaces: ticket id required")
	// ErrTicketTitleRequired occurs when ticket creation omits the title.
	ErrTicketTitleRequired = errors.New("go-workspaces: ticket title required")
	// ErrAssignmentPairsRequired occurs when bulk assignment has no pairs.
	ErrAssignmentPairsRequired = errors.New("go-workspaces: assignment pairs required")
	// ErrBulkAssignDisabled indicates bulk assignment is disabled via feature gate.
	ErrBulkAssignDisabled = errors.New("go-workspaces: bulk assignment disabled")
)
