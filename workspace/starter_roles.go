package workspace

import "github.com/goliatone/go-workspaces/pkg/types"

// StarterRole describes one role provisioned into every new workspace.
type StarterRole struct {
	Name           string
	Description    string
	Administrative bool
	Grants         []types.PermissionPair
}

// StarterRoles returns the default role set installed during provisioning.
// The admin user is bound to the administrative role in the same
// transaction.
func StarterRoles() []StarterRole {
	return []StarterRole{
		{
			Name:           "Admin",
			Description:    "full control over the workspace",
			Administrative: true,
			Grants: []types.PermissionPair{
				{Entity: types.EntityRole, Operation: types.OperationCreate},
				{Entity: types.EntityRole, Operation: types.OperationRead},
				{Entity: types.EntityRole, Operation: types.OperationUpdate},
				{Entity: types.EntityRole, Operation: types.OperationDelete},
				{Entity: types.EntityUser, Operation: types.OperationCreate},
				{Entity: types.EntityUser, Operation: types.OperationRead},
				{Entity: types.EntityUserRole, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityTicket, Operation: types.OperationUpdate},
				{Entity: types.EntityTicket, Operation: types.OperationDelete},
				{Entity: types.EntityTicket, Operation: types.OperationManage},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
				{Entity: types.EntityComment, Operation: types.OperationDelete},
				{Entity: types.EntityHistory, Operation: types.OperationRead},
			},
		},
		{
			Name:        "Designer",
			Description: "creates and refines work items",
			Grants: []types.PermissionPair{
				{Entity: types.EntityTicket, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityTicket, Operation: types.OperationUpdate},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
			},
		},
		{
			Name:        "Developer",
			Description: "works tickets end to end",
			Grants: []types.PermissionPair{
				{Entity: types.EntityTicket, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityTicket, Operation: types.OperationUpdate},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
			},
		},
		{
			Name:        "DevOps",
			Description: "operational ticket work",
			Grants: []types.PermissionPair{
				{Entity: types.EntityTicket, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityTicket, Operation: types.OperationUpdate},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
			},
		},
		{
			Name:        "Lead",
			Description: "triages and can remove tickets",
			Grants: []types.PermissionPair{
				{Entity: types.EntityTicket, Operation: types.OperationCreate},
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityTicket, Operation: types.OperationUpdate},
				{Entity: types.EntityTicket, Operation: types.OperationDelete},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
			},
		},
		{
			Name:        "Reviewer",
			Description: "read and comment only",
			Grants: []types.PermissionPair{
				{Entity: types.EntityTicket, Operation: types.OperationRead},
				{Entity: types.EntityComment, Operation: types.OperationCreate},
				{Entity: types.EntityComment, Operation: types.OperationRead},
			},
		},
	}
}
