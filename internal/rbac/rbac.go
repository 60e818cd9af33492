// Package rbac maps organization membership roles to the organization-level
// actions they allow.
package rbac

import "collabsauce/api/internal/store"

type Action string

const (
	ActionSubmitWidget   Action = "submit_widget"
	ActionManageProjects Action = "manage_projects"
	ActionManageMembers  Action = "manage_members"
	ActionInvite         Action = "invite"
	ActionRenameOrg      Action = "rename_organization"
)

func Can(role store.Role, action Action) bool {
	switch role {
	case store.RoleAdmin:
		return true
	case store.RoleDashboard, store.RoleWidget:
		return action == ActionSubmitWidget
	default:
		return false
	}
}

// CanIn reports whether any of the user's memberships in the organization
// allows action.
func CanIn(memberships []store.Membership, organizationID int64, action Action) bool {
	for _, m := range memberships {
		if m.OrganizationID == organizationID && Can(m.Role, action) {
			return true
		}
	}
	return false
}
