package rbac

import (
	"testing"

	"collabsauce/api/internal/store"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   store.Role
		action Action
		allow  bool
	}{
		{name: "widget submit", role: store.RoleWidget, action: ActionSubmitWidget, allow: true},
		{name: "widget invite", role: store.RoleWidget, action: ActionInvite, allow: false},
		{name: "dashboard submit", role: store.RoleDashboard, action: ActionSubmitWidget, allow: true},
		{name: "dashboard rename", role: store.RoleDashboard, action: ActionRenameOrg, allow: false},
		{name: "dashboard invite", role: store.RoleDashboard, action: ActionInvite, allow: false},
		{name: "dashboard projects", role: store.RoleDashboard, action: ActionManageProjects, allow: false},
		{name: "admin invite", role: store.RoleAdmin, action: ActionInvite, allow: true},
		{name: "admin members", role: store.RoleAdmin, action: ActionManageMembers, allow: true},
		{name: "unknown role", role: "owner", action: ActionSubmitWidget, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanIn(t *testing.T) {
	memberships := []store.Membership{
		{OrganizationID: 1, Role: store.RoleDashboard},
		{OrganizationID: 2, Role: store.RoleAdmin},
	}
	if CanIn(memberships, 1, ActionInvite) {
		t.Fatal("dashboard member of org 1 must not invite")
	}
	if !CanIn(memberships, 2, ActionInvite) {
		t.Fatal("admin of org 2 must invite")
	}
	if CanIn(memberships, 3, ActionSubmitWidget) {
		t.Fatal("non-member must not submit to org 3")
	}
}
