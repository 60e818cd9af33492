package app

import (
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/store"
)

func orgScope(organizationID int64) permissions.Scope {
	return permissions.Scope{OrganizationIDs: []int64{organizationID}}
}

func deref(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func organizationScope(o store.Organization) permissions.Scope { return orgScope(o.ID) }
func membershipScope(m store.Membership) permissions.Scope     { return orgScope(m.OrganizationID) }
func inviteScope(i store.Invite) permissions.Scope             { return orgScope(i.OrganizationID) }
func projectScope(p store.Project) permissions.Scope           { return orgScope(p.OrganizationID) }

func taskScope(t store.Task) permissions.Scope {
	return permissions.Scope{OrganizationIDs: []int64{t.OrganizationID}, CreatorID: deref(t.CreatorID)}
}

func commentScope(c store.TaskComment) permissions.Scope {
	return permissions.Scope{OrganizationIDs: []int64{c.OrganizationID}, CreatorID: c.CreatorID}
}

func metadataScope(m store.TaskMetadata) permissions.Scope {
	return permissions.Scope{OrganizationIDs: []int64{m.OrganizationID}, CreatorID: deref(m.TaskCreatorID)}
}

func userScope(u store.User) permissions.Scope {
	return permissions.Scope{OrganizationIDs: u.OrganizationIDs, OwnerID: u.ID}
}

func profileScope(p store.Profile) permissions.Scope {
	return permissions.Scope{OwnerID: p.UserID}
}
