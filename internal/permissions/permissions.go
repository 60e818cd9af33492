// Package permissions narrows candidate records to those an actor may read,
// update or delete. Callers treat a record filtered out of a direct fetch as
// not found, so invisible and absent records look the same.
package permissions

import (
	"fmt"
	"slices"
)

type EntityType string

const (
	Organization EntityType = "organization"
	Membership   EntityType = "membership"
	Invite       EntityType = "invite"
	Project      EntityType = "project"
	TaskColumn   EntityType = "task_column"
	Task         EntityType = "task"
	TaskComment  EntityType = "task_comment"
	TaskMetadata EntityType = "task_metadata"
	User         EntityType = "user"
	Profile      EntityType = "profile"
)

var entityTypes = []EntityType{
	Organization, Membership, Invite, Project, TaskColumn,
	Task, TaskComment, TaskMetadata, User, Profile,
}

func ParseEntityType(s string) (EntityType, error) {
	for _, t := range entityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

type Action string

const (
	Read   Action = "read"
	Update Action = "update"
	Delete Action = "delete"
)

// Access tells whether records are fetched directly or reached through an
// already authorized parent.
type Access int

const (
	Direct Access = iota
	Sideload
)

// Actor is the authenticated user making a request. Orgs maps each
// organization the user belongs to onto whether the user is an admin there.
type Actor struct {
	UserID    int64
	Superuser bool
	Orgs      map[int64]bool
}

func (a Actor) Member(orgID int64) bool {
	_, ok := a.Orgs[orgID]
	return ok
}

func (a Actor) Admin(orgID int64) bool {
	return a.Orgs[orgID]
}

// OrganizationIDs returns the actor's organizations in ascending order.
func (a Actor) OrganizationIDs() []int64 {
	ids := make([]int64, 0, len(a.Orgs))
	for id := range a.Orgs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Scope is what a policy needs to know about one record.
type Scope struct {
	// OrganizationIDs holds the owning organization, or every organization
	// of a user record.
	OrganizationIDs []int64
	// CreatorID is zero when the record has no authenticated creator.
	CreatorID int64
	// OwnerID is the user a user or profile record belongs to.
	OwnerID int64
}

func (s Scope) memberOfAny(a Actor) bool {
	return slices.ContainsFunc(s.OrganizationIDs, a.Member)
}

func (s Scope) adminOfAny(a Actor) bool {
	return slices.ContainsFunc(s.OrganizationIDs, a.Admin)
}
