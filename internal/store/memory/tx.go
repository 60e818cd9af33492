package memory

import (
	"context"
	"strings"
	"time"

	"collabsauce/api/internal/store"
)

type tx struct {
	*data
}

var _ store.Tx = (*tx)(nil)

func now() time.Time { return time.Now().UTC() }

func (t *tx) LockProject(_ context.Context, projectID int64) error {
	if _, ok := t.projects[projectID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) CreateUser(_ context.Context, user *store.User) error {
	for _, existing := range t.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrConflict
		}
	}
	user.ID = t.nextID()
	user.CreatedAt = now()
	stored := *user
	stored.OrganizationIDs = nil
	t.users[user.ID] = stored
	return nil
}

func (t *tx) CreateProfile(_ context.Context, profile *store.Profile) error {
	if _, ok := t.users[profile.UserID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range t.profiles {
		if existing.UserID == profile.UserID {
			return store.ErrConflict
		}
	}
	profile.ID = t.nextID()
	profile.CreatedAt = now()
	profile.UpdatedAt = profile.CreatedAt
	t.profiles[profile.ID] = *profile
	return nil
}

func (t *tx) UpdateProfile(_ context.Context, profile store.Profile) error {
	existing, ok := t.profiles[profile.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.JobTitle = profile.JobTitle
	existing.UpdatedAt = now()
	t.profiles[profile.ID] = existing
	return nil
}

func (t *tx) CreateOrganization(_ context.Context, org *store.Organization) error {
	org.ID = t.nextID()
	org.CreatedAt = now()
	t.orgs[org.ID] = *org
	return nil
}

func (t *tx) UpdateOrganization(_ context.Context, org store.Organization) error {
	existing, ok := t.orgs[org.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = org.Name
	t.orgs[org.ID] = existing
	return nil
}

func (t *tx) CreateMembership(_ context.Context, membership *store.Membership) error {
	if !membership.Role.Valid() {
		return store.ErrConflict
	}
	if _, ok := t.orgs[membership.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := t.users[membership.UserID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range t.memberships {
		if existing.OrganizationID == membership.OrganizationID && existing.UserID == membership.UserID {
			return store.ErrConflict
		}
	}
	membership.ID = t.nextID()
	membership.CreatedAt = now()
	t.memberships[membership.ID] = *membership
	return nil
}

func (t *tx) DeleteMembership(_ context.Context, id int64) error {
	if _, ok := t.memberships[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.memberships, id)
	return nil
}

func (t *tx) CreateInvite(_ context.Context, invite *store.Invite) error {
	if _, ok := t.orgs[invite.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	if invite.State == "" {
		invite.State = store.InviteCreated
	}
	for _, existing := range t.invites {
		if existing.Key == invite.Key {
			return store.ErrConflict
		}
	}
	if invite.State == store.InviteCreated {
		for _, existing := range t.invites {
			if existing.OrganizationID == invite.OrganizationID &&
				existing.State == store.InviteCreated &&
				strings.EqualFold(existing.Email, invite.Email) {
				return store.ErrConflict
			}
		}
	}
	invite.ID = t.nextID()
	invite.CreatedAt = now()
	invite.UpdatedAt = invite.CreatedAt
	t.invites[invite.ID] = *invite
	return nil
}

func (t *tx) TransitionInvite(_ context.Context, id int64, from, to store.InviteState) error {
	invite, ok := t.invites[id]
	if !ok {
		return store.ErrNotFound
	}
	if invite.State != from {
		return store.ErrConcurrentUpdate
	}
	invite.State = to
	invite.UpdatedAt = now()
	t.invites[id] = invite
	return nil
}

func (t *tx) CreateProject(_ context.Context, project *store.Project) error {
	if _, ok := t.orgs[project.OrganizationID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range t.projects {
		if existing.Key == project.Key {
			return store.ErrConflict
		}
		if existing.OrganizationID == project.OrganizationID && existing.Name == project.Name {
			return store.ErrConflict
		}
	}
	project.ID = t.nextID()
	project.CreatedAt = now()
	t.projects[project.ID] = *project
	return nil
}

func (t *tx) UpdateProject(_ context.Context, project store.Project) error {
	existing, ok := t.projects[project.ID]
	if !ok {
		return store.ErrNotFound
	}
	for _, other := range t.projects {
		if other.ID != project.ID && other.OrganizationID == existing.OrganizationID && other.Name == project.Name {
			return store.ErrConflict
		}
	}
	existing.Name = project.Name
	existing.URL = project.URL
	t.projects[project.ID] = existing
	return nil
}

func (t *tx) CreateTaskColumn(_ context.Context, column *store.TaskColumn) error {
	if _, ok := t.projects[column.ProjectID]; !ok {
		return store.ErrNotFound
	}
	column.ID = t.nextID()
	t.columns[column.ID] = *column
	return nil
}

func (t *tx) CreateTask(_ context.Context, task *store.Task) error {
	project, ok := t.projects[task.ProjectID]
	if !ok {
		return store.ErrNotFound
	}
	for _, existing := range t.tasks {
		if existing.ProjectID == task.ProjectID && existing.TaskNumber == task.TaskNumber {
			return store.ErrConcurrentUpdate
		}
	}
	task.ID = t.nextID()
	task.OrganizationID = project.OrganizationID
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt
	stored := *task
	stored.CreatorID = copyID(task.CreatorID)
	stored.AssignedToID = copyID(task.AssignedToID)
	t.tasks[task.ID] = stored
	return nil
}

func (t *tx) UpdateTask(_ context.Context, task store.Task) error {
	existing, ok := t.tasks[task.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Title = task.Title
	existing.Description = task.Description
	existing.DesignEdits = task.DesignEdits
	existing.IsResolved = task.IsResolved
	existing.AssignedToID = copyID(task.AssignedToID)
	existing.TaskColumnID = task.TaskColumnID
	existing.Order = task.Order
	existing.UpdatedAt = now()
	t.tasks[task.ID] = existing
	return nil
}

func (t *tx) UpdateTaskPlacements(_ context.Context, placements []store.TaskPlacement) error {
	for _, p := range placements {
		if _, ok := t.tasks[p.TaskID]; !ok {
			return store.ErrNotFound
		}
	}
	ts := now()
	for _, p := range placements {
		task := t.tasks[p.TaskID]
		task.Order = p.Order
		task.TaskColumnID = p.TaskColumnID
		task.UpdatedAt = ts
		t.tasks[p.TaskID] = task
	}
	return nil
}

func (t *tx) SetTaskScreenshots(_ context.Context, taskID int64, windowURL, elementURL string) error {
	task, ok := t.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	task.WindowScreenshotURL = windowURL
	task.ElementScreenshotURL = elementURL
	task.UpdatedAt = now()
	t.tasks[taskID] = task
	return nil
}

func (t *tx) CreateTaskMetadata(_ context.Context, metadata *store.TaskMetadata) error {
	if _, ok := t.tasks[metadata.TaskID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := t.metadata[metadata.TaskID]; ok {
		return store.ErrConflict
	}
	metadata.ID = t.nextID()
	t.metadata[metadata.TaskID] = *metadata
	return nil
}

func (t *tx) CreateTaskHTML(_ context.Context, html *store.TaskHTML) error {
	if _, ok := t.tasks[html.TaskID]; !ok {
		return store.ErrNotFound
	}
	html.ID = t.nextID()
	t.html[html.ID] = *html
	return nil
}

func (t *tx) CreateTaskDataURL(_ context.Context, dataURL *store.TaskDataURL) error {
	if _, ok := t.tasks[dataURL.TaskID]; !ok {
		return store.ErrNotFound
	}
	dataURL.ID = t.nextID()
	t.dataURLs[dataURL.ID] = *dataURL
	return nil
}

func (t *tx) DeleteTaskHTML(_ context.Context, id int64) error {
	if _, ok := t.html[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.html, id)
	return nil
}

func (t *tx) DeleteTaskDataURL(_ context.Context, id int64) error {
	if _, ok := t.dataURLs[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.dataURLs, id)
	return nil
}

func (t *tx) CreateTaskComment(_ context.Context, comment *store.TaskComment) error {
	task, ok := t.tasks[comment.TaskID]
	if !ok {
		return store.ErrNotFound
	}
	comment.ID = t.nextID()
	comment.OrganizationID = t.projects[task.ProjectID].OrganizationID
	comment.CreatedAt = now()
	t.comments[comment.ID] = *comment
	return nil
}
