package memory

import (
	"context"
	"maps"
	"slices"
	"strings"

	"collabsauce/api/internal/store"
)

type data struct {
	seq         int64
	users       map[int64]store.User
	profiles    map[int64]store.Profile
	orgs        map[int64]store.Organization
	memberships map[int64]store.Membership
	invites     map[int64]store.Invite
	projects    map[int64]store.Project
	columns     map[int64]store.TaskColumn
	tasks       map[int64]store.Task
	metadata    map[int64]store.TaskMetadata // keyed by task id
	html        map[int64]store.TaskHTML
	dataURLs    map[int64]store.TaskDataURL
	comments    map[int64]store.TaskComment
}

func newData() *data {
	return &data{
		users:       make(map[int64]store.User),
		profiles:    make(map[int64]store.Profile),
		orgs:        make(map[int64]store.Organization),
		memberships: make(map[int64]store.Membership),
		invites:     make(map[int64]store.Invite),
		projects:    make(map[int64]store.Project),
		columns:     make(map[int64]store.TaskColumn),
		tasks:       make(map[int64]store.Task),
		metadata:    make(map[int64]store.TaskMetadata),
		html:        make(map[int64]store.TaskHTML),
		dataURLs:    make(map[int64]store.TaskDataURL),
		comments:    make(map[int64]store.TaskComment),
	}
}

// clone copies every table. Values are structs whose pointer fields are
// never mutated in place, so a shallow copy of each map is enough.
func (d *data) clone() *data {
	return &data{
		seq:         d.seq,
		users:       maps.Clone(d.users),
		profiles:    maps.Clone(d.profiles),
		orgs:        maps.Clone(d.orgs),
		memberships: maps.Clone(d.memberships),
		invites:     maps.Clone(d.invites),
		projects:    maps.Clone(d.projects),
		columns:     maps.Clone(d.columns),
		tasks:       maps.Clone(d.tasks),
		metadata:    maps.Clone(d.metadata),
		html:        maps.Clone(d.html),
		dataURLs:    maps.Clone(d.dataURLs),
		comments:    maps.Clone(d.comments),
	}
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		if keep == nil || keep(m[id]) {
			out = append(out, m[id])
		}
	}
	return out
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func (d *data) withOrgs(user store.User) store.User {
	user.OrganizationIDs = nil
	for _, m := range sortedValues(d.memberships, nil) {
		if m.UserID == user.ID {
			user.OrganizationIDs = append(user.OrganizationIDs, m.OrganizationID)
		}
	}
	return user
}

func (d *data) withTaskFacts(task store.Task) store.Task {
	task.CreatorID = copyID(task.CreatorID)
	task.AssignedToID = copyID(task.AssignedToID)
	task.OrganizationID = d.projects[task.ProjectID].OrganizationID
	return task
}

func (d *data) GetUser(_ context.Context, id int64) (store.User, error) {
	user, ok := d.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return d.withOrgs(user), nil
}

func (d *data) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	for _, user := range d.users {
		if strings.EqualFold(user.Email, email) {
			return d.withOrgs(user), nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (d *data) ListUsers(_ context.Context) ([]store.User, error) {
	users := sortedValues(d.users, nil)
	for i := range users {
		users[i] = d.withOrgs(users[i])
	}
	return users, nil
}

func (d *data) GetProfileByUser(_ context.Context, userID int64) (store.Profile, error) {
	for _, profile := range d.profiles {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return store.Profile{}, store.ErrNotFound
}

func (d *data) GetOrganization(_ context.Context, id int64) (store.Organization, error) {
	org, ok := d.orgs[id]
	if !ok {
		return store.Organization{}, store.ErrNotFound
	}
	return org, nil
}

func (d *data) ListOrganizations(_ context.Context) ([]store.Organization, error) {
	return sortedValues(d.orgs, nil), nil
}

func (d *data) GetMembership(_ context.Context, id int64) (store.Membership, error) {
	m, ok := d.memberships[id]
	if !ok {
		return store.Membership{}, store.ErrNotFound
	}
	return m, nil
}

func (d *data) ListMemberships(_ context.Context) ([]store.Membership, error) {
	return sortedValues(d.memberships, nil), nil
}

func (d *data) ListMembershipsByUser(_ context.Context, userID int64) ([]store.Membership, error) {
	return sortedValues(d.memberships, func(m store.Membership) bool { return m.UserID == userID }), nil
}

func (d *data) GetInvite(_ context.Context, id int64) (store.Invite, error) {
	invite, ok := d.invites[id]
	if !ok {
		return store.Invite{}, store.ErrNotFound
	}
	return invite, nil
}

func (d *data) GetInviteByKey(_ context.Context, key string) (store.Invite, error) {
	for _, invite := range d.invites {
		if invite.Key == key {
			return invite, nil
		}
	}
	return store.Invite{}, store.ErrNotFound
}

func (d *data) ListInvites(_ context.Context) ([]store.Invite, error) {
	return sortedValues(d.invites, nil), nil
}

func (d *data) ListInvitesByEmail(_ context.Context, email string) ([]store.Invite, error) {
	return sortedValues(d.invites, func(i store.Invite) bool { return strings.EqualFold(i.Email, email) }), nil
}

func (d *data) GetProject(_ context.Context, id int64) (store.Project, error) {
	project, ok := d.projects[id]
	if !ok {
		return store.Project{}, store.ErrNotFound
	}
	return project, nil
}

func (d *data) GetProjectByKey(_ context.Context, key string) (store.Project, error) {
	for _, project := range d.projects {
		if project.Key == key {
			return project, nil
		}
	}
	return store.Project{}, store.ErrNotFound
}

func (d *data) ListProjects(_ context.Context) ([]store.Project, error) {
	return sortedValues(d.projects, nil), nil
}

func (d *data) GetTaskColumn(_ context.Context, id int64) (store.TaskColumn, error) {
	column, ok := d.columns[id]
	if !ok {
		return store.TaskColumn{}, store.ErrNotFound
	}
	return column, nil
}

func (d *data) ListTaskColumns(_ context.Context, projectID int64) ([]store.TaskColumn, error) {
	columns := sortedValues(d.columns, func(c store.TaskColumn) bool { return c.ProjectID == projectID })
	slices.SortStableFunc(columns, func(a, b store.TaskColumn) int { return a.Order - b.Order })
	return columns, nil
}

func (d *data) GetTask(_ context.Context, id int64) (store.Task, error) {
	task, ok := d.tasks[id]
	if !ok {
		return store.Task{}, store.ErrNotFound
	}
	return d.withTaskFacts(task), nil
}

func (d *data) ListTasks(_ context.Context, projectID int64) ([]store.Task, error) {
	tasks := sortedValues(d.tasks, func(t store.Task) bool { return t.ProjectID == projectID })
	for i := range tasks {
		tasks[i] = d.withTaskFacts(tasks[i])
	}
	return tasks, nil
}

func (d *data) ListTasksByIDs(_ context.Context, ids []int64) ([]store.Task, error) {
	tasks := sortedValues(d.tasks, func(t store.Task) bool { return slices.Contains(ids, t.ID) })
	for i := range tasks {
		tasks[i] = d.withTaskFacts(tasks[i])
	}
	return tasks, nil
}

func (d *data) CountTasks(_ context.Context, projectID int64) (int, error) {
	count := 0
	for _, task := range d.tasks {
		if task.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (d *data) LastOrderInColumn(_ context.Context, columnID int64) (int, bool, error) {
	last, found := 0, false
	for _, task := range d.tasks {
		if task.TaskColumnID != columnID {
			continue
		}
		if !found || task.Order > last {
			last, found = task.Order, true
		}
	}
	return last, found, nil
}

func (d *data) GetTaskMetadata(_ context.Context, taskID int64) (store.TaskMetadata, error) {
	metadata, ok := d.metadata[taskID]
	if !ok {
		return store.TaskMetadata{}, store.ErrNotFound
	}
	task := d.withTaskFacts(d.tasks[taskID])
	metadata.OrganizationID = task.OrganizationID
	metadata.TaskCreatorID = task.CreatorID
	return metadata, nil
}

func (d *data) GetTaskHTML(_ context.Context, id int64) (store.TaskHTML, error) {
	html, ok := d.html[id]
	if !ok {
		return store.TaskHTML{}, store.ErrNotFound
	}
	return html, nil
}

func (d *data) GetTaskDataURL(_ context.Context, id int64) (store.TaskDataURL, error) {
	dataURL, ok := d.dataURLs[id]
	if !ok {
		return store.TaskDataURL{}, store.ErrNotFound
	}
	return dataURL, nil
}

func (d *data) withCommentFacts(comment store.TaskComment) store.TaskComment {
	comment.OrganizationID = d.withTaskFacts(d.tasks[comment.TaskID]).OrganizationID
	return comment
}

func (d *data) GetTaskComment(_ context.Context, id int64) (store.TaskComment, error) {
	comment, ok := d.comments[id]
	if !ok {
		return store.TaskComment{}, store.ErrNotFound
	}
	return d.withCommentFacts(comment), nil
}

func (d *data) ListTaskComments(_ context.Context, taskID int64) ([]store.TaskComment, error) {
	comments := sortedValues(d.comments, func(c store.TaskComment) bool { return c.TaskID == taskID })
	for i := range comments {
		comments[i] = d.withCommentFacts(comments[i])
	}
	return comments, nil
}
