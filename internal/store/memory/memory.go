// Package memory is an in-process implementation of store.Store for
// development and tests. Transactions are fully serialized and work on a
// copy of the data that replaces the committed state on success.
package memory

import (
	"context"
	"sync"

	"collabsauce/api/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu   sync.RWMutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(&tx{data: working}); err != nil {
		return err
	}
	s.data = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func (s *Store) read() (*data, func()) {
	s.mu.RLock()
	return s.data, s.mu.RUnlock
}

func (s *Store) GetUser(ctx context.Context, id int64) (store.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	d, done := s.read()
	defer done()
	return d.ListUsers(ctx)
}

func (s *Store) GetProfileByUser(ctx context.Context, userID int64) (store.Profile, error) {
	d, done := s.read()
	defer done()
	return d.GetProfileByUser(ctx, userID)
}

func (s *Store) GetOrganization(ctx context.Context, id int64) (store.Organization, error) {
	d, done := s.read()
	defer done()
	return d.GetOrganization(ctx, id)
}

func (s *Store) ListOrganizations(ctx context.Context) ([]store.Organization, error) {
	d, done := s.read()
	defer done()
	return d.ListOrganizations(ctx)
}

func (s *Store) GetMembership(ctx context.Context, id int64) (store.Membership, error) {
	d, done := s.read()
	defer done()
	return d.GetMembership(ctx, id)
}

func (s *Store) ListMemberships(ctx context.Context) ([]store.Membership, error) {
	d, done := s.read()
	defer done()
	return d.ListMemberships(ctx)
}

func (s *Store) ListMembershipsByUser(ctx context.Context, userID int64) ([]store.Membership, error) {
	d, done := s.read()
	defer done()
	return d.ListMembershipsByUser(ctx, userID)
}

func (s *Store) GetInvite(ctx context.Context, id int64) (store.Invite, error) {
	d, done := s.read()
	defer done()
	return d.GetInvite(ctx, id)
}

func (s *Store) GetInviteByKey(ctx context.Context, key string) (store.Invite, error) {
	d, done := s.read()
	defer done()
	return d.GetInviteByKey(ctx, key)
}

func (s *Store) ListInvites(ctx context.Context) ([]store.Invite, error) {
	d, done := s.read()
	defer done()
	return d.ListInvites(ctx)
}

func (s *Store) ListInvitesByEmail(ctx context.Context, email string) ([]store.Invite, error) {
	d, done := s.read()
	defer done()
	return d.ListInvitesByEmail(ctx, email)
}

func (s *Store) GetProject(ctx context.Context, id int64) (store.Project, error) {
	d, done := s.read()
	defer done()
	return d.GetProject(ctx, id)
}

func (s *Store) GetProjectByKey(ctx context.Context, key string) (store.Project, error) {
	d, done := s.read()
	defer done()
	return d.GetProjectByKey(ctx, key)
}

func (s *Store) ListProjects(ctx context.Context) ([]store.Project, error) {
	d, done := s.read()
	defer done()
	return d.ListProjects(ctx)
}

func (s *Store) GetTaskColumn(ctx context.Context, id int64) (store.TaskColumn, error) {
	d, done := s.read()
	defer done()
	return d.GetTaskColumn(ctx, id)
}

func (s *Store) ListTaskColumns(ctx context.Context, projectID int64) ([]store.TaskColumn, error) {
	d, done := s.read()
	defer done()
	return d.ListTaskColumns(ctx, projectID)
}

func (s *Store) GetTask(ctx context.Context, id int64) (store.Task, error) {
	d, done := s.read()
	defer done()
	return d.GetTask(ctx, id)
}

func (s *Store) ListTasks(ctx context.Context, projectID int64) ([]store.Task, error) {
	d, done := s.read()
	defer done()
	return d.ListTasks(ctx, projectID)
}

func (s *Store) ListTasksByIDs(ctx context.Context, ids []int64) ([]store.Task, error) {
	d, done := s.read()
	defer done()
	return d.ListTasksByIDs(ctx, ids)
}

func (s *Store) CountTasks(ctx context.Context, projectID int64) (int, error) {
	d, done := s.read()
	defer done()
	return d.CountTasks(ctx, projectID)
}

func (s *Store) LastOrderInColumn(ctx context.Context, columnID int64) (int, bool, error) {
	d, done := s.read()
	defer done()
	return d.LastOrderInColumn(ctx, columnID)
}

func (s *Store) GetTaskMetadata(ctx context.Context, taskID int64) (store.TaskMetadata, error) {
	d, done := s.read()
	defer done()
	return d.GetTaskMetadata(ctx, taskID)
}

func (s *Store) GetTaskHTML(ctx context.Context, id int64) (store.TaskHTML, error) {
	d, done := s.read()
	defer done()
	return d.GetTaskHTML(ctx, id)
}

func (s *Store) GetTaskDataURL(ctx context.Context, id int64) (store.TaskDataURL, error) {
	d, done := s.read()
	defer done()
	return d.GetTaskDataURL(ctx, id)
}

func (s *Store) GetTaskComment(ctx context.Context, id int64) (store.TaskComment, error) {
	d, done := s.read()
	defer done()
	return d.GetTaskComment(ctx, id)
}

func (s *Store) ListTaskComments(ctx context.Context, taskID int64) ([]store.TaskComment, error) {
	d, done := s.read()
	defer done()
	return d.ListTaskComments(ctx, taskID)
}
