// Package store defines the persistence contract shared by the memory and
// PostgreSQL implementations.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique or check constraint rejects a write.
	ErrConflict = errors.New("conflict")

	// ErrConcurrentUpdate is returned when a write lost a race with another
	// unit of work (serialization failure, deadlock, or a duplicate task number).
	// The whole unit of work may be retried.
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// Reader is the read side available both outside and inside a transaction.
type Reader interface {
	GetUser(ctx context.Context, id int64) (User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetProfileByUser(ctx context.Context, userID int64) (Profile, error)

	GetOrganization(ctx context.Context, id int64) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)

	GetMembership(ctx context.Context, id int64) (Membership, error)
	ListMemberships(ctx context.Context) ([]Membership, error)
	ListMembershipsByUser(ctx context.Context, userID int64) ([]Membership, error)

	GetInvite(ctx context.Context, id int64) (Invite, error)
	GetInviteByKey(ctx context.Context, key string) (Invite, error)
	ListInvites(ctx context.Context) ([]Invite, error)
	ListInvitesByEmail(ctx context.Context, email string) ([]Invite, error)

	GetProject(ctx context.Context, id int64) (Project, error)
	GetProjectByKey(ctx context.Context, key string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	GetTaskColumn(ctx context.Context, id int64) (TaskColumn, error)
	ListTaskColumns(ctx context.Context, projectID int64) ([]TaskColumn, error)

	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, projectID int64) ([]Task, error)
	ListTasksByIDs(ctx context.Context, ids []int64) ([]Task, error)
	CountTasks(ctx context.Context, projectID int64) (int, error)
	// LastOrderInColumn returns the highest order in the column and false
	// when the column is empty.
	LastOrderInColumn(ctx context.Context, columnID int64) (int, bool, error)

	GetTaskMetadata(ctx context.Context, taskID int64) (TaskMetadata, error)
	GetTaskHTML(ctx context.Context, id int64) (TaskHTML, error)
	GetTaskDataURL(ctx context.Context, id int64) (TaskDataURL, error)

	GetTaskComment(ctx context.Context, id int64) (TaskComment, error)
	ListTaskComments(ctx context.Context, taskID int64) ([]TaskComment, error)
}

// Tx is a unit of work. Every write happens through a Tx.
type Tx interface {
	Reader

	// LockProject serializes task numbering and placement for one project
	// until the transaction ends.
	LockProject(ctx context.Context, projectID int64) error

	CreateUser(ctx context.Context, user *User) error
	CreateProfile(ctx context.Context, profile *Profile) error
	UpdateProfile(ctx context.Context, profile Profile) error

	CreateOrganization(ctx context.Context, org *Organization) error
	UpdateOrganization(ctx context.Context, org Organization) error

	CreateMembership(ctx context.Context, membership *Membership) error
	DeleteMembership(ctx context.Context, id int64) error

	CreateInvite(ctx context.Context, invite *Invite) error
	// TransitionInvite moves an invite from one state to another and returns
	// ErrConcurrentUpdate when the invite is no longer in the from state.
	TransitionInvite(ctx context.Context, id int64, from, to InviteState) error

	CreateProject(ctx context.Context, project *Project) error
	UpdateProject(ctx context.Context, project Project) error
	CreateTaskColumn(ctx context.Context, column *TaskColumn) error

	CreateTask(ctx context.Context, task *Task) error
	UpdateTask(ctx context.Context, task Task) error
	UpdateTaskPlacements(ctx context.Context, placements []TaskPlacement) error
	SetTaskScreenshots(ctx context.Context, taskID int64, windowURL, elementURL string) error

	CreateTaskMetadata(ctx context.Context, metadata *TaskMetadata) error
	CreateTaskHTML(ctx context.Context, html *TaskHTML) error
	CreateTaskDataURL(ctx context.Context, dataURL *TaskDataURL) error
	// DeleteTaskHTML and DeleteTaskDataURL drop captured pages once their
	// screenshots are stored.
	DeleteTaskHTML(ctx context.Context, id int64) error
	DeleteTaskDataURL(ctx context.Context, id int64) error
	CreateTaskComment(ctx context.Context, comment *TaskComment) error
}

type Store interface {
	Reader

	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// DefaultTaskColumns are created with every project, in board order.
var DefaultTaskColumns = []string{"Raw Task", "Ready", "In Progress", "Review", "Done"}

// RawTaskColumn receives tasks submitted through the widget.
const RawTaskColumn = "Raw Task"
