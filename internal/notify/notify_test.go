package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/mention"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/store/memory"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.To] {
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.To)
	}
	return out
}

type fixture struct {
	store   *memory.Store
	users   map[string]store.User
	org     store.Organization
	project store.Project
	columns []store.TaskColumn
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), users: map[string]store.User{}}
	err := f.store.InTx(ctx, func(tx store.Tx) error {
		f.org = store.Organization{Name: "Acme"}
		if err := tx.CreateOrganization(ctx, &f.org); err != nil {
			return err
		}
		for _, name := range names {
			u := store.User{Email: name + "@example.com", FirstName: name}
			if err := tx.CreateUser(ctx, &u); err != nil {
				return err
			}
			if err := tx.CreateMembership(ctx, &store.Membership{OrganizationID: f.org.ID, UserID: u.ID, Role: store.RoleDashboard}); err != nil {
				return err
			}
			f.users[name] = u
		}
		f.project = store.Project{OrganizationID: f.org.ID, Name: "Site", Key: "k"}
		if err := tx.CreateProject(ctx, &f.project); err != nil {
			return err
		}
		for i, name := range store.DefaultTaskColumns {
			if err := tx.CreateTaskColumn(ctx, &store.TaskColumn{ProjectID: f.project.ID, Name: name, Order: i + 1}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	f.columns, err = f.store.ListTaskColumns(ctx, f.project.ID)
	require.NoError(t, err)
	return f
}

func (f *fixture) id(name string) *int64 {
	id := f.users[name].ID
	return &id
}

func (f *fixture) tag(name string) string {
	return mention.Token(f.users[name].ID, name)
}

func (f *fixture) task(t *testing.T, task store.Task, comments ...store.TaskComment) store.Task {
	t.Helper()
	ctx := context.Background()
	task.ProjectID = f.project.ID
	task.TaskColumnID = f.columns[0].ID
	err := f.store.InTx(ctx, func(tx store.Tx) error {
		count, err := tx.CountTasks(ctx, f.project.ID)
		if err != nil {
			return err
		}
		task.TaskNumber = count + 1
		task.Order = count + 1
		if err := tx.CreateTask(ctx, &task); err != nil {
			return err
		}
		for i := range comments {
			comments[i].TaskID = task.ID
			if err := tx.CreateTaskComment(ctx, &comments[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return task
}

func TestParticipants(t *testing.T) {
	creator, assignee := int64(1), int64(2)
	task := store.Task{
		CreatorID:    &creator,
		AssignedToID: &assignee,
		Title:        "see " + mention.Token(5, "e"),
		Description:  "cc " + mention.Token(6, "f"),
	}
	comments := []store.TaskComment{
		{CreatorID: 3, Text: "ping " + mention.Token(4, "d")},
		{CreatorID: 1, Text: "ok"},
	}

	var ids []int64
	for _, c := range Participants(task, comments) {
		require.Equal(t, ReasonParticipant, c.Reason)
		ids = append(ids, c.UserID)
	}
	require.Equal(t, []int64{1, 2, 3, 4, 1, 5, 6}, ids)

	require.Empty(t, Participants(store.Task{}, nil))
}

func TestFanout_TaskCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("assignee first then title mentions", func(t *testing.T) {
		f := newFixture(t, "olive", "bob", "carol")
		task := f.task(t, store.Task{
			CreatorID:    f.id("olive"),
			AssignedToID: f.id("bob"),
			Title:        "fix " + f.tag("bob") + " " + f.tag("carol") + " " + f.tag("olive"),
		})
		sender := &recordingSender{}
		res, err := New(f.store, sender, "https://app.example.com/", nil).TaskCreated(ctx, task.ID)
		require.NoError(t, err)

		require.Equal(t, []string{"bob@example.com", "carol@example.com"}, sender.recipients())
		require.Equal(t, 2, res.Sent)
		require.Equal(t, "olive has assigned you a task.", sender.sent[0].Subject)
		require.Equal(t, TemplateTaskAssigned, sender.sent[0].Template)
		require.Equal(t, "olive has mentioned you on a task.", sender.sent[1].Subject)
		require.Equal(t, "bob", sender.sent[0].ToName)
		require.Contains(t, sender.sent[0].Data.TaskURL, "https://app.example.com/projects/")
	})

	t.Run("widget task uses the visitor email", func(t *testing.T) {
		f := newFixture(t, "bob")
		task := f.task(t, store.Task{OneOffEmailSetBy: "visitor@example.com", AssignedToID: f.id("bob")})
		sender := &recordingSender{}
		_, err := New(f.store, sender, "https://app", nil).TaskCreated(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		require.Equal(t, "visitor@example.com has assigned you a task.", sender.sent[0].Subject)
	})

	t.Run("widget task with a visitor name", func(t *testing.T) {
		f := newFixture(t, "bob")
		task := f.task(t, store.Task{OneOffEmailSetBy: "Jane Doe", AssignedToID: f.id("bob")})
		sender := &recordingSender{}
		res, err := New(f.store, sender, "https://app", nil).TaskCreated(ctx, task.ID)
		require.NoError(t, err)
		require.Equal(t, 1, res.Sent)
		require.Equal(t, "Jane Doe has assigned you a task.", sender.sent[0].Subject)
	})

	t.Run("visitor email is never notified", func(t *testing.T) {
		f := newFixture(t, "bob")
		task := f.task(t, store.Task{OneOffEmailSetBy: "Bob <bob@example.com>", AssignedToID: f.id("bob")})
		sender := &recordingSender{}
		res, err := New(f.store, sender, "https://app", nil).TaskCreated(ctx, task.ID)
		require.NoError(t, err)
		require.Empty(t, sender.sent)
		require.Equal(t, 1, res.Skipped)
	})

	t.Run("self assignment is silent", func(t *testing.T) {
		f := newFixture(t, "olive")
		task := f.task(t, store.Task{CreatorID: f.id("olive"), AssignedToID: f.id("olive")})
		sender := &recordingSender{}
		res, err := New(f.store, sender, "https://app", nil).TaskCreated(ctx, task.ID)
		require.NoError(t, err)
		require.Empty(t, sender.sent)
		require.Equal(t, 1, res.Skipped)
	})

	t.Run("missing task is an error", func(t *testing.T) {
		f := newFixture(t)
		_, err := New(f.store, &recordingSender{}, "https://app", nil).TaskCreated(ctx, 999)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestFanout_CommentCreated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "olive", "bob", "carol", "dan")
	task := f.task(t, store.Task{CreatorID: f.id("olive"), AssignedToID: f.id("bob")},
		store.TaskComment{CreatorID: f.users["dan"].ID, Text: "first"},
		store.TaskComment{CreatorID: f.users["carol"].ID, Text: "hey " + f.tag("bob") + " and " + f.tag("carol")},
	)
	comments, err := f.store.ListTaskComments(ctx, task.ID)
	require.NoError(t, err)
	latest := comments[len(comments)-1]

	sender := &recordingSender{}
	res, err := New(f.store, sender, "https://app", nil).CommentCreated(ctx, latest.ID)
	require.NoError(t, err)

	require.Equal(t, []string{"bob@example.com", "olive@example.com", "dan@example.com"}, sender.recipients())
	require.Equal(t, TemplateCommentMention, sender.sent[0].Template)
	require.Equal(t, "carol has mentioned you on a task.", sender.sent[0].Subject)
	require.Equal(t, "carol has commented on a task you are participating on.", sender.sent[1].Subject)
	require.Equal(t, 3, res.Sent)
}

func TestFanout_ColumnChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "olive", "bob", "carol")
	task := f.task(t, store.Task{CreatorID: f.id("olive"), AssignedToID: f.id("bob")},
		store.TaskComment{CreatorID: f.users["carol"].ID, Text: "looks off"},
	)

	sender := &recordingSender{}
	_, err := New(f.store, sender, "https://app", nil).
		ColumnChanged(ctx, task.ID, f.columns[0].ID, f.columns[2].ID, f.users["bob"].ID)
	require.NoError(t, err)

	require.Equal(t, []string{"olive@example.com", "carol@example.com"}, sender.recipients())
	require.Equal(t, "bob has moved task # 1 from `Raw Task` to `In Progress`.", sender.sent[0].Subject)
	require.Equal(t, "In Progress", sender.sent[0].Data.NewColumnName)
}

func TestFanout_AssigneeChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "olive", "bob")
	task := f.task(t, store.Task{CreatorID: f.id("olive")})

	sender := &recordingSender{}
	fan := New(f.store, sender, "https://app", nil)

	_, err := fan.AssigneeChanged(ctx, task.ID, f.users["bob"].ID, f.id("olive"))
	require.NoError(t, err)
	require.Equal(t, []string{"bob@example.com"}, sender.recipients())
	require.Equal(t, "You have been assigned a task!", sender.sent[0].Subject)

	res, err := fan.AssigneeChanged(ctx, task.ID, f.users["bob"].ID, f.id("bob"))
	require.NoError(t, err)
	require.Equal(t, 0, res.Sent)
	require.Len(t, sender.sent, 1)
}

func TestFanout_Invites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "olive")
	invite := store.Invite{OrganizationID: f.org.ID, InviterID: f.users["olive"].ID, Email: "New@Example.com", Key: "abc"}
	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error { return tx.CreateInvite(ctx, &invite) }))

	sender := &recordingSender{}
	fan := New(f.store, sender, "https://app", nil)

	_, err := fan.InviteCreated(ctx, invite.ID, nil)
	require.NoError(t, err)
	_, err = fan.InviteCanceled(ctx, invite.ID, f.id("olive"))
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	require.Equal(t, "New@Example.com", sender.sent[0].To)
	require.Equal(t, "You have been invited to join Acme organization on Collab Sauce!", sender.sent[0].Subject)
	require.Equal(t, "https://app/invites/accept?key=abc&email=New%40Example.com", sender.sent[0].Data.InviteURL)
	require.Equal(t, "olive", sender.sent[0].Data.ActorName)
	require.Equal(t, "Your invitation to join Acme organization has been canceled", sender.sent[1].Subject)
	require.Equal(t, TemplateInviteCanceled, sender.sent[1].Template)
}

func TestFanout_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("failure does not stop the rest and is not retried", func(t *testing.T) {
		f := newFixture(t, "olive", "bob", "carol")
		sender := &recordingSender{fail: map[string]bool{"bob@example.com": true}}
		plan := Plan{
			ActorID: f.users["olive"].ID,
			Direct: []Candidate{
				{UserID: f.users["bob"].ID, Reason: ReasonMentioned},
				{UserID: f.users["carol"].ID, Reason: ReasonMentioned},
			},
			Participants: []Candidate{
				{UserID: f.users["bob"].ID, Reason: ReasonParticipant},
				{UserID: f.users["olive"].ID, Reason: ReasonParticipant},
			},
		}
		res := New(f.store, sender, "https://app", nil).Deliver(ctx, plan, func(Recipient) Message { return Message{} })
		require.Equal(t, Result{Sent: 1, Failed: 1, Skipped: 2}, res)
		require.Equal(t, []string{"carol@example.com"}, sender.recipients())
	})

	t.Run("unknown users are counted as failures", func(t *testing.T) {
		f := newFixture(t)
		sender := &recordingSender{}
		plan := Plan{Direct: []Candidate{{UserID: 404, Reason: ReasonMentioned}, {UserID: 404, Reason: ReasonParticipant}}}
		res := New(f.store, sender, "https://app", nil).Deliver(ctx, plan, func(Recipient) Message { return Message{} })
		require.Equal(t, Result{Failed: 1, Skipped: 1}, res)
	})

	t.Run("email matches are case insensitive", func(t *testing.T) {
		f := newFixture(t, "bob")
		sender := &recordingSender{}
		plan := Plan{
			ActorEmail: "BOB@example.com",
			Direct:     []Candidate{{UserID: f.users["bob"].ID, Reason: ReasonAssigned}, {Email: "x@example.com"}, {Email: "X@EXAMPLE.com"}},
		}
		res := New(f.store, sender, "https://app", nil).Deliver(ctx, plan, func(Recipient) Message { return Message{} })
		require.Equal(t, []string{"x@example.com"}, sender.recipients())
		require.Equal(t, 2, res.Skipped)
	})
}
