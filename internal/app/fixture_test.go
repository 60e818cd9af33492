package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/config"
	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/objectstore"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/store/memory"
)

type testEnv struct {
	svc     *Service
	store   store.Store
	queue   *jobs.MemoryQueue
	objects *objectstore.Memory
}

func testConfig() config.Config {
	return config.Config{
		AppBaseURL:      "https://app.example.com",
		CORSOrigin:      []string{"*"},
		JWTSecret:       "test-secret",
		AccessTTL:       time.Hour,
		WidgetRateLimit: 1,
		WidgetBurst:     2,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, memory.New())
}

func newTestEnvWithStore(t *testing.T, s store.Store) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   s,
		queue:   jobs.NewMemoryQueue("test"),
		objects: objectstore.NewMemory("https://cdn.example.com"),
	}
	svc, err := New(testConfig(), Deps{Store: s, Queue: env.queue, Objects: env.objects})
	require.NoError(t, err)
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	env.svc = svc
	return env
}

// addUser creates a user with a profile and, when orgID is non-zero, a
// membership with role.
func (e *testEnv) addUser(t *testing.T, name string, orgID int64, role store.Role) store.User {
	t.Helper()
	ctx := context.Background()
	user := store.User{Email: name + "@example.com", FirstName: name}
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, &user); err != nil {
			return err
		}
		if err := tx.CreateProfile(ctx, &store.Profile{UserID: user.ID}); err != nil {
			return err
		}
		if orgID == 0 {
			return nil
		}
		return tx.CreateMembership(ctx, &store.Membership{OrganizationID: orgID, UserID: user.ID, Role: role})
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) addOrg(t *testing.T, name string) store.Organization {
	t.Helper()
	ctx := context.Background()
	org := store.Organization{Name: name}
	require.NoError(t, e.store.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateOrganization(ctx, &org)
	}))
	return org
}

func (e *testEnv) session(t *testing.T, userID int64) Session {
	t.Helper()
	sess, err := e.svc.sessionFor(context.Background(), userID)
	require.NoError(t, err)
	return sess
}

// team is an organization with an admin, a dashboard member and a project.
type team struct {
	org     store.Organization
	admin   Session
	member  Session
	project ProjectView
	columns []TaskColumnView
}

func (e *testEnv) newTeam(t *testing.T, name string) team {
	t.Helper()
	ctx := context.Background()
	org := e.addOrg(t, name)
	admin := e.addUser(t, name+"-admin", org.ID, store.RoleAdmin)
	member := e.addUser(t, name+"-member", org.ID, store.RoleDashboard)
	tm := team{org: org, admin: e.session(t, admin.ID), member: e.session(t, member.ID)}

	project, err := e.svc.CreateProject(ctx, tm.admin, ProjectInput{OrganizationID: org.ID, Name: name + " site", URL: "https://" + name + ".test"})
	require.NoError(t, err)
	tm.project = project
	tm.columns, err = e.svc.ListTaskColumns(ctx, tm.admin, project.ID)
	require.NoError(t, err)
	return tm
}

func (tm team) column(t *testing.T, name string) TaskColumnView {
	t.Helper()
	for _, c := range tm.columns {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no column %q", name)
	return TaskColumnView{}
}

func (e *testEnv) pendingKinds() []jobs.Kind {
	var kinds []jobs.Kind
	for _, j := range e.queue.Pending() {
		kinds = append(kinds, j.Kind)
	}
	return kinds
}

func requireDomainError(t *testing.T, err error, status int, message string) {
	t.Helper()
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	require.Equal(t, status, domainErr.Status)
	if message != "" {
		require.Equal(t, message, domainErr.Message)
	}
}

func requireValidation(t *testing.T, err error, message string) {
	t.Helper()
	requireDomainError(t, err, http.StatusBadRequest, message)
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	requireDomainError(t, err, http.StatusNotFound, "")
}
