package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/authpw"
	"collabsauce/api/internal/store"
)

func signUpRequest(email string) authpw.SignUpRequest {
	return authpw.SignUpRequest{Email: email, Password: "correct horse", FirstName: "Zoe"}
}

func TestCreateOrganizationMakesCreatorAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.addUser(t, "founder", 0, "")
	sess := env.session(t, user.ID)

	org, err := env.svc.CreateOrganization(ctx, sess, "  Acme  ")
	require.NoError(t, err)
	require.Equal(t, "Acme", org.Name)

	sess = env.session(t, user.ID)
	require.True(t, sess.Actor.Admin(org.ID))

	_, err = env.svc.CreateOrganization(ctx, sess, "Second")
	requireValidation(t, err, msgAlreadyInOrg)

	_, err = env.svc.CreateOrganization(ctx, env.session(t, env.addUser(t, "other", 0, "").ID), " ")
	requireValidation(t, err, msgNameRequired)
}

func TestOrganizationVisibilityAndRename(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")

	orgs, err := env.svc.ListOrganizations(ctx, acme.member)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	require.Equal(t, acme.org.ID, orgs[0].ID)

	_, err = env.svc.GetOrganization(ctx, acme.member, globex.org.ID)
	requireNotFound(t, err)

	_, err = env.svc.RenameOrganization(ctx, acme.member, acme.org.ID, "Acme Inc")
	requireValidation(t, err, msgAdminToRenameOrg)

	renamed, err := env.svc.RenameOrganization(ctx, acme.admin, acme.org.ID, "Acme Inc")
	require.NoError(t, err)
	require.Equal(t, "Acme Inc", renamed.Name)

	_, err = env.svc.RenameOrganization(ctx, acme.admin, globex.org.ID, "Mine")
	requireNotFound(t, err)
}

func TestDeleteMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")

	memberships, err := env.svc.ListMemberships(ctx, acme.admin)
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	var adminMembership, memberMembership int64
	for _, m := range memberships {
		switch m.UserID {
		case acme.admin.User.ID:
			adminMembership = m.ID
		case acme.member.User.ID:
			memberMembership = m.ID
		}
	}

	err = env.svc.DeleteMembership(ctx, acme.admin, adminMembership)
	requireValidation(t, err, msgRemoveSelf)

	err = env.svc.DeleteMembership(ctx, acme.member, adminMembership)
	requireValidation(t, err, msgAdminToRemove)

	err = env.svc.DeleteMembership(ctx, globex.admin, memberMembership)
	requireNotFound(t, err)

	require.NoError(t, env.svc.DeleteMembership(ctx, acme.admin, memberMembership))
	memberships, err = env.svc.ListMemberships(ctx, acme.admin)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
}

func TestUsersAndProfiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	loner := env.session(t, env.addUser(t, "loner", 0, store.RoleWidget).ID)

	users, err := env.svc.ListUsers(ctx, acme.member)
	require.NoError(t, err)
	require.Len(t, users, 2)

	users, err = env.svc.ListUsers(ctx, loner)
	require.NoError(t, err)
	require.Len(t, users, 1, "a user without organizations only sees themselves")

	me, err := env.svc.Me(ctx, acme.member)
	require.NoError(t, err)
	require.Equal(t, []int64{acme.org.ID}, me.OrganizationIDs)

	_, err = env.svc.GetUser(ctx, acme.member, globex.admin.User.ID)
	requireNotFound(t, err)

	profile, err := env.svc.UpdateMyProfile(ctx, acme.member, ProfileInput{JobTitle: " Designer "})
	require.NoError(t, err)
	require.Equal(t, "Designer", profile.JobTitle)

	profile, err = env.svc.MyProfile(ctx, acme.member)
	require.NoError(t, err)
	require.Equal(t, "Designer", profile.JobTitle)
}
