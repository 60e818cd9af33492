package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/store"
)

func (e *testEnv) inviteKey(t *testing.T, id int64) string {
	t.Helper()
	invite, err := e.store.GetInvite(context.Background(), id)
	require.NoError(t, err)
	return invite.Key
}

func TestInviteAcceptCreatesDashboardMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	invitee := env.session(t, env.addUser(t, "newbie", 0, "").ID)
	stranger := env.session(t, env.addUser(t, "stranger", 0, "").ID)

	invite, err := env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "NEWBIE@example.com"})
	require.NoError(t, err)
	require.Equal(t, store.InviteCreated, invite.State)
	require.Equal(t, []jobs.Kind{jobs.KindInviteCreated}, env.pendingKinds())

	_, err = env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "newbie@example.com"})
	requireValidation(t, err, msgAlreadyInvited)

	key := env.inviteKey(t, invite.ID)

	_, err = env.svc.AcceptInvite(ctx, nil, AcceptInviteInput{Key: key, Email: "newbie@example.com"})
	requireValidation(t, err, msgLoginToAccept)

	_, err = env.svc.AcceptInvite(ctx, &stranger, AcceptInviteInput{Key: key})
	requireValidation(t, err, msgInviteNotYours)

	membership, err := env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: key, Email: "newbie@example.com"})
	require.NoError(t, err)
	require.Equal(t, acme.org.ID, membership.OrganizationID)
	require.Equal(t, store.RoleDashboard, membership.Role)

	_, err = env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: key})
	requireValidation(t, err, msgCannotAccept)

	_, err = env.svc.CancelInvite(ctx, acme.admin, invite.ID)
	requireValidation(t, err, msgCannotCancel)

	memberships, err := env.store.ListMembershipsByUser(ctx, invitee.User.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
}

func TestInviteTerminalStatesRejectTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	invitee := env.session(t, env.addUser(t, "newbie", 0, "").ID)

	denied, err := env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "newbie@example.com"})
	require.NoError(t, err)

	_, err = env.svc.DenyInvite(ctx, acme.member, denied.ID)
	requireValidation(t, err, msgInviteNotYours)

	out, err := env.svc.DenyInvite(ctx, invitee, denied.ID)
	require.NoError(t, err)
	require.Equal(t, store.InviteDenied, out.State)

	_, err = env.svc.DenyInvite(ctx, invitee, denied.ID)
	requireValidation(t, err, msgCannotDeny)
	_, err = env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: env.inviteKey(t, denied.ID)})
	requireValidation(t, err, msgCannotAccept)

	// A denied invite no longer blocks a new one.
	canceled, err := env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "newbie@example.com"})
	require.NoError(t, err)

	_, err = env.svc.CancelInvite(ctx, acme.member, canceled.ID)
	requireValidation(t, err, msgAdminToCancel)

	before := len(env.queue.Pending())
	out, err = env.svc.CancelInvite(ctx, acme.admin, canceled.ID)
	require.NoError(t, err)
	require.Equal(t, store.InviteCanceled, out.State)
	pending := env.queue.Pending()
	require.Len(t, pending, before+1)
	require.Equal(t, jobs.KindInviteCanceled, pending[len(pending)-1].Kind)

	_, err = env.svc.DenyInvite(ctx, invitee, canceled.ID)
	requireValidation(t, err, msgCannotDeny)
	_, err = env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: env.inviteKey(t, canceled.ID)})
	requireValidation(t, err, msgCannotAccept)
}

func TestInviteRequiresAdminUntilPromoted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")

	_, err := env.svc.CreateInvite(ctx, acme.member, InviteInput{OrganizationID: acme.org.ID, Email: "friend@example.com"})
	requireValidation(t, err, msgAdminToInvite)
	require.Empty(t, env.queue.Pending())

	err = env.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.DeleteMembership(ctx, acme.member.Memberships[0].ID); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, &store.Membership{OrganizationID: acme.org.ID, UserID: acme.member.User.ID, Role: store.RoleAdmin})
	})
	require.NoError(t, err)
	promoted := env.session(t, acme.member.User.ID)

	invite, err := env.svc.CreateInvite(ctx, promoted, InviteInput{OrganizationID: acme.org.ID, Email: "friend@example.com"})
	require.NoError(t, err)
	require.Equal(t, promoted.User.ID, invite.InviterID)
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")

	_, err := env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "not-an-email"})
	requireValidation(t, err, msgInvalidEmail)

	_, err = env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: globex.org.ID, Email: "x@example.com"})
	requireValidation(t, err, msgAdminToInvite)

	invitee := env.session(t, env.addUser(t, "newbie", 0, "").ID)
	_, err = env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: "missing"})
	requireValidation(t, err, msgCannotAccept)

	_, err = env.svc.CreateInvite(ctx, acme.admin, InviteInput{OrganizationID: acme.org.ID, Email: "newbie@example.com"})
	require.NoError(t, err)
	_, err = env.svc.AcceptInvite(ctx, &invitee, AcceptInviteInput{Key: "stale"})
	requireValidation(t, err, msgInviteInvalid)

	invites, err := env.svc.ListInvites(ctx, globex.member)
	require.NoError(t, err)
	require.Empty(t, invites)
	invites, err = env.svc.ListInvites(ctx, acme.member)
	require.NoError(t, err)
	require.Len(t, invites, 1)
}
