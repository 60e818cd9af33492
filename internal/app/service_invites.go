package app

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/rbac"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/util"
	"collabsauce/api/internal/workflow"
)

const inviteKeyLength = 32

func (s *Service) ListInvites(ctx context.Context, sess Session) ([]InviteView, error) {
	invites, err := s.store.ListInvites(ctx)
	if err != nil {
		return nil, err
	}
	invites = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Invite, permissions.Direct, invites, inviteScope)
	return mapViews(invites, inviteView), nil
}

type InviteInput struct {
	OrganizationID int64  `json:"organization"`
	Email          string `json:"email"`
}

// CreateInvite invites an email address into an organization the caller
// administers. Only one pending invite may exist per organization and email.
func (s *Service) CreateInvite(ctx context.Context, sess Session, in InviteInput) (InviteView, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return InviteView{}, validationError(msgInvalidEmail)
	}
	if !s.can(sess, in.OrganizationID, rbac.ActionInvite) {
		return InviteView{}, validationError(msgAdminToInvite)
	}

	var invite store.Invite
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		if _, err := lookup(tx.GetOrganization(ctx, in.OrganizationID)); err != nil {
			return nil, err
		}
		invite = store.Invite{
			OrganizationID: in.OrganizationID,
			InviterID:      sess.User.ID,
			Email:          email,
			State:          store.InviteCreated,
			Key:            util.RandomKey(inviteKeyLength),
		}
		err := tx.CreateInvite(ctx, &invite)
		if errors.Is(err, store.ErrConflict) {
			return nil, validationError(msgAlreadyInvited)
		}
		if err != nil {
			return nil, err
		}
		return workflow.InviteJobs(jobs.KindInviteCreated, invite, sess.User.ID)
	})
	if err != nil {
		return InviteView{}, err
	}
	return inviteView(invite), nil
}

type AcceptInviteInput struct {
	Key   string `json:"key"`
	Email string `json:"email"`
}

// AcceptInvite turns a pending invite addressed to the caller into a
// dashboard membership. sess is nil for anonymous callers.
func (s *Service) AcceptInvite(ctx context.Context, sess *Session, in AcceptInviteInput) (MembershipView, error) {
	if sess == nil {
		return MembershipView{}, validationError(msgLoginToAccept)
	}
	if in.Email != "" && !strings.EqualFold(strings.TrimSpace(in.Email), sess.User.Email) {
		return MembershipView{}, validationError(msgInviteNotYours)
	}

	invite, err := s.store.GetInviteByKey(ctx, strings.TrimSpace(in.Key))
	if errors.Is(err, store.ErrNotFound) {
		return MembershipView{}, s.staleInviteError(ctx, sess.User.Email)
	}
	if err != nil {
		return MembershipView{}, err
	}
	if !strings.EqualFold(invite.Email, sess.User.Email) {
		return MembershipView{}, validationError(msgInviteNotYours)
	}

	var membership store.Membership
	err = s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		current, err := lookup(tx.GetInvite(ctx, invite.ID))
		if err != nil {
			return nil, err
		}
		if current.State != store.InviteCreated {
			return nil, validationError(msgCannotAccept)
		}
		if err := tx.TransitionInvite(ctx, current.ID, store.InviteCreated, store.InviteAccepted); err != nil {
			return nil, err
		}
		membership = store.Membership{
			OrganizationID: current.OrganizationID,
			UserID:         sess.User.ID,
			Role:           store.RoleDashboard,
		}
		err = tx.CreateMembership(ctx, &membership)
		if errors.Is(err, store.ErrConflict) {
			return nil, validationError(msgAlreadyMember)
		}
		return nil, err
	})
	if err != nil {
		return MembershipView{}, err
	}
	return membershipView(membership), nil
}

// staleInviteError explains an unknown invite key. A caller who still has a
// pending invite was sent a newer one.
func (s *Service) staleInviteError(ctx context.Context, email string) error {
	invites, err := s.store.ListInvitesByEmail(ctx, email)
	if err != nil {
		return err
	}
	for _, invite := range invites {
		if invite.State == store.InviteCreated {
			return validationError(msgInviteInvalid)
		}
	}
	return validationError(msgCannotAccept)
}

// DenyInvite lets the invitee decline a pending invite.
func (s *Service) DenyInvite(ctx context.Context, sess Session, id int64) (InviteView, error) {
	var invite store.Invite
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		invite, err = lookup(tx.GetInvite(ctx, id))
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(invite.Email, sess.User.Email) {
			return nil, validationError(msgInviteNotYours)
		}
		if invite.State != store.InviteCreated {
			return nil, validationError(msgCannotDeny)
		}
		if err := tx.TransitionInvite(ctx, invite.ID, store.InviteCreated, store.InviteDenied); err != nil {
			return nil, err
		}
		invite.State = store.InviteDenied
		return nil, nil
	})
	if err != nil {
		return InviteView{}, err
	}
	return inviteView(invite), nil
}

// CancelInvite lets an organization admin withdraw a pending invite. The
// invitee is notified.
func (s *Service) CancelInvite(ctx context.Context, sess Session, id int64) (InviteView, error) {
	var invite store.Invite
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		invite, err = lookup(tx.GetInvite(ctx, id))
		if err != nil {
			return nil, err
		}
		if err := requireVisible(s, sess, permissions.Invite, invite, inviteScope); err != nil {
			return nil, err
		}
		if invite.State != store.InviteCreated {
			return nil, validationError(msgCannotCancel)
		}
		if !s.can(sess, invite.OrganizationID, rbac.ActionInvite) {
			return nil, validationError(msgAdminToCancel)
		}
		if err := tx.TransitionInvite(ctx, invite.ID, store.InviteCreated, store.InviteCanceled); err != nil {
			return nil, err
		}
		invite.State = store.InviteCanceled
		return workflow.InviteJobs(jobs.KindInviteCanceled, invite, sess.User.ID)
	})
	if err != nil {
		return InviteView{}, err
	}
	return inviteView(invite), nil
}
