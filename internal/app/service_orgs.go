package app

import (
	"context"
	"errors"
	"strings"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/rbac"
	"collabsauce/api/internal/store"
)

// can reports whether the caller's role in the organization allows action.
// Superusers may do anything.
func (s *Service) can(sess Session, organizationID int64, action rbac.Action) bool {
	return sess.Actor.Superuser || rbac.CanIn(sess.Memberships, organizationID, action)
}

func (s *Service) ListOrganizations(ctx context.Context, sess Session) ([]OrganizationView, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	orgs = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Organization, permissions.Direct, orgs, organizationScope)
	return mapViews(orgs, organizationView), nil
}

func (s *Service) GetOrganization(ctx context.Context, sess Session, id int64) (OrganizationView, error) {
	org, err := lookup(s.store.GetOrganization(ctx, id))
	if err != nil {
		return OrganizationView{}, err
	}
	if err := requireVisible(s, sess, permissions.Organization, org, organizationScope); err != nil {
		return OrganizationView{}, err
	}
	return organizationView(org), nil
}

// CreateOrganization creates an organization with the caller as its admin. A
// user belongs to at most one organization they created or joined.
func (s *Service) CreateOrganization(ctx context.Context, sess Session, name string) (OrganizationView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return OrganizationView{}, validationError(msgNameRequired)
	}
	var org store.Organization
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		existing, err := tx.ListMembershipsByUser(ctx, sess.User.ID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, validationError(msgAlreadyInOrg)
		}
		org = store.Organization{Name: name}
		if err := tx.CreateOrganization(ctx, &org); err != nil {
			return nil, err
		}
		return nil, tx.CreateMembership(ctx, &store.Membership{
			OrganizationID: org.ID,
			UserID:         sess.User.ID,
			Role:           store.RoleAdmin,
		})
	})
	if err != nil {
		return OrganizationView{}, err
	}
	return organizationView(org), nil
}

func (s *Service) RenameOrganization(ctx context.Context, sess Session, id int64, name string) (OrganizationView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return OrganizationView{}, validationError(msgNameRequired)
	}
	var org store.Organization
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		org, err = lookup(tx.GetOrganization(ctx, id))
		if err != nil {
			return nil, err
		}
		if err := requireVisible(s, sess, permissions.Organization, org, organizationScope); err != nil {
			return nil, err
		}
		if !s.can(sess, org.ID, rbac.ActionRenameOrg) {
			return nil, validationError(msgAdminToRenameOrg)
		}
		org.Name = name
		return nil, tx.UpdateOrganization(ctx, org)
	})
	if err != nil {
		return OrganizationView{}, err
	}
	return organizationView(org), nil
}

func (s *Service) ListMemberships(ctx context.Context, sess Session) ([]MembershipView, error) {
	memberships, err := s.store.ListMemberships(ctx)
	if err != nil {
		return nil, err
	}
	memberships = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Membership, permissions.Direct, memberships, membershipScope)
	return mapViews(memberships, membershipView), nil
}

// DeleteMembership removes another user from an organization the caller
// administers.
func (s *Service) DeleteMembership(ctx context.Context, sess Session, id int64) error {
	return s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		m, err := lookup(tx.GetMembership(ctx, id))
		if err != nil {
			return nil, err
		}
		if !s.allows(sess, permissions.Delete, permissions.Membership, membershipScope(m)) {
			return nil, notFoundError()
		}
		if m.UserID == sess.User.ID {
			return nil, validationError(msgRemoveSelf)
		}
		if !s.can(sess, m.OrganizationID, rbac.ActionManageMembers) {
			return nil, validationError(msgAdminToRemove)
		}
		return nil, tx.DeleteMembership(ctx, m.ID)
	})
}

func (s *Service) ListUsers(ctx context.Context, sess Session) ([]UserView, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.User, permissions.Direct, users, userScope)
	return mapViews(users, userView), nil
}

func (s *Service) GetUser(ctx context.Context, sess Session, id int64) (UserView, error) {
	user, err := lookup(s.store.GetUser(ctx, id))
	if err != nil {
		return UserView{}, err
	}
	if err := requireVisible(s, sess, permissions.User, user, userScope); err != nil {
		return UserView{}, err
	}
	return userView(user), nil
}

func (s *Service) Me(ctx context.Context, sess Session) (UserView, error) {
	return s.GetUser(ctx, sess, sess.User.ID)
}

func (s *Service) MyProfile(ctx context.Context, sess Session) (ProfileView, error) {
	profile, err := lookup(s.store.GetProfileByUser(ctx, sess.User.ID))
	if err != nil {
		return ProfileView{}, err
	}
	if err := requireVisible(s, sess, permissions.Profile, profile, profileScope); err != nil {
		return ProfileView{}, err
	}
	return profileView(profile), nil
}

type ProfileInput struct {
	JobTitle string `json:"job_title"`
}

func (s *Service) UpdateMyProfile(ctx context.Context, sess Session, in ProfileInput) (ProfileView, error) {
	var profile store.Profile
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		profile, err = tx.GetProfileByUser(ctx, sess.User.ID)
		if errors.Is(err, store.ErrNotFound) {
			profile = store.Profile{UserID: sess.User.ID, JobTitle: strings.TrimSpace(in.JobTitle)}
			return nil, tx.CreateProfile(ctx, &profile)
		}
		if err != nil {
			return nil, err
		}
		if !s.allows(sess, permissions.Update, permissions.Profile, profileScope(profile)) {
			return nil, notFoundError()
		}
		profile.JobTitle = strings.TrimSpace(in.JobTitle)
		return nil, tx.UpdateProfile(ctx, profile)
	})
	if err != nil {
		return ProfileView{}, err
	}
	return profileView(profile), nil
}
