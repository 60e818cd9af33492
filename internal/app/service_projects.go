package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/objectstore"
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/rbac"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/util"
)

const (
	projectKeyLength = 32
	uploadURLExpiry  = 15 * time.Minute
)

type ProjectInput struct {
	OrganizationID int64  `json:"organization"`
	Name           string `json:"name"`
	URL            string `json:"url"`
}

// defaultOrganization picks the caller's organization when a request omits
// it and the caller belongs to exactly one.
func defaultOrganization(sess Session, organizationID int64) int64 {
	if organizationID == 0 && len(sess.Memberships) == 1 {
		return sess.Memberships[0].OrganizationID
	}
	return organizationID
}

// CreateProject creates a project and its default board columns.
func (s *Service) CreateProject(ctx context.Context, sess Session, in ProjectInput) (ProjectView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ProjectView{}, validationError(msgNameRequired)
	}
	orgID := defaultOrganization(sess, in.OrganizationID)
	if !s.can(sess, orgID, rbac.ActionManageProjects) {
		return ProjectView{}, validationError(msgAdminToCreateProject)
	}

	var project store.Project
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		if _, err := lookup(tx.GetOrganization(ctx, orgID)); err != nil {
			return nil, err
		}
		project = store.Project{
			OrganizationID: orgID,
			Name:           name,
			Key:            util.RandomKey(projectKeyLength),
			URL:            strings.TrimSpace(in.URL),
		}
		err := tx.CreateProject(ctx, &project)
		if errors.Is(err, store.ErrConflict) {
			return nil, validationError(msgProjectNameTaken)
		}
		if err != nil {
			return nil, err
		}
		for i, columnName := range store.DefaultTaskColumns {
			column := store.TaskColumn{ProjectID: project.ID, Name: columnName, Order: i + 1}
			if err := tx.CreateTaskColumn(ctx, &column); err != nil {
				return nil, fmt.Errorf("seed column %q: %w", columnName, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return ProjectView{}, err
	}
	return projectView(project), nil
}

func (s *Service) ListProjects(ctx context.Context, sess Session) ([]ProjectView, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	projects = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Project, permissions.Direct, projects, projectScope)
	return mapViews(projects, projectView), nil
}

func (s *Service) visibleProject(ctx context.Context, r store.Reader, sess Session, id int64) (store.Project, error) {
	project, err := lookup(r.GetProject(ctx, id))
	if err != nil {
		return store.Project{}, err
	}
	if err := requireVisible(s, sess, permissions.Project, project, projectScope); err != nil {
		return store.Project{}, err
	}
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, sess Session, id int64) (ProjectView, error) {
	project, err := s.visibleProject(ctx, s.store, sess, id)
	if err != nil {
		return ProjectView{}, err
	}
	return projectView(project), nil
}

func (s *Service) UpdateProject(ctx context.Context, sess Session, id int64, in ProjectInput) (ProjectView, error) {
	var project store.Project
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		project, err = s.visibleProject(ctx, tx, sess, id)
		if err != nil {
			return nil, err
		}
		if !s.allows(sess, permissions.Update, permissions.Project, projectScope(project)) {
			return nil, validationError(msgAdminToUpdateProject)
		}
		if name := strings.TrimSpace(in.Name); name != "" {
			project.Name = name
		}
		project.URL = strings.TrimSpace(in.URL)
		err = tx.UpdateProject(ctx, project)
		if errors.Is(err, store.ErrConflict) {
			return nil, validationError(msgProjectNameTaken)
		}
		return nil, err
	})
	if err != nil {
		return ProjectView{}, err
	}
	s.projectKeys.Delete(project.Key)
	return projectView(project), nil
}

// ListTaskColumns returns a visible project's board columns in order.
func (s *Service) ListTaskColumns(ctx context.Context, sess Session, projectID int64) ([]TaskColumnView, error) {
	if _, err := s.visibleProject(ctx, s.store, sess, projectID); err != nil {
		return nil, err
	}
	columns, err := s.store.ListTaskColumns(ctx, projectID)
	if err != nil {
		return nil, err
	}
	columns = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.TaskColumn, permissions.Sideload, columns,
		func(store.TaskColumn) permissions.Scope { return permissions.Scope{} })
	return mapViews(columns, taskColumnView), nil
}

type UploadURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ScreenshotUploadURL presigns a PUT so a client can upload a screenshot
// straight to object storage.
func (s *Service) ScreenshotUploadURL(ctx context.Context, sess Session, projectID int64) (UploadURL, error) {
	project, err := s.visibleProject(ctx, s.store, sess, projectID)
	if err != nil {
		return UploadURL{}, err
	}
	key := objectstore.ScreenshotKey(project.OrganizationID, project.ID, objectstore.NewFileKey(), objectstore.ShotWindow)
	url, err := s.objects.PresignPut(ctx, key, uploadURLExpiry)
	if err != nil {
		return UploadURL{}, fmt.Errorf("presign upload: %w", err)
	}
	return UploadURL{Key: key, URL: url}, nil
}

// projectByKey resolves the opaque key embedded in customer sites. Lookups
// are cached because every widget submission repeats them.
func (s *Service) projectByKey(ctx context.Context, key string) (store.Project, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return store.Project{}, validationError(msgBadProjectKey)
	}
	if cached, ok := s.projectKeys.Get(key); ok {
		return cached.(store.Project), nil
	}
	project, err := s.store.GetProjectByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return store.Project{}, validationError(msgBadProjectKey)
	}
	if err != nil {
		return store.Project{}, err
	}
	s.projectKeys.Set(key, project, cache.DefaultExpiration)
	return project, nil
}
