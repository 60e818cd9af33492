package app

import (
	"context"
	"errors"
	"slices"
	"strings"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/permissions"
	"collabsauce/api/internal/rbac"
	"collabsauce/api/internal/screenshot"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/workflow"
)

func (s *Service) ListTasks(ctx context.Context, sess Session, projectID int64) ([]TaskView, error) {
	if _, err := s.visibleProject(ctx, s.store, sess, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Task, permissions.Direct, tasks, taskScope)
	return mapViews(tasks, taskView), nil
}

func (s *Service) visibleTask(ctx context.Context, r store.Reader, sess Session, id int64) (store.Task, error) {
	task, err := lookup(r.GetTask(ctx, id))
	if err != nil {
		return store.Task{}, err
	}
	if err := requireVisible(s, sess, permissions.Task, task, taskScope); err != nil {
		return store.Task{}, err
	}
	return task, nil
}

// memberTask loads a task a member of its organization wants to change.
// Absent and invisible tasks get the same permission error.
func (s *Service) memberTask(ctx context.Context, r store.Reader, sess Session, id int64) (store.Task, error) {
	task, err := r.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Task{}, validationError(msgNoTaskPermission)
	}
	if err != nil {
		return store.Task{}, err
	}
	if !s.allows(sess, permissions.Read, permissions.Task, taskScope(task)) {
		return store.Task{}, validationError(msgNoTaskPermission)
	}
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, sess Session, id int64) (TaskView, error) {
	task, err := s.visibleTask(ctx, s.store, sess, id)
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

func (s *Service) GetTaskMetadata(ctx context.Context, sess Session, taskID int64) (TaskMetadataView, error) {
	if _, err := s.visibleTask(ctx, s.store, sess, taskID); err != nil {
		return TaskMetadataView{}, err
	}
	metadata, err := lookup(s.store.GetTaskMetadata(ctx, taskID))
	if err != nil {
		return TaskMetadataView{}, err
	}
	if err := requireVisible(s, sess, permissions.TaskMetadata, metadata, metadataScope); err != nil {
		return TaskMetadataView{}, err
	}
	return taskMetadataView(metadata), nil
}

type TaskInput struct {
	ProjectID    int64  `json:"project"`
	TaskColumnID int64  `json:"task_column"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DesignEdits  string `json:"design_edits"`
	AssignedToID *int64 `json:"assigned_to"`
}

// CreateTask adds a task from the dashboard to the end of a column, or of
// the first column when none is given.
func (s *Service) CreateTask(ctx context.Context, sess Session, in TaskInput) (TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return TaskView{}, validationError(msgTitleRequired)
	}
	project, err := s.visibleProject(ctx, s.store, sess, in.ProjectID)
	if err != nil {
		return TaskView{}, err
	}

	var task store.Task
	err = s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		if err := tx.LockProject(ctx, project.ID); err != nil {
			return nil, err
		}
		if err := checkAssignee(ctx, tx, project.OrganizationID, in.AssignedToID); err != nil {
			return nil, err
		}
		column, err := boardColumn(ctx, tx, project.ID, func(c store.TaskColumn) bool {
			return in.TaskColumnID == 0 || c.ID == in.TaskColumnID
		})
		if err != nil {
			return nil, err
		}
		task = store.Task{
			ProjectID:    project.ID,
			TaskColumnID: column.ID,
			Title:        title,
			Description:  in.Description,
			DesignEdits:  in.DesignEdits,
			CreatorID:    sess.UserID(),
			AssignedToID: in.AssignedToID,
		}
		if err := placeNewTask(ctx, tx, &task); err != nil {
			return nil, err
		}
		return workflow.TaskCreatedJobs(task, sess.UserID(), 0)
	})
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

// placeNewTask numbers the task within its project, appends it to its
// column and inserts it. The caller holds the project lock.
func placeNewTask(ctx context.Context, tx store.Tx, task *store.Task) error {
	count, err := tx.CountTasks(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	last, nonEmpty, err := tx.LastOrderInColumn(ctx, task.TaskColumnID)
	if err != nil {
		return err
	}
	task.TaskNumber = workflow.NextTaskNumber(count)
	task.Order = workflow.NextOrder(last, nonEmpty)
	return tx.CreateTask(ctx, task)
}

// boardColumn returns the first of the project's columns, in board order,
// that match.
func boardColumn(ctx context.Context, r store.Reader, projectID int64, match func(store.TaskColumn) bool) (store.TaskColumn, error) {
	columns, err := r.ListTaskColumns(ctx, projectID)
	if err != nil {
		return store.TaskColumn{}, err
	}
	for _, c := range columns {
		if match(c) {
			return c, nil
		}
	}
	return store.TaskColumn{}, validationError(msgColumnMismatch)
}

func checkAssignee(ctx context.Context, r store.Reader, organizationID int64, assigneeID *int64) error {
	if assigneeID == nil {
		return nil
	}
	user, err := r.GetUser(ctx, *assigneeID)
	if errors.Is(err, store.ErrNotFound) {
		return validationError(msgAssigneeNotInOrg)
	}
	if err != nil {
		return err
	}
	if !slices.Contains(user.OrganizationIDs, organizationID) {
		return validationError(msgAssigneeNotInOrg)
	}
	return nil
}

// WidgetTaskInput is a task submitted from a customer site. The project is
// named by id for signed-in dashboard users or by its embed key otherwise.
type WidgetTaskInput struct {
	ProjectID     int64             `json:"project"`
	ProjectKey    string            `json:"project_key"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	DesignEdits   string            `json:"design_edits"`
	TargetDOMPath string            `json:"target_dom_path"`
	TargetID      string            `json:"target_id"`
	AssignedToID  *int64            `json:"assigned_to"`
	Email         string            `json:"one_off_email_set_by"`
	HTML          string            `json:"task_html"`
	Metadata      TaskMetadataInput `json:"task_metadata"`
}

// ExtensionTaskInput is a widget task whose screenshots the browser
// extension already captured as PNG data URLs.
type ExtensionTaskInput struct {
	WidgetTaskInput
	WindowScreenshot  string `json:"window_screenshot"`
	ElementScreenshot string `json:"element_screenshot"`
}

// CreateWidgetTask files a task into the project's Raw Task column with its
// browser metadata and captured page. sess is nil for anonymous submissions.
// A screenshot job renders the page after commit.
func (s *Service) CreateWidgetTask(ctx context.Context, sess *Session, in WidgetTaskInput) (TaskView, error) {
	return s.createWidgetTask(ctx, sess, in, func(tx store.Tx, task store.Task) (int64, []jobs.Job, error) {
		if in.HTML == "" {
			return 0, nil, nil
		}
		html := store.TaskHTML{TaskID: task.ID, HTML: in.HTML}
		if err := tx.CreateTaskHTML(ctx, &html); err != nil {
			return 0, nil, err
		}
		return html.ID, nil, nil
	})
}

func (s *Service) CreateExtensionTask(ctx context.Context, sess *Session, in ExtensionTaskInput) (TaskView, error) {
	if in.WindowScreenshot == "" {
		return TaskView{}, validationError(screenshot.ErrInvalidDataURL.Error())
	}
	for _, dataURL := range []string{in.WindowScreenshot, in.ElementScreenshot} {
		if dataURL == "" {
			continue
		}
		if _, err := screenshot.DecodePNGDataURL(dataURL); err != nil {
			return TaskView{}, validationError(err.Error())
		}
	}
	return s.createWidgetTask(ctx, sess, in.WidgetTaskInput, func(tx store.Tx, task store.Task) (int64, []jobs.Job, error) {
		shots := store.TaskDataURL{
			TaskID:            task.ID,
			WindowScreenshot:  in.WindowScreenshot,
			ElementScreenshot: in.ElementScreenshot,
		}
		if err := tx.CreateTaskDataURL(ctx, &shots); err != nil {
			return 0, nil, err
		}
		upload, err := workflow.ExtensionUploadJob(task.ID, shots.ID)
		if err != nil {
			return 0, nil, err
		}
		return 0, []jobs.Job{upload}, nil
	})
}

// attachFunc stores what the widget captured alongside a new task. It
// returns the TaskHTML id to render, if any, and extra jobs.
type attachFunc func(tx store.Tx, task store.Task) (int64, []jobs.Job, error)

func (s *Service) createWidgetTask(ctx context.Context, sess *Session, in WidgetTaskInput, attach attachFunc) (TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return TaskView{}, validationError(msgTitleRequired)
	}
	email := strings.TrimSpace(in.Email)
	if sess == nil && email == "" {
		return TaskView{}, validationError(msgRequireEmailOrIdentity)
	}

	project, err := s.widgetProject(ctx, sess, in)
	if err != nil {
		return TaskView{}, err
	}

	var actorID *int64
	if sess != nil {
		actorID = sess.UserID()
	}

	var task store.Task
	err = s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		if err := tx.LockProject(ctx, project.ID); err != nil {
			return nil, err
		}
		if err := checkAssignee(ctx, tx, project.OrganizationID, in.AssignedToID); err != nil {
			return nil, err
		}
		column, err := rawTaskColumn(ctx, tx, project.ID)
		if err != nil {
			return nil, err
		}
		task = store.Task{
			ProjectID:        project.ID,
			TaskColumnID:     column.ID,
			Title:            title,
			Description:      in.Description,
			DesignEdits:      in.DesignEdits,
			TargetDOMPath:    in.TargetDOMPath,
			TargetID:         in.TargetID,
			CreatorID:        actorID,
			OneOffEmailSetBy: email,
			AssignedToID:     in.AssignedToID,
		}
		if err := placeNewTask(ctx, tx, &task); err != nil {
			return nil, err
		}
		metadata := in.Metadata.record(task.ID)
		if err := tx.CreateTaskMetadata(ctx, &metadata); err != nil {
			return nil, err
		}
		htmlID, extra, err := attach(tx, task)
		if err != nil {
			return nil, err
		}
		created, err := workflow.TaskCreatedJobs(task, actorID, htmlID)
		if err != nil {
			return nil, err
		}
		return append(created, extra...), nil
	})
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

func (s *Service) widgetProject(ctx context.Context, sess *Session, in WidgetTaskInput) (store.Project, error) {
	var (
		project store.Project
		err     error
	)
	if in.ProjectID != 0 && sess != nil {
		project, err = lookup(s.store.GetProject(ctx, in.ProjectID))
	} else {
		project, err = s.projectByKey(ctx, in.ProjectKey)
	}
	if err != nil {
		return store.Project{}, err
	}
	if sess != nil && !s.can(*sess, project.OrganizationID, rbac.ActionSubmitWidget) {
		return store.Project{}, validationError(msgNoProjectAccess)
	}
	return project, nil
}

func rawTaskColumn(ctx context.Context, r store.Reader, projectID int64) (store.TaskColumn, error) {
	column, err := boardColumn(ctx, r, projectID, func(c store.TaskColumn) bool { return c.Name == store.RawTaskColumn })
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		// Boards created before the Raw Task column existed fall back to
		// their first column.
		return boardColumn(ctx, r, projectID, func(store.TaskColumn) bool { return true })
	}
	return column, err
}

type TaskUpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DesignEdits *string `json:"design_edits"`
	IsResolved  *bool   `json:"is_resolved"`
}

// UpdateTask edits a task's content. Only its creator may.
func (s *Service) UpdateTask(ctx context.Context, sess Session, id int64, in TaskUpdateInput) (TaskView, error) {
	var task store.Task
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		task, err = s.visibleTask(ctx, tx, sess, id)
		if err != nil {
			return nil, err
		}
		if !s.allows(sess, permissions.Update, permissions.Task, taskScope(task)) {
			return nil, validationError(msgNoTaskPermission)
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return nil, validationError(msgTitleRequired)
			}
			task.Title = title
		}
		if in.Description != nil {
			task.Description = *in.Description
		}
		if in.DesignEdits != nil {
			task.DesignEdits = *in.DesignEdits
		}
		if in.IsResolved != nil {
			task.IsResolved = *in.IsResolved
		}
		return nil, tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

type ReorderInput struct {
	ProjectID int64         `json:"project"`
	Tasks     []ReorderMove `json:"tasks"`
}

type ReorderMove struct {
	ID           int64 `json:"id"`
	Order        int   `json:"order"`
	TaskColumnID int64 `json:"task_column"`
}

// ReorderTasks applies a board drag-and-drop batch atomically. Each task
// that changes column produces one column-changed notification.
func (s *Service) ReorderTasks(ctx context.Context, sess Session, in ReorderInput) ([]TaskView, error) {
	if _, err := s.visibleProject(ctx, s.store, sess, in.ProjectID); err != nil {
		return nil, err
	}
	moves := make([]store.TaskPlacement, 0, len(in.Tasks))
	ids := make([]int64, 0, len(in.Tasks))
	for _, m := range in.Tasks {
		moves = append(moves, store.TaskPlacement{TaskID: m.ID, Order: m.Order, TaskColumnID: m.TaskColumnID})
		ids = append(ids, m.ID)
	}

	var updated []store.Task
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		if err := tx.LockProject(ctx, in.ProjectID); err != nil {
			return nil, err
		}
		tasks, err := tx.ListTasksByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		tasks = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.Task, permissions.Direct, tasks, taskScope)
		columns, err := tx.ListTaskColumns(ctx, in.ProjectID)
		if err != nil {
			return nil, err
		}
		changes, err := workflow.PlanReorder(in.ProjectID, moves, tasks, columns)
		if errors.Is(err, workflow.ErrInvalidMove) {
			return nil, validationError(msgInvalidMove)
		}
		if err != nil {
			return nil, err
		}
		if err := tx.UpdateTaskPlacements(ctx, moves); err != nil {
			return nil, err
		}
		if updated, err = tx.ListTasksByIDs(ctx, ids); err != nil {
			return nil, err
		}
		return workflow.ColumnChangeJobs(changes, sess.User.ID)
	})
	if err != nil {
		return nil, err
	}
	return mapViews(updated, taskView), nil
}

// MoveTaskColumn moves one task to the end of another column of its board.
// Any member who can see the task may move it.
func (s *Service) MoveTaskColumn(ctx context.Context, sess Session, taskID, columnID int64) (TaskView, error) {
	var task store.Task
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		task, err = s.memberTask(ctx, tx, sess, taskID)
		if err != nil {
			return nil, err
		}
		if err := tx.LockProject(ctx, task.ProjectID); err != nil {
			return nil, err
		}
		// Re-read under the lock; a concurrent reorder may have moved it.
		if task, err = lookup(tx.GetTask(ctx, taskID)); err != nil {
			return nil, err
		}
		target, err := lookup(tx.GetTaskColumn(ctx, columnID))
		if err != nil {
			return nil, err
		}
		last, nonEmpty, err := tx.LastOrderInColumn(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		placement, change, err := workflow.PlanColumnMove(task, target, last, nonEmpty)
		if errors.Is(err, workflow.ErrColumnMismatch) {
			return nil, validationError(msgColumnMismatch)
		}
		if err != nil || placement == nil {
			return nil, err
		}
		if err := tx.UpdateTaskPlacements(ctx, []store.TaskPlacement{*placement}); err != nil {
			return nil, err
		}
		task.TaskColumnID = placement.TaskColumnID
		task.Order = placement.Order
		return workflow.ColumnChangeJobs([]workflow.ColumnChange{*change}, sess.User.ID)
	})
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

// UpdateAssignee assigns or unassigns a task for any member who can see it.
// Only a new, non-empty assignee is notified.
func (s *Service) UpdateAssignee(ctx context.Context, sess Session, taskID int64, assigneeID *int64) (TaskView, error) {
	var task store.Task
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		var err error
		task, err = s.memberTask(ctx, tx, sess, taskID)
		if err != nil {
			return nil, err
		}
		if err := checkAssignee(ctx, tx, task.OrganizationID, assigneeID); err != nil {
			return nil, err
		}
		prev := task.AssignedToID
		task.AssignedToID = assigneeID
		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, err
		}
		return workflow.AssigneeJobs(task.ID, prev, assigneeID, sess.User.ID)
	})
	if err != nil {
		return TaskView{}, err
	}
	return taskView(task), nil
}

type CommentInput struct {
	TaskID int64  `json:"task"`
	Text   string `json:"text"`
}

func (s *Service) CreateComment(ctx context.Context, sess Session, in CommentInput) (TaskCommentView, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return TaskCommentView{}, validationError(msgNameRequired)
	}
	var comment store.TaskComment
	err := s.withinTx(ctx, func(tx store.Tx) ([]jobs.Job, error) {
		task, err := lookup(tx.GetTask(ctx, in.TaskID))
		if err != nil {
			return nil, err
		}
		if !s.allows(sess, permissions.Read, permissions.Task, taskScope(task)) {
			return nil, validationError(msgNoCommentAccess)
		}
		comment = store.TaskComment{TaskID: task.ID, CreatorID: sess.User.ID, Text: text}
		if err := tx.CreateTaskComment(ctx, &comment); err != nil {
			return nil, err
		}
		return workflow.CommentJobs(comment)
	})
	if err != nil {
		return TaskCommentView{}, err
	}
	return taskCommentView(comment), nil
}

func (s *Service) ListComments(ctx context.Context, sess Session, taskID int64) ([]TaskCommentView, error) {
	if _, err := s.visibleTask(ctx, s.store, sess, taskID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListTaskComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	comments = permissions.Filter(s.resolver, sess.Actor, permissions.Read, permissions.TaskComment, permissions.Sideload, comments, commentScope)
	return mapViews(comments, taskCommentView), nil
}
