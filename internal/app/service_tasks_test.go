package app

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/workflow"
)

func (e *testEnv) createTask(t *testing.T, sess Session, projectID, columnID int64, title string) TaskView {
	t.Helper()
	task, err := e.svc.CreateTask(context.Background(), sess, TaskInput{ProjectID: projectID, TaskColumnID: columnID, Title: title})
	require.NoError(t, err)
	return task
}

func TestCreateProjectSeedsColumns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")

	var names []string
	for _, c := range acme.columns {
		names = append(names, c.Name)
	}
	require.Equal(t, store.DefaultTaskColumns, names)
	require.Len(t, acme.project.Key, projectKeyLength)

	_, err := env.svc.CreateProject(ctx, acme.admin, ProjectInput{OrganizationID: acme.org.ID, Name: "acme site"})
	requireValidation(t, err, msgProjectNameTaken)

	_, err = env.svc.CreateProject(ctx, acme.member, ProjectInput{OrganizationID: acme.org.ID, Name: "Other"})
	requireValidation(t, err, msgAdminToCreateProject)

	_, err = env.svc.UpdateProject(ctx, acme.member, acme.project.ID, ProjectInput{Name: "Renamed"})
	requireValidation(t, err, msgAdminToUpdateProject)

	updated, err := env.svc.UpdateProject(ctx, acme.admin, acme.project.ID, ProjectInput{Name: "Renamed", URL: "https://new.test"})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, acme.project.Key, updated.Key)
}

func TestCreateTaskNumbersAndOrders(t *testing.T) {
	env := newTestEnv(t)
	acme := env.newTeam(t, "acme")
	ready := acme.column(t, "Ready")

	first := env.createTask(t, acme.member, acme.project.ID, ready.ID, "First")
	second := env.createTask(t, acme.member, acme.project.ID, ready.ID, "Second")
	raw := env.createTask(t, acme.member, acme.project.ID, 0, "Raw")

	require.Equal(t, 1, first.TaskNumber)
	require.Equal(t, 1, first.Order)
	require.Equal(t, 2, second.TaskNumber)
	require.Equal(t, 2, second.Order)
	require.Equal(t, 3, raw.TaskNumber)
	require.Equal(t, 1, raw.Order)
	require.Equal(t, acme.column(t, store.RawTaskColumn).ID, raw.TaskColumnID)
	require.Equal(t, []jobs.Kind{jobs.KindTaskCreated, jobs.KindTaskCreated, jobs.KindTaskCreated}, env.pendingKinds())
}

func TestConcurrentTaskCreationNumbersContiguously(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	ready := acme.column(t, "Ready")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateTask(ctx, acme.member, TaskInput{ProjectID: acme.project.ID, TaskColumnID: ready.ID, Title: "Bug"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tasks, err := env.svc.ListTasks(ctx, acme.member, acme.project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, n)
	var numbers, orders []int
	for _, task := range tasks {
		numbers = append(numbers, task.TaskNumber)
		orders = append(orders, task.Order)
	}
	slices.Sort(numbers)
	slices.Sort(orders)
	for i := range n {
		require.Equal(t, i+1, numbers[i])
		require.Equal(t, i+1, orders[i])
	}
}

func TestInvisibleRecordsAreNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	task := env.createTask(t, acme.member, acme.project.ID, 0, "Secret")

	_, err := env.svc.GetProject(ctx, globex.member, acme.project.ID)
	requireNotFound(t, err)
	_, err = env.svc.GetTask(ctx, globex.member, task.ID)
	requireNotFound(t, err)
	_, err = env.svc.ListTasks(ctx, globex.member, acme.project.ID)
	requireNotFound(t, err)
	_, err = env.svc.ListComments(ctx, globex.member, task.ID)
	requireNotFound(t, err)
	_, err = env.svc.GetTask(ctx, globex.member, 999999)
	requireNotFound(t, err)

	projects, err := env.svc.ListProjects(ctx, globex.member)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, globex.project.ID, projects[0].ID)

	_, err = env.svc.CreateComment(ctx, globex.member, CommentInput{TaskID: task.ID, Text: "hi"})
	requireValidation(t, err, msgNoCommentAccess)
}

func TestReorderEnqueuesOneJobPerColumnChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	raw := acme.column(t, store.RawTaskColumn)
	ready := acme.column(t, "Ready")

	a := env.createTask(t, acme.member, acme.project.ID, raw.ID, "A")
	b := env.createTask(t, acme.member, acme.project.ID, raw.ID, "B")
	baseline := len(env.queue.Pending())

	updated, err := env.svc.ReorderTasks(ctx, acme.admin, ReorderInput{
		ProjectID: acme.project.ID,
		Tasks: []ReorderMove{
			{ID: b.ID, Order: 1, TaskColumnID: raw.ID},
			{ID: a.ID, Order: 1, TaskColumnID: ready.ID},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)

	pending := env.queue.Pending()[baseline:]
	require.Len(t, pending, 1)
	require.Equal(t, jobs.KindColumnChanged, pending[0].Kind)
	var payload jobs.ColumnChanged
	require.NoError(t, pending[0].Decode(&payload))
	require.Equal(t, jobs.ColumnChanged{TaskID: a.ID, PrevColumnID: raw.ID, NewColumnID: ready.ID, MoverID: acme.admin.User.ID}, payload)

	moved, err := env.svc.GetTask(ctx, acme.member, a.ID)
	require.NoError(t, err)
	require.Equal(t, ready.ID, moved.TaskColumnID)

	// A batch naming another project's column fails as a whole.
	_, err = env.svc.ReorderTasks(ctx, acme.admin, ReorderInput{
		ProjectID: acme.project.ID,
		Tasks: []ReorderMove{
			{ID: b.ID, Order: 2, TaskColumnID: ready.ID},
			{ID: a.ID, Order: 1, TaskColumnID: globex.columns[0].ID},
		},
	})
	requireValidation(t, err, msgInvalidMove)
	unchanged, err := env.svc.GetTask(ctx, acme.member, b.ID)
	require.NoError(t, err)
	require.Equal(t, raw.ID, unchanged.TaskColumnID)
	require.Len(t, env.queue.Pending(), baseline+1)

	_, err = env.svc.ReorderTasks(ctx, acme.admin, ReorderInput{
		ProjectID: acme.project.ID,
		Tasks:     []ReorderMove{{ID: b.ID, Order: workflow.MaxOrder + 1, TaskColumnID: raw.ID}},
	})
	requireValidation(t, err, msgInvalidMove)
	require.Len(t, env.queue.Pending(), baseline+1)

	_, err = env.svc.ReorderTasks(ctx, acme.admin, ReorderInput{ProjectID: acme.project.ID})
	requireValidation(t, err, msgInvalidMove)
}

func TestMoveTaskColumn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	done := acme.column(t, "Done")
	task := env.createTask(t, acme.member, acme.project.ID, 0, "Move me")
	env.createTask(t, acme.member, acme.project.ID, done.ID, "Already done")
	baseline := len(env.queue.Pending())

	_, err := env.svc.MoveTaskColumn(ctx, globex.member, task.ID, done.ID)
	requireValidation(t, err, msgNoTaskPermission)
	_, err = env.svc.MoveTaskColumn(ctx, acme.member, 404, done.ID)
	requireValidation(t, err, msgNoTaskPermission)

	_, err = env.svc.MoveTaskColumn(ctx, acme.member, task.ID, globex.columns[1].ID)
	requireValidation(t, err, msgColumnMismatch)

	moved, err := env.svc.MoveTaskColumn(ctx, acme.admin, task.ID, done.ID)
	require.NoError(t, err)
	require.Equal(t, done.ID, moved.TaskColumnID)
	require.Equal(t, 2, moved.Order)
	require.Equal(t, []jobs.Kind{jobs.KindColumnChanged}, env.pendingKinds()[baseline:])

	_, err = env.svc.MoveTaskColumn(ctx, acme.member, task.ID, done.ID)
	require.NoError(t, err)
	require.Len(t, env.queue.Pending(), baseline+1, "a no-op move is not a change")
}

func TestUpdateAssignee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	task := env.createTask(t, acme.member, acme.project.ID, 0, "Assign me")
	baseline := len(env.queue.Pending())
	adminID := acme.admin.User.ID

	_, err := env.svc.UpdateAssignee(ctx, globex.member, task.ID, &adminID)
	requireValidation(t, err, msgNoTaskPermission)

	outsider := globex.member.User.ID
	_, err = env.svc.UpdateAssignee(ctx, acme.member, task.ID, &outsider)
	requireValidation(t, err, msgAssigneeNotInOrg)

	updated, err := env.svc.UpdateAssignee(ctx, acme.admin, task.ID, &adminID)
	require.NoError(t, err)
	require.Equal(t, &adminID, updated.AssignedToID)
	require.Equal(t, []jobs.Kind{jobs.KindAssigneeChanged}, env.pendingKinds()[baseline:])

	_, err = env.svc.UpdateAssignee(ctx, acme.member, task.ID, &adminID)
	require.NoError(t, err)
	_, err = env.svc.UpdateAssignee(ctx, acme.member, task.ID, nil)
	require.NoError(t, err)
	require.Len(t, env.queue.Pending(), baseline+1, "same assignee and unassignment are silent")
}

func TestWidgetTasksAreTriagedByMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	ready := acme.column(t, "Ready")

	filed, err := env.svc.CreateWidgetTask(ctx, nil, WidgetTaskInput{
		ProjectKey: acme.project.Key,
		Title:      "Logo is blurry",
		Email:      "Jane Doe",
	})
	require.NoError(t, err)
	require.Nil(t, filed.CreatorID)
	require.Equal(t, "Jane Doe", filed.OneOffEmailSetBy)
	baseline := len(env.queue.Pending())

	memberID := acme.member.User.ID
	assigned, err := env.svc.UpdateAssignee(ctx, acme.admin, filed.ID, &memberID)
	require.NoError(t, err)
	require.Equal(t, &memberID, assigned.AssignedToID)

	moved, err := env.svc.MoveTaskColumn(ctx, acme.member, filed.ID, ready.ID)
	require.NoError(t, err)
	require.Equal(t, ready.ID, moved.TaskColumnID)
	require.Equal(t, []jobs.Kind{jobs.KindAssigneeChanged, jobs.KindColumnChanged}, env.pendingKinds()[baseline:])

	title := "Logo is sharp"
	_, err = env.svc.UpdateTask(ctx, acme.admin, filed.ID, TaskUpdateInput{Title: &title})
	requireValidation(t, err, msgNoTaskPermission)
}

func TestUpdateTaskIsCreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	task := env.createTask(t, acme.member, acme.project.ID, 0, "Typo")
	title, resolved := "Fixed", true

	_, err := env.svc.UpdateTask(ctx, acme.admin, task.ID, TaskUpdateInput{Title: &title})
	requireValidation(t, err, msgNoTaskPermission)

	updated, err := env.svc.UpdateTask(ctx, acme.member, task.ID, TaskUpdateInput{Title: &title, IsResolved: &resolved})
	require.NoError(t, err)
	require.Equal(t, "Fixed", updated.Title)
	require.True(t, updated.IsResolved)
}

func TestWidgetTaskCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")
	assignee := acme.admin.User.ID

	input := WidgetTaskInput{
		ProjectKey:    acme.project.Key,
		Title:         "Button is misaligned",
		TargetDOMPath: "body > main > button",
		AssignedToID:  &assignee,
		HTML:          "<html><body><button data-collab-selected-element>Buy</button></body></html>",
		Metadata:      TaskMetadataInput{URLOrigin: "https://acme.test", BrowserWindowWidth: 1024, BrowserWindowHeight: 768, DevicePixelRatio: 2},
	}

	_, err := env.svc.CreateWidgetTask(ctx, nil, input)
	requireValidation(t, err, msgRequireEmailOrIdentity)

	bad := input
	bad.ProjectKey = "nope"
	bad.Email = "visitor@example.com"
	_, err = env.svc.CreateWidgetTask(ctx, nil, bad)
	requireValidation(t, err, msgBadProjectKey)

	_, err = env.svc.CreateWidgetTask(ctx, &globex.member, input)
	requireValidation(t, err, msgNoProjectAccess)

	outsider := globex.member.User.ID
	foreign := input
	foreign.Email = "visitor@example.com"
	foreign.AssignedToID = &outsider
	_, err = env.svc.CreateWidgetTask(ctx, nil, foreign)
	requireValidation(t, err, msgAssigneeNotInOrg)
	require.Empty(t, env.queue.Pending())

	input.Email = "visitor@example.com"
	task, err := env.svc.CreateWidgetTask(ctx, nil, input)
	require.NoError(t, err)
	require.Nil(t, task.CreatorID)
	require.Equal(t, "visitor@example.com", task.OneOffEmailSetBy)
	require.Equal(t, acme.column(t, store.RawTaskColumn).ID, task.TaskColumnID)
	require.Equal(t, []jobs.Kind{jobs.KindTaskCreated, jobs.KindScreenshot}, env.pendingKinds())

	metadata, err := env.svc.GetTaskMetadata(ctx, acme.member, task.ID)
	require.NoError(t, err)
	require.Equal(t, "https://acme.test", metadata.URLOrigin)
	require.Equal(t, 1024, metadata.BrowserWindowWidth)

	mine, err := env.svc.CreateWidgetTask(ctx, &acme.member, WidgetTaskInput{ProjectID: acme.project.ID, Title: "From the dashboard"})
	require.NoError(t, err)
	require.Equal(t, acme.member.User.ID, *mine.CreatorID)
	require.Equal(t, 2, mine.TaskNumber)
	require.Equal(t, 2, mine.Order)
}

func TestExtensionTaskCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")

	_, err := env.svc.CreateExtensionTask(ctx, &acme.member, ExtensionTaskInput{
		WidgetTaskInput:  WidgetTaskInput{ProjectID: acme.project.ID, Title: "Shot"},
		WindowScreenshot: "data:image/jpeg;base64,AAAA",
	})
	requireValidation(t, err, "")

	task, err := env.svc.CreateExtensionTask(ctx, &acme.member, ExtensionTaskInput{
		WidgetTaskInput:  WidgetTaskInput{ProjectID: acme.project.ID, Title: "Shot"},
		WindowScreenshot: pngDataURL,
	})
	require.NoError(t, err)
	require.Equal(t, []jobs.Kind{jobs.KindTaskCreated, jobs.KindExtensionUpload}, env.pendingKinds())
	require.Equal(t, 1, task.TaskNumber)
}

func TestCommentsEnqueueNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	task := env.createTask(t, acme.member, acme.project.ID, 0, "Discuss")
	baseline := len(env.queue.Pending())

	_, err := env.svc.CreateComment(ctx, acme.admin, CommentInput{TaskID: task.ID, Text: "  "})
	requireValidation(t, err, msgNameRequired)

	comment, err := env.svc.CreateComment(ctx, acme.admin, CommentInput{TaskID: task.ID, Text: "Looks good"})
	require.NoError(t, err)
	require.Equal(t, acme.admin.User.ID, comment.CreatorID)
	require.Equal(t, []jobs.Kind{jobs.KindCommentCreated}, env.pendingKinds()[baseline:])

	comments, err := env.svc.ListComments(ctx, acme.member, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
}

func TestScreenshotUploadURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.newTeam(t, "acme")
	globex := env.newTeam(t, "globex")

	upload, err := env.svc.ScreenshotUploadURL(ctx, acme.member, acme.project.ID)
	require.NoError(t, err)
	require.Contains(t, upload.URL, upload.Key)

	_, err = env.svc.ScreenshotUploadURL(ctx, globex.member, acme.project.ID)
	requireNotFound(t, err)
}
