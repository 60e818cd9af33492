package postgres

import (
	"context"

	"collabsauce/api/internal/store"
)

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.password_hash, u.is_superuser,
	COALESCE(ARRAY(SELECT m.organization_id FROM memberships m WHERE m.user_id = u.id ORDER BY m.id), '{}'),
	u.created_at`

func scanUser(row scanner) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsSuperuser, &u.OrganizationIDs, &u.CreatedAt)
	return u, err
}

func (q queries) GetUser(ctx context.Context, id int64) (store.User, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id), scanUser)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER($1)`, email), scanUser)
}

func (q queries) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := q.q.Query(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.id`)
	return collect(rows, err, scanUser)
}

func scanProfile(row scanner) (store.Profile, error) {
	var p store.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.JobTitle, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q queries) GetProfileByUser(ctx context.Context, userID int64) (store.Profile, error) {
	return one(q.q.QueryRow(ctx, `
		SELECT id, user_id, job_title, created_at, updated_at FROM profiles WHERE user_id = $1
	`, userID), scanProfile)
}

func scanOrganization(row scanner) (store.Organization, error) {
	var o store.Organization
	err := row.Scan(&o.ID, &o.Name, &o.CreatedAt)
	return o, err
}

func (q queries) GetOrganization(ctx context.Context, id int64) (store.Organization, error) {
	return one(q.q.QueryRow(ctx, `SELECT id, name, created_at FROM organizations WHERE id = $1`, id), scanOrganization)
}

func (q queries) ListOrganizations(ctx context.Context) ([]store.Organization, error) {
	rows, err := q.q.Query(ctx, `SELECT id, name, created_at FROM organizations ORDER BY id`)
	return collect(rows, err, scanOrganization)
}

const membershipColumns = `id, organization_id, user_id, role, created_at`

func scanMembership(row scanner) (store.Membership, error) {
	var m store.Membership
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	return m, err
}

func (q queries) GetMembership(ctx context.Context, id int64) (store.Membership, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, id), scanMembership)
}

func (q queries) ListMemberships(ctx context.Context) ([]store.Membership, error) {
	rows, err := q.q.Query(ctx, `SELECT `+membershipColumns+` FROM memberships ORDER BY id`)
	return collect(rows, err, scanMembership)
}

func (q queries) ListMembershipsByUser(ctx context.Context, userID int64) ([]store.Membership, error) {
	rows, err := q.q.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY id`, userID)
	return collect(rows, err, scanMembership)
}

const inviteColumns = `id, organization_id, inviter_id, email, state, key, created_at, updated_at`

func scanInvite(row scanner) (store.Invite, error) {
	var i store.Invite
	err := row.Scan(&i.ID, &i.OrganizationID, &i.InviterID, &i.Email, &i.State, &i.Key, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (q queries) GetInvite(ctx context.Context, id int64) (store.Invite, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = $1`, id), scanInvite)
}

func (q queries) GetInviteByKey(ctx context.Context, key string) (store.Invite, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE key = $1`, key), scanInvite)
}

func (q queries) ListInvites(ctx context.Context) ([]store.Invite, error) {
	rows, err := q.q.Query(ctx, `SELECT `+inviteColumns+` FROM invites ORDER BY id`)
	return collect(rows, err, scanInvite)
}

func (q queries) ListInvitesByEmail(ctx context.Context, email string) ([]store.Invite, error) {
	rows, err := q.q.Query(ctx, `SELECT `+inviteColumns+` FROM invites WHERE LOWER(email) = LOWER($1) ORDER BY id`, email)
	return collect(rows, err, scanInvite)
}

const projectColumns = `id, organization_id, name, key, url, created_at`

func scanProject(row scanner) (store.Project, error) {
	var p store.Project
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.URL, &p.CreatedAt)
	return p, err
}

func (q queries) GetProject(ctx context.Context, id int64) (store.Project, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id), scanProject)
}

func (q queries) GetProjectByKey(ctx context.Context, key string) (store.Project, error) {
	return one(q.q.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE key = $1`, key), scanProject)
}

func (q queries) ListProjects(ctx context.Context) ([]store.Project, error) {
	rows, err := q.q.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	return collect(rows, err, scanProject)
}

func scanTaskColumn(row scanner) (store.TaskColumn, error) {
	var c store.TaskColumn
	err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Order)
	return c, err
}

func (q queries) GetTaskColumn(ctx context.Context, id int64) (store.TaskColumn, error) {
	return one(q.q.QueryRow(ctx, `SELECT id, project_id, name, sort_order FROM task_columns WHERE id = $1`, id), scanTaskColumn)
}

func (q queries) ListTaskColumns(ctx context.Context, projectID int64) ([]store.TaskColumn, error) {
	rows, err := q.q.Query(ctx, `
		SELECT id, project_id, name, sort_order FROM task_columns
		WHERE project_id = $1 ORDER BY sort_order, id
	`, projectID)
	return collect(rows, err, scanTaskColumn)
}

const taskSelect = `SELECT t.id, t.project_id, p.organization_id, t.task_column_id, t.task_number, t.sort_order,
	t.title, t.description, t.design_edits, t.target_dom_path, t.target_id, t.is_resolved,
	t.creator_id, t.one_off_email_set_by, t.assigned_to_id,
	t.window_screenshot_url, t.element_screenshot_url, t.created_at, t.updated_at
	FROM tasks t JOIN projects p ON p.id = t.project_id`

func scanTask(row scanner) (store.Task, error) {
	var t store.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.OrganizationID, &t.TaskColumnID, &t.TaskNumber, &t.Order,
		&t.Title, &t.Description, &t.DesignEdits, &t.TargetDOMPath, &t.TargetID, &t.IsResolved,
		&t.CreatorID, &t.OneOffEmailSetBy, &t.AssignedToID,
		&t.WindowScreenshotURL, &t.ElementScreenshotURL, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q queries) GetTask(ctx context.Context, id int64) (store.Task, error) {
	return one(q.q.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id), scanTask)
}

func (q queries) ListTasks(ctx context.Context, projectID int64) ([]store.Task, error) {
	rows, err := q.q.Query(ctx, taskSelect+` WHERE t.project_id = $1 ORDER BY t.id`, projectID)
	return collect(rows, err, scanTask)
}

func (q queries) ListTasksByIDs(ctx context.Context, ids []int64) ([]store.Task, error) {
	rows, err := q.q.Query(ctx, taskSelect+` WHERE t.id = ANY($1) ORDER BY t.id`, ids)
	return collect(rows, err, scanTask)
}

func (q queries) CountTasks(ctx context.Context, projectID int64) (int, error) {
	var count int
	err := q.q.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE project_id = $1`, projectID).Scan(&count)
	return count, mapPostgresError(err)
}

func (q queries) LastOrderInColumn(ctx context.Context, columnID int64) (int, bool, error) {
	var last *int
	err := q.q.QueryRow(ctx, `SELECT MAX(sort_order) FROM tasks WHERE task_column_id = $1`, columnID).Scan(&last)
	if err != nil {
		return 0, false, mapPostgresError(err)
	}
	if last == nil {
		return 0, false, nil
	}
	return *last, true, nil
}

func (q queries) GetTaskMetadata(ctx context.Context, taskID int64) (store.TaskMetadata, error) {
	return one(q.q.QueryRow(ctx, `
		SELECT m.id, m.task_id, p.organization_id, t.creator_id,
			m.url_origin, m.os_name, m.os_version, m.os_version_name, m.browser_name, m.browser_version,
			m.selector, m.screen_height, m.screen_width, m.device_pixel_ratio,
			m.browser_window_width, m.browser_window_height, m.color_depth, m.pixel_depth
		FROM task_metadata m
		JOIN tasks t ON t.id = m.task_id
		JOIN projects p ON p.id = t.project_id
		WHERE m.task_id = $1
	`, taskID), func(row scanner) (store.TaskMetadata, error) {
		var m store.TaskMetadata
		err := row.Scan(&m.ID, &m.TaskID, &m.OrganizationID, &m.TaskCreatorID,
			&m.URLOrigin, &m.OSName, &m.OSVersion, &m.OSVersionName, &m.BrowserName, &m.BrowserVersion,
			&m.Selector, &m.ScreenHeight, &m.ScreenWidth, &m.DevicePixelRatio,
			&m.BrowserWindowWidth, &m.BrowserWindowHeight, &m.ColorDepth, &m.PixelDepth)
		return m, err
	})
}

func (q queries) GetTaskHTML(ctx context.Context, id int64) (store.TaskHTML, error) {
	return one(q.q.QueryRow(ctx, `SELECT id, task_id, html FROM task_html WHERE id = $1`, id),
		func(row scanner) (store.TaskHTML, error) {
			var h store.TaskHTML
			err := row.Scan(&h.ID, &h.TaskID, &h.HTML)
			return h, err
		})
}

func (q queries) GetTaskDataURL(ctx context.Context, id int64) (store.TaskDataURL, error) {
	return one(q.q.QueryRow(ctx, `
		SELECT id, task_id, window_screenshot, element_screenshot FROM task_data_urls WHERE id = $1
	`, id), func(row scanner) (store.TaskDataURL, error) {
		var d store.TaskDataURL
		err := row.Scan(&d.ID, &d.TaskID, &d.WindowScreenshot, &d.ElementScreenshot)
		return d, err
	})
}

const commentSelect = `SELECT c.id, c.task_id, p.organization_id, c.creator_id, c.text, c.created_at
	FROM task_comments c
	JOIN tasks t ON t.id = c.task_id
	JOIN projects p ON p.id = t.project_id`

func scanComment(row scanner) (store.TaskComment, error) {
	var c store.TaskComment
	err := row.Scan(&c.ID, &c.TaskID, &c.OrganizationID, &c.CreatorID, &c.Text, &c.CreatedAt)
	return c, err
}

func (q queries) GetTaskComment(ctx context.Context, id int64) (store.TaskComment, error) {
	return one(q.q.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id), scanComment)
}

func (q queries) ListTaskComments(ctx context.Context, taskID int64) ([]store.TaskComment, error) {
	rows, err := q.q.Query(ctx, commentSelect+` WHERE c.task_id = $1 ORDER BY c.id`, taskID)
	return collect(rows, err, scanComment)
}
