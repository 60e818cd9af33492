package postgres

import (
	"context"

	"collabsauce/api/internal/store"
)

// LockProject takes a row lock on the project until the transaction ends.
func (t *tx) LockProject(ctx context.Context, projectID int64) error {
	var id int64
	err := t.q.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&id)
	return mapPostgresError(err)
}

func (t *tx) CreateUser(ctx context.Context, user *store.User) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO users (email, first_name, last_name, password_hash, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.IsSuperuser).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("users", user.ID)
	return nil
}

func (t *tx) CreateProfile(ctx context.Context, profile *store.Profile) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO profiles (user_id, job_title) VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, profile.UserID, profile.JobTitle).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("profiles", profile.ID)
	return nil
}

func (t *tx) UpdateProfile(ctx context.Context, profile store.Profile) error {
	return expectOne(t.q.Exec(ctx, `
		UPDATE profiles SET job_title = $2, updated_at = NOW() WHERE id = $1
	`, profile.ID, profile.JobTitle))
}

func (t *tx) CreateOrganization(ctx context.Context, org *store.Organization) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO organizations (name) VALUES ($1) RETURNING id, created_at
	`, org.Name).Scan(&org.ID, &org.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("organizations", org.ID)
	return nil
}

func (t *tx) UpdateOrganization(ctx context.Context, org store.Organization) error {
	return expectOne(t.q.Exec(ctx, `UPDATE organizations SET name = $2 WHERE id = $1`, org.ID, org.Name))
}

func (t *tx) CreateMembership(ctx context.Context, membership *store.Membership) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO memberships (organization_id, user_id, role) VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, membership.OrganizationID, membership.UserID, membership.Role).Scan(&membership.ID, &membership.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("memberships", membership.ID)
	return nil
}

func (t *tx) DeleteMembership(ctx context.Context, id int64) error {
	return expectOne(t.q.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id))
}

func (t *tx) CreateInvite(ctx context.Context, invite *store.Invite) error {
	if invite.State == "" {
		invite.State = store.InviteCreated
	}
	err := t.q.QueryRow(ctx, `
		INSERT INTO invites (organization_id, inviter_id, email, state, key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, invite.OrganizationID, invite.InviterID, invite.Email, invite.State, invite.Key).
		Scan(&invite.ID, &invite.CreatedAt, &invite.UpdatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("invites", invite.ID)
	return nil
}

func (t *tx) TransitionInvite(ctx context.Context, id int64, from, to store.InviteState) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE invites SET state = $3, updated_at = NOW() WHERE id = $1 AND state = $2
	`, id, from, to)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := t.GetInvite(ctx, id); err != nil {
		return err
	}
	return store.ErrConcurrentUpdate
}

func (t *tx) CreateProject(ctx context.Context, project *store.Project) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO projects (organization_id, name, key, url) VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, project.OrganizationID, project.Name, project.Key, project.URL).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("projects", project.ID)
	return nil
}

func (t *tx) UpdateProject(ctx context.Context, project store.Project) error {
	return expectOne(t.q.Exec(ctx, `
		UPDATE projects SET name = $2, url = $3 WHERE id = $1
	`, project.ID, project.Name, project.URL))
}

func (t *tx) CreateTaskColumn(ctx context.Context, column *store.TaskColumn) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO task_columns (project_id, name, sort_order) VALUES ($1, $2, $3) RETURNING id
	`, column.ProjectID, column.Name, column.Order).Scan(&column.ID)
	return mapPostgresError(err)
}

func (t *tx) CreateTask(ctx context.Context, task *store.Task) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO tasks (
			project_id, task_column_id, task_number, sort_order, title, description, design_edits,
			target_dom_path, target_id, is_resolved, creator_id, one_off_email_set_by, assigned_to_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at,
			(SELECT organization_id FROM projects WHERE id = $1)
	`, task.ProjectID, task.TaskColumnID, task.TaskNumber, task.Order, task.Title, task.Description, task.DesignEdits,
		task.TargetDOMPath, task.TargetID, task.IsResolved, task.CreatorID, task.OneOffEmailSetBy, task.AssignedToID).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt, &task.OrganizationID)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("tasks", task.ID)
	return nil
}

func (t *tx) UpdateTask(ctx context.Context, task store.Task) error {
	return expectOne(t.q.Exec(ctx, `
		UPDATE tasks SET
			title = $2, description = $3, design_edits = $4, is_resolved = $5,
			assigned_to_id = $6, task_column_id = $7, sort_order = $8, updated_at = NOW()
		WHERE id = $1
	`, task.ID, task.Title, task.Description, task.DesignEdits, task.IsResolved,
		task.AssignedToID, task.TaskColumnID, task.Order))
}

// UpdateTaskPlacements applies every placement in a single statement.
func (t *tx) UpdateTaskPlacements(ctx context.Context, placements []store.TaskPlacement) error {
	if len(placements) == 0 {
		return nil
	}
	ids := make([]int64, len(placements))
	orders := make([]int32, len(placements))
	columns := make([]int64, len(placements))
	for i, p := range placements {
		ids[i], orders[i], columns[i] = p.TaskID, int32(p.Order), p.TaskColumnID
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE tasks AS t SET sort_order = v.sort_order, task_column_id = v.task_column_id, updated_at = NOW()
		FROM UNNEST($1::bigint[], $2::int[], $3::bigint[]) AS v(id, sort_order, task_column_id)
		WHERE t.id = v.id
	`, ids, orders, columns)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() != int64(len(placements)) {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) SetTaskScreenshots(ctx context.Context, taskID int64, windowURL, elementURL string) error {
	return expectOne(t.q.Exec(ctx, `
		UPDATE tasks SET window_screenshot_url = $2, element_screenshot_url = $3, updated_at = NOW()
		WHERE id = $1
	`, taskID, windowURL, elementURL))
}

func (t *tx) CreateTaskMetadata(ctx context.Context, m *store.TaskMetadata) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO task_metadata (
			task_id, url_origin, os_name, os_version, os_version_name, browser_name, browser_version,
			selector, screen_height, screen_width, device_pixel_ratio,
			browser_window_width, browser_window_height, color_depth, pixel_depth
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, m.TaskID, m.URLOrigin, m.OSName, m.OSVersion, m.OSVersionName, m.BrowserName, m.BrowserVersion,
		m.Selector, m.ScreenHeight, m.ScreenWidth, m.DevicePixelRatio,
		m.BrowserWindowWidth, m.BrowserWindowHeight, m.ColorDepth, m.PixelDepth).Scan(&m.ID)
	return mapPostgresError(err)
}

func (t *tx) CreateTaskHTML(ctx context.Context, html *store.TaskHTML) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO task_html (task_id, html) VALUES ($1, $2) RETURNING id
	`, html.TaskID, html.HTML).Scan(&html.ID)
	return mapPostgresError(err)
}

func (t *tx) CreateTaskDataURL(ctx context.Context, d *store.TaskDataURL) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO task_data_urls (task_id, window_screenshot, element_screenshot) VALUES ($1, $2, $3) RETURNING id
	`, d.TaskID, d.WindowScreenshot, d.ElementScreenshot).Scan(&d.ID)
	return mapPostgresError(err)
}

func (t *tx) DeleteTaskHTML(ctx context.Context, id int64) error {
	return expectOne(t.q.Exec(ctx, `DELETE FROM task_html WHERE id = $1`, id))
}

func (t *tx) DeleteTaskDataURL(ctx context.Context, id int64) error {
	return expectOne(t.q.Exec(ctx, `DELETE FROM task_data_urls WHERE id = $1`, id))
}

func (t *tx) CreateTaskComment(ctx context.Context, comment *store.TaskComment) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO task_comments (task_id, creator_id, text) VALUES ($1, $2, $3)
		RETURNING id, created_at, (
			SELECT p.organization_id FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.id = $1
		)
	`, comment.TaskID, comment.CreatorID, comment.Text).Scan(&comment.ID, &comment.CreatedAt, &comment.OrganizationID)
	if err != nil {
		return mapPostgresError(err)
	}
	logWrite("task_comments", comment.ID)
	return nil
}
