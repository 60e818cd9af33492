package app

import (
	"time"

	"collabsauce/api/internal/store"
)

type UserView struct {
	ID              int64   `json:"id"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	IsSuperuser     bool    `json:"is_superuser"`
	OrganizationIDs []int64 `json:"organization_ids"`
}

func userView(u store.User) UserView {
	orgs := u.OrganizationIDs
	if orgs == nil {
		orgs = []int64{}
	}
	return UserView{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		IsSuperuser:     u.IsSuperuser,
		OrganizationIDs: orgs,
	}
}

type ProfileView struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user"`
	JobTitle string `json:"job_title"`
}

func profileView(p store.Profile) ProfileView {
	return ProfileView{ID: p.ID, UserID: p.UserID, JobTitle: p.JobTitle}
}

type OrganizationView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func organizationView(o store.Organization) OrganizationView {
	return OrganizationView{ID: o.ID, Name: o.Name, CreatedAt: o.CreatedAt}
}

type MembershipView struct {
	ID             int64      `json:"id"`
	OrganizationID int64      `json:"organization"`
	UserID         int64      `json:"user"`
	Role           store.Role `json:"role"`
}

func membershipView(m store.Membership) MembershipView {
	return MembershipView{ID: m.ID, OrganizationID: m.OrganizationID, UserID: m.UserID, Role: m.Role}
}

type InviteView struct {
	ID             int64             `json:"id"`
	OrganizationID int64             `json:"organization"`
	InviterID      int64             `json:"inviter"`
	Email          string            `json:"email"`
	State          store.InviteState `json:"state"`
	CreatedAt      time.Time         `json:"created_at"`
}

func inviteView(i store.Invite) InviteView {
	return InviteView{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		InviterID:      i.InviterID,
		Email:          i.Email,
		State:          i.State,
		CreatedAt:      i.CreatedAt,
	}
}

type ProjectView struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization"`
	Name           string `json:"name"`
	Key            string `json:"key"`
	URL            string `json:"url"`
}

func projectView(p store.Project) ProjectView {
	return ProjectView{ID: p.ID, OrganizationID: p.OrganizationID, Name: p.Name, Key: p.Key, URL: p.URL}
}

type TaskColumnView struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}

func taskColumnView(c store.TaskColumn) TaskColumnView {
	return TaskColumnView{ID: c.ID, ProjectID: c.ProjectID, Name: c.Name, Order: c.Order}
}

type TaskView struct {
	ID                   int64     `json:"id"`
	ProjectID            int64     `json:"project"`
	TaskColumnID         int64     `json:"task_column"`
	TaskNumber           int       `json:"task_number"`
	Order                int       `json:"order"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	DesignEdits          string    `json:"design_edits"`
	TargetDOMPath        string    `json:"target_dom_path"`
	TargetID             string    `json:"target_id"`
	IsResolved           bool      `json:"is_resolved"`
	CreatorID            *int64    `json:"creator"`
	OneOffEmailSetBy     string    `json:"one_off_email_set_by"`
	AssignedToID         *int64    `json:"assigned_to"`
	WindowScreenshotURL  string    `json:"window_screenshot_url"`
	ElementScreenshotURL string    `json:"element_screenshot_url"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func taskView(t store.Task) TaskView {
	return TaskView{
		ID:                   t.ID,
		ProjectID:            t.ProjectID,
		TaskColumnID:         t.TaskColumnID,
		TaskNumber:           t.TaskNumber,
		Order:                t.Order,
		Title:                t.Title,
		Description:          t.Description,
		DesignEdits:          t.DesignEdits,
		TargetDOMPath:        t.TargetDOMPath,
		TargetID:             t.TargetID,
		IsResolved:           t.IsResolved,
		CreatorID:            t.CreatorID,
		OneOffEmailSetBy:     t.OneOffEmailSetBy,
		AssignedToID:         t.AssignedToID,
		WindowScreenshotURL:  t.WindowScreenshotURL,
		ElementScreenshotURL: t.ElementScreenshotURL,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

type TaskCommentView struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task"`
	CreatorID int64     `json:"creator"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func taskCommentView(c store.TaskComment) TaskCommentView {
	return TaskCommentView{ID: c.ID, TaskID: c.TaskID, CreatorID: c.CreatorID, Text: c.Text, CreatedAt: c.CreatedAt}
}

// TaskMetadataInput is the browser environment the widget reports with a task.
type TaskMetadataInput struct {
	URLOrigin           string  `json:"url_origin"`
	OSName              string  `json:"os_name"`
	OSVersion           string  `json:"os_version"`
	OSVersionName       string  `json:"os_version_name"`
	BrowserName         string  `json:"browser_name"`
	BrowserVersion      string  `json:"browser_version"`
	Selector            string  `json:"selector"`
	ScreenHeight        int     `json:"screen_height"`
	ScreenWidth         int     `json:"screen_width"`
	DevicePixelRatio    float64 `json:"device_pixel_ratio"`
	BrowserWindowWidth  int     `json:"browser_window_width"`
	BrowserWindowHeight int     `json:"browser_window_height"`
	ColorDepth          int     `json:"color_depth"`
	PixelDepth          int     `json:"pixel_depth"`
}

type TaskMetadataView struct {
	ID     int64 `json:"id"`
	TaskID int64 `json:"task"`
	TaskMetadataInput
}

func (in TaskMetadataInput) record(taskID int64) store.TaskMetadata {
	return store.TaskMetadata{
		TaskID:              taskID,
		URLOrigin:           in.URLOrigin,
		OSName:              in.OSName,
		OSVersion:           in.OSVersion,
		OSVersionName:       in.OSVersionName,
		BrowserName:         in.BrowserName,
		BrowserVersion:      in.BrowserVersion,
		Selector:            in.Selector,
		ScreenHeight:        in.ScreenHeight,
		ScreenWidth:         in.ScreenWidth,
		DevicePixelRatio:    in.DevicePixelRatio,
		BrowserWindowWidth:  in.BrowserWindowWidth,
		BrowserWindowHeight: in.BrowserWindowHeight,
		ColorDepth:          in.ColorDepth,
		PixelDepth:          in.PixelDepth,
	}
}

func taskMetadataView(m store.TaskMetadata) TaskMetadataView {
	return TaskMetadataView{
		ID:     m.ID,
		TaskID: m.TaskID,
		TaskMetadataInput: TaskMetadataInput{
			URLOrigin:           m.URLOrigin,
			OSName:              m.OSName,
			OSVersion:           m.OSVersion,
			OSVersionName:       m.OSVersionName,
			BrowserName:         m.BrowserName,
			BrowserVersion:      m.BrowserVersion,
			Selector:            m.Selector,
			ScreenHeight:        m.ScreenHeight,
			ScreenWidth:         m.ScreenWidth,
			DevicePixelRatio:    m.DevicePixelRatio,
			BrowserWindowWidth:  m.BrowserWindowWidth,
			BrowserWindowHeight: m.BrowserWindowHeight,
			ColorDepth:          m.ColorDepth,
			PixelDepth:          m.PixelDepth,
		},
	}
}

func mapViews[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
