package store

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDashboard Role = "dashboard"
	RoleWidget    Role = "widget"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDashboard, RoleWidget:
		return true
	default:
		return false
	}
}

type InviteState string

const (
	InviteCreated  InviteState = "created"
	InviteAccepted InviteState = "accepted"
	InviteDenied   InviteState = "denied"
	InviteCanceled InviteState = "canceled"
)

type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	// OrganizationIDs is populated on reads from the user's memberships.
	OrganizationIDs []int64
	CreatedAt       time.Time
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

type Profile struct {
	ID        int64
	UserID    int64
	JobTitle  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Organization struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Membership struct {
	ID             int64
	OrganizationID int64
	UserID         int64
	Role           Role
	CreatedAt      time.Time
}

type Invite struct {
	ID             int64
	OrganizationID int64
	InviterID      int64
	Email          string
	State          InviteState
	Key            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Project struct {
	ID             int64
	OrganizationID int64
	Name           string
	Key            string
	URL            string
	CreatedAt      time.Time
}

type TaskColumn struct {
	ID        int64
	ProjectID int64
	Name      string
	Order     int
}

type Task struct {
	ID                   int64
	ProjectID            int64
	OrganizationID       int64
	TaskColumnID         int64
	TaskNumber           int
	Order                int
	Title                string
	Description          string
	DesignEdits          string
	TargetDOMPath        string
	TargetID             string
	IsResolved           bool
	CreatorID            *int64
	OneOffEmailSetBy     string
	AssignedToID         *int64
	WindowScreenshotURL  string
	ElementScreenshotURL string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasTarget reports whether the widget captured a specific element.
func (t Task) HasTarget() bool {
	return t.TargetDOMPath != "" || t.TargetID != ""
}

// TaskPlacement is one row of a bulk reorder.
type TaskPlacement struct {
	TaskID       int64
	Order        int
	TaskColumnID int64
}

type TaskComment struct {
	ID             int64
	TaskID         int64
	OrganizationID int64
	CreatorID      int64
	Text           string
	CreatedAt      time.Time
}

type TaskMetadata struct {
	ID                  int64
	TaskID              int64
	OrganizationID      int64
	TaskCreatorID       *int64
	URLOrigin           string
	OSName              string
	OSVersion           string
	OSVersionName       string
	BrowserName         string
	BrowserVersion      string
	Selector            string
	ScreenHeight        int
	ScreenWidth         int
	DevicePixelRatio    float64
	BrowserWindowWidth  int
	BrowserWindowHeight int
	ColorDepth          int
	PixelDepth          int
}

type TaskHTML struct {
	ID     int64
	TaskID int64
	HTML   string
}

type TaskDataURL struct {
	ID                int64
	TaskID            int64
	WindowScreenshot  string
	ElementScreenshot string
}
