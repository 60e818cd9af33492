package workflow

import (
	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/store"
)

// TaskCreatedJobs returns the notification job for a new task and, when the
// widget captured page HTML, the screenshot job.
func TaskCreatedJobs(task store.Task, actorID *int64, htmlID int64) ([]jobs.Job, error) {
	created, err := jobs.New(jobs.KindTaskCreated, jobs.TaskCreated{TaskID: task.ID, ActorID: actorID})
	if err != nil {
		return nil, err
	}
	out := []jobs.Job{created}
	if htmlID != 0 {
		shot, err := jobs.New(jobs.KindScreenshot, jobs.Screenshot{TaskID: task.ID, TaskHTMLID: htmlID})
		if err != nil {
			return nil, err
		}
		out = append(out, shot)
	}
	return out, nil
}

// ExtensionUploadJob uploads screenshots the browser extension captured.
func ExtensionUploadJob(taskID, dataURLID int64) (jobs.Job, error) {
	return jobs.New(jobs.KindExtensionUpload, jobs.ExtensionUpload{TaskID: taskID, DataURLID: dataURLID})
}

func ColumnChangeJobs(changes []ColumnChange, moverID int64) ([]jobs.Job, error) {
	out := make([]jobs.Job, 0, len(changes))
	for _, c := range changes {
		job, err := jobs.New(jobs.KindColumnChanged, jobs.ColumnChanged{
			TaskID:       c.TaskID,
			PrevColumnID: c.PrevColumnID,
			NewColumnID:  c.NewColumnID,
			MoverID:      moverID,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func AssigneeJobs(taskID int64, prev, next *int64, actorID int64) ([]jobs.Job, error) {
	if !AssigneeChanged(prev, next) {
		return nil, nil
	}
	job, err := jobs.New(jobs.KindAssigneeChanged, jobs.AssigneeChanged{TaskID: taskID, AssigneeID: *next, ActorID: actorID})
	if err != nil {
		return nil, err
	}
	return []jobs.Job{job}, nil
}

func CommentJobs(comment store.TaskComment) ([]jobs.Job, error) {
	job, err := jobs.New(jobs.KindCommentCreated, jobs.CommentCreated{CommentID: comment.ID})
	if err != nil {
		return nil, err
	}
	return []jobs.Job{job}, nil
}

func InviteJobs(kind jobs.Kind, invite store.Invite, actorID int64) ([]jobs.Job, error) {
	job, err := jobs.New(kind, jobs.InviteEvent{InviteID: invite.ID, ActorID: actorID})
	if err != nil {
		return nil, err
	}
	return []jobs.Job{job}, nil
}
