package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/notify"
	"collabsauce/api/internal/objectstore"
	"collabsauce/api/internal/screenshot"
	"collabsauce/api/internal/store"
)

// JobHandlers wires every follow-up job kind to the component that carries
// it out.
func (s *Service) JobHandlers(fanout *notify.Fanout, renderer screenshot.Renderer) map[jobs.Kind]jobs.Handler {
	return map[jobs.Kind]jobs.Handler{
		jobs.KindTaskCreated: func(ctx context.Context, job jobs.Job) error {
			var p jobs.TaskCreated
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.TaskCreated(ctx, p.TaskID)
			})
		},
		jobs.KindCommentCreated: func(ctx context.Context, job jobs.Job) error {
			var p jobs.CommentCreated
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.CommentCreated(ctx, p.CommentID)
			})
		},
		jobs.KindAssigneeChanged: func(ctx context.Context, job jobs.Job) error {
			var p jobs.AssigneeChanged
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.AssigneeChanged(ctx, p.TaskID, p.AssigneeID, &p.ActorID)
			})
		},
		jobs.KindColumnChanged: func(ctx context.Context, job jobs.Job) error {
			var p jobs.ColumnChanged
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.ColumnChanged(ctx, p.TaskID, p.PrevColumnID, p.NewColumnID, p.MoverID)
			})
		},
		jobs.KindInviteCreated: func(ctx context.Context, job jobs.Job) error {
			var p jobs.InviteEvent
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.InviteCreated(ctx, p.InviteID, &p.ActorID)
			})
		},
		jobs.KindInviteCanceled: func(ctx context.Context, job jobs.Job) error {
			var p jobs.InviteEvent
			return notifyJob(ctx, job, &p, func() (notify.Result, error) {
				return fanout.InviteCanceled(ctx, p.InviteID, &p.ActorID)
			})
		},
		jobs.KindScreenshot: func(ctx context.Context, job jobs.Job) error {
			var p jobs.Screenshot
			if err := job.Decode(&p); err != nil {
				return backoff.Permanent(err)
			}
			return permanentIfGone(s.renderScreenshots(ctx, renderer, p))
		},
		jobs.KindExtensionUpload: func(ctx context.Context, job jobs.Job) error {
			var p jobs.ExtensionUpload
			if err := job.Decode(&p); err != nil {
				return backoff.Permanent(err)
			}
			return permanentIfGone(s.uploadExtensionScreenshots(ctx, p))
		},
	}
}

// notifyJob decodes the payload and runs one fanout. Per-recipient failures
// were already logged by the fanout and do not fail the job; a record that
// no longer exists fails it permanently.
func notifyJob(ctx context.Context, job jobs.Job, payload any, run func() (notify.Result, error)) error {
	if err := job.Decode(payload); err != nil {
		return backoff.Permanent(err)
	}
	result, err := run()
	if err != nil {
		return permanentIfGone(err)
	}
	zerolog.Ctx(ctx).Info().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("notifications delivered")
	return nil
}

func permanentIfGone(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, screenshot.ErrChromeMissing) || errors.Is(err, screenshot.ErrInvalidDataURL) {
		return backoff.Permanent(err)
	}
	return err
}

// renderScreenshots renders the page the widget captured and stores the
// window and, when the task targets an element, the element screenshot.
func (s *Service) renderScreenshots(ctx context.Context, renderer screenshot.Renderer, p jobs.Screenshot) error {
	task, err := s.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	html, err := s.store.GetTaskHTML(ctx, p.TaskHTMLID)
	if err != nil {
		return fmt.Errorf("load task html: %w", err)
	}
	metadata, err := s.store.GetTaskMetadata(ctx, task.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load task metadata: %w", err)
	}

	shots, err := renderer.Render(ctx, screenshot.RequestFor(task, metadata, html.HTML))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return s.storeScreenshots(ctx, task, shots.Window, shots.Element, func(tx store.Tx) error {
		return tx.DeleteTaskHTML(ctx, html.ID)
	})
}

func (s *Service) uploadExtensionScreenshots(ctx context.Context, p jobs.ExtensionUpload) error {
	task, err := s.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	dataURL, err := s.store.GetTaskDataURL(ctx, p.DataURLID)
	if err != nil {
		return fmt.Errorf("load data url: %w", err)
	}
	window, err := screenshot.DecodePNGDataURL(dataURL.WindowScreenshot)
	if err != nil {
		return fmt.Errorf("window screenshot: %w", err)
	}
	var element []byte
	if dataURL.ElementScreenshot != "" {
		if element, err = screenshot.DecodePNGDataURL(dataURL.ElementScreenshot); err != nil {
			return fmt.Errorf("element screenshot: %w", err)
		}
	}
	return s.storeScreenshots(ctx, task, window, element, func(tx store.Tx) error {
		return tx.DeleteTaskDataURL(ctx, dataURL.ID)
	})
}

// storeScreenshots uploads both shots under one file key, records their URLs
// and drops the capture they were made from in the same transaction.
func (s *Service) storeScreenshots(ctx context.Context, task store.Task, window, element []byte, dropSource func(tx store.Tx) error) error {
	fileKey := objectstore.NewFileKey()
	windowURL, err := s.objects.Put(ctx, objectstore.ScreenshotKey(task.OrganizationID, task.ProjectID, fileKey, objectstore.ShotWindow), window, "image/png")
	if err != nil {
		return fmt.Errorf("upload window screenshot: %w", err)
	}
	var elementURL string
	if len(element) > 0 {
		elementURL, err = s.objects.Put(ctx, objectstore.ScreenshotKey(task.OrganizationID, task.ProjectID, fileKey, objectstore.ShotElement), element, "image/png")
		if err != nil {
			return fmt.Errorf("upload element screenshot: %w", err)
		}
	}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.SetTaskScreenshots(ctx, task.ID, windowURL, elementURL); err != nil {
			return err
		}
		return dropSource(tx)
	})
	if err != nil {
		return fmt.Errorf("save screenshot urls: %w", err)
	}
	zerolog.Ctx(ctx).Info().Int64("task_id", task.ID).Str("window_url", windowURL).Msg("task screenshots stored")
	return nil
}
