package notify

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"

	"collabsauce/api/internal/mention"
	"collabsauce/api/internal/store"
)

// Participants lists everyone involved in a task: its creator and assignee,
// each commenter followed by the people their comment mentions, then the
// people mentioned in the title and description.
func Participants(task store.Task, comments []store.TaskComment) []Candidate {
	var out []Candidate
	add := func(id int64) {
		out = append(out, Candidate{UserID: id, Reason: ReasonParticipant})
	}
	if task.CreatorID != nil {
		add(*task.CreatorID)
	}
	if task.AssignedToID != nil {
		add(*task.AssignedToID)
	}
	for _, c := range comments {
		add(c.CreatorID)
		for _, id := range mention.Extract(c.Text) {
			add(id)
		}
	}
	for _, id := range taskMentions(task) {
		add(id)
	}
	return out
}

func taskMentions(task store.Task) []int64 {
	return append(mention.Extract(task.Title), mention.Extract(task.Description)...)
}

func (f *Fanout) TaskURL(task store.Task) string {
	return fmt.Sprintf("%s/projects/%d/tasks/%d", f.baseURL, task.ProjectID, task.ID)
}

func (f *Fanout) InviteURL(invite store.Invite) string {
	return fmt.Sprintf("%s/invites/accept?key=%s&email=%s", f.baseURL, url.QueryEscape(invite.Key), url.QueryEscape(invite.Email))
}

// visitorAddress returns the address a widget visitor left, or "" when they
// typed something else such as their name.
func visitorAddress(setBy string) string {
	addr, err := mail.ParseAddress(setBy)
	if err != nil {
		return ""
	}
	return addr.Address
}

// creatorName is the creator's full name, or whatever a widget visitor left.
func (f *Fanout) creatorName(ctx context.Context, task store.Task) (int64, string, error) {
	if task.CreatorID == nil {
		return 0, task.OneOffEmailSetBy, nil
	}
	user, err := f.reader.GetUser(ctx, *task.CreatorID)
	if err != nil {
		return 0, "", fmt.Errorf("load task creator: %w", err)
	}
	return user.ID, user.FullName(), nil
}

func (f *Fanout) userName(ctx context.Context, id int64) (string, error) {
	user, err := f.reader.GetUser(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load user %d: %w", id, err)
	}
	return user.FullName(), nil
}

// TaskCreated tells the assignee and everyone mentioned in the task.
func (f *Fanout) TaskCreated(ctx context.Context, taskID int64) (Result, error) {
	task, err := f.reader.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("load task: %w", err)
	}
	creatorID, creator, err := f.creatorName(ctx, task)
	if err != nil {
		return Result{}, err
	}

	plan := Plan{ActorID: creatorID, ActorEmail: visitorAddress(task.OneOffEmailSetBy)}
	if task.AssignedToID != nil {
		plan.Direct = append(plan.Direct, Candidate{UserID: *task.AssignedToID, Reason: ReasonAssigned})
	}
	for _, id := range taskMentions(task) {
		plan.Direct = append(plan.Direct, Candidate{UserID: id, Reason: ReasonMentioned})
	}

	data := Data{ActorName: creator, TaskURL: f.TaskURL(task), TaskNumber: task.TaskNumber}
	return f.Deliver(ctx, plan, func(r Recipient) Message {
		if r.Reason == ReasonAssigned {
			return Message{Subject: creator + " has assigned you a task.", Template: TemplateTaskAssigned, Data: data}
		}
		return Message{Subject: creator + " has mentioned you on a task.", Template: TemplateTaskMention, Data: data}
	}), nil
}

// CommentCreated tells the people the comment mentions, then every other
// participant of the task.
func (f *Fanout) CommentCreated(ctx context.Context, commentID int64) (Result, error) {
	comment, err := f.reader.GetTaskComment(ctx, commentID)
	if err != nil {
		return Result{}, fmt.Errorf("load comment: %w", err)
	}
	task, err := f.reader.GetTask(ctx, comment.TaskID)
	if err != nil {
		return Result{}, fmt.Errorf("load task: %w", err)
	}
	comments, err := f.reader.ListTaskComments(ctx, task.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list comments: %w", err)
	}
	commenter, err := f.userName(ctx, comment.CreatorID)
	if err != nil {
		return Result{}, err
	}

	plan := Plan{ActorID: comment.CreatorID, Participants: Participants(task, comments)}
	for _, id := range mention.Extract(comment.Text) {
		plan.Direct = append(plan.Direct, Candidate{UserID: id, Reason: ReasonMentioned})
	}

	data := Data{ActorName: commenter, TaskURL: f.TaskURL(task), TaskNumber: task.TaskNumber}
	return f.Deliver(ctx, plan, func(r Recipient) Message {
		if r.Reason == ReasonMentioned {
			return Message{Subject: commenter + " has mentioned you on a task.", Template: TemplateCommentMention, Data: data}
		}
		return Message{Subject: commenter + " has commented on a task you are participating on.", Template: TemplateCommentParticipant, Data: data}
	}), nil
}

// AssigneeChanged tells the new assignee unless they assigned themselves.
func (f *Fanout) AssigneeChanged(ctx context.Context, taskID, assigneeID int64, actorID *int64) (Result, error) {
	task, err := f.reader.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("load task: %w", err)
	}
	plan := Plan{Direct: []Candidate{{UserID: assigneeID, Reason: ReasonAssigned}}}
	data := Data{TaskURL: f.TaskURL(task), TaskNumber: task.TaskNumber}
	if actorID != nil {
		plan.ActorID = *actorID
		if data.ActorName, err = f.userName(ctx, *actorID); err != nil {
			return Result{}, err
		}
	}
	return f.Deliver(ctx, plan, func(Recipient) Message {
		return Message{Subject: "You have been assigned a task!", Template: TemplateAssigneeChanged, Data: data}
	}), nil
}

// ColumnChanged tells every participant except the mover.
func (f *Fanout) ColumnChanged(ctx context.Context, taskID, prevColumnID, newColumnID, moverID int64) (Result, error) {
	task, err := f.reader.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("load task: %w", err)
	}
	prev, err := f.reader.GetTaskColumn(ctx, prevColumnID)
	if err != nil {
		return Result{}, fmt.Errorf("load previous column: %w", err)
	}
	next, err := f.reader.GetTaskColumn(ctx, newColumnID)
	if err != nil {
		return Result{}, fmt.Errorf("load new column: %w", err)
	}
	comments, err := f.reader.ListTaskComments(ctx, task.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list comments: %w", err)
	}
	mover, err := f.userName(ctx, moverID)
	if err != nil {
		return Result{}, err
	}

	plan := Plan{ActorID: moverID, Participants: Participants(task, comments)}
	data := Data{
		ActorName:      mover,
		TaskURL:        f.TaskURL(task),
		TaskNumber:     task.TaskNumber,
		PrevColumnName: prev.Name,
		NewColumnName:  next.Name,
	}
	subject := fmt.Sprintf("%s has moved task # %d from `%s` to `%s`.", mover, task.TaskNumber, prev.Name, next.Name)
	return f.Deliver(ctx, plan, func(Recipient) Message {
		return Message{Subject: subject, Template: TemplateColumnChanged, Data: data}
	}), nil
}

func (f *Fanout) InviteCreated(ctx context.Context, inviteID int64, actorID *int64) (Result, error) {
	return f.invite(ctx, inviteID, actorID, func(org string) (string, Template) {
		return fmt.Sprintf("You have been invited to join %s organization on Collab Sauce!", org), TemplateInviteCreated
	})
}

func (f *Fanout) InviteCanceled(ctx context.Context, inviteID int64, actorID *int64) (Result, error) {
	return f.invite(ctx, inviteID, actorID, func(org string) (string, Template) {
		return fmt.Sprintf("Your invitation to join %s organization has been canceled", org), TemplateInviteCanceled
	})
}

func (f *Fanout) invite(ctx context.Context, inviteID int64, actorID *int64, subject func(org string) (string, Template)) (Result, error) {
	invite, err := f.reader.GetInvite(ctx, inviteID)
	if err != nil {
		return Result{}, fmt.Errorf("load invite: %w", err)
	}
	org, err := f.reader.GetOrganization(ctx, invite.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("load organization: %w", err)
	}
	inviterID := invite.InviterID
	if actorID != nil {
		inviterID = *actorID
	}
	inviter, err := f.userName(ctx, inviterID)
	if err != nil {
		return Result{}, err
	}

	plan := Plan{ActorID: inviterID, Direct: []Candidate{{Email: invite.Email, Reason: ReasonInvited}}}
	data := Data{
		ActorName:        inviter,
		OrganizationName: org.Name,
		InviteURL:        f.InviteURL(invite),
		Email:            invite.Email,
	}
	s, tmpl := subject(org.Name)
	return f.Deliver(ctx, plan, func(Recipient) Message {
		return Message{Subject: s, Template: tmpl, Data: data}
	}), nil
}
