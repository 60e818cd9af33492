// Package notify decides who hears about a task or invite event and hands one
// message per recipient to a Sender. Delivery is best effort: a failure for
// one recipient is logged and never stops the others.
package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"collabsauce/api/internal/metrics"
	"collabsauce/api/internal/store"
)

type Template string

const (
	TemplateTaskAssigned       Template = "task-assigned"
	TemplateTaskMention        Template = "task-mention"
	TemplateCommentMention     Template = "taskcomment-mention"
	TemplateCommentParticipant Template = "taskcomment-participating"
	TemplateAssigneeChanged    Template = "task-assigned-changed"
	TemplateColumnChanged      Template = "task-moved-column"
	TemplateInviteCreated      Template = "invite-created"
	TemplateInviteCanceled     Template = "invite-canceled"
)

// Data fills a template. Unused fields stay empty.
type Data struct {
	ActorName        string
	TaskURL          string
	TaskNumber       int
	PrevColumnName   string
	NewColumnName    string
	OrganizationName string
	InviteURL        string
	Email            string
}

type Message struct {
	To       string
	ToName   string
	Subject  string
	Template Template
	Data     Data
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Reason string

const (
	ReasonAssigned    Reason = "assigned"
	ReasonMentioned   Reason = "mentioned"
	ReasonParticipant Reason = "participant"
	ReasonInvited     Reason = "invited"
)

// Candidate is someone who may be notified. Email-only candidates have no
// account yet.
type Candidate struct {
	UserID int64
	Email  string
	Reason Reason
}

// Recipient is a resolved candidate.
type Recipient struct {
	User   store.User
	Email  string
	Reason Reason
}

// Plan lists candidates in priority order. The actor is never notified and
// each person receives at most one message, chosen by the first reason they
// qualify under.
type Plan struct {
	ActorID      int64
	ActorEmail   string
	Direct       []Candidate
	Participants []Candidate
}

type Result struct {
	Sent    int
	Failed  int
	Skipped int
}

type Fanout struct {
	reader  store.Reader
	sender  Sender
	baseURL string
	metrics *metrics.Metrics
}

func New(reader store.Reader, sender Sender, baseURL string, m *metrics.Metrics) *Fanout {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Fanout{reader: reader, sender: sender, baseURL: strings.TrimRight(baseURL, "/"), metrics: m}
}

// Deliver resolves each candidate not yet notified and sends compose's
// message for it.
func (f *Fanout) Deliver(ctx context.Context, p Plan, compose func(Recipient) Message) Result {
	logger := zerolog.Ctx(ctx)
	notifiedIDs := map[int64]bool{}
	notifiedEmails := map[string]bool{}
	if p.ActorID != 0 {
		notifiedIDs[p.ActorID] = true
	}
	if p.ActorEmail != "" {
		notifiedEmails[strings.ToLower(p.ActorEmail)] = true
	}

	var res Result
	candidates := append(append([]Candidate{}, p.Direct...), p.Participants...)
	for _, c := range candidates {
		if c.UserID != 0 && notifiedIDs[c.UserID] {
			res.Skipped++
			continue
		}

		r := Recipient{Email: c.Email, Reason: c.Reason}
		if c.UserID != 0 {
			user, err := f.reader.GetUser(ctx, c.UserID)
			if err != nil {
				logger.Warn().Err(err).Int64("user_id", c.UserID).Str("reason", string(c.Reason)).Msg("resolve notification recipient")
				f.metrics.Notifications.WithLabelValues("failed").Inc()
				res.Failed++
				// An unknown id is not retried under another reason.
				notifiedIDs[c.UserID] = true
				continue
			}
			r.User, r.Email = user, user.Email
		}

		key := strings.ToLower(r.Email)
		if key == "" || notifiedEmails[key] {
			res.Skipped++
			continue
		}
		notifiedEmails[key] = true
		if r.User.ID != 0 {
			notifiedIDs[r.User.ID] = true
		}

		msg := compose(r)
		msg.To = r.Email
		if r.User.ID != 0 {
			msg.ToName = r.User.FullName()
		}
		if err := f.sender.Send(ctx, msg); err != nil {
			logger.Warn().Err(err).Str("to", r.Email).Str("template", string(msg.Template)).Msg("send notification")
			f.metrics.Notifications.WithLabelValues("failed").Inc()
			res.Failed++
			continue
		}
		f.metrics.Notifications.WithLabelValues("sent").Inc()
		res.Sent++
	}
	if res.Skipped > 0 {
		f.metrics.Notifications.WithLabelValues("skipped").Add(float64(res.Skipped))
	}
	return res
}
