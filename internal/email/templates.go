package email

import (
	"html/template"

	"collabsauce/api/internal/notify"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #e8552f; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #e8552f; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header"><h1>Collab Sauce</h1></div>
    {{if .ToName}}<p>Hi {{.ToName}},</p>{{end}}
    {{template "content" .}}
    <div class="footer"><p>You are receiving this because of your activity on Collab Sauce.</p></div>
</body>
</html>{{end}}`

var bodies = map[notify.Template]string{
	notify.TemplateTaskAssigned: `<p>{{.ActorName}} has assigned you task #{{.TaskNumber}}.</p>
    <p><a href="{{.TaskURL}}" class="button">View task</a></p>`,
	notify.TemplateTaskMention: `<p>{{.ActorName}} mentioned you on task #{{.TaskNumber}}.</p>
    <p><a href="{{.TaskURL}}" class="button">View task</a></p>`,
	notify.TemplateCommentMention: `<p>{{.ActorName}} mentioned you in a comment on task #{{.TaskNumber}}.</p>
    <p><a href="{{.TaskURL}}" class="button">View comment</a></p>`,
	notify.TemplateCommentParticipant: `<p>{{.ActorName}} commented on task #{{.TaskNumber}}, which you are participating on.</p>
    <p><a href="{{.TaskURL}}" class="button">View comment</a></p>`,
	notify.TemplateAssigneeChanged: `<p>You have been assigned task #{{.TaskNumber}}{{if .ActorName}} by {{.ActorName}}{{end}}.</p>
    <p><a href="{{.TaskURL}}" class="button">View task</a></p>`,
	notify.TemplateColumnChanged: `<p>{{.ActorName}} moved task #{{.TaskNumber}} from <strong>{{.PrevColumnName}}</strong> to <strong>{{.NewColumnName}}</strong>.</p>
    <p><a href="{{.TaskURL}}" class="button">View task</a></p>`,
	notify.TemplateInviteCreated: `<p>{{.ActorName}} invited {{.Email}} to join the {{.OrganizationName}} organization.</p>
    <p><a href="{{.InviteURL}}" class="button">Accept invitation</a></p>`,
	notify.TemplateInviteCanceled: `<p>{{.ActorName}} canceled your invitation to join the {{.OrganizationName}} organization.</p>`,
}

// parseTemplates builds one template per notification, each wrapped in the
// shared layout.
func parseTemplates() map[notify.Template]*template.Template {
	out := make(map[notify.Template]*template.Template, len(bodies))
	for name, body := range bodies {
		t := template.Must(template.New(string(name)).Parse(`{{template "layout" .}}{{define "content"}}` + body + `{{end}}`))
		out[name] = template.Must(t.Parse(layout))
	}
	return out
}
