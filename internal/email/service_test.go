package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"collabsauce/api/internal/notify"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderEveryTemplate(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "Collab Sauce"})
	data := notify.Data{
		ActorName:        "Olive Oyl",
		TaskURL:          "https://app.example.com/projects/1/tasks/2",
		TaskNumber:       7,
		PrevColumnName:   "Ready",
		NewColumnName:    "Review",
		OrganizationName: "Acme",
		InviteURL:        "https://app.example.com/invites/accept?key=abc",
		Email:            "new@example.com",
	}

	tests := []struct {
		template notify.Template
		want     []string
	}{
		{notify.TemplateTaskAssigned, []string{"Olive Oyl", "task #7", data.TaskURL}},
		{notify.TemplateTaskMention, []string{"mentioned you", data.TaskURL}},
		{notify.TemplateCommentMention, []string{"in a comment"}},
		{notify.TemplateCommentParticipant, []string{"participating"}},
		{notify.TemplateAssigneeChanged, []string{"by Olive Oyl"}},
		{notify.TemplateColumnChanged, []string{"<strong>Ready</strong>", "<strong>Review</strong>"}},
		{notify.TemplateInviteCreated, []string{"new@example.com", "Acme", "Accept invitation"}},
		{notify.TemplateInviteCanceled, []string{"canceled your invitation", "Acme"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.template), func(t *testing.T) {
			msg := notify.Message{To: "bob@example.com", ToName: "Bob", Subject: "Hello", Template: tt.template, Data: data}
			out, err := svc.Render(msg)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			body := string(out)
			for _, want := range append(tt.want, "To: Bob <bob@example.com>", "From: Collab Sauce <noreply@example.com>", "Subject: Hello", "Hi Bob,") {
				if !strings.Contains(body, want) {
					t.Errorf("message should contain %q", want)
				}
			}
		})
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	svc := NewService(Config{})
	if _, err := svc.Render(notify.Message{Template: "nope"}); err == nil {
		t.Fatal("expected an error for an unknown template")
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	msg := notify.Message{To: "bob@example.com", Subject: "Hi", Template: notify.TemplateTaskAssigned}

	t.Run("not configured", func(t *testing.T) {
		if err := NewService(Config{}).Send(ctx, msg); !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("Send() = %v, want ErrNotConfigured", err)
		}
	})

	t.Run("delivers to the recipient", func(t *testing.T) {
		svc := NewService(Config{Host: "smtp.example.com", Port: "2525", From: "noreply@example.com"})
		var gotAddr string
		var gotTo []string
		svc.send = func(addr string, _ smtp.Auth, _ string, to []string, _ []byte) error {
			gotAddr, gotTo = addr, to
			return nil
		}
		if err := svc.Send(ctx, msg); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if gotAddr != "smtp.example.com:2525" {
			t.Errorf("addr = %q", gotAddr)
		}
		if len(gotTo) != 1 || gotTo[0] != "bob@example.com" {
			t.Errorf("to = %v", gotTo)
		}
	})

	t.Run("wraps transport errors", func(t *testing.T) {
		svc := NewService(Config{Host: "smtp.example.com", Port: "2525", From: "noreply@example.com"})
		boom := errors.New("connection refused")
		svc.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
		if err := svc.Send(ctx, msg); !errors.Is(err, boom) {
			t.Fatalf("Send() = %v, want wrapped transport error", err)
		}
	})
}

func TestLogSender(t *testing.T) {
	if err := (LogSender{}).Send(context.Background(), notify.Message{To: "a@example.com"}); err != nil {
		t.Fatalf("LogSender.Send failed: %v", err)
	}
}
