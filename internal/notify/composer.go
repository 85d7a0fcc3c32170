// Package notify scans the task mirror for notification conditions and
// sends each alert at most once per condition instance.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/felixgeelhaar/boardsync/internal/notify/activity"
)

// Composer generates message bodies. Implemented by the openai package.
type Composer interface {
	Compose(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Sender delivers mail. Implemented by the mailer package.
type Sender interface {
	Send(ctx context.Context, subject, body, from string, to []string) error
}

// Persona parameterizes every generated message.
type Persona struct {
	// BotName is the assistant name used in the system prompt.
	BotName string
	// SupervisorName is the supervisor addressed in supervisor copies.
	SupervisorName string
}

func (p Persona) systemPrompt() string {
	return fmt.Sprintf("You are a helpful management assistant, and your name is %q.", p.BotName)
}

func deadlineText(t *domain.Task) string {
	if t.Deadline == nil {
		return "no deadline"
	}
	return t.Deadline.Format(time.RFC1123)
}

func assigneeName(t *domain.Task) string {
	if t.MemberName != "" {
		return t.MemberName
	}
	if t.MemberHandle != "" {
		return t.MemberHandle
	}
	return "the assignee"
}

func (p Persona) assignedPrompt(t *domain.Task, toSupervisor bool) string {
	var b strings.Builder
	role := "employee"
	if toSupervisor {
		role = "boss"
	}
	fmt.Fprintf(&b, "Write a professional email to the %s about a newly assigned task titled %q. ", role, t.Title)
	fmt.Fprintf(&b, "Task details: %s. Deadline is %s. ", t.Description, deadlineText(t))
	if toSupervisor {
		fmt.Fprintf(&b, "Write in short, summarized form to %q that employee %s has a newly assigned task.", p.SupervisorName, assigneeName(t))
	} else {
		fmt.Fprintf(&b, "Write in short, summarized form to %q about the task.", assigneeName(t))
	}
	return b.String()
}

func (p Persona) overduePrompt(t *domain.Task, toSupervisor bool) string {
	var b strings.Builder
	role := "employee"
	if toSupervisor {
		role = "boss"
	}
	fmt.Fprintf(&b, "Write a professional email to the %s about the overdue task titled %q. ", role, t.Title)
	fmt.Fprintf(&b, "Task details: %s. Deadline was %s. ", t.Description, deadlineText(t))
	if toSupervisor {
		fmt.Fprintf(&b, "Write in short, summarized form to %q that employee %s has not completed the task.", p.SupervisorName, assigneeName(t))
	} else {
		fmt.Fprintf(&b, "Write in short, summarized form to %q, asking them to complete the task as soon as possible, "+
			"and mention that their task score will keep dropping the longer completion is delayed.", assigneeName(t))
	}
	return b.String()
}

func (p Persona) escalationPrompt(t *domain.Task, now time.Time, toSupervisor bool) string {
	overdueBy := now.Sub(*t.Deadline)
	days := int(overdueBy.Hours()) / 24
	hours := int(overdueBy.Hours()) % 24

	var b strings.Builder
	role := "employee"
	if toSupervisor {
		role = "boss"
	}
	fmt.Fprintf(&b, "Write a professional email to the %s about the overdue task titled %q. ", role, t.Title)
	fmt.Fprintf(&b, "Task details: %s. Deadline was %s and it is already overdue by %d days and %d hours. ",
		t.Description, deadlineText(t), days, hours)
	if toSupervisor {
		fmt.Fprintf(&b, "Write in short, summarized form to %q that employee %s has not completed the task.", p.SupervisorName, assigneeName(t))
	} else {
		fmt.Fprintf(&b, "Write in short, summarized form to %q, asking them to complete the task as soon as possible, "+
			"and mention that their task score will keep dropping the longer completion is delayed.", assigneeName(t))
	}
	return b.String()
}

func (p Persona) completionPrompt(t *domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a professional email to the boss that the task titled %q is completed. ", t.Title)
	fmt.Fprintf(&b, "Task details: %s. Deadline was %s. ", t.Description, deadlineText(t))
	fmt.Fprintf(&b, "Write in short, summarized form to %q that employee %s has completed the task.", p.SupervisorName, assigneeName(t))
	return b.String()
}

func (p Persona) summarySystemPrompt() string {
	return fmt.Sprintf("You are a helpful assistant named %q who summarizes daily work for a boss.", p.BotName)
}

func (p Persona) summaryPrompt(day time.Time, entries []activity.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following work updates for %s from %s:\n\n", p.SupervisorName, day.Format("2006-01-02"))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n", e.Description)
	}
	return b.String()
}
