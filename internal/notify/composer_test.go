package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/felixgeelhaar/boardsync/internal/notify/activity"
)

func promptTask() *domain.Task {
	t := domain.NewTask("card-1", "Write report")
	t.Description = "quarterly numbers"
	deadline := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	t.Deadline = &deadline
	t.MemberName = "Ada Lovelace"
	return t
}

func TestPersona_SystemPrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot"}
	assert.Contains(t, p.systemPrompt(), `"Douze-bot"`)
}

func TestPersona_AssignedPrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}
	task := promptTask()

	t.Run("assignee copy addresses the employee", func(t *testing.T) {
		prompt := p.assignedPrompt(task, false)
		assert.Contains(t, prompt, "email to the employee")
		assert.Contains(t, prompt, `"Write report"`)
		assert.Contains(t, prompt, "quarterly numbers")
		assert.Contains(t, prompt, `"Ada Lovelace"`)
	})

	t.Run("supervisor copy addresses the boss", func(t *testing.T) {
		prompt := p.assignedPrompt(task, true)
		assert.Contains(t, prompt, "email to the boss")
		assert.Contains(t, prompt, `"Alex"`)
	})
}

func TestPersona_OverduePrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}
	task := promptTask()

	prompt := p.overduePrompt(task, false)

	assert.Contains(t, prompt, "overdue task")
	assert.Contains(t, prompt, "score will keep dropping")
}

func TestPersona_EscalationPrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}
	task := promptTask()
	now := task.Deadline.Add(50 * time.Hour)

	prompt := p.escalationPrompt(task, now, false)

	assert.Contains(t, prompt, "overdue by 2 days and 2 hours")
}

func TestPersona_CompletionPrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}
	task := promptTask()
	task.Complete(time.Now())

	prompt := p.completionPrompt(task)

	assert.Contains(t, prompt, "is completed")
	assert.Contains(t, prompt, `"Ada Lovelace"`)
}

func TestPersona_FallbackNames(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}

	t.Run("handle when name missing", func(t *testing.T) {
		task := promptTask()
		task.MemberName = ""
		task.MemberHandle = "ada"
		assert.Contains(t, p.assignedPrompt(task, false), `"ada"`)
	})

	t.Run("generic when neither known", func(t *testing.T) {
		task := promptTask()
		task.MemberName = ""
		assert.Contains(t, p.assignedPrompt(task, false), "the assignee")
	})

	t.Run("no deadline reads naturally", func(t *testing.T) {
		task := promptTask()
		task.Deadline = nil
		assert.Contains(t, p.assignedPrompt(task, false), "no deadline")
	})
}

func TestPersona_SummaryPrompt(t *testing.T) {
	p := Persona{BotName: "Douze-bot", SupervisorName: "Alex"}
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	entries := []activity.Entry{
		{Date: "2026-03-14", Description: "Closed the quarterly report"},
		{Date: "2026-03-14", Description: "Reviewed two pull requests"},
	}

	prompt := p.summaryPrompt(day, entries)

	assert.Contains(t, prompt, "2026-03-14")
	assert.Contains(t, prompt, "Closed the quarterly report")
	assert.Contains(t, prompt, "Reviewed two pull requests")
}
