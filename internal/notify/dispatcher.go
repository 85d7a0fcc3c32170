package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// DispatcherConfig configures the notification scans.
type DispatcherConfig struct {
	Persona         Persona
	SupervisorEmail string
	FromAddress     string

	// EscalationGrace is how far past the deadline a task must be before
	// the escalation variant fires. Zero means 24h.
	EscalationGrace time.Duration

	// MessageMaxTokens bounds each generated message body.
	MessageMaxTokens int
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Persona:          Persona{BotName: "boardsync-bot", SupervisorName: "the supervisor"},
		EscalationGrace:  24 * time.Hour,
		MessageMaxTokens: 280,
	}
}

// Dispatcher runs the four independent notification scans. Each scan is
// idempotent through its own task flag: the flag is claimed with a
// conditional write before sending and released again if the send fails,
// so concurrent passes never double-send and failed sends retry on the
// next scan.
type Dispatcher struct {
	tasks    domain.TaskRepository
	members  domain.MemberRepository
	composer Composer
	sender   Sender
	config   DispatcherConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(tasks domain.TaskRepository, members domain.MemberRepository, composer Composer, sender Sender, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EscalationGrace <= 0 {
		cfg.EscalationGrace = 24 * time.Hour
	}
	if cfg.MessageMaxTokens <= 0 {
		cfg.MessageMaxTokens = 280
	}
	if cfg.Persona.BotName == "" {
		cfg.Persona.BotName = "boardsync-bot"
	}
	return &Dispatcher{
		tasks:    tasks,
		members:  members,
		composer: composer,
		sender:   sender,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// RunAll executes every scan once. Scan-level failures are collected;
// per-task failures are logged and scoped to that task.
func (d *Dispatcher) RunAll(ctx context.Context) error {
	var errs []error
	if _, err := d.RunAssignmentScan(ctx); err != nil {
		errs = append(errs, fmt.Errorf("assignment scan: %w", err))
	}
	if _, err := d.RunOverdueScan(ctx); err != nil {
		errs = append(errs, fmt.Errorf("overdue scan: %w", err))
	}
	if _, err := d.RunEscalationScan(ctx); err != nil {
		errs = append(errs, fmt.Errorf("escalation scan: %w", err))
	}
	if _, err := d.RunCompletionScan(ctx); err != nil {
		errs = append(errs, fmt.Errorf("completion scan: %w", err))
	}
	return errors.Join(errs...)
}

// RunAssignmentScan notifies assignee and supervisor about open tasks
// that have not had their assignment notice yet. Returns the number of
// tasks notified.
func (d *Dispatcher) RunAssignmentScan(ctx context.Context) (int, error) {
	tasks, err := d.tasks.FindAssignmentPending(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, t := range tasks {
		ok := d.notify(ctx, t, domain.NotifyAssignment, func() error {
			subject := "Assigned task: " + t.Title
			if err := d.sendToAssignee(ctx, t, subject, d.config.Persona.assignedPrompt(t, false)); err != nil {
				return err
			}
			return d.sendToSupervisor(ctx, "Task assigned to employee: "+t.Title, d.config.Persona.assignedPrompt(t, true))
		})
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunOverdueScan notifies about open tasks past their deadline.
func (d *Dispatcher) RunOverdueScan(ctx context.Context) (int, error) {
	tasks, err := d.tasks.FindOverdue(ctx, d.now())
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, t := range tasks {
		ok := d.notify(ctx, t, domain.NotifyOverdue, func() error {
			subject := "Task overdue: " + t.Title
			if err := d.sendToAssignee(ctx, t, subject, d.config.Persona.overduePrompt(t, false)); err != nil {
				return err
			}
			return d.sendToSupervisor(ctx, "Employee task overdue: "+t.Title, d.config.Persona.overduePrompt(t, true))
		})
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunEscalationScan notifies about open tasks whose deadline passed more
// than the grace period ago, with explicit days/hours overdue. It is
// gated by its own flag, distinct from the overdue notice.
func (d *Dispatcher) RunEscalationScan(ctx context.Context) (int, error) {
	now := d.now()
	tasks, err := d.tasks.FindEscalated(ctx, now.Add(-d.config.EscalationGrace))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, t := range tasks {
		ok := d.notify(ctx, t, domain.NotifyEscalation, func() error {
			subject := "Task overdue: " + t.Title
			if err := d.sendToAssignee(ctx, t, subject, d.config.Persona.escalationPrompt(t, now, false)); err != nil {
				return err
			}
			return d.sendToSupervisor(ctx, "Employee task overdue: "+t.Title, d.config.Persona.escalationPrompt(t, now, true))
		})
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunCompletionScan notifies the supervisor about completed tasks.
func (d *Dispatcher) RunCompletionScan(ctx context.Context) (int, error) {
	tasks, err := d.tasks.FindCompletionPending(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, t := range tasks {
		if t.MemberRef == "" {
			continue
		}
		ok := d.notify(ctx, t, domain.NotifyCompletion, func() error {
			return d.sendToSupervisor(ctx, "Task is completed: "+t.Title, d.config.Persona.completionPrompt(t))
		})
		if ok {
			sent++
		}
	}
	return sent, nil
}

// notify claims the flag, runs the send, and releases the claim on
// failure. Returns true when the notification went out in this call.
func (d *Dispatcher) notify(ctx context.Context, t *domain.Task, kind domain.NotificationKind, send func() error) bool {
	claimed, err := d.tasks.MarkNotified(ctx, t.ID, kind)
	if err != nil {
		d.logger.Error("failed to claim notification flag",
			"kind", kind.String(),
			"external_ref", t.ExternalRef,
			"error", err,
		)
		return false
	}
	if !claimed {
		return false
	}

	if err := send(); err != nil {
		d.logger.Warn("notification failed, will retry",
			"kind", kind.String(),
			"external_ref", t.ExternalRef,
			"error", err,
		)
		if clearErr := d.tasks.ClearNotified(ctx, t.ID, kind); clearErr != nil {
			d.logger.Error("failed to release notification flag",
				"kind", kind.String(),
				"external_ref", t.ExternalRef,
				"error", clearErr,
			)
		}
		return false
	}

	d.logger.Info("notification sent",
		"kind", kind.String(),
		"external_ref", t.ExternalRef,
		"title", t.Title,
	)
	return true
}

// sendToAssignee composes and sends the assignee copy. A task whose
// member is unknown or has no email on record gets only the supervisor
// copy; the original assignment is still considered notified. A failed
// member lookup is a send failure so the claim is released and the scan
// retries it.
func (d *Dispatcher) sendToAssignee(ctx context.Context, t *domain.Task, subject, prompt string) error {
	email, err := d.assigneeEmail(ctx, t)
	if err != nil {
		return fmt.Errorf("resolving assignee email: %w", err)
	}
	if email == "" {
		d.logger.Warn("no email for assignee, skipping assignee copy",
			"member_ref", t.MemberRef,
			"external_ref", t.ExternalRef,
		)
		return nil
	}

	body, err := d.composer.Compose(ctx, d.config.Persona.systemPrompt(), prompt, d.config.MessageMaxTokens)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, subject, body, d.config.FromAddress, []string{email})
}

func (d *Dispatcher) sendToSupervisor(ctx context.Context, subject, prompt string) error {
	body, err := d.composer.Compose(ctx, d.config.Persona.systemPrompt(), prompt, d.config.MessageMaxTokens)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, subject, body, d.config.FromAddress, []string{d.config.SupervisorEmail})
}

func (d *Dispatcher) assigneeEmail(ctx context.Context, t *domain.Task) (string, error) {
	if t.MemberRef == "" {
		return "", nil
	}
	member, err := d.members.FindByRef(ctx, t.MemberRef)
	if errors.Is(err, domain.ErrMemberNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Email, nil
}
