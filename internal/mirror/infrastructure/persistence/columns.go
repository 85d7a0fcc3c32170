// Package persistence implements the mirror repositories over SQLite and
// PostgreSQL.
package persistence

import (
	"fmt"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// flagColumn maps a notification kind to its column. Kinds are a closed
// set, so the column name never comes from input.
func flagColumn(kind domain.NotificationKind) (string, error) {
	switch kind {
	case domain.NotifyAssignment:
		return "assignment_notified", nil
	case domain.NotifyOverdue:
		return "overdue_notified", nil
	case domain.NotifyEscalation:
		return "escalation_notified", nil
	case domain.NotifyCompletion:
		return "completion_notified", nil
	default:
		return "", fmt.Errorf("unknown notification kind %d", kind)
	}
}

const taskColumns = `id, external_ref, title, description, deadline,
	member_ref, member_name, member_handle,
	completed, completed_on, score_override, score_counted,
	assignment_notified, overdue_notified, escalation_notified, completion_notified,
	version, created_at, updated_at`

const memberColumns = `ref, email, display_name, historical_score, total_tasks_counted,
	version, created_at, updated_at`
