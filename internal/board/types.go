// Package board defines the data shapes exchanged with the external
// collaboration board. Concrete API clients live in subpackages.
package board

import "time"

// CardSnapshot is one card as observed on the board.
type CardSnapshot struct {
	ID        string
	Name      string
	Desc      string
	Due       *time.Time
	ListID    string
	MemberIDs []string
}

// ListInfo describes the list a card belongs to. A list whose name matches
// the configured done-list identifier (case-insensitive) marks its cards
// completed.
type ListInfo struct {
	ID   string
	Name string
}

// MemberProfile is a board member's public profile.
type MemberProfile struct {
	ID       string
	FullName string
	Username string
}

// Webhook is a registered board webhook.
type Webhook struct {
	ID          string
	CallbackURL string
	ModelID     string
}
