package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/board"
)

// BoardWriter is the write side of the board API used for card edits.
type BoardWriter interface {
	UpsertCard(ctx context.Context, cardID, name, desc string, due *time.Time, memberIDs []string, listID string) (board.CardSnapshot, error)
	DeleteCard(ctx context.Context, cardID string) error
}

// Refresher runs one mirror pass. Satisfied by *Reconciler.
type Refresher interface {
	Run(ctx context.Context) (*Result, error)
}

// CardEditorConfig names the board lists that receive edited cards.
type CardEditorConfig struct {
	// OpenListID receives new and reopened cards.
	OpenListID string
	// DoneListID receives cards created or updated as completed.
	DoneListID string
}

// CardEdit describes one card to create or update. A zero CardID creates
// a new card.
type CardEdit struct {
	CardID      string
	Title       string
	Description string
	Due         *time.Time
	MemberRef   string
	Completed   bool
}

// CardEditor pushes card edits to the board and refreshes the local
// mirror afterwards, so an edit is visible in task listings without
// waiting for the next scheduled pass.
type CardEditor struct {
	writer  BoardWriter
	refresh Refresher
	config  CardEditorConfig
	logger  *slog.Logger
}

// NewCardEditor creates a card editor.
func NewCardEditor(writer BoardWriter, refresh Refresher, cfg CardEditorConfig, logger *slog.Logger) *CardEditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardEditor{
		writer:  writer,
		refresh: refresh,
		config:  cfg,
		logger:  logger,
	}
}

// Apply creates or updates a card on the board. The card lands in the
// done list when the edit marks it completed, in the open list otherwise.
// The board remains the source of truth: the local task is updated by the
// mirror pass that follows, not written directly.
func (e *CardEditor) Apply(ctx context.Context, edit CardEdit) (board.CardSnapshot, error) {
	if edit.Title == "" {
		return board.CardSnapshot{}, errors.New("card title is required")
	}

	listID := e.config.OpenListID
	if edit.Completed {
		listID = e.config.DoneListID
	}
	if listID == "" {
		return board.CardSnapshot{}, errors.New("no target list configured for card edits")
	}

	var memberIDs []string
	if edit.MemberRef != "" {
		memberIDs = []string{edit.MemberRef}
	}

	snapshot, err := e.writer.UpsertCard(ctx, edit.CardID, edit.Title, edit.Description, edit.Due, memberIDs, listID)
	if err != nil {
		return board.CardSnapshot{}, fmt.Errorf("pushing card to board: %w", err)
	}

	e.logger.Info("card pushed to board",
		"card_id", snapshot.ID,
		"title", edit.Title,
		"completed", edit.Completed,
	)
	e.refreshMirror(ctx)
	return snapshot, nil
}

// Delete removes a card from the board. The local task disappears with
// the deletion sweep of the mirror pass that follows.
func (e *CardEditor) Delete(ctx context.Context, cardID string) error {
	if cardID == "" {
		return errors.New("card id is required")
	}
	if err := e.writer.DeleteCard(ctx, cardID); err != nil {
		return fmt.Errorf("deleting card from board: %w", err)
	}

	e.logger.Info("card deleted from board", "card_id", cardID)
	e.refreshMirror(ctx)
	return nil
}

// refreshMirror runs one pass after a successful edit. A refresh failure
// is not an edit failure: the board already has the change and the next
// scheduled pass picks it up.
func (e *CardEditor) refreshMirror(ctx context.Context) {
	if e.refresh == nil {
		return
	}
	if _, err := e.refresh.Run(ctx); err != nil {
		e.logger.Warn("mirror refresh after card edit failed", "error", err)
	}
}
