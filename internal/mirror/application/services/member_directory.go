package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// MemberDirectory manages member contact details. Notification routing
// only knows addresses that were recorded here; the board payloads never
// carry emails.
type MemberDirectory struct {
	members domain.MemberRepository
	retries int
	logger  *slog.Logger
}

// NewMemberDirectory creates a member directory.
func NewMemberDirectory(members domain.MemberRepository, logger *slog.Logger) *MemberDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberDirectory{
		members: members,
		retries: defaultRetries,
		logger:  logger,
	}
}

// SetContact records an email and optional display name for a member,
// creating the record if the member has never been seen. The update runs
// under optimistic locking and retries on conflict with a concurrent
// score fold.
func (d *MemberDirectory) SetContact(ctx context.Context, ref, email, displayName string) (*domain.Member, error) {
	if ref == "" {
		return nil, errors.New("member ref is required")
	}

	for attempt := 0; attempt < d.retries; attempt++ {
		member, err := d.members.FindByRef(ctx, ref)
		if errors.Is(err, domain.ErrMemberNotFound) {
			member = domain.NewMember(ref)
		} else if err != nil {
			return nil, fmt.Errorf("loading member %s: %w", ref, err)
		}

		member.SetContact(email, displayName)

		err = d.members.Save(ctx, member)
		if errors.Is(err, domain.ErrOptimisticLocking) {
			d.logger.Debug("member contact conflict, retrying",
				"member_ref", ref,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("saving member %s: %w", ref, err)
		}

		d.logger.Info("member contact updated",
			"member_ref", ref,
			"email", member.Email,
		)
		return member, nil
	}
	return nil, fmt.Errorf("updating contact for member %s: exceeded %d attempts", ref, d.retries)
}

// List returns every known member.
func (d *MemberDirectory) List(ctx context.Context) ([]*domain.Member, error) {
	return d.members.FindAll(ctx)
}
