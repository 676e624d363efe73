package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
)

// Transitions reported by the synchronizer
const (
	SyncAfterCreate = "create"
	SyncAfterUpdate = "update"
	SyncAfterDelete = "delete"
)

// ProfileSynchronizer keeps OrganizerProfile/AgentProfile rows in lockstep with account role flags.
// Callers invoke it inside the transaction that mutates the account.
type ProfileSynchronizer interface {
	// SynchronizeProfiles reacts to an account transition. prev == nil means the account
	// was just created, next == nil means it is being deleted.
	SynchronizeProfiles(ctx context.Context, prev, next *models.Account) error
}

type ProfileSynchronizerImpl struct {
	organizerRepo repository.OrganizerProfileRepository
	agentRepo     repository.AgentProfileRepository
}

func NewProfileSynchronizer(
	organizerRepo repository.OrganizerProfileRepository,
	agentRepo repository.AgentProfileRepository,
) ProfileSynchronizer {
	return &ProfileSynchronizerImpl{
		organizerRepo: organizerRepo,
		agentRepo:     agentRepo,
	}
}

func (s *ProfileSynchronizerImpl) SynchronizeProfiles(ctx context.Context, prev, next *models.Account) error {
	switch {
	case prev == nil && next == nil:
		return nil
	case next == nil:
		recordProfileSync(SyncAfterDelete)
		return s.afterDelete(ctx, prev)
	case prev == nil:
		recordProfileSync(SyncAfterCreate)
		return s.afterCreate(ctx, next)
	default:
		recordProfileSync(SyncAfterUpdate)
		return s.afterUpdate(ctx, next)
	}
}

func (s *ProfileSynchronizerImpl) afterCreate(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if account.IsOrganizer {
		if _, _, err := s.organizerRepo.EnsureForAccount(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to create organizer profile: %w", err)
		}
	}
	if account.IsAgent {
		if _, _, err := s.agentRepo.EnsureForAccount(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to create agent profile: %w", err)
		}
	}
	return nil
}

// afterUpdate treats the flags as the source of truth: the profile of the current role
// is ensured, any other profile is removed.
func (s *ProfileSynchronizerImpl) afterUpdate(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	if !account.IsAgent {
		if _, err := s.agentRepo.DeleteByAccountID(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to remove agent profile: %w", err)
		}
	}
	if !account.IsOrganizer {
		if _, err := s.organizerRepo.DeleteByAccountID(ctx, account.ID); err != nil {
			return fmt.Errorf("failed to remove organizer profile: %w", err)
		}
	}

	return s.afterCreate(ctx, account)
}

// afterDelete removes whatever profile exists; a missing profile is expected
func (s *ProfileSynchronizerImpl) afterDelete(ctx context.Context, account *models.Account) error {
	if _, err := s.organizerRepo.DeleteByAccountID(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to remove organizer profile: %w", err)
	}
	if _, err := s.agentRepo.DeleteByAccountID(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to remove agent profile: %w", err)
	}
	return nil
}
