package businessflow

import (
	"context"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
)

// Caller is the authenticated account together with its satellite profiles.
// At most one of Organizer and Agent is set.
type Caller struct {
	Account   *models.Account
	Organizer *models.OrganizerProfile
	Agent     *models.AgentProfile
}

func (c *Caller) IsStaff() bool {
	return c != nil && c.Account != nil && c.Account.IsStaff
}

func (c *Caller) IsOrganizer() bool {
	return c != nil && c.Account != nil && c.Account.IsOrganizer
}

func (c *Caller) IsAgent() bool {
	return c != nil && c.Account != nil && c.Account.IsAgent
}

// Role returns the effective role used for scoping, logs and metrics
func (c *Caller) Role() string {
	if c == nil || c.Account == nil {
		return models.RoleNone
	}
	return c.Account.Role()
}

// OrganizerProfileID returns the caller's organizer profile id, if any
func (c *Caller) OrganizerProfileID() *uint {
	if c == nil || c.Organizer == nil {
		return nil
	}
	return &c.Organizer.ID
}

// AgentProfileID returns the caller's agent profile id, if any
func (c *Caller) AgentProfileID() *uint {
	if c == nil || c.Agent == nil {
		return nil
	}
	return &c.Agent.ID
}

// CallerResolver loads the Caller for an authenticated account id
type CallerResolver interface {
	Resolve(ctx context.Context, accountID uint) (*Caller, error)
}

type CallerResolverImpl struct {
	accountRepo   repository.AccountRepository
	organizerRepo repository.OrganizerProfileRepository
	agentRepo     repository.AgentProfileRepository
}

func NewCallerResolver(
	accountRepo repository.AccountRepository,
	organizerRepo repository.OrganizerProfileRepository,
	agentRepo repository.AgentProfileRepository,
) CallerResolver {
	return &CallerResolverImpl{
		accountRepo:   accountRepo,
		organizerRepo: organizerRepo,
		agentRepo:     agentRepo,
	}
}

// Resolve returns ErrAccountInactive when the account was deleted or deactivated after the token was issued
func (r *CallerResolverImpl) Resolve(ctx context.Context, accountID uint) (*Caller, error) {
	account, err := r.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil || !utils.IsTrue(account.IsActive) {
		return nil, ErrAccountInactive
	}

	caller := &Caller{Account: account}

	if account.IsOrganizer {
		caller.Organizer, err = r.organizerRepo.ByAccountID(ctx, account.ID)
		if err != nil {
			return nil, err
		}
	}
	if account.IsAgent {
		caller.Agent, err = r.agentRepo.ByAccountID(ctx, account.ID)
		if err != nil {
			return nil, err
		}
	}

	return caller, nil
}
