package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountFlow covers self-service account operations and staff account management.
// Every path that changes role flags validates them and runs the profile synchronizer
// in the same transaction as the account write.
type AccountFlow interface {
	Register(ctx context.Context, req *dto.RegisterAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
	GetMe(ctx context.Context, accountID uint) (*dto.AccountDTO, error)
	UpdateMe(ctx context.Context, accountID uint, req *dto.UpdateMeRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
	DeleteMe(ctx context.Context, accountID uint, req *dto.DeleteMeRequest, metadata *ClientMetadata) error

	ListAccounts(ctx context.Context, staffID uint, req *dto.AdminListAccountsRequest) (*dto.AdminListAccountsResponse, error)
	UpdateAccountRoles(ctx context.Context, staffID, accountID uint, req *dto.UpdateAccountRolesRequest, metadata *ClientMetadata) (*dto.AccountDTO, error)
	DeleteAccount(ctx context.Context, staffID, accountID uint, metadata *ClientMetadata) error
}

// AccountFlowImpl implements the account business flow
type AccountFlowImpl struct {
	accountRepo   repository.AccountRepository
	organizerRepo repository.OrganizerProfileRepository
	agentRepo     repository.AgentProfileRepository
	auditRepo     repository.AuditLogRepository
	resolver      CallerResolver
	synchronizer  ProfileSynchronizer
	publisher     services.EventPublisher
	rc            *redis.Client
	cachePrefix   string
	db            *gorm.DB
}

// NewAccountFlow creates a new account flow instance
func NewAccountFlow(
	accountRepo repository.AccountRepository,
	organizerRepo repository.OrganizerProfileRepository,
	agentRepo repository.AgentProfileRepository,
	auditRepo repository.AuditLogRepository,
	resolver CallerResolver,
	synchronizer ProfileSynchronizer,
	publisher services.EventPublisher,
	rc *redis.Client,
	cachePrefix string,
	db *gorm.DB,
) AccountFlow {
	return &AccountFlowImpl{
		accountRepo:   accountRepo,
		organizerRepo: organizerRepo,
		agentRepo:     agentRepo,
		auditRepo:     auditRepo,
		resolver:      resolver,
		synchronizer:  synchronizer,
		publisher:     publisher,
		rc:            rc,
		cachePrefix:   cachePrefix,
		db:            db,
	}
}

// Register creates an account and the satellite profile of its role
func (af *AccountFlowImpl) Register(ctx context.Context, req *dto.RegisterAccountRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	account := &models.Account{
		UUID:        uuid.New(),
		Username:    strings.TrimSpace(req.Username),
		Email:       utils.NormalizeEmail(req.Email),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		IsOrganizer: req.IsOrganizer,
		IsAgent:     req.IsAgent,
		IsActive:    utils.ToPtr(true),
	}

	if err := account.Validate(); err != nil {
		return nil, NewBusinessError("REGISTRATION_VALIDATION_FAILED", "Registration validation failed", err)
	}

	if err := af.checkUniqueness(ctx, account.Username, account.Email, 0); err != nil {
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}
	account.PasswordHash = string(hash)

	err = withTransaction(ctx, af.db, func(ctx context.Context) error {
		if err := af.accountRepo.Save(ctx, account); err != nil {
			return err
		}
		return af.synchronizer.SynchronizeProfiles(ctx, nil, account)
	})
	if err != nil {
		err = translateAccountError(err)
		createAuditLog(ctx, af.auditRepo, nil, models.AuditActionAccountRegistered, fmt.Sprintf("Registration failed for %s", account.Username), false, errString(err), metadata)
		return nil, NewBusinessError("REGISTRATION_FAILED", "Registration failed", err)
	}

	createAuditLog(ctx, af.auditRepo, account, models.AuditActionAccountRegistered, fmt.Sprintf("Account registered: %s (%s)", account.Username, account.Role()), true, nil, metadata)

	return af.accountDTO(ctx, account)
}

// GetMe returns the caller's own account
func (af *AccountFlowImpl) GetMe(ctx context.Context, accountID uint) (*dto.AccountDTO, error) {
	caller, err := af.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("GET_ACCOUNT_FAILED", "Failed to load account", err)
	}
	out := ToAccountDTO(*caller.Account, caller.Organizer, caller.Agent)
	return &out, nil
}

// UpdateMe applies a partial update of the caller's own account, including role flags
func (af *AccountFlowImpl) UpdateMe(ctx context.Context, accountID uint, req *dto.UpdateMeRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	caller, err := af.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ACCOUNT_FAILED", "Failed to update account", err)
	}

	prev := *caller.Account
	next := *caller.Account

	if req.Email != nil {
		next.Email = utils.NormalizeEmail(*req.Email)
	}
	if req.FirstName != nil {
		next.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		next.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.IsOrganizer != nil {
		next.IsOrganizer = *req.IsOrganizer
	}
	if req.IsAgent != nil {
		next.IsAgent = *req.IsAgent
	}

	if err := next.Validate(); err != nil {
		return nil, NewBusinessError("UPDATE_ACCOUNT_VALIDATION_FAILED", "Account validation failed", err)
	}

	if next.Email != prev.Email {
		if err := af.checkUniqueness(ctx, "", next.Email, next.ID); err != nil {
			return nil, NewBusinessError("UPDATE_ACCOUNT_FAILED", "Failed to update account", err)
		}
	}

	if err := af.saveAccount(ctx, &prev, &next, nil); err != nil {
		createAuditLog(ctx, af.auditRepo, &prev, models.AuditActionAccountUpdated, "Account update failed", false, errString(err), metadata)
		return nil, NewBusinessError("UPDATE_ACCOUNT_FAILED", "Failed to update account", err)
	}

	af.auditAccountUpdate(ctx, &prev, &next, metadata)

	return af.accountDTO(ctx, &next)
}

// DeleteMe removes the caller's account after re-checking the password
func (af *AccountFlowImpl) DeleteMe(ctx context.Context, accountID uint, req *dto.DeleteMeRequest, metadata *ClientMetadata) error {
	caller, err := af.resolver.Resolve(ctx, accountID)
	if err != nil {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(caller.Account.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		createAuditLog(ctx, af.auditRepo, caller.Account, models.AuditActionAccountDeleted, "Self deletion rejected", false, errString(ErrIncorrectPassword), metadata)
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", ErrIncorrectPassword)
	}

	if err := af.deleteAccount(ctx, caller.Account); err != nil {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", err)
	}

	createAuditLog(ctx, af.auditRepo, nil, models.AuditActionAccountDeleted, fmt.Sprintf("Account deleted itself: %s (%d)", caller.Account.Username, caller.Account.ID), true, nil, metadata)
	return nil
}

// ListAccounts lists accounts for staff, optionally filtered by role
func (af *AccountFlowImpl) ListAccounts(ctx context.Context, staffID uint, req *dto.AdminListAccountsRequest) (*dto.AdminListAccountsResponse, error) {
	if _, err := af.requireStaff(ctx, staffID); err != nil {
		return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
	}

	filter := accountFilterForRole(req.Role)
	page, pageSize, offset := normalizePage(req.Page, req.PageSize)

	total, err := af.accountRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
	}

	rows, err := af.accountRepo.ByFilter(ctx, filter, "id ASC", pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
	}

	items := make([]dto.AccountDTO, 0, len(rows))
	for _, a := range rows {
		item, err := af.accountDTO(ctx, a)
		if err != nil {
			return nil, NewBusinessError("LIST_ACCOUNTS_FAILED", "Failed to list accounts", err)
		}
		items = append(items, *item)
	}

	return &dto.AdminListAccountsResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(page, pageSize, total),
	}, nil
}

// UpdateAccountRoles replaces the role flags of any account. ManagingOrganizer is
// applied only when the resulting account is an agent.
func (af *AccountFlowImpl) UpdateAccountRoles(ctx context.Context, staffID, accountID uint, req *dto.UpdateAccountRolesRequest, metadata *ClientMetadata) (*dto.AccountDTO, error) {
	staff, err := af.requireStaff(ctx, staffID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ROLES_FAILED", "Failed to update roles", err)
	}

	target, err := af.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ROLES_FAILED", "Failed to update roles", err)
	}
	if target == nil {
		return nil, NewBusinessError("UPDATE_ROLES_FAILED", "Failed to update roles", ErrAccountNotFound)
	}

	prev := *target
	next := *target
	next.IsOrganizer = req.IsOrganizer
	next.IsAgent = req.IsAgent
	if req.IsStaff != nil {
		next.IsStaff = *req.IsStaff
	}

	if err := next.Validate(); err != nil {
		return nil, NewBusinessError("UPDATE_ROLES_VALIDATION_FAILED", "Role validation failed", err)
	}

	var managingOrganizer *uint
	if next.IsAgent {
		managingOrganizer = req.ManagingOrganizer
	}

	if err := af.saveAccount(ctx, &prev, &next, managingOrganizer); err != nil {
		createAuditLog(ctx, af.auditRepo, staff, models.AuditActionAccountRoleChanged, fmt.Sprintf("Role change failed for account %d", accountID), false, errString(err), metadata)
		return nil, NewBusinessError("UPDATE_ROLES_FAILED", "Failed to update roles", err)
	}

	createAuditLog(ctx, af.auditRepo, staff, models.AuditActionAccountRoleChanged, fmt.Sprintf("Account %d role changed: %s -> %s", accountID, prev.Role(), next.Role()), true, nil, metadata)

	return af.accountDTO(ctx, &next)
}

// DeleteAccount removes another account; its profile and, for organizers, its leads go with it
func (af *AccountFlowImpl) DeleteAccount(ctx context.Context, staffID, accountID uint, metadata *ClientMetadata) error {
	staff, err := af.requireStaff(ctx, staffID)
	if err != nil {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", err)
	}
	if staff.ID == accountID {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", ErrCannotDeleteSelf)
	}

	target, err := af.accountRepo.ByID(ctx, accountID)
	if err != nil {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", err)
	}
	if target == nil {
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", ErrAccountNotFound)
	}

	if err := af.deleteAccount(ctx, target); err != nil {
		createAuditLog(ctx, af.auditRepo, staff, models.AuditActionAccountDeleted, fmt.Sprintf("Deleting account %d failed", accountID), false, errString(err), metadata)
		return NewBusinessError("DELETE_ACCOUNT_FAILED", "Failed to delete account", err)
	}

	createAuditLog(ctx, af.auditRepo, staff, models.AuditActionAccountDeleted, fmt.Sprintf("Account deleted by staff: %s (%d)", target.Username, target.ID), true, nil, metadata)
	return nil
}

// Private helper methods

// saveAccount persists next and synchronizes profiles in one transaction.
// Role changes are additionally serialized per account and published after commit.
func (af *AccountFlowImpl) saveAccount(ctx context.Context, prev, next *models.Account, managingOrganizer *uint) error {
	rolesChanged := !prev.RolesEqual(next)

	if rolesChanged {
		release, err := acquireRoleLock(ctx, af.rc, af.cachePrefix, next.ID)
		if err != nil {
			return err
		}
		defer release()
	}

	err := withTransaction(ctx, af.db, func(ctx context.Context) error {
		if err := next.Validate(); err != nil {
			return err
		}
		if err := af.accountRepo.Update(ctx, next); err != nil {
			return err
		}
		if err := af.synchronizer.SynchronizeProfiles(ctx, prev, next); err != nil {
			return err
		}
		if managingOrganizer != nil {
			return af.linkAgentToOrganizer(ctx, next.ID, *managingOrganizer)
		}
		return nil
	})
	if err != nil {
		return translateAccountError(err)
	}

	if rolesChanged {
		af.publish(ctx, services.EventAccountRoleChanged, map[string]any{
			"account_id":    next.ID,
			"previous_role": prev.Role(),
			"role":          next.Role(),
		})
	}
	return nil
}

func (af *AccountFlowImpl) linkAgentToOrganizer(ctx context.Context, accountID, organizerProfileID uint) error {
	organizer, err := af.organizerRepo.ByID(ctx, organizerProfileID)
	if err != nil {
		return err
	}
	if organizer == nil {
		return ErrOrganizerNotFound
	}

	agent, err := af.agentRepo.ByAccountID(ctx, accountID)
	if err != nil {
		return err
	}
	if agent == nil {
		return fmt.Errorf("agent profile missing for account %d after synchronization", accountID)
	}

	agent.OrganizerID = &organizer.ID
	return af.agentRepo.Update(ctx, agent)
}

func (af *AccountFlowImpl) deleteAccount(ctx context.Context, account *models.Account) error {
	release, err := acquireRoleLock(ctx, af.rc, af.cachePrefix, account.ID)
	if err != nil {
		return err
	}
	defer release()

	return withTransaction(ctx, af.db, func(ctx context.Context) error {
		if err := af.synchronizer.SynchronizeProfiles(ctx, account, nil); err != nil {
			return err
		}
		n, err := af.accountRepo.Delete(ctx, account.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

func (af *AccountFlowImpl) requireStaff(ctx context.Context, accountID uint) (*models.Account, error) {
	caller, err := af.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff() {
		recordDenial("staff", caller.Role())
		return nil, ErrForbidden
	}
	return caller.Account, nil
}

// checkUniqueness rejects a username or email already used by another account
func (af *AccountFlowImpl) checkUniqueness(ctx context.Context, username, email string, selfID uint) error {
	if username != "" {
		existing, err := af.accountRepo.ByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != selfID {
			return ErrUsernameAlreadyExists
		}
	}
	if email != "" {
		existing, err := af.accountRepo.ByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != selfID {
			return ErrEmailAlreadyExists
		}
	}
	return nil
}

func (af *AccountFlowImpl) accountDTO(ctx context.Context, account *models.Account) (*dto.AccountDTO, error) {
	var organizer *models.OrganizerProfile
	var agent *models.AgentProfile
	var err error

	if account.IsOrganizer {
		if organizer, err = af.organizerRepo.ByAccountID(ctx, account.ID); err != nil {
			return nil, err
		}
	}
	if account.IsAgent {
		if agent, err = af.agentRepo.ByAccountID(ctx, account.ID); err != nil {
			return nil, err
		}
	}

	out := ToAccountDTO(*account, organizer, agent)
	return &out, nil
}

func (af *AccountFlowImpl) auditAccountUpdate(ctx context.Context, prev, next *models.Account, metadata *ClientMetadata) {
	if !prev.RolesEqual(next) {
		createAuditLog(ctx, af.auditRepo, next, models.AuditActionAccountRoleChanged, fmt.Sprintf("Role changed by owner: %s -> %s", prev.Role(), next.Role()), true, nil, metadata)
		return
	}
	createAuditLog(ctx, af.auditRepo, next, models.AuditActionAccountUpdated, "Account updated", true, nil, metadata)
}

func (af *AccountFlowImpl) publish(ctx context.Context, eventType string, data any) {
	if af.publisher == nil {
		return
	}
	if err := af.publisher.Publish(ctx, eventType, data); err != nil {
		log.Printf("Failed to publish %s: %v", eventType, err)
	}
}

func accountFilterForRole(role string) models.AccountFilter {
	switch role {
	case models.RoleStaff:
		return models.AccountFilter{IsStaff: utils.ToPtr(true)}
	case models.RoleOrganizer:
		return models.AccountFilter{IsOrganizer: utils.ToPtr(true)}
	case models.RoleAgent:
		return models.AccountFilter{IsAgent: utils.ToPtr(true)}
	case models.RoleNone:
		return models.AccountFilter{
			IsStaff:     utils.ToPtr(false),
			IsOrganizer: utils.ToPtr(false),
			IsAgent:     utils.ToPtr(false),
		}
	default:
		return models.AccountFilter{}
	}
}

// translateAccountError maps storage constraint violations back to domain errors
func translateAccountError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCheckViolation) && repository.ConstraintName(err) == repository.ConstraintAccountSingleRole:
		return ErrConflictingRoles
	case errors.Is(err, repository.ErrDuplicate) && repository.ConstraintName(err) == repository.ConstraintAccountUsername:
		return ErrUsernameAlreadyExists
	case errors.Is(err, repository.ErrDuplicate) && repository.ConstraintName(err) == repository.ConstraintAccountEmail:
		return ErrEmailAlreadyExists
	default:
		return err
	}
}
