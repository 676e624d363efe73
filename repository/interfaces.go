// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/simple-crm/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByUsername(ctx context.Context, username string) (*models.Account, error)
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdateLastLogin(ctx context.Context, accountID uint, at time.Time) error
	Delete(ctx context.Context, id uint) (int64, error)
}

// OrganizerProfileRepository defines operations for organizer profiles.
// Lookups by account return (nil, nil) when the account holds no organizer profile.
type OrganizerProfileRepository interface {
	Repository[models.OrganizerProfile, models.OrganizerProfileFilter]
	ByAccountID(ctx context.Context, accountID uint) (*models.OrganizerProfile, error)
	EnsureForAccount(ctx context.Context, accountID uint) (*models.OrganizerProfile, bool, error)
	DeleteByAccountID(ctx context.Context, accountID uint) (int64, error)
}

// AgentProfileRepository defines operations for agent profiles.
// Lookups by account return (nil, nil) when the account holds no agent profile.
type AgentProfileRepository interface {
	Repository[models.AgentProfile, models.AgentProfileFilter]
	ByAccountID(ctx context.Context, accountID uint) (*models.AgentProfile, error)
	EnsureForAccount(ctx context.Context, accountID uint) (*models.AgentProfile, bool, error)
	DeleteByAccountID(ctx context.Context, accountID uint) (int64, error)
	ByIDWithAccount(ctx context.Context, id uint) (*models.AgentProfile, error)
	Update(ctx context.Context, profile *models.AgentProfile) error
}

// CategoryRepository defines operations for categories
type CategoryRepository interface {
	Repository[models.Category, models.CategoryFilter]
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uint) (int64, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id uint) (int64, error)
	ByFilterWithRelations(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	ListSecurityEvents(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
