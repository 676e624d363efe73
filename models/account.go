// Package models contains domain entities and business models for the lead management system
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrConflictingRoles is returned when an account is both organizer and agent
var ErrConflictingRoles = errors.New("account can't be agent and organizer at the same time")

// Account roles as exposed in tokens, logs and metrics
const (
	RoleStaff     = "staff"
	RoleOrganizer = "organizer"
	RoleAgent     = "agent"
	RoleNone      = "none"
)

type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_accounts_uuid" json:"uuid"`
	Username     string    `gorm:"size:150;not null;uniqueIndex:uk_accounts_username" json:"username"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_accounts_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`

	IsStaff     bool  `gorm:"not null;default:false;index:idx_accounts_is_staff" json:"is_staff"`
	IsOrganizer bool  `gorm:"not null;default:false" json:"is_organizer"`
	IsAgent     bool  `gorm:"not null;default:false" json:"is_agent"`
	IsActive    *bool `gorm:"default:true;index:idx_accounts_is_active" json:"is_active"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// Validate enforces the account invariants that must hold before every save.
func (a *Account) Validate() error {
	if a.IsOrganizer && a.IsAgent {
		return ErrConflictingRoles
	}
	return nil
}

// Role returns the effective role. Staff wins over the organizer/agent flags.
func (a *Account) Role() string {
	switch {
	case a.IsStaff:
		return RoleStaff
	case a.IsOrganizer:
		return RoleOrganizer
	case a.IsAgent:
		return RoleAgent
	default:
		return RoleNone
	}
}

// RolesEqual reports whether two account states carry the same role flags
func (a *Account) RolesEqual(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.IsOrganizer == other.IsOrganizer && a.IsAgent == other.IsAgent
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Username      *string
	Email         *string
	IsStaff       *bool
	IsOrganizer   *bool
	IsAgent       *bool
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
