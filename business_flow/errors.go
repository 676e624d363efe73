// Package businessflow contains the core business logic and use cases of the lead management system
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/simple-crm/models"
)

// Business flow error constants
var (
	// Account-related errors
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrEmailAlreadyExists    = errors.New("email already exists")
	ErrConflictingRoles      = models.ErrConflictingRoles
	ErrRoleChangeInProgress  = errors.New("a role change for this account is already in progress")
	ErrCannotDeleteSelf      = errors.New("staff accounts cannot delete themselves through the admin API")

	// Authorization errors
	ErrForbidden      = errors.New("you do not have permission to perform this action")
	ErrNoRoleAssigned = errors.New("account has no organizer or agent role assigned")

	// Captcha errors
	ErrInvalidCaptcha = errors.New("invalid captcha")

	// Lead and category errors
	ErrLeadNotFound       = errors.New("lead not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrInvalidCategory    = errors.New("referenced category does not exist")
	ErrAgentNotFound      = errors.New("referenced agent does not exist")
	ErrOrganizerNotFound  = errors.New("referenced organizer does not exist")
	ErrOrganizerRequired  = errors.New("organizer is required")
	ErrExportTooLarge     = errors.New("too many leads to export; narrow the filters")
	ErrInvalidDateFilter  = errors.New("date filters must be formatted as YYYY-MM-DD")
	ErrCacheNotAvailable  = errors.New("cache not available")
	ErrInvalidTokenFormat = errors.New("invalid token")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsUsernameAlreadyExists(err error) bool {
	return errors.Is(err, ErrUsernameAlreadyExists)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsConflictingRoles(err error) bool {
	return errors.Is(err, ErrConflictingRoles)
}

func IsRoleChangeInProgress(err error) bool {
	return errors.Is(err, ErrRoleChangeInProgress)
}

func IsCannotDeleteSelf(err error) bool {
	return errors.Is(err, ErrCannotDeleteSelf)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsNoRoleAssigned(err error) bool {
	return errors.Is(err, ErrNoRoleAssigned)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsCategoryNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound)
}

// IsInvalidReference reports a lead payload pointing at a missing agent, organizer or category
func IsInvalidReference(err error) bool {
	return errors.Is(err, ErrInvalidCategory) || errors.Is(err, ErrAgentNotFound) || errors.Is(err, ErrOrganizerNotFound)
}

func IsOrganizerRequired(err error) bool {
	return errors.Is(err, ErrOrganizerRequired)
}

func IsInvalidDateFilter(err error) bool {
	return errors.Is(err, ErrInvalidDateFilter)
}

func IsExportTooLarge(err error) bool {
	return errors.Is(err, ErrExportTooLarge)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidTokenFormat)
}
