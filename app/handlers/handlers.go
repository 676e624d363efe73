// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"
	"unicode"

	"github.com/amirphl/simple-crm/app/dto"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/amirphl/simple-crm/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// baseHandler carries the response envelope, validation and request context helpers shared by all handlers
type baseHandler struct {
	validator *validator.Validate
	timeout   time.Duration
}

var requestTimeout = utils.DefaultRequestTimeout

// SetRequestTimeout sets the flow deadline of handlers constructed afterwards
func SetRequestTimeout(d time.Duration) {
	if d > 0 {
		requestTimeout = d
	}
}

func newBaseHandler() baseHandler {
	return baseHandler{
		validator: newValidator(),
		timeout:   requestTimeout,
	}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validateRequest writes a 400 response and returns false when req fails validation
func (h *baseHandler) validateRequest(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		var validationErrors []string
		for _, fe := range validationErrs {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

func (h *baseHandler) missingAccount(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
}

// pathID parses a positive numeric path parameter
func pathID(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *baseHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, h.timeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}

// releaseRequestContext cancels a context built by createRequestContext
func releaseRequestContext(ctx context.Context) {
	if cancel, ok := ctx.Value(utils.CancelFuncKey).(context.CancelFunc); ok {
		cancel()
	}
}

func requestID(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get("X-Request-ID")
}

// handleFlowError maps the business errors shared by every resource to HTTP responses.
// Anything unrecognised is logged and answered with a 500 carrying fallbackCode.
func (h *baseHandler) handleFlowError(c fiber.Ctx, err error, operation, fallbackCode string) error {
	switch {
	case businessflow.IsForbidden(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "You do not have permission to perform this action", "FORBIDDEN", nil)
	case businessflow.IsNoRoleAssigned(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Account has no organizer or agent role assigned", "NO_ROLE_ASSIGNED", nil)
	case businessflow.IsConflictingRoles(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "An account cannot be both organizer and agent", "CONFLICTING_ROLES",
			map[string][]string{"non_field_errors": {businessflow.ErrConflictingRoles.Error()}})
	case businessflow.IsLeadNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
	case businessflow.IsCategoryNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Category not found", "CATEGORY_NOT_FOUND", nil)
	case businessflow.IsAccountNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account is inactive", "ACCOUNT_INACTIVE", nil)
	case businessflow.IsUsernameAlreadyExists(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Username already exists", "USERNAME_EXISTS", nil)
	case businessflow.IsEmailAlreadyExists(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
	case businessflow.IsRoleChangeInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "A role change for this account is already in progress", "ROLE_CHANGE_IN_PROGRESS", nil)
	case businessflow.IsInvalidReference(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_REFERENCE", nil)
	case businessflow.IsOrganizerRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Organizer is required", "ORGANIZER_REQUIRED", nil)
	case businessflow.IsInvalidDateFilter(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessflow.ErrInvalidDateFilter.Error(), "INVALID_FILTER", nil)
	}

	log.Println(operation+" failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, operation+" failed", fallbackCode, nil)
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Letters, digits and @/./+/-/_ as accepted by the account username field
	v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		for _, char := range fl.Field().String() {
			if unicode.IsLetter(char) || unicode.IsDigit(char) {
				continue
			}
			switch char {
			case '@', '.', '+', '-', '_':
				continue
			}
			return false
		}
		return true
	})

	v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()

		hasUpper := false
		hasNumber := false

		for _, char := range value {
			if char >= 'A' && char <= 'Z' {
				hasUpper = true
			}
			if char >= '0' && char <= '9' {
				hasNumber = true
			}
		}

		return hasUpper && hasNumber
	})

	return v
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "datetime":
		return err.Field() + " must be a date formatted as " + err.Param()
	case "username_chars":
		return err.Field() + " may contain only letters, digits and @/./+/-/_"
	case "password_strength":
		return "Password must contain at least 1 uppercase letter and 1 number"
	default:
		return err.Field() + " is invalid"
	}
}
