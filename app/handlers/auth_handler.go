package handlers

import (
	"errors"
	"log"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/middleware"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for authentication and self-service account handlers
type AuthHandlerInterface interface {
	InitCaptcha(c fiber.Ctx) error
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Verify(c fiber.Ctx) error
	Me(c fiber.Ctx) error
	UpdateMe(c fiber.Ctx) error
	DeleteMe(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	baseHandler
	accountFlow businessflow.AccountFlow
	loginFlow   businessflow.LoginFlow
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(accountFlow businessflow.AccountFlow, loginFlow businessflow.LoginFlow) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(),
		accountFlow: accountFlow,
		loginFlow:   loginFlow,
	}
}

// InitCaptcha issues a rotate captcha challenge for the login form
// @Summary Init login captcha
// @Description Create a rotate captcha challenge. The client returns the challenge id and the chosen angle on login.
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaInitResponse} "Captcha generated"
// @Failure 404 {object} dto.APIResponse "Captcha disabled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/captcha/init [get]
func (h *AuthHandler) InitCaptcha(c fiber.Ctx) error {
	ctx := h.createRequestContext(c, "/api/v1/auth/captcha/init")
	defer releaseRequestContext(ctx)

	res, err := h.loginFlow.InitCaptcha(ctx)
	if err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) && be.Code == "CAPTCHA_DISABLED" {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Captcha is disabled", be.Code, nil)
		}
		log.Println("Captcha init failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate captcha", "CAPTCHA_GENERATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Captcha generated", res)
}

// Register creates a new account
// @Summary Register account
// @Description Create an account. At most one of is_organizer and is_agent may be set; the matching profile is created with it.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterAccountRequest true "Account data"
// @Success 201 {object} dto.APIResponse{data=dto.AccountDTO} "Account created"
// @Failure 400 {object} dto.APIResponse "Validation error or conflicting roles"
// @Failure 409 {object} dto.APIResponse "Username or email already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/users [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterAccountRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/users")
	defer releaseRequestContext(ctx)

	account, err := h.accountFlow.Register(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Registration", "REGISTRATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Account created successfully", account)
}

// Login authenticates with username and password and returns a JWT pair
// @Summary Create JWT
// @Description Authenticate with username and password. Captcha fields are required when captcha is enabled.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid captcha"
// @Failure 401 {object} dto.APIResponse "Invalid credentials or inactive account"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/jwt/create [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/jwt/create")
	defer releaseRequestContext(ctx)

	tokens, err := h.loginFlow.Login(ctx, &req, h.clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCaptcha(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid captcha", "INVALID_CAPTCHA", nil)
		}
		if businessflow.IsIncorrectPassword(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "No active account found with the given credentials", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "No active account found with the given credentials", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", tokens)
}

// Refresh rotates a refresh token into a new token pair
// @Summary Refresh JWT
// @Description Exchange a refresh token for a new access/refresh pair. The old refresh token is revoked.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairResponse} "Token refreshed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid or expired refresh token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/jwt/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/jwt/refresh")
	defer releaseRequestContext(ctx)

	tokens, err := h.loginFlow.Refresh(ctx, &req)
	if err != nil {
		if businessflow.IsInvalidToken(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Token is invalid or expired", "TOKEN_INVALID", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Token refresh failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Token refresh failed", "REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token refreshed", tokens)
}

// Verify checks a token without consuming it
// @Summary Verify JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.VerifyTokenRequest true "Token to verify"
// @Success 200 {object} dto.APIResponse "Token is valid"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid or expired token"
// @Router /api/v1/auth/jwt/verify [post]
func (h *AuthHandler) Verify(c fiber.Ctx) error {
	var req dto.VerifyTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/jwt/verify")
	defer releaseRequestContext(ctx)

	if err := h.loginFlow.Verify(ctx, &req); err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Token is invalid or expired", "TOKEN_INVALID", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Token is valid", nil)
}

// Me returns the authenticated account
// @Summary Current account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Account retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/users/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/users/me")
	defer releaseRequestContext(ctx)

	account, err := h.accountFlow.GetMe(ctx, accountID)
	if err != nil {
		return h.handleFlowError(c, err, "Get account", "GET_ACCOUNT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Account retrieved successfully", account)
}

// UpdateMe updates the authenticated account, including its role flags
// @Summary Update current account
// @Description Serves PUT and PATCH. Changing is_organizer/is_agent swaps the role profile in the same transaction.
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateMeRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO} "Account updated"
// @Failure 400 {object} dto.APIResponse "Validation error or conflicting roles"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 409 {object} dto.APIResponse "Email already exists or role change in progress"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/users/me [put]
// @Router /api/v1/auth/users/me [patch]
func (h *AuthHandler) UpdateMe(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.UpdateMeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/users/me")
	defer releaseRequestContext(ctx)

	account, err := h.accountFlow.UpdateMe(ctx, accountID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Update account", "UPDATE_ACCOUNT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Account updated successfully", account)
}

// DeleteMe deletes the authenticated account and its role profile
// @Summary Delete current account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeleteMeRequest true "Current password"
// @Success 204 "Account deleted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized or incorrect password"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/users/me [delete]
func (h *AuthHandler) DeleteMe(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.DeleteMeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/auth/users/me")
	defer releaseRequestContext(ctx)

	if err := h.accountFlow.DeleteMe(ctx, accountID, &req, h.clientMetadata(c)); err != nil {
		if businessflow.IsIncorrectPassword(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Current password is incorrect", "INCORRECT_PASSWORD", nil)
		}
		return h.handleFlowError(c, err, "Delete account", "DELETE_ACCOUNT_FAILED")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
