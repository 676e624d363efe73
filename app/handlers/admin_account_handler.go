package handlers

import (
	"fmt"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/middleware"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/gofiber/fiber/v3"
)

type AdminAccountHandlerInterface interface {
	ListAccounts(c fiber.Ctx) error
	UpdateAccountRoles(c fiber.Ctx) error
	DeleteAccount(c fiber.Ctx) error
}

// AdminAccountHandler exposes account role management to staff
type AdminAccountHandler struct {
	baseHandler
	flow businessflow.AccountFlow
}

func NewAdminAccountHandler(flow businessflow.AccountFlow) *AdminAccountHandler {
	return &AdminAccountHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// ListAccounts lists accounts for staff
// @Summary Admin list accounts
// @Tags Admin Accounts
// @Produce json
// @Security BearerAuth
// @Param role query string false "staff, organizer, agent or none"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListAccountsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/accounts [get]
func (h *AdminAccountHandler) ListAccounts(c fiber.Ctx) error {
	staffID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.AdminListAccountsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/accounts")
	defer releaseRequestContext(ctx)

	res, err := h.flow.ListAccounts(ctx, staffID, &req)
	if err != nil {
		return h.handleFlowError(c, err, "List accounts", "LIST_ACCOUNTS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Accounts retrieved successfully", res)
}

// UpdateAccountRoles changes the role flags of an account and synchronizes its profiles
// @Summary Admin update account roles
// @Tags Admin Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account id"
// @Param body body dto.UpdateAccountRolesRequest true "Role flags"
// @Success 200 {object} dto.APIResponse{data=dto.AccountDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id}/roles [put]
func (h *AdminAccountHandler) UpdateAccountRoles(c fiber.Ctx) error {
	staffID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	accountID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid account id", "VALIDATION_ERROR", nil)
	}

	var req dto.UpdateAccountRolesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, fmt.Sprintf("/api/v1/admin/accounts/%d/roles", accountID))
	defer releaseRequestContext(ctx)

	account, err := h.flow.UpdateAccountRoles(ctx, staffID, accountID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Update account roles", "UPDATE_ACCOUNT_ROLES_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Account roles updated", account)
}

// DeleteAccount deletes an account together with its role profile and owned leads
// @Summary Admin delete account
// @Tags Admin Accounts
// @Security BearerAuth
// @Param id path int true "Account id"
// @Success 204
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id} [delete]
func (h *AdminAccountHandler) DeleteAccount(c fiber.Ctx) error {
	staffID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	accountID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid account id", "VALIDATION_ERROR", nil)
	}

	ctx := h.createRequestContext(c, fmt.Sprintf("/api/v1/admin/accounts/%d", accountID))
	defer releaseRequestContext(ctx)

	if err := h.flow.DeleteAccount(ctx, staffID, accountID, h.clientMetadata(c)); err != nil {
		if businessflow.IsCannotDeleteSelf(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Staff accounts cannot delete themselves here", "CANNOT_DELETE_SELF", nil)
		}
		return h.handleFlowError(c, err, "Delete account", "DELETE_ACCOUNT_FAILED")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
