package handlers

import (
	"fmt"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/middleware"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type LeadHandlerInterface interface {
	ListLeads(c fiber.Ctx) error
	CreateLead(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
	GetLead(c fiber.Ctx) error
	UpdateLead(c fiber.Ctx) error
	PatchLead(c fiber.Ctx) error
	DeleteLead(c fiber.Ctx) error
}

// LeadHandler serves the lead collection. Visibility and write rights are decided by LeadFlow.
type LeadHandler struct {
	baseHandler
	flow businessflow.LeadFlow
}

func NewLeadHandler(flow businessflow.LeadFlow) *LeadHandler {
	return &LeadHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// ListLeads lists the leads visible to the caller
// @Summary List leads
// @Description Staff see every lead, organizers their own leads, agents the leads assigned to them. Accounts without a role get 400.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param category query int false "Category id"
// @Param agent query int false "Agent profile id"
// @Param organizer query int false "Organizer profile id"
// @Param converted query bool false "Filter by conversion state"
// @Param date_added_after query string false "Added on or after this day (YYYY-MM-DD)"
// @Param date_added_before query string false "Added before this day (YYYY-MM-DD)"
// @Param search query string false "Substring of the description"
// @Param ordering query string false "category, -category, date_added or -date_added"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListLeadsResponse} "Leads retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error or no role assigned"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [get]
func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.ListLeadsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/leads")
	defer releaseRequestContext(ctx)

	res, err := h.flow.ListLeads(ctx, accountID, &req)
	if err != nil {
		return h.handleFlowError(c, err, "List leads", "LIST_LEADS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", res)
}

// CreateLead creates a lead
// @Summary Create lead
// @Description Staff and organizers only. The organizer field is honoured for staff; organizers always own the leads they create.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LeadRequest true "Lead data"
// @Success 201 {object} dto.APIResponse{data=dto.LeadDTO} "Lead created"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid reference"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [post]
func (h *LeadHandler) CreateLead(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.LeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/leads")
	defer releaseRequestContext(ctx)

	lead, err := h.flow.CreateLead(ctx, accountID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Create lead", "CREATE_LEAD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Lead created successfully", lead)
}

// ExportLeads downloads the visible leads as an Excel workbook
// @Summary Export leads
// @Description Staff and organizers only. Accepts the same filters as the list endpoint.
// @Tags Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param category query int false "Category id"
// @Param agent query int false "Agent profile id"
// @Param organizer query int false "Organizer profile id"
// @Param converted query bool false "Filter by conversion state"
// @Param date_added_after query string false "Added on or after this day (YYYY-MM-DD)"
// @Param date_added_before query string false "Added before this day (YYYY-MM-DD)"
// @Param search query string false "Substring of the description"
// @Param ordering query string false "category, -category, date_added or -date_added"
// @Success 200 {file} file "Excel workbook"
// @Failure 400 {object} dto.APIResponse "Validation error or too many rows"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/export [get]
func (h *LeadHandler) ExportLeads(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.ListLeadsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/leads/export")
	defer releaseRequestContext(ctx)

	filename, data, err := h.flow.ExportLeads(ctx, accountID, &req, h.clientMetadata(c))
	if err != nil {
		if businessflow.IsExportTooLarge(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Too many leads to export; narrow the filters", "EXPORT_TOO_LARGE", nil)
		}
		return h.handleFlowError(c, err, "Export leads", "EXPORT_LEADS_FAILED")
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// GetLead retrieves a lead
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead id"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDTO} "Lead retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid id or no role assigned"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [get]
func (h *LeadHandler) GetLead(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	leadID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "VALIDATION_ERROR", nil)
	}

	ctx := h.createRequestContext(c, leadEndpoint(leadID))
	defer releaseRequestContext(ctx)

	lead, err := h.flow.GetLead(ctx, accountID, leadID)
	if err != nil {
		return h.handleFlowError(c, err, "Get lead", "GET_LEAD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", lead)
}

// UpdateLead replaces a lead
// @Summary Replace lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead id"
// @Param request body dto.LeadRequest true "Lead data"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDTO} "Lead updated"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid reference"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [put]
func (h *LeadHandler) UpdateLead(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	leadID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "VALIDATION_ERROR", nil)
	}

	var req dto.LeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, leadEndpoint(leadID))
	defer releaseRequestContext(ctx)

	lead, err := h.flow.UpdateLead(ctx, accountID, leadID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Update lead", "UPDATE_LEAD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead updated successfully", lead)
}

// PatchLead updates the provided lead fields
// @Summary Patch lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lead id"
// @Param request body dto.PatchLeadRequest true "Fields to update"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDTO} "Lead updated"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid reference"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [patch]
func (h *LeadHandler) PatchLead(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	leadID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "VALIDATION_ERROR", nil)
	}

	var req dto.PatchLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, leadEndpoint(leadID))
	defer releaseRequestContext(ctx)

	lead, err := h.flow.PatchLead(ctx, accountID, leadID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Patch lead", "UPDATE_LEAD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead updated successfully", lead)
}

// DeleteLead deletes a lead
// @Summary Delete lead
// @Tags Leads
// @Security BearerAuth
// @Param id path int true "Lead id"
// @Success 204 "Lead deleted"
// @Failure 400 {object} dto.APIResponse "Invalid id or no role assigned"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/{id} [delete]
func (h *LeadHandler) DeleteLead(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	leadID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "VALIDATION_ERROR", nil)
	}

	ctx := h.createRequestContext(c, leadEndpoint(leadID))
	defer releaseRequestContext(ctx)

	if err := h.flow.DeleteLead(ctx, accountID, leadID, h.clientMetadata(c)); err != nil {
		return h.handleFlowError(c, err, "Delete lead", "DELETE_LEAD_FAILED")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func leadEndpoint(id uint) string {
	return fmt.Sprintf("/api/v1/leads/%d", id)
}
