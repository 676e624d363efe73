package handlers

import (
	"fmt"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/middleware"
	businessflow "github.com/amirphl/simple-crm/business_flow"
	"github.com/gofiber/fiber/v3"
)

type CategoryHandlerInterface interface {
	ListCategories(c fiber.Ctx) error
	CreateCategory(c fiber.Ctx) error
	GetCategory(c fiber.Ctx) error
	UpdateCategory(c fiber.Ctx) error
	DeleteCategory(c fiber.Ctx) error
}

type CategoryHandler struct {
	baseHandler
	flow businessflow.CategoryFlow
}

func NewCategoryHandler(flow businessflow.CategoryFlow) *CategoryHandler {
	return &CategoryHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// ListCategories lists categories
// @Summary List categories
// @Tags Categories
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListCategoriesResponse} "Categories retrieved"
// @Failure 400 {object} dto.APIResponse "No role assigned"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) ListCategories(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.ListCategoriesRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/categories")
	defer releaseRequestContext(ctx)

	res, err := h.flow.ListCategories(ctx, accountID, &req)
	if err != nil {
		return h.handleFlowError(c, err, "List categories", "LIST_CATEGORIES_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Categories retrieved successfully", res)
}

// CreateCategory creates a category
// @Summary Create category
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CategoryRequest true "Category data"
// @Success 201 {object} dto.APIResponse{data=dto.CategoryDTO} "Category created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) CreateCategory(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}

	var req dto.CategoryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, "/api/v1/categories")
	defer releaseRequestContext(ctx)

	category, err := h.flow.CreateCategory(ctx, accountID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Create category", "CREATE_CATEGORY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Category created successfully", category)
}

// GetCategory retrieves a category
// @Summary Get category
// @Tags Categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category id"
// @Success 200 {object} dto.APIResponse{data=dto.CategoryDTO} "Category retrieved"
// @Failure 404 {object} dto.APIResponse "Category not found"
// @Router /api/v1/categories/{id} [get]
func (h *CategoryHandler) GetCategory(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	categoryID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid category id", "VALIDATION_ERROR", nil)
	}

	ctx := h.createRequestContext(c, fmt.Sprintf("/api/v1/categories/%d", categoryID))
	defer releaseRequestContext(ctx)

	category, err := h.flow.GetCategory(ctx, accountID, categoryID)
	if err != nil {
		return h.handleFlowError(c, err, "Get category", "GET_CATEGORY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Category retrieved successfully", category)
}

// UpdateCategory renames a category. PUT and PATCH share the same payload.
// @Summary Update category
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category id"
// @Param request body dto.CategoryRequest true "Category data"
// @Success 200 {object} dto.APIResponse{data=dto.CategoryDTO} "Category updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Category not found"
// @Router /api/v1/categories/{id} [put]
// @Router /api/v1/categories/{id} [patch]
func (h *CategoryHandler) UpdateCategory(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	categoryID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid category id", "VALIDATION_ERROR", nil)
	}

	var req dto.CategoryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validateRequest(c, &req); !ok {
		return err
	}

	ctx := h.createRequestContext(c, fmt.Sprintf("/api/v1/categories/%d", categoryID))
	defer releaseRequestContext(ctx)

	category, err := h.flow.UpdateCategory(ctx, accountID, categoryID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Update category", "UPDATE_CATEGORY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Category updated successfully", category)
}

// DeleteCategory deletes a category; leads referencing it keep existing without a category
// @Summary Delete category
// @Tags Categories
// @Security BearerAuth
// @Param id path int true "Category id"
// @Success 204 "Category deleted"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Failure 404 {object} dto.APIResponse "Category not found"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c fiber.Ctx) error {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		return h.missingAccount(c)
	}
	categoryID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid category id", "VALIDATION_ERROR", nil)
	}

	ctx := h.createRequestContext(c, fmt.Sprintf("/api/v1/categories/%d", categoryID))
	defer releaseRequestContext(ctx)

	if err := h.flow.DeleteCategory(ctx, accountID, categoryID, h.clientMetadata(c)); err != nil {
		return h.handleFlowError(c, err, "Delete category", "DELETE_CATEGORY_FAILED")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
