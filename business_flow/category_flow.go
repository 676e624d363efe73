package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"gorm.io/gorm"
)

// CategoryFlow handles the global category collection.
// Every role can read categories; only staff and organizers can change them.
type CategoryFlow interface {
	ListCategories(ctx context.Context, accountID uint, req *dto.ListCategoriesRequest) (*dto.ListCategoriesResponse, error)
	CreateCategory(ctx context.Context, accountID uint, req *dto.CategoryRequest, metadata *ClientMetadata) (*dto.CategoryDTO, error)
	GetCategory(ctx context.Context, accountID, categoryID uint) (*dto.CategoryDTO, error)
	UpdateCategory(ctx context.Context, accountID, categoryID uint, req *dto.CategoryRequest, metadata *ClientMetadata) (*dto.CategoryDTO, error)
	DeleteCategory(ctx context.Context, accountID, categoryID uint, metadata *ClientMetadata) error
}

type CategoryFlowImpl struct {
	categoryRepo repository.CategoryRepository
	auditRepo    repository.AuditLogRepository
	resolver     CallerResolver
	db           *gorm.DB
}

func NewCategoryFlow(
	categoryRepo repository.CategoryRepository,
	auditRepo repository.AuditLogRepository,
	resolver CallerResolver,
	db *gorm.DB,
) CategoryFlow {
	return &CategoryFlowImpl{
		categoryRepo: categoryRepo,
		auditRepo:    auditRepo,
		resolver:     resolver,
		db:           db,
	}
}

func (cf *CategoryFlowImpl) ListCategories(ctx context.Context, accountID uint, req *dto.ListCategoriesRequest) (*dto.ListCategoriesResponse, error) {
	_, filter, err := cf.reader(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("LIST_CATEGORIES_FAILED", "Failed to list categories", err)
	}

	page, pageSize, offset := normalizePage(req.Page, req.PageSize)

	total, err := cf.categoryRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_CATEGORIES_FAILED", "Failed to list categories", err)
	}

	rows, err := cf.categoryRepo.ByFilter(ctx, filter, "id ASC", pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_CATEGORIES_FAILED", "Failed to list categories", err)
	}

	items := make([]dto.CategoryDTO, 0, len(rows))
	for _, c := range rows {
		items = append(items, ToCategoryDTO(*c))
	}

	return &dto.ListCategoriesResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(page, pageSize, total),
	}, nil
}

func (cf *CategoryFlowImpl) CreateCategory(ctx context.Context, accountID uint, req *dto.CategoryRequest, metadata *ClientMetadata) (*dto.CategoryDTO, error) {
	caller, err := cf.writer(ctx, accountID, metadata)
	if err != nil {
		return nil, NewBusinessError("CREATE_CATEGORY_FAILED", "Failed to create category", err)
	}

	category := &models.Category{Title: strings.TrimSpace(req.Title)}
	err = withTransaction(ctx, cf.db, func(ctx context.Context) error {
		return cf.categoryRepo.Save(ctx, category)
	})
	if err != nil {
		createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionCategoryCreated, "Category creation failed", false, errString(err), metadata)
		return nil, NewBusinessError("CREATE_CATEGORY_FAILED", "Failed to create category", err)
	}

	createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionCategoryCreated, fmt.Sprintf("Category created: %d %q", category.ID, category.Title), true, nil, metadata)

	out := ToCategoryDTO(*category)
	return &out, nil
}

func (cf *CategoryFlowImpl) GetCategory(ctx context.Context, accountID, categoryID uint) (*dto.CategoryDTO, error) {
	if _, _, err := cf.reader(ctx, accountID); err != nil {
		return nil, NewBusinessError("GET_CATEGORY_FAILED", "Failed to get category", err)
	}

	category, err := cf.categoryRepo.ByID(ctx, categoryID)
	if err != nil {
		return nil, NewBusinessError("GET_CATEGORY_FAILED", "Failed to get category", err)
	}
	if category == nil {
		return nil, NewBusinessError("GET_CATEGORY_FAILED", "Failed to get category", ErrCategoryNotFound)
	}

	out := ToCategoryDTO(*category)
	return &out, nil
}

// UpdateCategory renames a category; PUT and PATCH share it since title is the only field
func (cf *CategoryFlowImpl) UpdateCategory(ctx context.Context, accountID, categoryID uint, req *dto.CategoryRequest, metadata *ClientMetadata) (*dto.CategoryDTO, error) {
	caller, err := cf.writer(ctx, accountID, metadata)
	if err != nil {
		return nil, NewBusinessError("UPDATE_CATEGORY_FAILED", "Failed to update category", err)
	}

	var category *models.Category
	err = withTransaction(ctx, cf.db, func(ctx context.Context) error {
		category, err = cf.categoryRepo.ByID(ctx, categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return ErrCategoryNotFound
		}
		category.Title = strings.TrimSpace(req.Title)
		return cf.categoryRepo.Update(ctx, category)
	})
	if err != nil {
		if !IsCategoryNotFound(err) {
			createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionCategoryUpdated, fmt.Sprintf("Category %d update failed", categoryID), false, errString(err), metadata)
		}
		return nil, NewBusinessError("UPDATE_CATEGORY_FAILED", "Failed to update category", err)
	}

	createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionCategoryUpdated, fmt.Sprintf("Category updated: %d %q", category.ID, category.Title), true, nil, metadata)

	out := ToCategoryDTO(*category)
	return &out, nil
}

// DeleteCategory removes a category; leads referencing it keep existing with a null category
func (cf *CategoryFlowImpl) DeleteCategory(ctx context.Context, accountID, categoryID uint, metadata *ClientMetadata) error {
	caller, err := cf.writer(ctx, accountID, metadata)
	if err != nil {
		return NewBusinessError("DELETE_CATEGORY_FAILED", "Failed to delete category", err)
	}

	err = withTransaction(ctx, cf.db, func(ctx context.Context) error {
		n, err := cf.categoryRepo.Delete(ctx, categoryID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
	if err != nil {
		return NewBusinessError("DELETE_CATEGORY_FAILED", "Failed to delete category", err)
	}

	createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionCategoryDeleted, fmt.Sprintf("Category deleted: %d", categoryID), true, nil, metadata)
	return nil
}

func (cf *CategoryFlowImpl) reader(ctx context.Context, accountID uint) (*Caller, models.CategoryFilter, error) {
	caller, err := cf.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, models.CategoryFilter{}, err
	}
	if err := CheckCollectionAccess(caller, ActionRead); err != nil {
		return caller, models.CategoryFilter{}, err
	}
	filter, err := ScopeCategories(caller)
	if err != nil {
		return caller, models.CategoryFilter{}, err
	}
	return caller, filter, nil
}

func (cf *CategoryFlowImpl) writer(ctx context.Context, accountID uint, metadata *ClientMetadata) (*Caller, error) {
	caller, err := cf.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := CheckCollectionAccess(caller, ActionWrite); err != nil {
		createAuditLog(ctx, cf.auditRepo, caller.Account, models.AuditActionAccessDenied, "Category change denied", false, errString(err), metadata)
		return caller, err
	}
	return caller, nil
}
