package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/simple-crm/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrganizerProfileRepositoryImpl implements OrganizerProfileRepository interface
type OrganizerProfileRepositoryImpl struct {
	*BaseRepository[models.OrganizerProfile, models.OrganizerProfileFilter]
}

// NewOrganizerProfileRepository creates a new organizer profile repository
func NewOrganizerProfileRepository(db *gorm.DB) OrganizerProfileRepository {
	return &OrganizerProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OrganizerProfile, models.OrganizerProfileFilter](db),
	}
}

// ByAccountID returns the organizer profile of an account, or nil when it has none
func (r *OrganizerProfileRepositoryImpl) ByAccountID(ctx context.Context, accountID uint) (*models.OrganizerProfile, error) {
	db := r.getDB(ctx)
	var row models.OrganizerProfile
	if err := db.Where("account_id = ?", accountID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organizer profile by account %d: %w", accountID, err)
	}
	return &row, nil
}

// EnsureForAccount creates the profile unless one exists; the bool reports creation
func (r *OrganizerProfileRepositoryImpl) EnsureForAccount(ctx context.Context, accountID uint) (*models.OrganizerProfile, bool, error) {
	db := r.getDB(ctx)
	row := models.OrganizerProfile{AccountID: accountID}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to ensure organizer profile: %w", translateError(res.Error))
	}
	if res.RowsAffected == 1 {
		return &row, true, nil
	}

	existing, err := r.ByAccountID(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteByAccountID removes the organizer profile of an account; zero rows is not an error
func (r *OrganizerProfileRepositoryImpl) DeleteByAccountID(ctx context.Context, accountID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("account_id = ?", accountID).Delete(&models.OrganizerProfile{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete organizer profile: %w", translateError(res.Error))
	}
	return res.RowsAffected, nil
}

func (r *OrganizerProfileRepositoryImpl) applyFilter(query *gorm.DB, filter models.OrganizerProfileFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	return query
}

// ByFilter retrieves organizer profiles based on filter criteria
func (r *OrganizerProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.OrganizerProfileFilter, orderBy string, limit, offset int) ([]*models.OrganizerProfile, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OrganizerProfile{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.OrganizerProfile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of organizer profiles matching the filter
func (r *OrganizerProfileRepositoryImpl) Count(ctx context.Context, filter models.OrganizerProfileFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.OrganizerProfile{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any organizer profile matching the filter exists
func (r *OrganizerProfileRepositoryImpl) Exists(ctx context.Context, filter models.OrganizerProfileFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
