package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/simple-crm/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentProfileRepositoryImpl implements AgentProfileRepository interface
type AgentProfileRepositoryImpl struct {
	*BaseRepository[models.AgentProfile, models.AgentProfileFilter]
}

// NewAgentProfileRepository creates a new agent profile repository
func NewAgentProfileRepository(db *gorm.DB) AgentProfileRepository {
	return &AgentProfileRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AgentProfile, models.AgentProfileFilter](db),
	}
}

// ByAccountID returns the agent profile of an account, or nil when it has none
func (r *AgentProfileRepositoryImpl) ByAccountID(ctx context.Context, accountID uint) (*models.AgentProfile, error) {
	db := r.getDB(ctx)
	var row models.AgentProfile
	if err := db.Where("account_id = ?", accountID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find agent profile by account %d: %w", accountID, err)
	}
	return &row, nil
}

// ByIDWithAccount loads an agent profile together with its account, used for notifications
func (r *AgentProfileRepositoryImpl) ByIDWithAccount(ctx context.Context, id uint) (*models.AgentProfile, error) {
	db := r.getDB(ctx)
	var row models.AgentProfile
	if err := db.Preload("Account").Take(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find agent profile %d: %w", id, err)
	}
	return &row, nil
}

// EnsureForAccount creates the profile unless one exists; the bool reports creation
func (r *AgentProfileRepositoryImpl) EnsureForAccount(ctx context.Context, accountID uint) (*models.AgentProfile, bool, error) {
	db := r.getDB(ctx)
	row := models.AgentProfile{AccountID: accountID}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to ensure agent profile: %w", translateError(res.Error))
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

// DeleteByAccountID removes the agent profile of an account; zero rows is not an error
func (r *AgentProfileRepositoryImpl) DeleteByAccountID(ctx context.Context, accountID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Where("account_id = ?", accountID).Delete(&models.AgentProfile{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete agent profile: %w", translateError(res.Error))
	}
	return res.RowsAffected, nil
}

func (r *AgentProfileRepositoryImpl) applyFilter(query *gorm.DB, filter models.AgentProfileFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.OrganizerID != nil {
		query = query.Where("organizer_id = ?", *filter.OrganizerID)
	}
	return query
}

// ByFilter retrieves agent profiles based on filter criteria
func (r *AgentProfileRepositoryImpl) ByFilter(ctx context.Context, filter models.AgentProfileFilter, orderBy string, limit, offset int) ([]*models.AgentProfile, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AgentProfile{}), filter)

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

	var rows []*models.AgentProfile
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of agent profiles matching the filter
func (r *AgentProfileRepositoryImpl) Count(ctx context.Context, filter models.AgentProfileFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AgentProfile{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any agent profile matching the filter exists
func (r *AgentProfileRepositoryImpl) Exists(ctx context.Context, filter models.AgentProfileFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
