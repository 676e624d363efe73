package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/simple-crm/models"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("leads.id = ?", *filter.ID)
	}
	if filter.OrganizerID != nil {
		query = query.Where("leads.organizer_id = ?", *filter.OrganizerID)
	}
	if filter.AgentID != nil {
		query = query.Where("leads.agent_id = ?", *filter.AgentID)
	}
	if filter.CategoryID != nil {
		query = query.Where("leads.category_id = ?", *filter.CategoryID)
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		pattern := "%" + likeEscaper.Replace(strings.TrimSpace(*filter.Search)) + "%"
		query = query.Where(`leads.description ILIKE ? ESCAPE '\'`, pattern)
	}
	if filter.IsConverted != nil {
		if *filter.IsConverted {
			query = query.Where("leads.converted_date IS NOT NULL")
		} else {
			query = query.Where("leads.converted_date IS NULL")
		}
	}
	if filter.DateAddedAfter != nil {
		query = query.Where("leads.date_added >= ?", *filter.DateAddedAfter)
	}
	if filter.DateAddedBefore != nil {
		query = query.Where("leads.date_added < ?", *filter.DateAddedBefore)
	}
	return query
}

func (r *LeadRepositoryImpl) page(query *gorm.DB, orderBy string, limit, offset int) *gorm.DB {
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
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := r.page(r.applyFilter(db.Model(&models.Lead{}), filter), orderBy, limit, offset)

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return rows, nil
}

// ByFilterWithRelations is ByFilter with category and agent account preloaded, used by exports
func (r *LeadRepositoryImpl) ByFilterWithRelations(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := r.page(r.applyFilter(db.Model(&models.Lead{}), filter), orderBy, limit, offset).
		Preload("Category").
		Preload("Agent.Account").
		Preload("Organizer.Account")

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads with relations: %w", err)
	}
	return rows, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
