package repository

import (
	"context"

	"github.com/amirphl/dialflow/models"
	"gorm.io/gorm"
)

// IntegrationRepositoryImpl implements IntegrationRepository interface
type IntegrationRepositoryImpl struct {
	*BaseRepository[models.Integration, models.IntegrationFilter]
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &IntegrationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Integration, models.IntegrationFilter](db),
	}
}

// FirstByPartner returns the oldest integration of a partner
func (r *IntegrationRepositoryImpl) FirstByPartner(ctx context.Context, partner models.Partner) (*models.Integration, error) {
	items, err := r.ByFilter(ctx, models.IntegrationFilter{Partner: &partner}, "id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *IntegrationRepositoryImpl) applyFilter(query *gorm.DB, filter models.IntegrationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Partner != nil {
		query = query.Where("partner = ?", *filter.Partner)
	}
	return query
}

// ByFilter retrieves integrations based on filter criteria
func (r *IntegrationRepositoryImpl) ByFilter(ctx context.Context, filter models.IntegrationFilter, orderBy string, limit, offset int) ([]*models.Integration, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Integration{}), filter)

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

	var items []*models.Integration
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of integrations matching the filter
func (r *IntegrationRepositoryImpl) Count(ctx context.Context, filter models.IntegrationFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Integration{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any integration matching the filter exists
func (r *IntegrationRepositoryImpl) Exists(ctx context.Context, filter models.IntegrationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
