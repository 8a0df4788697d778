package repository

import (
	"context"

	"github.com/amirphl/dialflow/models"
	"gorm.io/gorm"
)

// FollowupGroupRepositoryImpl implements FollowupGroupRepository interface
type FollowupGroupRepositoryImpl struct {
	*BaseRepository[models.FollowupGroup, struct{}]
}

// NewFollowupGroupRepository creates a new follow-up group repository
func NewFollowupGroupRepository(db *gorm.DB) FollowupGroupRepository {
	return &FollowupGroupRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FollowupGroup, struct{}](db),
	}
}

// ListByType returns the groups of a type in creation order
func (r *FollowupGroupRepositoryImpl) ListByType(ctx context.Context, groupType models.FollowupGroupType) ([]*models.FollowupGroup, error) {
	var groups []*models.FollowupGroup
	err := r.getDB(ctx).
		Where("type = ?", groupType).
		Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// FollowUpRepositoryImpl implements FollowUpRepository interface
type FollowUpRepositoryImpl struct {
	*BaseRepository[models.FollowUp, models.FollowUpFilter]
}

// NewFollowUpRepository creates a new follow-up repository
func NewFollowUpRepository(db *gorm.DB) FollowUpRepository {
	return &FollowUpRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FollowUp, models.FollowUpFilter](db),
	}
}

func (r *FollowUpRepositoryImpl) applyFilter(query *gorm.DB, filter models.FollowUpFilter) *gorm.DB {
	if filter.FollowupGroupID != nil {
		query = query.Where("followup_group_id = ?", *filter.FollowupGroupID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Incoming != nil {
		query = query.Where("incoming = ?", *filter.Incoming)
	}
	if len(filter.ExcludeTypes) > 0 {
		query = query.Where("type NOT IN ?", filter.ExcludeTypes)
	}
	return query
}

// ByFilter retrieves follow-ups; the default order is template order
func (r *FollowUpRepositoryImpl) ByFilter(ctx context.Context, filter models.FollowUpFilter, orderBy string, limit, offset int) ([]*models.FollowUp, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.FollowUp{}), filter)

	if orderBy == "" {
		orderBy = `incoming DESC, "order" ASC, id ASC`
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var followUps []*models.FollowUp
	if err := query.Find(&followUps).Error; err != nil {
		return nil, err
	}
	return followUps, nil
}

// Count returns the number of follow-ups matching the filter
func (r *FollowUpRepositoryImpl) Count(ctx context.Context, filter models.FollowUpFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.FollowUp{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any follow-up matching the filter exists
func (r *FollowUpRepositoryImpl) Exists(ctx context.Context, filter models.FollowUpFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
