package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
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

// ByID retrieves a lead with its campaign
func (r *LeadRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	err := r.getDB(ctx).Preload("Campaign").First(&lead, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

// LockByID loads the lead FOR UPDATE, then attaches its campaign
func (r *LeadRepositoryImpl) LockByID(ctx context.Context, id uint) (*models.Lead, error) {
	lead, err := r.lockByID(ctx, id)
	if err != nil || lead == nil {
		return lead, err
	}

	var campaign models.Campaign
	if err := r.getDB(ctx).First(&campaign, lead.CampaignID).Error; err != nil {
		return nil, fmt.Errorf("failed to load campaign %d of lead %d: %w", lead.CampaignID, id, err)
	}
	lead.Campaign = &campaign
	return lead, nil
}

// ByPhones returns the oldest lead whose phone matches one of the variants
func (r *LeadRepositoryImpl) ByPhones(ctx context.Context, phones []string) (*models.Lead, error) {
	items, err := r.ByFilter(ctx, models.LeadFilter{Phones: phones}, "id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// StartInteraction records a new interaction episode and resets the reporting status
func (r *LeadRepositoryImpl) StartInteraction(ctx context.Context, leadID, interactionID uint) error {
	updates := map[string]any{
		"current_interaction": interactionID,
		"status":              models.LeadStatusNotCalled,
		"version":             gorm.Expr("version + 1"),
		"updated_at":          utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates, "id = ?", leadID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("lead not found with ID: %d", leadID)
	}
	return nil
}

// UpdateStatus sets the status when the stored version equals version
func (r *LeadRepositoryImpl) UpdateStatus(ctx context.Context, leadID uint, version int, status models.LeadStatus) (bool, error) {
	updates := map[string]any{
		"status":     status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates, "id = ? AND version = ?", leadID, version)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if len(filter.Phones) > 0 {
		query = query.Where("phone IN ?", filter.Phones)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter)

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

	var leads []*models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

// Count returns the number of leads matching the filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matching the filter exists
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
