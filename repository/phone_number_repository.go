package repository

import (
	"context"
	"errors"

	"github.com/amirphl/dialflow/models"
	"gorm.io/gorm"
)

// PhoneNumberRepositoryImpl implements PhoneNumberRepository interface
type PhoneNumberRepositoryImpl struct {
	*BaseRepository[models.PhoneNumber, models.PhoneNumberFilter]
}

// NewPhoneNumberRepository creates a new phone number repository
func NewPhoneNumberRepository(db *gorm.DB) PhoneNumberRepository {
	return &PhoneNumberRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PhoneNumber, models.PhoneNumberFilter](db),
	}
}

// ByNumber retrieves a phone number by its value
func (r *PhoneNumberRepositoryImpl) ByNumber(ctx context.Context, number string) (*models.PhoneNumber, error) {
	filter := models.PhoneNumberFilter{Number: &number}
	items, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// RandomActive draws one active number of the campaign uniformly at random
func (r *PhoneNumberRepositoryImpl) RandomActive(ctx context.Context, campaignID uint) (*models.PhoneNumber, error) {
	var number models.PhoneNumber
	err := r.getDB(ctx).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("RANDOM()").
		Take(&number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &number, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *PhoneNumberRepositoryImpl) applyFilter(query *gorm.DB, filter models.PhoneNumberFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Number != nil {
		query = query.Where("number = ?", *filter.Number)
	}
	if len(filter.Numbers) > 0 {
		query = query.Where("number IN ?", filter.Numbers)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	return query
}

// ByFilter retrieves phone numbers based on filter criteria
func (r *PhoneNumberRepositoryImpl) ByFilter(ctx context.Context, filter models.PhoneNumberFilter, orderBy string, limit, offset int) ([]*models.PhoneNumber, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PhoneNumber{})

	query = r.applyFilter(query, filter)

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

	var numbers []*models.PhoneNumber
	if err := query.Find(&numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

// Count returns the number of phone numbers matching the filter
func (r *PhoneNumberRepositoryImpl) Count(ctx context.Context, filter models.PhoneNumberFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PhoneNumber{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any phone number matching the filter exists
func (r *PhoneNumberRepositoryImpl) Exists(ctx context.Context, filter models.PhoneNumberFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
