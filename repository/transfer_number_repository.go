package repository

import (
	"context"
	"errors"

	"github.com/amirphl/dialflow/models"
	"gorm.io/gorm"
)

// TransferNumberRepositoryImpl implements TransferNumberRepository interface
type TransferNumberRepositoryImpl struct {
	*BaseRepository[models.TransferNumber, struct{}]
}

// NewTransferNumberRepository creates a new transfer number repository
func NewTransferNumberRepository(db *gorm.DB) TransferNumberRepository {
	return &TransferNumberRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TransferNumber, struct{}](db),
	}
}

// ByID retrieves a destination with its agent and integrations
func (r *TransferNumberRepositoryImpl) ByID(ctx context.Context, id uint) (*models.TransferNumber, error) {
	var number models.TransferNumber
	err := r.getDB(ctx).
		Preload("Agent.Integration").
		Preload("Integration").
		First(&number, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &number, nil
}

// ListActiveByOption returns the active destinations of an option in priority order
func (r *TransferNumberRepositoryImpl) ListActiveByOption(ctx context.Context, optionID uint) ([]*models.TransferNumber, error) {
	var numbers []*models.TransferNumber
	err := r.getDB(ctx).
		Where("transfer_option_id = ? AND active = ?", optionID, true).
		Preload("Agent.Integration").
		Preload("Integration").
		Order(`"order" ASC, id ASC`).
		Find(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}
