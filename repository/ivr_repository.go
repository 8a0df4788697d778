package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/dialflow/models"
	"gorm.io/gorm"
)

// IVRPromptRepositoryImpl implements IVRPromptRepository interface
type IVRPromptRepositoryImpl struct {
	*BaseRepository[models.IVRPrompt, struct{}]
}

// NewIVRPromptRepository creates a new IVR prompt repository
func NewIVRPromptRepository(db *gorm.DB) IVRPromptRepository {
	return &IVRPromptRepositoryImpl{
		BaseRepository: NewBaseRepository[models.IVRPrompt, struct{}](db),
	}
}

// ByID retrieves a prompt with its IVR definition
func (r *IVRPromptRepositoryImpl) ByID(ctx context.Context, id uint) (*models.IVRPrompt, error) {
	var prompt models.IVRPrompt
	err := r.getDB(ctx).Preload("IVR").First(&prompt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prompt, nil
}

// FirstOfIVR returns the entry node of an IVR
func (r *IVRPromptRepositoryImpl) FirstOfIVR(ctx context.Context, ivrID uint) (*models.IVRPrompt, error) {
	var prompt models.IVRPrompt
	err := r.getDB(ctx).
		Where("ivr_id = ? AND first = ?", ivrID, true).
		Order("id ASC").
		First(&prompt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prompt, nil
}

// IncrementUsed bumps the node usage counter in place
func (r *IVRPromptRepositoryImpl) IncrementUsed(ctx context.Context, id uint) error {
	return r.getDB(ctx).Model(&models.IVRPrompt{}).
		Where("id = ?", id).
		UpdateColumn("used", gorm.Expr("used + 1")).Error
}

// IncrementButtonUsed bumps the usage counter of the button at index inside the jsonb array
func (r *IVRPromptRepositoryImpl) IncrementButtonUsed(ctx context.Context, id uint, index int) error {
	if index < 0 {
		return fmt.Errorf("invalid button index %d", index)
	}
	path := fmt.Sprintf("{%d,used}", index)
	return r.getDB(ctx).Model(&models.IVRPrompt{}).
		Where("id = ? AND jsonb_array_length(buttons) > ?", id, index).
		UpdateColumn("buttons", gorm.Expr(
			"jsonb_set(buttons, ?::text[], to_jsonb(COALESCE((buttons->(?::int)->>'used')::int, 0) + 1))",
			path, index,
		)).Error
}

// IVRPromptMessageRepositoryImpl implements IVRPromptMessageRepository interface
type IVRPromptMessageRepositoryImpl struct {
	*BaseRepository[models.IVRPromptMessage, struct{}]
}

// NewIVRPromptMessageRepository creates a new prompt message repository
func NewIVRPromptMessageRepository(db *gorm.DB) IVRPromptMessageRepository {
	return &IVRPromptMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.IVRPromptMessage, struct{}](db),
	}
}

// ListByPrompt returns the variants of a prompt in declared order
func (r *IVRPromptMessageRepositoryImpl) ListByPrompt(ctx context.Context, promptID uint) ([]*models.IVRPromptMessage, error) {
	var messages []*models.IVRPromptMessage
	err := r.getDB(ctx).
		Where("ivr_prompt_id = ?", promptID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// IncrementUsed bumps the variant usage counter in place
func (r *IVRPromptMessageRepositoryImpl) IncrementUsed(ctx context.Context, id uint) error {
	return r.getDB(ctx).Model(&models.IVRPromptMessage{}).
		Where("id = ?", id).
		UpdateColumn("used", gorm.Expr("used + 1")).Error
}

// IncrementConversions bumps the variant conversion counter in place
func (r *IVRPromptMessageRepositoryImpl) IncrementConversions(ctx context.Context, id uint) error {
	return r.getDB(ctx).Model(&models.IVRPromptMessage{}).
		Where("id = ?", id).
		UpdateColumn("conversions", gorm.Expr("conversions + 1")).Error
}
