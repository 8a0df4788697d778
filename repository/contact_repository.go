package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"gorm.io/gorm"
)

// PingLogRepositoryImpl implements PingLogRepository interface
type PingLogRepositoryImpl struct {
	*BaseRepository[models.PingLog, struct{}]
}

// NewPingLogRepository creates a new ping log repository
func NewPingLogRepository(db *gorm.DB) PingLogRepository {
	return &PingLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PingLog, struct{}](db),
	}
}

// SMSContactRepositoryImpl implements SMSContactRepository interface
type SMSContactRepositoryImpl struct {
	*BaseRepository[models.SMSContact, struct{}]
}

// NewSMSContactRepository creates a new SMS conversation repository
func NewSMSContactRepository(db *gorm.DB) SMSContactRepository {
	return &SMSContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SMSContact, struct{}](db),
	}
}

// ByLead returns the conversation of a lead
func (r *SMSContactRepositoryImpl) ByLead(ctx context.Context, leadID uint) (*models.SMSContact, error) {
	var contact models.SMSContact
	err := r.getDB(ctx).Where("lead_id = ?", leadID).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// Update applies column changes to a conversation
func (r *SMSContactRepositoryImpl) Update(ctx context.Context, id uint, updates map[string]any) error {
	updates["updated_at"] = utils.UTCNow()
	rows, err := r.updateColumns(ctx, updates, "id = ?", id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("sms contact not found with ID: %d", id)
	}
	return nil
}

// AddMessage appends a message to a conversation
func (r *SMSContactRepositoryImpl) AddMessage(ctx context.Context, message *models.Message) error {
	if err := r.getDB(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// BlockListRepositoryImpl implements BlockListRepository interface
type BlockListRepositoryImpl struct {
	*BaseRepository[models.BlockList, struct{}]
}

// NewBlockListRepository creates a new block list repository
func NewBlockListRepository(db *gorm.DB) BlockListRepository {
	return &BlockListRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BlockList, struct{}](db),
	}
}

// IsPhoneBlocked matches stored phone entries by suffix, ignoring a leading +
func (r *BlockListRepositoryImpl) IsPhoneBlocked(ctx context.Context, phone string) (bool, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if digits == "" {
		return false, nil
	}
	var count int64
	err := r.getDB(ctx).Model(&models.BlockList{}).
		Where("type = ? AND value LIKE ?", models.BlockTypePhone, "%"+digits).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsEmailBlocked matches stored email entries exactly
func (r *BlockListRepositoryImpl) IsEmailBlocked(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int64
	err := r.getDB(ctx).Model(&models.BlockList{}).
		Where("type = ? AND LOWER(value) = LOWER(?)", models.BlockTypeEmail, email).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, struct{}]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, struct{}](db),
	}
}

// RandomAgent draws one active agent user
func (r *UserRepositoryImpl) RandomAgent(ctx context.Context) (*models.User, error) {
	var user models.User
	err := r.getDB(ctx).
		Where("role = ? AND is_active = ?", models.UserRoleAgent, true).
		Order("RANDOM()").
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
