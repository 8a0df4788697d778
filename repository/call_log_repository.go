package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"gorm.io/gorm"
)

// CallLogRepositoryImpl implements CallLogRepository interface
type CallLogRepositoryImpl struct {
	*BaseRepository[models.CallLog, struct{}]
}

// NewCallLogRepository creates a new call log repository
func NewCallLogRepository(db *gorm.DB) CallLogRepository {
	return &CallLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CallLog, struct{}](db),
	}
}

// BySID retrieves a call log by the platform call or message sid
func (r *CallLogRepositoryImpl) BySID(ctx context.Context, sid string) (*models.CallLog, error) {
	var log models.CallLog
	err := r.getDB(ctx).Where("sid = ?", sid).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// UpdateBySID applies column changes to the call log identified by sid
func (r *CallLogRepositoryImpl) UpdateBySID(ctx context.Context, sid string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = utils.UTCNow()

	rows, err := r.updateColumns(ctx, updates, "sid = ?", sid)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("call log not found with sid: %s", sid)
	}
	return nil
}
