package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"gorm.io/gorm"
)

// FollowupProgressRepositoryImpl implements FollowupProgressRepository interface
type FollowupProgressRepositoryImpl struct {
	*BaseRepository[models.FollowupProgress, models.FollowupProgressFilter]
}

// NewFollowupProgressRepository creates a new follow-up progress repository
func NewFollowupProgressRepository(db *gorm.DB) FollowupProgressRepository {
	return &FollowupProgressRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FollowupProgress, models.FollowupProgressFilter](db),
	}
}

// ByID retrieves a progress row with its follow-up definition
func (r *FollowupProgressRepositoryImpl) ByID(ctx context.Context, id uint) (*models.FollowupProgress, error) {
	var progress models.FollowupProgress
	err := r.getDB(ctx).Preload("FollowUp").First(&progress, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

// SkipPending supersedes every Next or Waiting row of the lead, across all episodes
func (r *FollowupProgressRepositoryImpl) SkipPending(ctx context.Context, leadID uint) (int64, error) {
	updates := map[string]any{
		"progress":   models.ProgressStatusSkip,
		"updated_at": utils.UTCNow(),
	}
	return r.updateColumns(ctx, updates, "lead_id = ? AND progress IN ?", leadID,
		[]models.ProgressStatus{models.ProgressStatusNext, models.ProgressStatusWaiting})
}

// MaxInteraction returns the highest interaction id of the lead, 0 when none
func (r *FollowupProgressRepositoryImpl) MaxInteraction(ctx context.Context, leadID uint) (uint, error) {
	var maxID uint
	err := r.getDB(ctx).Model(&models.FollowupProgress{}).
		Where("lead_id = ?", leadID).
		Select("COALESCE(MAX(lead_interaction_id), 0)").
		Scan(&maxID).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max interaction of lead %d: %w", leadID, err)
	}
	return maxID, nil
}

// HasNext reports whether the episode already has an armed step
func (r *FollowupProgressRepositoryImpl) HasNext(ctx context.Context, leadID, interactionID uint) (bool, error) {
	next := models.ProgressStatusNext
	return r.Exists(ctx, models.FollowupProgressFilter{
		LeadID:            &leadID,
		LeadInteractionID: &interactionID,
		Progress:          []models.ProgressStatus{next},
	})
}

// FirstWaiting returns the lowest-step Waiting row that still has a definition
func (r *FollowupProgressRepositoryImpl) FirstWaiting(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error) {
	hasFollowUp := true
	items, err := r.ByFilter(ctx, models.FollowupProgressFilter{
		LeadID:            &leadID,
		LeadInteractionID: &interactionID,
		Progress:          []models.ProgressStatus{models.ProgressStatusWaiting},
		HasFollowUp:       &hasFollowUp,
	}, "followup_progresses.step ASC, followup_progresses.id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// FirstOfInteraction returns the earliest created row of an episode
func (r *FollowupProgressRepositoryImpl) FirstOfInteraction(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error) {
	items, err := r.ByFilter(ctx, models.FollowupProgressFilter{
		LeadID:            &leadID,
		LeadInteractionID: &interactionID,
	}, "followup_progresses.id ASC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// Promote moves a Waiting row to Next when no sibling of its episode is Next.
// The partial unique index uk_followup_progresses_next backs the NOT EXISTS
// guard against concurrent promoters; losing that race is reported as false.
func (r *FollowupProgressRepositoryImpl) Promote(ctx context.Context, id uint, estimatedTime time.Time) (bool, error) {
	updates := map[string]any{
		"progress":       models.ProgressStatusNext,
		"estimated_time": estimatedTime.UTC(),
		"updated_at":     utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates,
		`id = ? AND progress = ? AND NOT EXISTS (
			SELECT 1 FROM followup_progresses sib
			WHERE sib.lead_id = followup_progresses.lead_id
			  AND sib.lead_interaction_id = followup_progresses.lead_interaction_id
			  AND sib.progress = ?)`,
		id, models.ProgressStatusWaiting, models.ProgressStatusNext)
	if err != nil {
		if IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return rows > 0, nil
}

// Complete claims a Next row for execution
func (r *FollowupProgressRepositoryImpl) Complete(ctx context.Context, id uint) (bool, error) {
	updates := map[string]any{
		"progress":   models.ProgressStatusComplete,
		"updated_at": utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates, "id = ? AND progress = ?", id, models.ProgressStatusNext)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Consume completes a Waiting row, used for passive entry steps
func (r *FollowupProgressRepositoryImpl) Consume(ctx context.Context, id uint) (bool, error) {
	updates := map[string]any{
		"progress":   models.ProgressStatusComplete,
		"updated_at": utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates, "id = ? AND progress = ?", id, models.ProgressStatusWaiting)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DueNext lists armed rows due at now whose lead belongs to an active campaign
func (r *FollowupProgressRepositoryImpl) DueNext(ctx context.Context, now time.Time) ([]*models.FollowupProgress, error) {
	var items []*models.FollowupProgress
	err := r.getDB(ctx).
		Select("followup_progresses.*").
		Joins("JOIN leads ON leads.id = followup_progresses.lead_id").
		Joins("JOIN campaigns ON campaigns.id = leads.campaign_id").
		Where("followup_progresses.progress = ?", models.ProgressStatusNext).
		Where("followup_progresses.estimated_time <= ?", now.UTC()).
		Where("campaigns.is_active = ?", true).
		Preload("Lead.Campaign").
		Preload("FollowUp").
		Order("followup_progresses.estimated_time ASC, followup_progresses.id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due progresses: %w", err)
	}
	return items, nil
}

// ListPendingByCampaign lists Waiting and Next rows whose definition belongs to the campaign
func (r *FollowupProgressRepositoryImpl) ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowupProgress, error) {
	return r.ByFilter(ctx, models.FollowupProgressFilter{
		CampaignID: &campaignID,
		Progress:   []models.ProgressStatus{models.ProgressStatusWaiting, models.ProgressStatusNext},
	}, "followup_progresses.lead_id ASC, followup_progresses.step ASC", 0, 0)
}

// UpdateEstimatedTime overwrites the execution time of one row
func (r *FollowupProgressRepositoryImpl) UpdateEstimatedTime(ctx context.Context, id uint, estimatedTime *time.Time) error {
	updates := map[string]any{
		"estimated_time": utils.TimeToUTCPtr(estimatedTime),
		"updated_at":     utils.UTCNow(),
	}
	rows, err := r.updateColumns(ctx, updates, "id = ?", id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("followup progress not found with ID: %d", id)
	}
	return nil
}

func (r *FollowupProgressRepositoryImpl) applyFilter(query *gorm.DB, filter models.FollowupProgressFilter) *gorm.DB {
	if filter.LeadID != nil {
		query = query.Where("followup_progresses.lead_id = ?", *filter.LeadID)
	}
	if filter.LeadInteractionID != nil {
		query = query.Where("followup_progresses.lead_interaction_id = ?", *filter.LeadInteractionID)
	}
	if len(filter.Progress) > 0 {
		query = query.Where("followup_progresses.progress IN ?", filter.Progress)
	}
	if filter.HasFollowUp != nil {
		if *filter.HasFollowUp {
			query = query.Where("followup_progresses.follow_up_id IS NOT NULL")
		} else {
			query = query.Where("followup_progresses.follow_up_id IS NULL")
		}
	}
	if filter.CampaignID != nil {
		query = query.
			Joins("JOIN follow_ups ON follow_ups.id = followup_progresses.follow_up_id").
			Where("follow_ups.campaign_id = ?", *filter.CampaignID)
	}
	return query
}

// ByFilter retrieves progress rows with their follow-up definitions
func (r *FollowupProgressRepositoryImpl) ByFilter(ctx context.Context, filter models.FollowupProgressFilter, orderBy string, limit, offset int) ([]*models.FollowupProgress, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.FollowupProgress{}).Select("followup_progresses.*"), filter)

	if orderBy == "" {
		orderBy = "followup_progresses.id DESC"
	}
	query = query.Preload("FollowUp").Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var items []*models.FollowupProgress
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Count returns the number of progress rows matching the filter
func (r *FollowupProgressRepositoryImpl) Count(ctx context.Context, filter models.FollowupProgressFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.FollowupProgress{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any progress row matching the filter exists
func (r *FollowupProgressRepositoryImpl) Exists(ctx context.Context, filter models.FollowupProgressFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
