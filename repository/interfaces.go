// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/dialflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
}

// FollowupGroupRepository defines operations for follow-up templates
type FollowupGroupRepository interface {
	ByID(ctx context.Context, id uint) (*models.FollowupGroup, error)
	Save(ctx context.Context, group *models.FollowupGroup) error
	ListByType(ctx context.Context, groupType models.FollowupGroupType) ([]*models.FollowupGroup, error)
}

// FollowUpRepository defines operations for follow-up step definitions
type FollowUpRepository interface {
	Repository[models.FollowUp, models.FollowUpFilter]
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	// LockByID loads the lead with a row lock; callers must hold a transaction
	LockByID(ctx context.Context, id uint) (*models.Lead, error)
	ByPhones(ctx context.Context, phones []string) (*models.Lead, error)
	StartInteraction(ctx context.Context, leadID, interactionID uint) error
	// UpdateStatus applies the status only when version still matches; it reports whether a row changed
	UpdateStatus(ctx context.Context, leadID uint, version int, status models.LeadStatus) (bool, error)
}

// FollowupProgressRepository defines operations for step instances
type FollowupProgressRepository interface {
	Repository[models.FollowupProgress, models.FollowupProgressFilter]
	SkipPending(ctx context.Context, leadID uint) (int64, error)
	MaxInteraction(ctx context.Context, leadID uint) (uint, error)
	HasNext(ctx context.Context, leadID, interactionID uint) (bool, error)
	FirstWaiting(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error)
	FirstOfInteraction(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error)
	// Promote arms a Waiting row; it reports false when the row is no longer Waiting or a sibling is already Next
	Promote(ctx context.Context, id uint, estimatedTime time.Time) (bool, error)
	// Complete claims a Next row; it reports false when another worker already moved it
	Complete(ctx context.Context, id uint) (bool, error)
	// Consume completes a Waiting row armed by an inbound event instead of the dispatcher
	Consume(ctx context.Context, id uint) (bool, error)
	DueNext(ctx context.Context, now time.Time) ([]*models.FollowupProgress, error)
	ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowupProgress, error)
	UpdateEstimatedTime(ctx context.Context, id uint, estimatedTime *time.Time) error
}

// CallLogRepository defines operations for call logs
type CallLogRepository interface {
	ByID(ctx context.Context, id uint) (*models.CallLog, error)
	Save(ctx context.Context, log *models.CallLog) error
	BySID(ctx context.Context, sid string) (*models.CallLog, error)
	UpdateBySID(ctx context.Context, sid string, updates map[string]any) error
}

// IVRPromptRepository defines operations for IVR graph nodes
type IVRPromptRepository interface {
	ByID(ctx context.Context, id uint) (*models.IVRPrompt, error)
	FirstOfIVR(ctx context.Context, ivrID uint) (*models.IVRPrompt, error)
	IncrementUsed(ctx context.Context, id uint) error
	IncrementButtonUsed(ctx context.Context, id uint, index int) error
}

// IVRPromptMessageRepository defines operations for weighted prompt variants
type IVRPromptMessageRepository interface {
	ByID(ctx context.Context, id uint) (*models.IVRPromptMessage, error)
	ListByPrompt(ctx context.Context, promptID uint) ([]*models.IVRPromptMessage, error)
	IncrementUsed(ctx context.Context, id uint) error
	IncrementConversions(ctx context.Context, id uint) error
}

// TransferNumberRepository defines operations for transfer destinations
type TransferNumberRepository interface {
	ByID(ctx context.Context, id uint) (*models.TransferNumber, error)
	ListActiveByOption(ctx context.Context, optionID uint) ([]*models.TransferNumber, error)
}

// PhoneNumberRepository defines operations for the outbound number pool
type PhoneNumberRepository interface {
	Repository[models.PhoneNumber, models.PhoneNumberFilter]
	ByNumber(ctx context.Context, number string) (*models.PhoneNumber, error)
	RandomActive(ctx context.Context, campaignID uint) (*models.PhoneNumber, error)
}

// IntegrationRepository defines operations for partner integrations
type IntegrationRepository interface {
	Repository[models.Integration, models.IntegrationFilter]
	FirstByPartner(ctx context.Context, partner models.Partner) (*models.Integration, error)
}

// PingLogRepository defines operations for ping audit rows
type PingLogRepository interface {
	Save(ctx context.Context, log *models.PingLog) error
}

// SMSContactRepository defines operations for SMS conversations and their messages
type SMSContactRepository interface {
	Save(ctx context.Context, contact *models.SMSContact) error
	ByLead(ctx context.Context, leadID uint) (*models.SMSContact, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
	AddMessage(ctx context.Context, message *models.Message) error
}

// BlockListRepository defines operations for blocked phones and emails
type BlockListRepository interface {
	Save(ctx context.Context, entry *models.BlockList) error
	IsPhoneBlocked(ctx context.Context, phone string) (bool, error)
	IsEmailBlocked(ctx context.Context, email string) (bool, error)
}

// UserRepository defines operations for console users
type UserRepository interface {
	Save(ctx context.Context, user *models.User) error
	RandomAgent(ctx context.Context) (*models.User, error)
}
