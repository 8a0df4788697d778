package models

import (
	"time"
)

// ProgressStatus is the lifecycle state of one step instance
type ProgressStatus string

const (
	ProgressStatusWaiting  ProgressStatus = "Waiting"
	ProgressStatusNext     ProgressStatus = "Next"
	ProgressStatusComplete ProgressStatus = "Complete"
	ProgressStatusSkip     ProgressStatus = "Skip"
)

func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressStatusWaiting, ProgressStatusNext, ProgressStatusComplete, ProgressStatusSkip:
		return true
	default:
		return false
	}
}

// Pending reports whether the step can still run
func (s ProgressStatus) Pending() bool {
	switch s {
	case ProgressStatusWaiting, ProgressStatusNext:
		return true
	case ProgressStatusComplete, ProgressStatusSkip:
		return false
	default:
		return false
	}
}

// FollowupProgress is one step instance of a lead's interaction episode.
// At most one row per (lead_id, lead_interaction_id) may be Next; the
// uk_followup_progresses_next partial index enforces it.
type FollowupProgress struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Step              int            `gorm:"not null" json:"step"`
	Progress          ProgressStatus `gorm:"size:16;not null;default:'Waiting';index:idx_followup_progresses_progress" json:"progress"`
	EstimatedTime     *time.Time     `gorm:"index:idx_followup_progresses_estimated_time" json:"estimated_time,omitempty"`
	LeadInteractionID uint           `gorm:"not null;index:idx_followup_progresses_lead_interaction" json:"lead_interaction_id"`

	LeadID     uint      `gorm:"not null;index:idx_followup_progresses_lead_interaction" json:"lead_id"`
	Lead       *Lead     `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	FollowUpID *uint     `gorm:"index:idx_followup_progresses_follow_up_id" json:"follow_up_id,omitempty"`
	FollowUp   *FollowUp `gorm:"foreignKey:FollowUpID" json:"follow_up,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (FollowupProgress) TableName() string {
	return "followup_progresses"
}

// FollowupProgressFilter represents filter criteria for progress queries
type FollowupProgressFilter struct {
	LeadID            *uint
	LeadInteractionID *uint
	Progress          []ProgressStatus
	CampaignID        *uint
	HasFollowUp       *bool
}
