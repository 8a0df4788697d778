package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadType is the line classification of a lead's phone
type LeadType string

const (
	LeadTypeMobile   LeadType = "Mobile"
	LeadTypeLandline LeadType = "Landline"
)

func (t LeadType) Valid() bool {
	switch t {
	case LeadTypeMobile, LeadTypeLandline:
		return true
	default:
		return false
	}
}

// LeadStatus is the reporting status of a lead
type LeadStatus string

const (
	LeadStatusNotCalled   LeadStatus = "NotCalled"
	LeadStatusCalled      LeadStatus = "Called"
	LeadStatusContacted   LeadStatus = "Contacted"
	LeadStatusTransferred LeadStatus = "Transferred"
	LeadStatusRemoved     LeadStatus = "Removed"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNotCalled, LeadStatusCalled, LeadStatusContacted, LeadStatusTransferred, LeadStatusRemoved:
		return true
	default:
		return false
	}
}

// Lead is a contact enrolled in a campaign.
// Version is bumped on every status or interaction change and is used as an
// optimistic concurrency token.
type Lead struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_leads_uuid" json:"uuid"`

	FirstName  string   `gorm:"size:255" json:"first_name"`
	LastName   string   `gorm:"size:255" json:"last_name"`
	Email      string   `gorm:"size:255" json:"email,omitempty"`
	Phone      string   `gorm:"size:32;not null;index:idx_leads_phone" json:"phone"`
	Type       LeadType `gorm:"size:16;not null;default:'Mobile'" json:"type"`
	ZipCode    string   `gorm:"size:16" json:"zip_code,omitempty"`
	City       string   `gorm:"size:128" json:"city,omitempty"`
	State      string   `gorm:"size:64" json:"state,omitempty"`
	Timezone   string   `gorm:"size:64" json:"timezone,omitempty"`
	Age        *int     `json:"age,omitempty"`
	OptimizeID string   `gorm:"column:optimize_id;size:128" json:"optimize_id,omitempty"`
	Blocked    bool     `gorm:"not null;default:false" json:"blocked"`

	CurrentInteraction uint       `gorm:"not null;default:0" json:"current_interaction"`
	Status             LeadStatus `gorm:"size:32;not null;default:'NotCalled';index:idx_leads_status" json:"status"`
	Version            int        `gorm:"not null;default:1" json:"version"`

	CampaignID uint      `gorm:"not null;index:idx_leads_campaign_id" json:"campaign_id"`
	Campaign   *Campaign `gorm:"foreignKey:CampaignID" json:"campaign,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_leads_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// TemplateParams returns the placeholders available to message templates
func (l *Lead) TemplateParams(senderPhone string) map[string]string {
	return map[string]string{
		"firstName":   l.FirstName,
		"lastName":    l.LastName,
		"senderPhone": senderPhone,
	}
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID         *uint
	CampaignID *uint
	Phones     []string
	Status     *LeadStatus
}
