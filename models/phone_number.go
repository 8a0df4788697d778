package models

import (
	"time"
)

// PhoneNumber is an entry of the outbound caller-id pool.
// Unique by Number value.
type PhoneNumber struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Name     *string `gorm:"size:255" json:"name,omitempty"`
	Number   string  `gorm:"size:32;not null;uniqueIndex:uk_phone_numbers_number" json:"number"`
	Source   string  `gorm:"size:32;not null;default:'Twilio'" json:"source"`
	IsActive *bool   `gorm:"default:true;index:idx_phone_numbers_is_active" json:"is_active"`

	CampaignID *uint     `gorm:"index:idx_phone_numbers_campaign_id" json:"campaign_id,omitempty"`
	Campaign   *Campaign `gorm:"foreignKey:CampaignID" json:"campaign,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_phone_numbers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PhoneNumber) TableName() string {
	return "phone_numbers"
}

// PhoneNumberFilter represents filter criteria for phone number queries
type PhoneNumberFilter struct {
	ID         *uint
	Number     *string
	Numbers    []string
	IsActive   *bool
	CampaignID *uint
}
