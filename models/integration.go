package models

import (
	"time"
)

// Partner identifies the external presence/CRM provider of an integration
type Partner string

const (
	PartnerInternal Partner = "Internal"
	PartnerDialpad  Partner = "Dialpad"
	PartnerYtel     Partner = "Ytel"
	PartnerOptimize Partner = "Optimize"
)

func (p Partner) Valid() bool {
	switch p {
	case PartnerInternal, PartnerDialpad, PartnerYtel, PartnerOptimize:
		return true
	default:
		return false
	}
}

// Integration holds partner credentials. APIKey is sealed at rest.
type Integration struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Partner     Partner   `gorm:"size:32;not null;index:idx_integrations_partner" json:"partner"`
	AccountID   string    `gorm:"size:128" json:"account_id"`
	AccountName string    `gorm:"size:255" json:"account_name"`
	APIKey      string    `gorm:"column:api_key;type:text" json:"-"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Integration) TableName() string {
	return "integrations"
}

// IntegrationFilter represents filter criteria for integration queries
type IntegrationFilter struct {
	ID      *uint
	Partner *Partner
}
