package models

import (
	"time"
)

// PingLog stores the verbatim response of a pre-transfer ping
type PingLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Result           string    `gorm:"type:text" json:"result"`
	TransferNumberID uint      `gorm:"not null;index:idx_ping_logs_transfer_number_id" json:"transfer_number_id"`
	LeadID           uint      `gorm:"not null;index:idx_ping_logs_lead_id" json:"lead_id"`
	IntegrationID    uint      `gorm:"not null" json:"integration_id"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (PingLog) TableName() string {
	return "ping_logs"
}
