package models

import (
	"time"
)

// SMSContact is the SMS conversation with one lead
type SMSContact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Archived    bool      `gorm:"not null;default:false" json:"archived"`
	LastMessage string    `gorm:"type:text" json:"last_message,omitempty"`
	LeadID      uint      `gorm:"not null;uniqueIndex:uk_sms_contacts_lead_id" json:"lead_id"`
	Lead        *Lead     `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	CallLogID   *uint     `json:"call_log_id,omitempty"`
	UserID      *uint     `json:"user_id,omitempty"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SMSContact) TableName() string {
	return "sms_contacts"
}

// MessageDirection tells who authored a conversation message
type MessageDirection string

const (
	MessageDirectionSent     MessageDirection = "sent"
	MessageDirectionReceived MessageDirection = "received"
)

// Message is one text of an SMS conversation
type Message struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Body         string           `gorm:"type:text" json:"body"`
	SID          string           `gorm:"column:sid;size:64" json:"sid,omitempty"`
	Direction    MessageDirection `gorm:"size:16;not null" json:"direction"`
	Unread       bool             `gorm:"not null;default:false" json:"unread"`
	SMSContactID uint             `gorm:"column:sms_contact_id;not null;index:idx_messages_sms_contact_id" json:"sms_contact_id"`
	CreatedAt    time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
