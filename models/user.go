package models

import (
	"time"
)

// UserRole is the role of a console user
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleAgent UserRole = "agent"
)

// User is a console operator. Only agents are read by this service, to
// assign inbound SMS conversations.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex:uk_users_email" json:"email"`
	Role      UserRole  `gorm:"size:16;not null;default:'agent'" json:"role"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
