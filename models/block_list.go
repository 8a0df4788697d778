package models

import (
	"time"
)

// BlockType is the kind of value a block list entry matches
type BlockType string

const (
	BlockTypePhone BlockType = "Phone"
	BlockTypeEmail BlockType = "Email"
)

// BlockList is a blocked phone or email
type BlockList struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      BlockType `gorm:"size:16;not null" json:"type"`
	Value     string    `gorm:"size:255;not null;index:idx_block_lists_value" json:"value"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (BlockList) TableName() string {
	return "block_lists"
}
