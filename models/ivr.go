package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// IVR is a voice-prompt graph definition
type IVR struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Voice           string    `gorm:"size:64" json:"voice,omitempty"`
	Speed           float64   `gorm:"not null;default:1" json:"speed"`
	PauseTime       int       `gorm:"not null;default:2" json:"pause_time"`
	LoopTime        int       `gorm:"not null;default:3" json:"loop_time"`
	Loop            int       `gorm:"not null;default:3" json:"loop"`
	TransferMessage string    `gorm:"type:text" json:"transfer_message,omitempty"`
	RemoveMessage   string    `gorm:"type:text" json:"remove_message,omitempty"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (IVR) TableName() string {
	return "ivrs"
}

// TransferAudio is the storage-relative path of the pre-rendered transfer announcement
func (i *IVR) TransferAudio() string {
	return fmt.Sprintf("ivrAudios/%d-transfer.mp3", i.ID)
}

// RemoveAudio is the storage-relative path of the pre-rendered removal announcement
func (i *IVR) RemoveAudio() string {
	return fmt.Sprintf("ivrAudios/%d-remove.mp3", i.ID)
}

// PromptType is the node kind of an IVR prompt
type PromptType string

const (
	PromptTypePrompt   PromptType = "Prompt"
	PromptTypeRemove   PromptType = "Remove"
	PromptTypeTransfer PromptType = "Transfer"
	PromptTypeEndCall  PromptType = "EndCall"
)

func (t PromptType) Valid() bool {
	switch t {
	case PromptTypePrompt, PromptTypeRemove, PromptTypeTransfer, PromptTypeEndCall:
		return true
	default:
		return false
	}
}

// PromptButton binds a keypad digit (its index + 1) to a target prompt
type PromptButton struct {
	Next uint `json:"next"`
	Used int  `json:"used"`
}

// IVRPrompt is one node of an IVR graph
type IVRPrompt struct {
	ID      uint                              `gorm:"primaryKey" json:"id"`
	Type    PromptType                        `gorm:"size:16;not null;default:'Prompt'" json:"type"`
	Buttons datatypes.JSONSlice[PromptButton] `gorm:"type:jsonb;not null;default:'[]'" json:"buttons"`
	Used    int                               `gorm:"not null;default:0" json:"used"`
	First   bool                              `gorm:"not null;default:false" json:"first"`

	IVRID            uint            `gorm:"column:ivr_id;not null;index:idx_ivr_prompts_ivr_id" json:"ivr_id"`
	IVR              *IVR            `gorm:"foreignKey:IVRID" json:"ivr,omitempty"`
	TransferOptionID *uint           `json:"transfer_option_id,omitempty"`
	TransferOption   *TransferOption `gorm:"foreignKey:TransferOptionID" json:"transfer_option,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (IVRPrompt) TableName() string {
	return "ivr_prompts"
}

// Button returns the binding for a pressed digit (1-based)
func (p *IVRPrompt) Button(digit int) (PromptButton, bool) {
	if digit < 1 || digit > len(p.Buttons) {
		return PromptButton{}, false
	}
	return p.Buttons[digit-1], true
}

// IVRPromptMessage is a weighted content variant of a prompt
type IVRPromptMessage struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Content     string `gorm:"type:text" json:"content"`
	Percent     int    `gorm:"not null;default:100" json:"percent"`
	Audio       string `gorm:"size:500" json:"audio,omitempty"`
	Used        int    `gorm:"not null;default:0" json:"used"`
	Conversions int    `gorm:"not null;default:0" json:"conversions"`

	IVRPromptID uint `gorm:"column:ivr_prompt_id;not null;index:idx_ivr_prompt_messages_prompt_id" json:"ivr_prompt_id"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (IVRPromptMessage) TableName() string {
	return "ivr_prompt_messages"
}
