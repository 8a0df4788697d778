package models

import (
	"fmt"
	"time"
)

// FollowupGroupType classifies a follow-up template
type FollowupGroupType string

const (
	FollowupGroupTypeDefault     FollowupGroupType = "Default"
	FollowupGroupTypeInboundCall FollowupGroupType = "InboundCall"
	FollowupGroupTypeInboundSMS  FollowupGroupType = "InboundSMS"
	FollowupGroupTypeSchedule    FollowupGroupType = "Schedule"
)

func (t FollowupGroupType) Valid() bool {
	switch t {
	case FollowupGroupTypeDefault, FollowupGroupTypeInboundCall, FollowupGroupTypeInboundSMS, FollowupGroupTypeSchedule:
		return true
	default:
		return false
	}
}

// FollowupType is the kind of action a step performs
type FollowupType string

const (
	FollowupTypeCall          FollowupType = "Call"
	FollowupTypeSendSMS       FollowupType = "SendSMS"
	FollowupTypeActivateVoice FollowupType = "ActivateVoice"
	FollowupTypeNewChat       FollowupType = "NewChat"
	FollowupTypeSendYtel      FollowupType = "SendYtel"
	FollowupTypeSchedule      FollowupType = "Schedule"
)

func (t FollowupType) Valid() bool {
	switch t {
	case FollowupTypeCall, FollowupTypeSendSMS, FollowupTypeActivateVoice,
		FollowupTypeNewChat, FollowupTypeSendYtel, FollowupTypeSchedule:
		return true
	default:
		return false
	}
}

// Passive reports whether the step is armed by an inbound event rather
// than by the dispatcher.
func (t FollowupType) Passive() bool {
	switch t {
	case FollowupTypeActivateVoice, FollowupTypeNewChat:
		return true
	case FollowupTypeCall, FollowupTypeSendSMS, FollowupTypeSendYtel, FollowupTypeSchedule:
		return false
	default:
		return false
	}
}

// FollowupGroup is a named, ordered template of follow-up steps
type FollowupGroup struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Name       string            `gorm:"size:255;not null" json:"name"`
	Type       FollowupGroupType `gorm:"size:32;not null;default:'Default';index:idx_followup_groups_type" json:"type"`
	KnownOnly  bool              `gorm:"not null;default:false" json:"known_only"`
	CampaignID uint              `gorm:"not null;index:idx_followup_groups_campaign_id" json:"campaign_id"`
	Campaign   *Campaign         `gorm:"foreignKey:CampaignID" json:"campaign,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (FollowupGroup) TableName() string {
	return "followup_groups"
}

// FollowUp is one step definition inside a FollowupGroup
type FollowUp struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Type            FollowupType `gorm:"size:32;not null" json:"type"`
	Hours           int          `gorm:"not null;default:0" json:"hours"`
	Minutes         int          `gorm:"not null;default:0" json:"minutes"`
	Seconds         int          `gorm:"not null;default:0" json:"seconds"`
	Incoming        bool         `gorm:"not null;default:false" json:"incoming"`
	Order           int          `gorm:"column:order;not null;default:0" json:"order"`
	LeaveVoiceMail  bool         `gorm:"not null;default:false" json:"leave_voice_mail"`
	MailText        string       `gorm:"type:text" json:"mail_text,omitempty"`
	MailAudio       string       `gorm:"size:500" json:"mail_audio,omitempty"`
	IVRID           *uint        `gorm:"column:ivr_id;index:idx_follow_ups_ivr_id" json:"ivr_id,omitempty"`
	CampaignID      uint         `gorm:"not null;index:idx_follow_ups_campaign_id" json:"campaign_id"`
	FollowupGroupID uint         `gorm:"not null;index:idx_follow_ups_followup_group_id" json:"followup_group_id"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (FollowUp) TableName() string {
	return "follow_ups"
}

// Delay is the offset added to the previous step's resolved time
func (f *FollowUp) Delay() time.Duration {
	return time.Duration(f.Hours)*time.Hour +
		time.Duration(f.Minutes)*time.Minute +
		time.Duration(f.Seconds)*time.Second
}

func (f *FollowUp) String() string {
	return fmt.Sprintf("followup#%d(%s)", f.ID, f.Type)
}

// FollowUpFilter represents filter criteria for follow-up queries
type FollowUpFilter struct {
	FollowupGroupID *uint
	CampaignID      *uint
	Incoming        *bool
	ExcludeTypes    []FollowupType
}
