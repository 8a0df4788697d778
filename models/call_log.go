package models

import (
	"time"
)

// CallType is the kind of interaction a CallLog records
type CallType string

const (
	CallTypeOutboundCall CallType = "OutboundCall"
	CallTypeOutboundText CallType = "OutboundText"
	CallTypeInboundCall  CallType = "InboundCall"
	CallTypeInboundText  CallType = "InboundText"
)

func (t CallType) Valid() bool {
	switch t {
	case CallTypeOutboundCall, CallTypeOutboundText, CallTypeInboundCall, CallTypeInboundText:
		return true
	default:
		return false
	}
}

// CallStatus is the platform lifecycle status of a call or message
type CallStatus string

const (
	CallStatusQueued          CallStatus = "queued"
	CallStatusInitiated       CallStatus = "initiated"
	CallStatusRinging         CallStatus = "ringing"
	CallStatusInProgress      CallStatus = "in-progress"
	CallStatusCompleted       CallStatus = "completed"
	CallStatusBusy            CallStatus = "busy"
	CallStatusFailed          CallStatus = "failed"
	CallStatusNoAnswer        CallStatus = "no-answer"
	CallStatusCanceled        CallStatus = "canceled"
	CallStatusMachineAnswered CallStatus = "machine_answered"
	CallStatusLeftVoicemail   CallStatus = "left_voicemail"

	// messaging statuses
	CallStatusAccepted    CallStatus = "accepted"
	CallStatusSending     CallStatus = "sending"
	CallStatusSent        CallStatus = "sent"
	CallStatusDelivered   CallStatus = "delivered"
	CallStatusUndelivered CallStatus = "undelivered"
	CallStatusReceived    CallStatus = "received"
)

// Terminal reports whether the status concludes the call or message leg.
// Unknown statuses are treated as terminal so a sequence never stalls on a
// status the platform adds later.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusQueued, CallStatusInitiated, CallStatusRinging, CallStatusInProgress,
		CallStatusAccepted, CallStatusSending, CallStatusDelivered, CallStatusReceived:
		return false
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled,
		CallStatusMachineAnswered, CallStatusLeftVoicemail, CallStatusSent, CallStatusUndelivered:
		return true
	default:
		return true
	}
}

// CallOutcome is the business result of a call or message
type CallOutcome string

const (
	CallOutcomeNotAnswered CallOutcome = "NotAnswered"
	CallOutcomeAnswered    CallOutcome = "Answered"
	CallOutcomeTransferred CallOutcome = "Transferred"
	CallOutcomeRemoved     CallOutcome = "Removed"
)

func (o CallOutcome) Valid() bool {
	switch o {
	case CallOutcomeNotAnswered, CallOutcomeAnswered, CallOutcomeTransferred, CallOutcomeRemoved:
		return true
	default:
		return false
	}
}

// LeadStatus maps a call outcome to the lead status it implies
func (o CallOutcome) LeadStatus() LeadStatus {
	switch o {
	case CallOutcomeTransferred:
		return LeadStatusTransferred
	case CallOutcomeRemoved:
		return LeadStatusRemoved
	case CallOutcomeAnswered:
		return LeadStatusContacted
	case CallOutcomeNotAnswered:
		return LeadStatusCalled
	default:
		return LeadStatusCalled
	}
}

// ContinuesSequence reports whether the lead's episode goes on after a leg
// with this outcome. Transferred and removed leads leave the sequence.
func (o CallOutcome) ContinuesSequence() bool {
	switch o {
	case CallOutcomeNotAnswered, CallOutcomeAnswered:
		return true
	case CallOutcomeTransferred, CallOutcomeRemoved:
		return false
	default:
		return false
	}
}

// CallLog records one executed action (call or message) and its outcome
type CallLog struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	SID               string      `gorm:"column:sid;size:64;not null;uniqueIndex:uk_call_logs_sid" json:"sid"`
	Type              CallType    `gorm:"size:32;not null;default:'OutboundCall'" json:"type"`
	CallStatus        CallStatus  `gorm:"size:32" json:"call_status"`
	CallDuration      int         `gorm:"not null;default:0" json:"call_duration"`
	Status            CallOutcome `gorm:"size:32;not null;default:'NotAnswered';index:idx_call_logs_status" json:"status"`
	StartTime         *time.Time  `json:"start_time,omitempty"`
	EndTime           *time.Time  `json:"end_time,omitempty"`
	TransferDuration  int         `gorm:"not null;default:0" json:"transfer_duration"`
	TransferStart     *time.Time  `json:"transfer_start,omitempty"`
	TransferEnd       *time.Time  `json:"transfer_end,omitempty"`
	RecordingURL      string      `gorm:"column:recording_url;size:500" json:"recording_url,omitempty"`
	SMS               string      `gorm:"column:sms;type:text" json:"sms,omitempty"`
	LeadInteractionID uint        `gorm:"not null;default:1" json:"lead_interaction_id"`

	CampaignID         uint  `gorm:"not null;index:idx_call_logs_campaign_id" json:"campaign_id"`
	LeadID             uint  `gorm:"not null;index:idx_call_logs_lead_id" json:"lead_id"`
	IVRID              *uint `gorm:"column:ivr_id" json:"ivr_id,omitempty"`
	FollowUpID         *uint `json:"follow_up_id,omitempty"`
	FollowupProgressID *uint `gorm:"index:idx_call_logs_followup_progress_id" json:"followup_progress_id,omitempty"`
	PhoneNumberID      *uint `json:"phone_number_id,omitempty"`
	TransferNumberID   *uint `json:"transfer_number_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_call_logs_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}
