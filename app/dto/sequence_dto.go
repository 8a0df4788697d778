package dto

import (
	"time"
)

// PlanSequenceRequest asks for a new follow-up episode of a lead
type PlanSequenceRequest struct {
	LeadID          uint       `json:"-"`
	FollowupGroupID uint       `json:"followup_group_id" validate:"required"`
	IncludeIncoming bool       `json:"include_incoming"`
	StartTime       *time.Time `json:"start_time,omitempty"`
}

// SequenceStepDTO is one planned step in responses
type SequenceStepDTO struct {
	ID            uint    `json:"id"`
	Step          int     `json:"step"`
	Type          string  `json:"type"`
	Progress      string  `json:"progress"`
	EstimatedTime *string `json:"estimated_time,omitempty"`
	FollowUpID    *uint   `json:"follow_up_id,omitempty"`
}

// PlanSequenceResponse is the episode written for the lead
type PlanSequenceResponse struct {
	Message       string            `json:"message"`
	LeadID        uint              `json:"lead_id"`
	InteractionID uint              `json:"interaction_id"`
	Steps         []SequenceStepDTO `json:"steps"`
}

// ReestimateCampaignResponse reports how many pending steps were rescheduled
type ReestimateCampaignResponse struct {
	Message    string `json:"message"`
	CampaignID uint   `json:"campaign_id"`
	Updated    int    `json:"updated"`
}

// SweepResponse summarizes a manually triggered dispatcher sweep
type SweepResponse struct {
	Busy       bool   `json:"busy"`
	Due        int    `json:"due"`
	Dispatched int    `json:"dispatched"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Exhausted  bool   `json:"exhausted"`
	Duration   string `json:"duration"`
}
