package models

import (
	"time"
)

// TransferSource tells whether a destination is agent-bound or a raw phone
type TransferSource string

const (
	TransferSourceInternalAgents TransferSource = "Internal Agents"
	TransferSourceManual         TransferSource = "Manual"
)

func (s TransferSource) Valid() bool {
	switch s {
	case TransferSourceInternalAgents, TransferSourceManual:
		return true
	default:
		return false
	}
}

// TransferOption groups the destinations a Transfer prompt may bridge to
type TransferOption struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"size:255;not null" json:"name"`
	TransferNumbers []*TransferNumber `gorm:"foreignKey:TransferOptionID" json:"transfer_numbers,omitempty"`
	CreatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (TransferOption) TableName() string {
	return "transfer_options"
}

// TransferNumber is one transfer destination, ordered by priority
type TransferNumber struct {
	ID     uint           `gorm:"primaryKey" json:"id"`
	Name   string         `gorm:"size:255" json:"name"`
	Phone  string         `gorm:"size:32" json:"phone"`
	Source TransferSource `gorm:"size:32;not null;default:'Manual'" json:"source"`
	Active bool           `gorm:"not null;default:true;index:idx_transfer_numbers_active" json:"active"`
	Order  int            `gorm:"column:order;not null;default:0" json:"order"`

	TransferOptionID uint         `gorm:"not null;index:idx_transfer_numbers_option_id" json:"transfer_option_id"`
	AgentID          *uint        `json:"agent_id,omitempty"`
	Agent            *Agent       `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	IntegrationID    *uint        `json:"integration_id,omitempty"`
	Integration      *Integration `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (TransferNumber) TableName() string {
	return "transfer_numbers"
}

// AgentBound reports whether the destination routes through an agent
func (n *TransferNumber) AgentBound() bool {
	return n.Source == TransferSourceInternalAgents && n.Agent != nil
}

// DialPhone is the number the call is bridged to
func (n *TransferNumber) DialPhone() string {
	if n.AgentBound() && n.Agent.Phone != "" {
		return n.Agent.Phone
	}
	return n.Phone
}

// PresenceIntegration is the integration used to probe the destination, the
// agent's own one taking precedence
func (n *TransferNumber) PresenceIntegration() *Integration {
	if n.Agent != nil && n.Agent.Integration != nil {
		return n.Agent.Integration
	}
	return n.Integration
}
