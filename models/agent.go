package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

// Agent is a human transfer target with eligibility filters
type Agent struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	Name     string         `gorm:"size:255;not null" json:"name"`
	Phone    string         `gorm:"size:32" json:"phone"`
	AgentID  string         `gorm:"column:agent_id;size:128" json:"agent_id"`
	States   pq.StringArray `gorm:"type:text[]" json:"states"`
	StartAge int            `gorm:"not null;default:18" json:"start_age"`
	EndAge   int            `gorm:"not null;default:100" json:"end_age"`

	IntegrationID *uint        `json:"integration_id,omitempty"`
	Integration   *Integration `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Agent) TableName() string {
	return "agents"
}

// Accepts reports whether the lead passes the agent's state and age filters.
// An empty lead state, an agent without a state list or an unknown age is
// never a reason to exclude.
func (a *Agent) Accepts(lead *Lead) bool {
	if lead.State != "" && len(a.States) > 0 && !slices.Contains(a.States, lead.State) {
		return false
	}
	if lead.Age != nil && (*lead.Age < a.StartAge || *lead.Age > a.EndAge) {
		return false
	}
	return true
}
