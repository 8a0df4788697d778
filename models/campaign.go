// Package models contains domain entities and business models for the follow-up sequencer
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ScheduleWindow is one weekly availability window. Days are offsets from
// Sunday; From and To are "HH:MM" wall-clock times in the campaign zone.
// A window whose To is not after From runs past midnight into the next day.
type ScheduleWindow struct {
	Days []time.Weekday `json:"days"`
	From string         `json:"from"`
	To   string         `json:"to"`
}

// Bounds returns the window start and end as offsets from local midnight.
func (w ScheduleWindow) Bounds() (time.Duration, time.Duration, error) {
	from, err := ParseClock(w.From)
	if err != nil {
		return 0, 0, err
	}
	to, err := ParseClock(w.To)
	if err != nil {
		return 0, 0, err
	}
	if to <= from {
		to += 24 * time.Hour
	}
	return from, to, nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight
func ParseClock(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	fields := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q: %w", value, err)
		}
		fields[i] = n
	}
	h, m, s := fields[0], fields[1], fields[2]
	if h < 0 || h > 24 || m < 0 || m > 59 || s < 0 || s > 59 || (h == 24 && (m > 0 || s > 0)) {
		return 0, fmt.Errorf("clock value out of range %q", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

// Campaign groups leads, outbound numbers and follow-up templates
type Campaign struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`

	Name      string                              `gorm:"size:255;not null" json:"name"`
	IsActive  *bool                               `gorm:"default:true;index:idx_campaigns_is_active" json:"is_active"`
	TimeZone  string                              `gorm:"size:64" json:"time_zone,omitempty"`
	Schedules datatypes.JSONSlice[ScheduleWindow] `gorm:"type:jsonb;not null" json:"schedules"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Windows returns the campaign windows as a plain slice
func (c *Campaign) Windows() []ScheduleWindow {
	if c == nil {
		return nil
	}
	return []ScheduleWindow(c.Schedules)
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID       *uint
	IsActive *bool
}
