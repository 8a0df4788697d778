package businessflow

import (
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
)

// EstimateTime returns the earliest instant at or after t that falls inside
// one of the weekly windows, evaluated on the wall clock of loc. A window end
// is inclusive. ok is false when no window yields a candidate.
func EstimateTime(t time.Time, windows []models.ScheduleWindow, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	// Sunday of the week containing t
	weekStart := time.Date(local.Year(), local.Month(), local.Day()-int(local.Weekday()), 0, 0, 0, 0, loc)

	var best time.Time
	found := false
	for _, w := range windows {
		from, to, err := w.Bounds()
		if err != nil {
			continue
		}
		// the previous week is scanned for windows running past midnight into this week
		for week := -1; week <= 1; week++ {
			for _, day := range w.Days {
				offset := week*7 + int(day)
				start := wallClock(weekStart, offset, from, loc)
				end := wallClock(weekStart, offset, to, loc)

				if !local.Before(start) && !local.After(end) {
					return t.UTC(), true
				}
				if start.After(local) && (!found || start.Before(best)) {
					best = start
					found = true
				}
			}
		}
	}
	if !found {
		return time.Time{}, false
	}
	return best.UTC(), true
}

// wallClock builds the local time dayOffset days after weekStart at clock.
// time.Date normalizes clocks past 24h into the following day.
func wallClock(weekStart time.Time, dayOffset int, clock time.Duration, loc *time.Location) time.Time {
	h := int(clock / time.Hour)
	m := int(clock % time.Hour / time.Minute)
	s := int(clock % time.Minute / time.Second)
	return time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day()+dayOffset, h, m, s, 0, loc)
}

// ScheduleCalculator resolves execution times against a campaign's windows
type ScheduleCalculator struct {
	defaultZone string
}

// NewScheduleCalculator creates a calculator; campaigns without a zone use defaultZone
func NewScheduleCalculator(defaultZone string) *ScheduleCalculator {
	return &ScheduleCalculator{defaultZone: defaultZone}
}

// Location returns the zone the campaign's windows are written in
func (c *ScheduleCalculator) Location(campaign *models.Campaign) *time.Location {
	zone := ""
	if campaign != nil {
		zone = campaign.TimeZone
	}
	loc, err := utils.LoadLocation(zone, c.defaultZone)
	if err == nil {
		return loc
	}
	if loc, err = utils.LoadLocation(c.defaultZone, ""); err == nil {
		return loc
	}
	return time.UTC
}

// Estimate returns the nearest valid instant for t in the campaign's windows
func (c *ScheduleCalculator) Estimate(t time.Time, campaign *models.Campaign) (time.Time, bool) {
	if campaign == nil {
		return time.Time{}, false
	}
	return EstimateTime(t, campaign.Windows(), c.Location(campaign))
}
