package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdays(from, to string) []models.ScheduleWindow {
	return []models.ScheduleWindow{{
		Days: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		From: from,
		To:   to,
	}}
}

func TestEstimateTime(t *testing.T) {
	// 2024-06-01 is a Saturday
	at := func(day, hour, minute int) time.Time {
		return time.Date(2024, time.June, day, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		windows  []models.ScheduleWindow
		t        time.Time
		expected time.Time
		ok       bool
	}{
		{"saturday moves to monday opening", weekdays("09:00", "17:00"), at(1, 10, 0), at(3, 9, 0), true},
		{"inside window is unchanged", weekdays("09:00", "17:00"), at(5, 12, 30), at(5, 12, 30), true},
		{"after close moves to next day", weekdays("09:00", "17:00"), at(5, 18, 0), at(6, 9, 0), true},
		{"window end is inclusive", weekdays("09:00", "17:00"), at(7, 17, 0), at(7, 17, 0), true},
		{"friday evening moves to monday", weekdays("09:00", "17:00"), at(7, 17, 30), at(10, 9, 0), true},
		{"before open same day", weekdays("09:00", "17:00"), at(4, 6, 0), at(4, 9, 0), true},
		{
			"overnight window covers the next morning",
			[]models.ScheduleWindow{{Days: []time.Weekday{time.Friday}, From: "22:00", To: "02:00"}},
			at(8, 1, 0), at(8, 1, 0), true,
		},
		{
			"saturday night window reaches into the next week",
			[]models.ScheduleWindow{{Days: []time.Weekday{time.Saturday}, From: "22:00", To: "02:00"}},
			at(9, 1, 0), at(9, 1, 0), true,
		},
		{
			"earliest start across windows wins",
			[]models.ScheduleWindow{
				{Days: []time.Weekday{time.Monday}, From: "13:00", To: "14:00"},
				{Days: []time.Weekday{time.Sunday}, From: "20:00", To: "21:00"},
			},
			at(1, 10, 0), at(2, 20, 0), true,
		},
		{
			"invalid window is ignored",
			[]models.ScheduleWindow{
				{Days: []time.Weekday{time.Monday}, From: "nope", To: "10:00"},
				{Days: []time.Weekday{time.Tuesday}, From: "08:00", To: "10:00"},
			},
			at(1, 10, 0), at(4, 8, 0), true,
		},
		{"no windows", nil, at(1, 10, 0), time.Time{}, false},
		{
			"window without days",
			[]models.ScheduleWindow{{From: "09:00", To: "17:00"}},
			at(1, 10, 0), time.Time{}, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateTime(tt.t, tt.windows, time.UTC)
			require.Equal(t, tt.ok, ok)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestEstimateTimeInZone(t *testing.T) {
	eastern := time.FixedZone("EST", -5*3600)

	t.Run("opening is evaluated on the zone wall clock", func(t *testing.T) {
		// 13:00 UTC is 08:00 in the zone, one hour before opening
		got, ok := EstimateTime(time.Date(2024, time.June, 3, 13, 0, 0, 0, time.UTC), weekdays("09:00", "17:00"), eastern)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.June, 3, 14, 0, 0, 0, time.UTC), got)
		assert.Equal(t, time.UTC, got.Location())
	})

	t.Run("utc day differs from local day", func(t *testing.T) {
		// Tuesday 02:00 UTC is Monday 21:00 in the zone, after closing
		got, ok := EstimateTime(time.Date(2024, time.June, 4, 2, 0, 0, 0, time.UTC), weekdays("09:00", "17:00"), eastern)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.June, 4, 14, 0, 0, 0, time.UTC), got)
	})

	t.Run("nil location means utc", func(t *testing.T) {
		in := time.Date(2024, time.June, 5, 12, 0, 0, 0, time.UTC)
		got, ok := EstimateTime(in, weekdays("09:00", "17:00"), nil)
		require.True(t, ok)
		assert.Equal(t, in, got)
	})
}

func TestScheduleCalculator(t *testing.T) {
	calculator := NewScheduleCalculator("")

	t.Run("nil campaign has no windows", func(t *testing.T) {
		_, ok := calculator.Estimate(time.Now(), nil)
		assert.False(t, ok)
	})

	t.Run("campaign without zone uses utc", func(t *testing.T) {
		campaign := &models.Campaign{Schedules: weekdays("09:00", "17:00")}
		assert.Equal(t, time.UTC, calculator.Location(campaign))

		got, ok := calculator.Estimate(time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC), campaign)
		require.True(t, ok)
		assert.Equal(t, time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("unknown zone falls back to utc", func(t *testing.T) {
		campaign := &models.Campaign{TimeZone: "Nowhere/Atlantis", Schedules: alwaysOpen()}
		assert.Equal(t, time.UTC, calculator.Location(campaign))
	})
}
