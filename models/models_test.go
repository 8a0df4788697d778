package models

import (
	"testing"
	"time"

	"github.com/amirphl/dialflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"09:00", 9 * time.Hour, true},
		{"17:30", 17*time.Hour + 30*time.Minute, true},
		{"08:15:45", 8*time.Hour + 15*time.Minute + 45*time.Second, true},
		{" 00:00 ", 0, true},
		{"24:00", 24 * time.Hour, true},
		{"24:01", 0, false},
		{"9", 0, false},
		{"ab:cd", 0, false},
		{"12:60", 0, false},
		{"1:2:3:4", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestScheduleWindowBounds(t *testing.T) {
	from, to, err := ScheduleWindow{From: "09:00", To: "17:00"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour, from)
	assert.Equal(t, 17*time.Hour, to)

	// An overnight window ends on the following day
	from, to, err = ScheduleWindow{From: "22:00", To: "02:00"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 22*time.Hour, from)
	assert.Equal(t, 26*time.Hour, to)

	_, _, err = ScheduleWindow{From: "nine", To: "17:00"}.Bounds()
	assert.Error(t, err)
}

func TestCampaignWindows(t *testing.T) {
	var nilCampaign *Campaign
	assert.Nil(t, nilCampaign.Windows())

	c := &Campaign{Schedules: []ScheduleWindow{{Days: []time.Weekday{time.Monday}, From: "09:00", To: "10:00"}}}
	require.Len(t, c.Windows(), 1)
	assert.Equal(t, time.Monday, c.Windows()[0].Days[0])
}

func TestCallOutcome(t *testing.T) {
	assert.Equal(t, LeadStatusContacted, CallOutcomeAnswered.LeadStatus())
	assert.Equal(t, LeadStatusCalled, CallOutcomeNotAnswered.LeadStatus())
	assert.Equal(t, LeadStatusTransferred, CallOutcomeTransferred.LeadStatus())
	assert.Equal(t, LeadStatusRemoved, CallOutcomeRemoved.LeadStatus())

	assert.True(t, CallOutcomeAnswered.ContinuesSequence())
	assert.True(t, CallOutcomeNotAnswered.ContinuesSequence())
	assert.False(t, CallOutcomeTransferred.ContinuesSequence())
	assert.False(t, CallOutcomeRemoved.ContinuesSequence())

	assert.False(t, CallOutcome("Voicemail").Valid())
}

func TestCallStatusTerminal(t *testing.T) {
	for _, s := range []CallStatus{CallStatusInitiated, CallStatusRinging, CallStatusInProgress, CallStatusDelivered, CallStatusSending} {
		assert.False(t, s.Terminal(), s)
	}
	for _, s := range []CallStatus{CallStatusCompleted, CallStatusBusy, CallStatusNoAnswer, CallStatusUndelivered, CallStatusLeftVoicemail} {
		assert.True(t, s.Terminal(), s)
	}
	assert.True(t, CallStatus("something-new").Terminal())
}

func TestFollowupTypes(t *testing.T) {
	assert.True(t, FollowupTypeActivateVoice.Passive())
	assert.True(t, FollowupTypeNewChat.Passive())
	assert.False(t, FollowupTypeCall.Passive())
	assert.False(t, FollowupTypeSendYtel.Passive())

	assert.True(t, FollowupGroupTypeInboundSMS.Valid())
	assert.False(t, FollowupGroupType("Outbound").Valid())

	step := &FollowUp{ID: 3, Type: FollowupTypeCall, Hours: 1, Minutes: 30, Seconds: 5}
	assert.Equal(t, time.Hour+30*time.Minute+5*time.Second, step.Delay())
	assert.Equal(t, "followup#3(Call)", step.String())
}

func TestProgressStatusPending(t *testing.T) {
	assert.True(t, ProgressStatusWaiting.Pending())
	assert.True(t, ProgressStatusNext.Pending())
	assert.False(t, ProgressStatusComplete.Pending())
	assert.False(t, ProgressStatusSkip.Pending())
}

func TestIVRPromptButton(t *testing.T) {
	p := &IVRPrompt{Buttons: []PromptButton{{Next: 11}, {Next: 12}}}

	b, ok := p.Button(2)
	require.True(t, ok)
	assert.Equal(t, uint(12), b.Next)

	_, ok = p.Button(0)
	assert.False(t, ok)
	_, ok = p.Button(3)
	assert.False(t, ok)

	ivr := &IVR{ID: 4}
	assert.Equal(t, "ivrAudios/4-transfer.mp3", ivr.TransferAudio())
	assert.Equal(t, "ivrAudios/4-remove.mp3", ivr.RemoveAudio())
}

func TestTransferNumberRouting(t *testing.T) {
	agentIntegration := &Integration{ID: 1, Partner: PartnerDialpad}
	numberIntegration := &Integration{ID: 2, Partner: PartnerYtel}

	manual := &TransferNumber{Source: TransferSourceManual, Phone: "+15550000001", Integration: numberIntegration}
	assert.False(t, manual.AgentBound())
	assert.Equal(t, "+15550000001", manual.DialPhone())
	assert.Same(t, numberIntegration, manual.PresenceIntegration())

	bound := &TransferNumber{
		Source:      TransferSourceInternalAgents,
		Phone:       "+15550000001",
		Agent:       &Agent{Phone: "+15550000002", Integration: agentIntegration},
		Integration: numberIntegration,
	}
	assert.True(t, bound.AgentBound())
	assert.Equal(t, "+15550000002", bound.DialPhone())
	assert.Same(t, agentIntegration, bound.PresenceIntegration())

	noPhone := &TransferNumber{Source: TransferSourceInternalAgents, Phone: "+15550000001", Agent: &Agent{}}
	assert.Equal(t, "+15550000001", noPhone.DialPhone())
}

func TestAgentAccepts(t *testing.T) {
	agent := &Agent{States: []string{"CA", "NV"}, StartAge: 30, EndAge: 60}

	assert.True(t, agent.Accepts(&Lead{State: "CA", Age: utils.ToPtr(45)}))
	assert.False(t, agent.Accepts(&Lead{State: "TX", Age: utils.ToPtr(45)}))
	assert.False(t, agent.Accepts(&Lead{State: "CA", Age: utils.ToPtr(25)}))
	assert.False(t, agent.Accepts(&Lead{State: "NV", Age: utils.ToPtr(61)}))
	assert.True(t, agent.Accepts(&Lead{}), "unknown state and age pass")

	anyState := &Agent{StartAge: 18, EndAge: 100}
	assert.True(t, anyState.Accepts(&Lead{State: "TX"}))
}

func TestLeadTemplateParams(t *testing.T) {
	lead := &Lead{FirstName: "Ann", LastName: "Lee"}
	assert.Equal(t, map[string]string{
		"firstName":   "Ann",
		"lastName":    "Lee",
		"senderPhone": "+15550001111",
	}, lead.TemplateParams("+15550001111"))
}
