package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedEpisode writes an episode directly: the first row Next and due, the rest Waiting
func seedEpisode(f *sequenceFixture, leadID, interactionID uint) []*models.FollowupProgress {
	due := utils.UTCNow().Add(-time.Minute)
	rows := make([]*models.FollowupProgress, 0, len(f.followUps.steps))
	for i, s := range f.followUps.steps {
		status := models.ProgressStatusWaiting
		var estimated *time.Time
		if i == 0 {
			status = models.ProgressStatusNext
			estimated = utils.ToPtr(due)
		}
		rows = append(rows, &models.FollowupProgress{
			Step:              i,
			Progress:          status,
			EstimatedTime:     estimated,
			LeadInteractionID: interactionID,
			LeadID:            leadID,
			FollowUpID:        utils.ToPtr(s.ID),
		})
	}
	if err := f.progress.SaveBatch(context.Background(), rows); err != nil {
		panic(err)
	}
	lead := f.leads.leads[leadID]
	lead.CurrentInteraction = interactionID
	return rows
}

func TestProgressFlowAdvance(t *testing.T) {
	ctx := context.Background()

	newFlow := func(f *sequenceFixture) ProgressFlow {
		return NewProgressFlow(f.leads, f.progress, NewScheduleCalculator(""), testLogger())
	}

	t.Run("ArmsNextWaitingStepFromNow", func(t *testing.T) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 2),
		)
		rows := seedEpisode(f, 1, 1)
		flow := newFlow(f)

		claimed, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)
		require.True(t, claimed)

		before := utils.UTCNow()
		armed, err := flow.Advance(ctx, 1, 1)
		require.NoError(t, err)
		require.NotNil(t, armed)
		assert.Equal(t, rows[1].ID, armed.ID)
		assert.Equal(t, models.ProgressStatusNext, armed.Progress)
		require.NotNil(t, armed.EstimatedTime)
		// two hours from now, possibly pushed past the one-minute nightly gap
		assert.WithinDuration(t, before.Add(2*time.Hour), *armed.EstimatedTime, 2*time.Minute)
	})

	t.Run("NoOpWhileStepIsArmed", func(t *testing.T) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 1),
		)
		seedEpisode(f, 1, 1)

		armed, err := newFlow(f).Advance(ctx, 1, 1)
		require.NoError(t, err)
		assert.Nil(t, armed)
		assert.Equal(t, 1, f.progress.countStatus(1, 1, models.ProgressStatusNext))
		assert.Equal(t, 1, f.progress.countStatus(1, 1, models.ProgressStatusWaiting))
	})

	t.Run("ConcurrentAdvancesArmOnce", func(t *testing.T) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 1),
			step(3, 3, models.FollowupTypeCall, 1),
		)
		rows := seedEpisode(f, 1, 1)
		flow := newFlow(f)
		_, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = flow.Advance(ctx, 1, 1)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, f.progress.countStatus(1, 1, models.ProgressStatusNext))
		snapshot := f.progress.snapshot(1, 1)
		assert.Equal(t, models.ProgressStatusNext, snapshot[1].Progress)
		assert.Equal(t, models.ProgressStatusWaiting, snapshot[2].Progress)
	})

	t.Run("FinishedEpisodeArmsNothing", func(t *testing.T) {
		f := newSequenceFixture(testLead(1), step(1, 1, models.FollowupTypeCall, 0))
		rows := seedEpisode(f, 1, 1)
		flow := newFlow(f)
		_, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)

		armed, err := flow.Advance(ctx, 1, 1)
		require.NoError(t, err)
		assert.Nil(t, armed)
	})

	t.Run("CampaignWithoutWindowsIsSequencingError", func(t *testing.T) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 1),
		)
		rows := seedEpisode(f, 1, 1)
		f.campaign.Schedules = nil
		flow := newFlow(f)
		_, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)

		_, err = flow.Advance(ctx, 1, 1)
		require.Error(t, err)
		assert.True(t, IsSequencing(err))
		assert.Equal(t, models.ProgressStatusWaiting, f.progress.snapshot(1, 1)[1].Progress)
	})

	t.Run("CompleteClaimsOnlyOnce", func(t *testing.T) {
		f := newSequenceFixture(testLead(1), step(1, 1, models.FollowupTypeCall, 0))
		rows := seedEpisode(f, 1, 1)
		flow := newFlow(f)

		first, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)
		second, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)
	})
}

func TestProgressFlowApplyCallOutcome(t *testing.T) {
	ctx := context.Background()

	setup := func() (*sequenceFixture, ProgressFlow) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 1),
		)
		rows := seedEpisode(f, 1, 1)
		flow := NewProgressFlow(f.leads, f.progress, NewScheduleCalculator(""), testLogger())
		_, err := flow.Complete(ctx, rows[0].ID)
		require.NoError(t, err)
		return f, flow
	}

	tests := []struct {
		name       string
		outcome    models.CallOutcome
		callStatus models.CallStatus
		leadStatus models.LeadStatus
		armed      bool
	}{
		{"answered and completed", models.CallOutcomeAnswered, models.CallStatusCompleted, models.LeadStatusContacted, true},
		{"not answered and busy", models.CallOutcomeNotAnswered, models.CallStatusBusy, models.LeadStatusCalled, true},
		{"still in progress", models.CallOutcomeAnswered, models.CallStatusInProgress, models.LeadStatusContacted, false},
		{"transferred leaves the sequence", models.CallOutcomeTransferred, models.CallStatusCompleted, models.LeadStatusTransferred, false},
		{"removed leaves the sequence", models.CallOutcomeRemoved, models.CallStatusCompleted, models.LeadStatusRemoved, false},
		{"delivered text is not terminal", models.CallOutcomeAnswered, models.CallStatusDelivered, models.LeadStatusContacted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, flow := setup()

			err := flow.ApplyCallOutcome(ctx, &models.CallLog{
				SID:               "CA1",
				LeadID:            1,
				LeadInteractionID: 1,
				Status:            tt.outcome,
				CallStatus:        tt.callStatus,
			})
			require.NoError(t, err)

			lead := f.leads.get(1)
			assert.Equal(t, tt.leadStatus, lead.Status)
			assert.Equal(t, 2, lead.Version)

			expected := 0
			if tt.armed {
				expected = 1
			}
			assert.Equal(t, expected, f.progress.countStatus(1, 1, models.ProgressStatusNext))
		})
	}

	t.Run("UnchangedStatusKeepsVersion", func(t *testing.T) {
		f, flow := setup()
		err := flow.ApplyCallOutcome(ctx, &models.CallLog{
			LeadID:            1,
			LeadInteractionID: 1,
			Status:            models.CallOutcomeNotAnswered,
			CallStatus:        models.CallStatusRinging,
		})
		require.NoError(t, err)
		err = flow.ApplyCallOutcome(ctx, &models.CallLog{
			LeadID:            1,
			LeadInteractionID: 1,
			Status:            models.CallOutcomeNotAnswered,
			CallStatus:        models.CallStatusRinging,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, f.leads.get(1).Version)
	})

	t.Run("UnknownLead", func(t *testing.T) {
		_, flow := setup()
		err := flow.ApplyCallOutcome(ctx, &models.CallLog{LeadID: 42, Status: models.CallOutcomeAnswered})
		assert.True(t, IsLeadNotFound(err))
	})
}
