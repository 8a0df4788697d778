package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/dialflow/app/dto"
	"github.com/amirphl/dialflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSequenceFlow(f *sequenceFixture) SequenceFlow {
	campaigns := &fakeCampaignRepo{campaigns: map[uint]*models.Campaign{f.campaign.ID: f.campaign}}
	return NewSequenceFlow(passTx{}, campaigns, f.progress, f.planner, NewScheduleCalculator(""), testLogger())
}

func TestSequenceFlowPlanLeadSequence(t *testing.T) {
	f := newSequenceFixture(testLead(1),
		step(1, 1, models.FollowupTypeCall, 0),
		step(2, 2, models.FollowupTypeSendSMS, 1),
	)
	start := time.Date(2024, time.June, 5, 12, 0, 0, 0, time.UTC)

	resp, err := newSequenceFlow(f).PlanLeadSequence(context.Background(), &dto.PlanSequenceRequest{
		LeadID:          1,
		FollowupGroupID: 10,
		StartTime:       &start,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), resp.LeadID)
	assert.Equal(t, uint(1), resp.InteractionID)
	require.Len(t, resp.Steps, 2)

	assert.Equal(t, "Call", resp.Steps[0].Type)
	assert.Equal(t, string(models.ProgressStatusNext), resp.Steps[0].Progress)
	require.NotNil(t, resp.Steps[0].EstimatedTime)
	assert.Equal(t, "2024-06-05T12:00:00Z", *resp.Steps[0].EstimatedTime)

	assert.Equal(t, "SendSMS", resp.Steps[1].Type)
	assert.Equal(t, "2024-06-05T13:00:00Z", *resp.Steps[1].EstimatedTime)
}

func TestSequenceFlowReestimateCampaign(t *testing.T) {
	ctx := context.Background()
	saturday := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	monday := func(hour int) time.Time {
		return time.Date(2024, time.June, 3, hour, 0, 0, 0, time.UTC)
	}

	t.Run("RetimesPendingStepsAgainstNewWindows", func(t *testing.T) {
		f := newSequenceFixture(testLead(1),
			step(1, 1, models.FollowupTypeCall, 0),
			step(2, 2, models.FollowupTypeCall, 1),
		)
		f.campaign.Schedules = weekdays("09:00", "17:00")
		plan, err := f.planner.Plan(ctx, PlanRequest{LeadID: 1, FollowupGroupID: 10, StartTime: &saturday})
		require.NoError(t, err)
		require.True(t, monday(9).Equal(*plan.Steps[0].EstimatedTime))
		require.True(t, monday(10).Equal(*plan.Steps[1].EstimatedTime))

		f.campaign.Schedules = weekdays("13:00", "17:00")
		resp, err := newSequenceFlow(f).ReestimateCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Updated)

		rows := f.progress.snapshot(1, plan.InteractionID)
		assert.True(t, monday(13).Equal(*rows[0].EstimatedTime), rows[0].EstimatedTime.String())
		assert.True(t, monday(14).Equal(*rows[1].EstimatedTime), rows[1].EstimatedTime.String())
	})

	t.Run("FinishedStepsAreLeftAlone", func(t *testing.T) {
		f := newSequenceFixture(testLead(1), step(1, 1, models.FollowupTypeCall, 0))
		rows := seedEpisode(f, 1, 1)
		f.progress.transition(rows[0].ID, models.ProgressStatusNext, models.ProgressStatusComplete)

		resp, err := newSequenceFlow(f).ReestimateCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, resp.Updated)
	})

	t.Run("CampaignWithoutWindows", func(t *testing.T) {
		f := newSequenceFixture(testLead(1), step(1, 1, models.FollowupTypeCall, 0))
		seedEpisode(f, 1, 1)
		f.campaign.Schedules = nil

		_, err := newSequenceFlow(f).ReestimateCampaign(ctx, 1)
		assert.True(t, IsSequencing(err))
	})

	t.Run("UnknownCampaign", func(t *testing.T) {
		f := newSequenceFixture(testLead(1))
		_, err := newSequenceFlow(f).ReestimateCampaign(ctx, 9)
		assert.True(t, IsCampaignNotFound(err))
	})
}
