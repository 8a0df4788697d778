package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
)

// PlanRequest asks for a new interaction episode of a lead
type PlanRequest struct {
	LeadID          uint
	FollowupGroupID uint
	IncludeIncoming bool
	// StartTime seeds the running clock; now when nil
	StartTime *time.Time
}

// PlanResult is the episode written by Plan
type PlanResult struct {
	Lead          *models.Lead
	InteractionID uint
	Steps         []*models.FollowupProgress
}

// First returns the first step of the episode
func (r *PlanResult) First() *models.FollowupProgress {
	if r == nil || len(r.Steps) == 0 {
		return nil
	}
	return r.Steps[0]
}

// SequencePlanner builds step sequences for leads
type SequencePlanner interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanResult, error)
}

// SequencePlannerImpl implements SequencePlanner
type SequencePlannerImpl struct {
	tx           repository.Transactor
	leadRepo     repository.LeadRepository
	groupRepo    repository.FollowupGroupRepository
	followUpRepo repository.FollowUpRepository
	progressRepo repository.FollowupProgressRepository
	calculator   *ScheduleCalculator
	logger       *logrus.Entry
}

func NewSequencePlanner(
	tx repository.Transactor,
	leadRepo repository.LeadRepository,
	groupRepo repository.FollowupGroupRepository,
	followUpRepo repository.FollowUpRepository,
	progressRepo repository.FollowupProgressRepository,
	calculator *ScheduleCalculator,
	logger *logrus.Logger,
) SequencePlanner {
	return &SequencePlannerImpl{
		tx:           tx,
		leadRepo:     leadRepo,
		groupRepo:    groupRepo,
		followUpRepo: followUpRepo,
		progressRepo: progressRepo,
		calculator:   calculator,
		logger:       logger.WithField("component", "sequence_planner"),
	}
}

// Plan supersedes the lead's pending steps and writes a new episode built
// from the group's template. The lead row stays locked until commit.
func (p *SequencePlannerImpl) Plan(ctx context.Context, req PlanRequest) (result *PlanResult, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("PLAN_SEQUENCE_FAILED", "Failed to plan follow-up sequence", err)
		}
	}()

	err = p.tx.WithTx(ctx, func(txCtx context.Context) error {
		lead, err := p.leadRepo.LockByID(txCtx, req.LeadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return ErrLeadNotFound
		}
		group, err := p.groupRepo.ByID(txCtx, req.FollowupGroupID)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrFollowupGroupNotFound
		}

		if _, err := p.progressRepo.SkipPending(txCtx, lead.ID); err != nil {
			return err
		}

		steps, err := p.followUpRepo.ByFilter(txCtx, templateFilter(group.ID, lead.Type, req.IncludeIncoming), "", 0, 0)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return sequencingError("group %d has no steps for a %s lead", group.ID, lead.Type)
		}

		maxInteraction, err := p.progressRepo.MaxInteraction(txCtx, lead.ID)
		if err != nil {
			return err
		}
		interactionID := max(maxInteraction, lead.CurrentInteraction) + 1

		clock := utils.UTCNow()
		if req.StartTime != nil {
			clock = req.StartTime.UTC()
		}
		rows := p.buildRows(lead, interactionID, steps, clock)
		if len(rows) == 0 {
			return sequencingError("no step of group %d fits the windows of campaign %d", group.ID, lead.CampaignID)
		}

		if err := p.progressRepo.SaveBatch(txCtx, rows); err != nil {
			return err
		}
		byID := make(map[uint]*models.FollowUp, len(steps))
		for _, step := range steps {
			byID[step.ID] = step
		}
		for _, row := range rows {
			row.FollowUp = byID[*row.FollowUpID]
		}
		if err := p.leadRepo.StartInteraction(txCtx, lead.ID, interactionID); err != nil {
			return err
		}
		lead.CurrentInteraction = interactionID
		lead.Status = models.LeadStatusNotCalled

		result = &PlanResult{Lead: lead, InteractionID: interactionID, Steps: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"lead_id":        result.Lead.ID,
		"interaction_id": result.InteractionID,
		"steps":          len(result.Steps),
	}).Info("sequence planned")
	return result, nil
}

// buildRows walks the ordered steps with a running clock. A step whose time
// cannot be resolved is dropped and does not move the clock.
func (p *SequencePlannerImpl) buildRows(lead *models.Lead, interactionID uint, steps []*models.FollowUp, clock time.Time) []*models.FollowupProgress {
	rows := make([]*models.FollowupProgress, 0, len(steps))
	for i, step := range steps {
		estimated, ok := p.calculator.Estimate(clock.Add(step.Delay()), lead.Campaign)
		if !ok {
			p.logger.WithFields(logrus.Fields{
				"lead_id":     lead.ID,
				"follow_up":   step.String(),
				"campaign_id": lead.CampaignID,
			}).Warn("step dropped: no schedule window")
			continue
		}
		clock = estimated

		status := models.ProgressStatusWaiting
		if len(rows) == 0 && !step.Type.Passive() {
			status = models.ProgressStatusNext
		}
		rows = append(rows, &models.FollowupProgress{
			Step:              i,
			Progress:          status,
			EstimatedTime:     utils.ToPtr(estimated),
			LeadInteractionID: interactionID,
			LeadID:            lead.ID,
			FollowUpID:        utils.ToPtr(step.ID),
		})
	}
	return rows
}

// templateFilter selects the steps a lead may run, in template order
func templateFilter(groupID uint, leadType models.LeadType, includeIncoming bool) models.FollowUpFilter {
	filter := models.FollowUpFilter{FollowupGroupID: &groupID}
	if !includeIncoming {
		filter.Incoming = utils.ToPtr(false)
	}
	if leadType == models.LeadTypeLandline {
		filter.ExcludeTypes = []models.FollowupType{models.FollowupTypeSendSMS}
	}
	return filter
}
