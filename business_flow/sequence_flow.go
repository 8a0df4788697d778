package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/dialflow/app/dto"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
)

// SequenceFlow exposes sequence planning and rescheduling to the API
type SequenceFlow interface {
	PlanLeadSequence(ctx context.Context, req *dto.PlanSequenceRequest) (*dto.PlanSequenceResponse, error)
	ReestimateCampaign(ctx context.Context, campaignID uint) (*dto.ReestimateCampaignResponse, error)
}

// SequenceFlowImpl implements SequenceFlow
type SequenceFlowImpl struct {
	tx           repository.Transactor
	campaignRepo repository.CampaignRepository
	progressRepo repository.FollowupProgressRepository
	planner      SequencePlanner
	calculator   *ScheduleCalculator
	logger       *logrus.Entry
}

func NewSequenceFlow(
	tx repository.Transactor,
	campaignRepo repository.CampaignRepository,
	progressRepo repository.FollowupProgressRepository,
	planner SequencePlanner,
	calculator *ScheduleCalculator,
	logger *logrus.Logger,
) SequenceFlow {
	return &SequenceFlowImpl{
		tx:           tx,
		campaignRepo: campaignRepo,
		progressRepo: progressRepo,
		planner:      planner,
		calculator:   calculator,
		logger:       logger.WithField("component", "sequence"),
	}
}

func (f *SequenceFlowImpl) PlanLeadSequence(ctx context.Context, req *dto.PlanSequenceRequest) (*dto.PlanSequenceResponse, error) {
	plan, err := f.planner.Plan(ctx, PlanRequest{
		LeadID:          req.LeadID,
		FollowupGroupID: req.FollowupGroupID,
		IncludeIncoming: req.IncludeIncoming,
		StartTime:       req.StartTime,
	})
	if err != nil {
		return nil, err
	}

	steps := make([]dto.SequenceStepDTO, 0, len(plan.Steps))
	for _, row := range plan.Steps {
		steps = append(steps, toSequenceStepDTO(row))
	}
	return &dto.PlanSequenceResponse{
		Message:       "Sequence planned successfully",
		LeadID:        plan.Lead.ID,
		InteractionID: plan.InteractionID,
		Steps:         steps,
	}, nil
}

// ReestimateCampaign re-times every pending step of the campaign against its
// current windows. The first pending step of a lead keeps its own time,
// pushed into a window if needed; later steps chain their delays from it.
func (f *SequenceFlowImpl) ReestimateCampaign(ctx context.Context, campaignID uint) (resp *dto.ReestimateCampaignResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("REESTIMATE_CAMPAIGN_FAILED", "Failed to re-estimate campaign steps", err)
		}
	}()

	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}

	updated := 0
	err = f.tx.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := f.progressRepo.ListPendingByCampaign(txCtx, campaign.ID)
		if err != nil {
			return err
		}

		var (
			lead  uint
			clock time.Time
		)
		for i, row := range rows {
			var base time.Time
			switch {
			case i == 0 || row.LeadID != lead:
				base = utils.UTCNow()
				if row.EstimatedTime != nil {
					base = *row.EstimatedTime
				}
			case row.FollowUp != nil:
				base = clock.Add(row.FollowUp.Delay())
			default:
				base = clock
			}

			estimated, ok := f.calculator.Estimate(base, campaign)
			if !ok {
				return sequencingError("campaign %d has no schedule window", campaign.ID)
			}
			if err := f.progressRepo.UpdateEstimatedTime(txCtx, row.ID, &estimated); err != nil {
				return err
			}
			lead = row.LeadID
			clock = estimated
			updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"updated":     updated,
	}).Info("campaign steps re-estimated")
	return &dto.ReestimateCampaignResponse{
		Message:    "Campaign steps re-estimated successfully",
		CampaignID: campaign.ID,
		Updated:    updated,
	}, nil
}

func toSequenceStepDTO(row *models.FollowupProgress) dto.SequenceStepDTO {
	step := dto.SequenceStepDTO{
		ID:         row.ID,
		Step:       row.Step,
		Progress:   string(row.Progress),
		FollowUpID: row.FollowUpID,
	}
	if row.FollowUp != nil {
		step.Type = string(row.FollowUp.Type)
	}
	if row.EstimatedTime != nil {
		formatted := row.EstimatedTime.UTC().Format(time.RFC3339)
		step.EstimatedTime = &formatted
	}
	return step
}
