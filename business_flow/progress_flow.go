package businessflow

import (
	"context"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
)

// maxOptimisticAttempts bounds retries of version-checked and conditional writes
const maxOptimisticAttempts = 3

// ProgressFlow owns the lifecycle of step instances
type ProgressFlow interface {
	// Advance arms the next Waiting step of the episode; nil when nothing was armed
	Advance(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error)
	// Complete claims an armed step for execution
	Complete(ctx context.Context, progressID uint) (bool, error)
	// ApplyCallOutcome moves the lead status and advances the episode after a status update
	ApplyCallOutcome(ctx context.Context, callLog *models.CallLog) error
}

// ProgressFlowImpl implements ProgressFlow
type ProgressFlowImpl struct {
	leadRepo     repository.LeadRepository
	progressRepo repository.FollowupProgressRepository
	calculator   *ScheduleCalculator
	logger       *logrus.Entry
}

func NewProgressFlow(
	leadRepo repository.LeadRepository,
	progressRepo repository.FollowupProgressRepository,
	calculator *ScheduleCalculator,
	logger *logrus.Logger,
) ProgressFlow {
	return &ProgressFlowImpl{
		leadRepo:     leadRepo,
		progressRepo: progressRepo,
		calculator:   calculator,
		logger:       logger.WithField("component", "progress"),
	}
}

// Advance promotes the lowest Waiting step with a definition, timed from now.
// It is a no-op while a sibling is Next. Promotion is a conditional update, so
// concurrent callers never produce two Next rows.
func (f *ProgressFlowImpl) Advance(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error) {
	hasNext, err := f.progressRepo.HasNext(ctx, leadID, interactionID)
	if err != nil {
		return nil, err
	}
	if hasNext {
		return nil, nil
	}

	lead, err := f.leadRepo.ByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, ErrLeadNotFound
	}

	for attempt := 0; attempt < maxOptimisticAttempts; attempt++ {
		candidate, err := f.progressRepo.FirstWaiting(ctx, leadID, interactionID)
		if err != nil {
			return nil, err
		}
		if candidate == nil || candidate.FollowUp == nil {
			f.logger.WithFields(logrus.Fields{
				"lead_id":        leadID,
				"interaction_id": interactionID,
			}).Debug("episode finished")
			return nil, nil
		}

		estimated, ok := f.calculator.Estimate(utils.UTCNow().Add(candidate.FollowUp.Delay()), lead.Campaign)
		if !ok {
			return nil, sequencingError("campaign %d has no schedule window", lead.CampaignID)
		}

		promoted, err := f.progressRepo.Promote(ctx, candidate.ID, estimated)
		if err != nil {
			return nil, err
		}
		if promoted {
			candidate.Progress = models.ProgressStatusNext
			candidate.EstimatedTime = utils.ToPtr(estimated)
			f.logger.WithFields(logrus.Fields{
				"lead_id":        leadID,
				"interaction_id": interactionID,
				"progress_id":    candidate.ID,
				"estimated_time": estimated,
			}).Info("step armed")
			return candidate, nil
		}

		// lost a race: another caller armed a sibling or took this row
		hasNext, err = f.progressRepo.HasNext(ctx, leadID, interactionID)
		if err != nil {
			return nil, err
		}
		if hasNext {
			return nil, nil
		}
	}
	return nil, ErrConcurrentUpdate
}

func (f *ProgressFlowImpl) Complete(ctx context.Context, progressID uint) (bool, error) {
	return f.progressRepo.Complete(ctx, progressID)
}

// ApplyCallOutcome records the lead status implied by the call outcome and,
// once the leg is terminal with an outcome that keeps the lead in sequence,
// arms the next step.
func (f *ProgressFlowImpl) ApplyCallOutcome(ctx context.Context, callLog *models.CallLog) error {
	if callLog == nil || callLog.LeadID == 0 {
		return nil
	}

	if err := f.updateLeadStatus(ctx, callLog.LeadID, callLog.Status.LeadStatus()); err != nil {
		return err
	}

	if !callLog.CallStatus.Terminal() || !callLog.Status.ContinuesSequence() {
		return nil
	}
	_, err := f.Advance(ctx, callLog.LeadID, callLog.LeadInteractionID)
	return err
}

func (f *ProgressFlowImpl) updateLeadStatus(ctx context.Context, leadID uint, status models.LeadStatus) error {
	for attempt := 0; attempt < maxOptimisticAttempts; attempt++ {
		lead, err := f.leadRepo.ByID(ctx, leadID)
		if err != nil {
			return err
		}
		if lead == nil {
			return ErrLeadNotFound
		}
		if lead.Status == status {
			return nil
		}
		updated, err := f.leadRepo.UpdateStatus(ctx, lead.ID, lead.Version, status)
		if err != nil {
			return err
		}
		if updated {
			return nil
		}
	}
	return ErrConcurrentUpdate
}
