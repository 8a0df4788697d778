package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
)

// outboundCallEvents are the call lifecycle events the platform reports back
var outboundCallEvents = []string{"initiated", "answered", "completed"}

// SweepResult summarizes one dispatcher sweep
type SweepResult struct {
	// Busy is set when another sweep was running and this one did nothing
	Busy       bool
	Due        int
	Dispatched int
	Skipped    int
	Failed     int
	// Exhausted is set when the sweep stopped for lack of an outbound number
	Exhausted bool
	Duration  time.Duration
}

// DispatchFlow executes due steps
type DispatchFlow interface {
	Sweep(ctx context.Context) (*SweepResult, error)
}

// DispatchFlowImpl implements DispatchFlow. Only one sweep runs at a time;
// a sweep requested while another is running returns immediately.
type DispatchFlowImpl struct {
	mu sync.Mutex

	progressRepo    repository.FollowupProgressRepository
	phoneNumberRepo repository.PhoneNumberRepository
	callLogRepo     repository.CallLogRepository
	contactRepo     repository.SMSContactRepository
	promptRepo      repository.IVRPromptRepository
	integrationRepo repository.IntegrationRepository
	progress        ProgressFlow
	telephony       services.TelephonyClient
	partners        services.PartnerFactory
	reporter        services.ErrorReporter
	urls            CallbackURLs
	logger          *logrus.Entry
}

func NewDispatchFlow(
	progressRepo repository.FollowupProgressRepository,
	phoneNumberRepo repository.PhoneNumberRepository,
	callLogRepo repository.CallLogRepository,
	contactRepo repository.SMSContactRepository,
	promptRepo repository.IVRPromptRepository,
	integrationRepo repository.IntegrationRepository,
	progress ProgressFlow,
	telephony services.TelephonyClient,
	partners services.PartnerFactory,
	reporter services.ErrorReporter,
	urls CallbackURLs,
	logger *logrus.Logger,
) DispatchFlow {
	if reporter == nil {
		reporter = services.NoopReporter{}
	}
	return &DispatchFlowImpl{
		progressRepo:    progressRepo,
		phoneNumberRepo: phoneNumberRepo,
		callLogRepo:     callLogRepo,
		contactRepo:     contactRepo,
		promptRepo:      promptRepo,
		integrationRepo: integrationRepo,
		progress:        progress,
		telephony:       telephony,
		partners:        partners,
		reporter:        reporter,
		urls:            urls,
		logger:          logger.WithField("component", "dispatcher"),
	}
}

// Sweep executes every due step sequentially. A step is marked Complete
// before its side effect runs, so a crash never repeats an action. A failed
// step arms the next one instead of being retried.
func (d *DispatchFlowImpl) Sweep(ctx context.Context) (*SweepResult, error) {
	if !d.mu.TryLock() {
		return &SweepResult{Busy: true}, nil
	}
	defer d.mu.Unlock()

	started := time.Now()
	result := &SweepResult{}
	defer func() { result.Duration = time.Since(started) }()

	items, err := d.progressRepo.DueNext(ctx, utils.UTCNow())
	if err != nil {
		return result, NewBusinessError("DISPATCH_LIST_DUE_FAILED", "Failed to list due steps", err)
	}
	result.Due = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item.Lead == nil || item.FollowUp == nil {
			result.Failed++
			d.logger.WithField("progress_id", item.ID).Error("due step without lead or definition")
			continue
		}

		number, err := d.phoneNumberRepo.RandomActive(ctx, item.Lead.CampaignID)
		if err != nil {
			return result, NewBusinessError("DISPATCH_NUMBER_DRAW_FAILED", "Failed to draw an outbound number", err)
		}
		if number == nil {
			result.Exhausted = true
			d.logger.WithError(configurationError("campaign %d has no active outbound number", item.Lead.CampaignID)).
				Warn("sweep stopped")
			break
		}

		claimed, err := d.progressRepo.Complete(ctx, item.ID)
		if err != nil {
			result.Failed++
			d.logger.WithError(err).WithField("progress_id", item.ID).Error("failed to claim step")
			continue
		}
		if !claimed {
			continue
		}

		log := d.logger.WithFields(logrus.Fields{
			"progress_id": item.ID,
			"lead_id":     item.LeadID,
			"follow_up":   item.FollowUp.String(),
			"number":      number.Number,
		})

		err = d.dispatch(ctx, item, number)
		switch {
		case err == nil:
			result.Dispatched++
			log.Info("step dispatched")
		case IsConfiguration(err):
			result.Skipped++
			log.WithError(err).Warn("step skipped")
		default:
			result.Failed++
			log.WithError(err).Error("step failed")
			d.reporter.Report(err, map[string]string{
				"component": "dispatcher",
				"step_type": string(item.FollowUp.Type),
			}, map[string]any{
				"progress_id": item.ID,
				"lead_id":     item.LeadID,
			})
			// the step is already claimed; arming the next one must outlive the sweep
			if _, aerr := d.progress.Advance(context.WithoutCancel(ctx), item.LeadID, item.LeadInteractionID); aerr != nil {
				log.WithError(aerr).Error("recovery advance failed")
			}
		}
	}
	return result, nil
}

func (d *DispatchFlowImpl) dispatch(ctx context.Context, item *models.FollowupProgress, number *models.PhoneNumber) error {
	switch item.FollowUp.Type {
	case models.FollowupTypeSendSMS:
		return d.sendSMS(ctx, item, number)
	case models.FollowupTypeCall, models.FollowupTypeSchedule:
		return d.placeCall(ctx, item, number)
	case models.FollowupTypeSendYtel:
		return d.sendYtel(ctx, item)
	case models.FollowupTypeActivateVoice, models.FollowupTypeNewChat:
		// armed passive steps have nothing to execute
		_, err := d.progress.Advance(ctx, item.LeadID, item.LeadInteractionID)
		return err
	default:
		return configurationError("unknown step type %q", item.FollowUp.Type)
	}
}

func (d *DispatchFlowImpl) sendSMS(ctx context.Context, item *models.FollowupProgress, number *models.PhoneNumber) error {
	lead := item.Lead
	body := utils.RenderTemplate(item.FollowUp.MailText, lead.TemplateParams(number.Number))

	sent, err := d.telephony.SendSMS(ctx, services.SMSRequest{
		From:           number.Number,
		To:             lead.Phone,
		Body:           body,
		StatusCallback: d.urls.API(PathSMSStatus),
	})
	if err != nil {
		return externalError("send sms", err)
	}

	callLog := &models.CallLog{
		SID:                sent.SID,
		Type:               models.CallTypeOutboundText,
		CallStatus:         models.CallStatus(sent.Status),
		Status:             models.CallOutcomeNotAnswered,
		StartTime:          utils.UTCNowPtr(),
		SMS:                body,
		LeadInteractionID:  item.LeadInteractionID,
		CampaignID:         lead.CampaignID,
		LeadID:             lead.ID,
		FollowUpID:         item.FollowUpID,
		FollowupProgressID: utils.ToPtr(item.ID),
		PhoneNumberID:      utils.ToPtr(number.ID),
	}
	if err := d.callLogRepo.Save(ctx, callLog); err != nil {
		return err
	}

	contact, err := d.contactRepo.ByLead(ctx, lead.ID)
	if err != nil {
		return err
	}
	if contact == nil {
		contact = &models.SMSContact{
			Archived:    true,
			LastMessage: body,
			LeadID:      lead.ID,
		}
		if err := d.contactRepo.Save(ctx, contact); err != nil {
			return err
		}
	} else if err := d.contactRepo.Update(ctx, contact.ID, map[string]any{"last_message": body}); err != nil {
		return err
	}

	return d.contactRepo.AddMessage(ctx, &models.Message{
		Body:         body,
		SID:          sent.SID,
		Direction:    models.MessageDirectionSent,
		Unread:       false,
		SMSContactID: contact.ID,
	})
}

func (d *DispatchFlowImpl) placeCall(ctx context.Context, item *models.FollowupProgress, number *models.PhoneNumber) error {
	followUp := item.FollowUp
	if followUp.IVRID == nil {
		return configurationError("%s has no ivr", followUp)
	}
	entry, err := d.promptRepo.FirstOfIVR(ctx, *followUp.IVRID)
	if err != nil {
		return err
	}
	if entry == nil {
		return configurationError("ivr %d has no entry prompt", *followUp.IVRID)
	}

	detection := services.MachineDetectionEnable
	if followUp.LeaveVoiceMail {
		detection = services.MachineDetectionMessageEnd
	}
	sid, err := d.telephony.PlaceCall(ctx, services.CallRequest{
		From:                    number.Number,
		To:                      item.Lead.Phone,
		URL:                     d.urls.API(PathIVRPrompt, entry.ID) + "?firstCall=1",
		StatusCallback:          d.urls.API(PathCallStatus),
		StatusCallbackEvents:    outboundCallEvents,
		MachineDetection:        detection,
		MachineDetectionTimeout: utils.MachineDetectionTimeout,
		Record:                  true,
	})
	if err != nil {
		return externalError("place call", err)
	}

	return d.callLogRepo.Save(ctx, &models.CallLog{
		SID:                sid,
		Type:               models.CallTypeOutboundCall,
		CallStatus:         models.CallStatusInitiated,
		Status:             models.CallOutcomeNotAnswered,
		StartTime:          utils.UTCNowPtr(),
		LeadInteractionID:  item.LeadInteractionID,
		CampaignID:         item.Lead.CampaignID,
		LeadID:             item.LeadID,
		IVRID:              followUp.IVRID,
		FollowUpID:         item.FollowUpID,
		FollowupProgressID: utils.ToPtr(item.ID),
		PhoneNumberID:      utils.ToPtr(number.ID),
	})
}

// sendYtel pushes the lead to the Ytel list named by the step text. No
// callback follows, so the next step is armed right away.
func (d *DispatchFlowImpl) sendYtel(ctx context.Context, item *models.FollowupProgress) error {
	integration, err := d.integrationRepo.FirstByPartner(ctx, models.PartnerYtel)
	if err != nil {
		return err
	}
	if integration == nil {
		return configurationError("no %s integration configured", models.PartnerYtel)
	}
	presence, err := d.partners.Presence(integration)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := presence.AddLead(ctx, services.NewLeadPayload(item.Lead, item.FollowUp.MailText)); err != nil {
		if errors.Is(err, services.ErrNotSupported) {
			return configurationError("integration %d cannot add leads", integration.ID)
		}
		return externalError("ytel add_lead", err)
	}

	_, err = d.progress.Advance(context.WithoutCancel(ctx), item.LeadID, item.LeadInteractionID)
	return err
}
