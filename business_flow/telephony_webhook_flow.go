package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/dialflow/app/dto"
	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TelephonyWebhookFlow handles the callbacks and inbound events of the telephony platform
type TelephonyWebhookFlow interface {
	CallStatus(ctx context.Context, req *dto.TwilioCallStatusRequest) (*models.CallLog, error)
	SMSStatus(ctx context.Context, req *dto.TwilioSMSStatusRequest) (*models.CallLog, error)
	DialCallback(ctx context.Context, req *dto.TwilioDialCallbackRequest) (*services.VoiceResponse, error)
	InboundVoice(ctx context.Context, req *dto.TwilioVoiceRequest) (*services.VoiceResponse, error)
	InboundSMS(ctx context.Context, req *dto.TwilioInboundSMSRequest) (*dto.TwilioInboundSMSResponse, error)
	// VerifyAccount rejects callbacks signed for another account
	VerifyAccount(accountSID string) error
}

// TelephonyWebhookFlowImpl implements TelephonyWebhookFlow
type TelephonyWebhookFlowImpl struct {
	accountSID      string
	callLogRepo     repository.CallLogRepository
	phoneNumberRepo repository.PhoneNumberRepository
	blockRepo       repository.BlockListRepository
	leadRepo        repository.LeadRepository
	groupRepo       repository.FollowupGroupRepository
	progressRepo    repository.FollowupProgressRepository
	promptRepo      repository.IVRPromptRepository
	contactRepo     repository.SMSContactRepository
	userRepo        repository.UserRepository
	planner         SequencePlanner
	progress        ProgressFlow
	telephony       services.TelephonyClient
	reporter        services.ErrorReporter
	urls            CallbackURLs
	logger          *logrus.Entry
}

func NewTelephonyWebhookFlow(
	accountSID string,
	callLogRepo repository.CallLogRepository,
	phoneNumberRepo repository.PhoneNumberRepository,
	blockRepo repository.BlockListRepository,
	leadRepo repository.LeadRepository,
	groupRepo repository.FollowupGroupRepository,
	progressRepo repository.FollowupProgressRepository,
	promptRepo repository.IVRPromptRepository,
	contactRepo repository.SMSContactRepository,
	userRepo repository.UserRepository,
	planner SequencePlanner,
	progress ProgressFlow,
	telephony services.TelephonyClient,
	reporter services.ErrorReporter,
	urls CallbackURLs,
	logger *logrus.Logger,
) TelephonyWebhookFlow {
	if reporter == nil {
		reporter = services.NoopReporter{}
	}
	return &TelephonyWebhookFlowImpl{
		accountSID:      accountSID,
		callLogRepo:     callLogRepo,
		phoneNumberRepo: phoneNumberRepo,
		blockRepo:       blockRepo,
		leadRepo:        leadRepo,
		groupRepo:       groupRepo,
		progressRepo:    progressRepo,
		promptRepo:      promptRepo,
		contactRepo:     contactRepo,
		userRepo:        userRepo,
		planner:         planner,
		progress:        progress,
		telephony:       telephony,
		reporter:        reporter,
		urls:            urls,
		logger:          logger.WithField("component", "telephony_webhook"),
	}
}

func (f *TelephonyWebhookFlowImpl) VerifyAccount(accountSID string) error {
	if accountSID == "" || accountSID != f.accountSID {
		return ErrInvalidAccount
	}
	return nil
}

// CallStatus folds a call status callback into the CallLog and lets the
// progress state machine react to terminal statuses.
func (f *TelephonyWebhookFlowImpl) CallStatus(ctx context.Context, req *dto.TwilioCallStatusRequest) (callLog *models.CallLog, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("CALL_STATUS_FAILED", "Failed to apply call status", err)
		}
	}()

	callLog, err = f.callLogRepo.BySID(ctx, req.CallSid)
	if err != nil {
		return nil, err
	}
	if callLog == nil {
		return nil, ErrCallLogNotFound
	}

	status := models.CallStatus(req.CallStatus)
	at := callbackTime(req.Timestamp)
	updates := map[string]any{"call_status": status}
	callLog.CallStatus = status

	switch status {
	case models.CallStatusInitiated:
		updates["start_time"] = at
		callLog.StartTime = &at
	case models.CallStatusInProgress:
	default:
		updates["call_duration"] = req.CallDuration
		updates["end_time"] = at
		callLog.CallDuration = req.CallDuration
		callLog.EndTime = &at
		if status == models.CallStatusCompleted {
			updates["recording_url"] = req.RecordingURL
			callLog.RecordingURL = req.RecordingURL
		}

		outcome := callLog.Status
		if outcome == models.CallOutcomeNotAnswered && status == models.CallStatusCompleted {
			outcome = models.CallOutcomeAnswered
		}
		switch {
		case MachineGreeting(req.AnsweredBy):
			outcome = models.CallOutcomeNotAnswered
			callLog.CallStatus = models.CallStatusMachineAnswered
		case VoicemailReady(req.AnsweredBy):
			outcome = models.CallOutcomeNotAnswered
			callLog.CallStatus = models.CallStatusLeftVoicemail
			updates["ivr_id"] = nil
			callLog.IVRID = nil
		}
		updates["call_status"] = callLog.CallStatus
		updates["status"] = outcome
		callLog.Status = outcome
	}

	if err = f.callLogRepo.UpdateBySID(ctx, req.CallSid, updates); err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"sid":         callLog.SID,
		"call_status": callLog.CallStatus,
		"status":      callLog.Status,
		"lead_id":     callLog.LeadID,
	}).Info("call status applied")

	f.applyOutcome(ctx, callLog)
	return callLog, nil
}

// SMSStatus folds a message status callback into the CallLog
func (f *TelephonyWebhookFlowImpl) SMSStatus(ctx context.Context, req *dto.TwilioSMSStatusRequest) (callLog *models.CallLog, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("SMS_STATUS_FAILED", "Failed to apply sms status", err)
		}
	}()

	callLog, err = f.callLogRepo.BySID(ctx, req.SmsSid)
	if err != nil {
		return nil, err
	}
	if callLog == nil {
		return nil, ErrCallLogNotFound
	}

	status := models.CallStatus(req.SmsStatus)
	outcome := models.CallOutcomeNotAnswered
	if status == models.CallStatusSent || status == models.CallStatusDelivered {
		outcome = models.CallOutcomeAnswered
	}
	err = f.callLogRepo.UpdateBySID(ctx, req.SmsSid, map[string]any{
		"call_status": status,
		"status":      outcome,
	})
	if err != nil {
		return nil, err
	}
	callLog.CallStatus = status
	callLog.Status = outcome

	f.applyOutcome(ctx, callLog)
	return callLog, nil
}

// DialCallback closes the transfer leg of a call
func (f *TelephonyWebhookFlowImpl) DialCallback(ctx context.Context, req *dto.TwilioDialCallbackRequest) (resp *services.VoiceResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("DIAL_CALLBACK_FAILED", "Failed to apply dial callback", err)
		}
	}()

	callLog, err := f.callLogRepo.BySID(ctx, req.CallSid)
	if err != nil {
		return nil, err
	}
	if callLog == nil {
		return nil, ErrCallLogNotFound
	}

	start := utils.UTCNow()
	if callLog.TransferStart != nil {
		start = *callLog.TransferStart
	}
	updates := map[string]any{"transfer_end": start}
	if req.DialCallDuration != nil {
		duration := *req.DialCallDuration
		updates["transfer_duration"] = duration
		updates["transfer_end"] = start.Add(time.Duration(duration) * time.Second)
	}
	if err = f.callLogRepo.UpdateBySID(ctx, req.CallSid, updates); err != nil {
		return nil, err
	}

	return services.NewVoiceResponse().Hangup(), nil
}

// InboundVoice starts an inbound episode for the caller and hands the call
// to the entry prompt of the episode's IVR.
func (f *TelephonyWebhookFlowImpl) InboundVoice(ctx context.Context, req *dto.TwilioVoiceRequest) (resp *services.VoiceResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("INBOUND_VOICE_FAILED", "Failed to accept inbound call", err)
		}
	}()

	inbound, err := f.resolveInbound(ctx, req.To, req.From, models.FollowupGroupTypeInboundCall, req.FromState, "")
	if err != nil {
		return nil, err
	}

	plan, err := f.planner.Plan(ctx, PlanRequest{
		LeadID:          inbound.lead.ID,
		FollowupGroupID: inbound.group.ID,
		IncludeIncoming: true,
	})
	if err != nil {
		return nil, err
	}
	first := plan.First()
	if first == nil || first.FollowUp == nil || first.FollowUp.Type != models.FollowupTypeActivateVoice {
		return nil, ErrUnexpectedEntryStep
	}

	resp = services.NewVoiceResponse()
	var entry *models.IVRPrompt
	if first.FollowUp.IVRID != nil {
		if entry, err = f.promptRepo.FirstOfIVR(ctx, *first.FollowUp.IVRID); err != nil {
			return nil, err
		}
	}
	if entry == nil {
		f.logger.WithField("follow_up", first.FollowUp.String()).Warn("inbound call without entry prompt")
		return resp.Say(entryPromptMissingAnnounce), nil
	}

	err = f.callLogRepo.Save(ctx, &models.CallLog{
		SID:                req.CallSid,
		Type:               models.CallTypeInboundCall,
		CallStatus:         models.CallStatusInProgress,
		Status:             models.CallOutcomeAnswered,
		StartTime:          utils.UTCNowPtr(),
		LeadInteractionID:  plan.InteractionID,
		CampaignID:         plan.Lead.CampaignID,
		LeadID:             plan.Lead.ID,
		IVRID:              first.FollowUp.IVRID,
		FollowUpID:         first.FollowUpID,
		FollowupProgressID: utils.ToPtr(first.ID),
		PhoneNumberID:      utils.ToPtr(inbound.number.ID),
	})
	if err != nil {
		return nil, err
	}
	f.consume(ctx, first)

	f.logger.WithFields(logrus.Fields{
		"sid":     req.CallSid,
		"lead_id": plan.Lead.ID,
		"prompt":  entry.ID,
	}).Info("inbound call accepted")
	return resp.Redirect(f.urls.API(PathIVRPrompt, entry.ID)), nil
}

// InboundSMS records an inbound text in the lead's conversation, starting an
// inbound episode when the conversation has none, and renders the auto reply.
func (f *TelephonyWebhookFlowImpl) InboundSMS(ctx context.Context, req *dto.TwilioInboundSMSRequest) (resp *dto.TwilioInboundSMSResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("INBOUND_SMS_FAILED", "Failed to accept inbound sms", err)
		}
	}()

	inbound, err := f.resolveInbound(ctx, req.To, req.From, models.FollowupGroupTypeInboundSMS, req.FromState, req.FromCity)
	if err != nil {
		return nil, err
	}
	lead := inbound.lead

	contact, err := f.contactRepo.ByLead(ctx, lead.ID)
	if err != nil {
		return nil, err
	}

	var entry *models.FollowupProgress
	if contact == nil || contact.CallLogID == nil {
		plan, err := f.planner.Plan(ctx, PlanRequest{
			LeadID:          lead.ID,
			FollowupGroupID: inbound.group.ID,
			IncludeIncoming: true,
		})
		if err != nil {
			return nil, err
		}
		entry = plan.First()
		if entry == nil || entry.FollowUp == nil || entry.FollowUp.Type != models.FollowupTypeNewChat {
			return nil, ErrUnexpectedEntryStep
		}
		lead = plan.Lead

		callLog := &models.CallLog{
			SID:                req.MessageSid,
			Type:               models.CallTypeInboundText,
			CallStatus:         models.CallStatusInProgress,
			Status:             models.CallOutcomeAnswered,
			StartTime:          utils.UTCNowPtr(),
			SMS:                req.Body,
			LeadInteractionID:  plan.InteractionID,
			CampaignID:         lead.CampaignID,
			LeadID:             lead.ID,
			FollowUpID:         entry.FollowUpID,
			FollowupProgressID: utils.ToPtr(entry.ID),
			PhoneNumberID:      utils.ToPtr(inbound.number.ID),
		}
		if err := f.callLogRepo.Save(ctx, callLog); err != nil {
			return nil, err
		}

		var userID *uint
		if entry.FollowUp.LeaveVoiceMail {
			agent, err := f.userRepo.RandomAgent(ctx)
			if err != nil {
				return nil, err
			}
			if agent != nil {
				userID = utils.ToPtr(agent.ID)
			}
		}

		if contact == nil {
			contact = &models.SMSContact{
				LastMessage: req.Body,
				LeadID:      lead.ID,
				CallLogID:   utils.ToPtr(callLog.ID),
				UserID:      userID,
			}
			if err := f.contactRepo.Save(ctx, contact); err != nil {
				return nil, err
			}
		} else {
			err := f.contactRepo.Update(ctx, contact.ID, map[string]any{
				"call_log_id":  callLog.ID,
				"last_message": req.Body,
				"user_id":      userID,
				"archived":     false,
			})
			if err != nil {
				return nil, err
			}
		}
		f.consume(ctx, entry)
	} else {
		updates := map[string]any{"last_message": req.Body}
		if contact.Archived {
			updates["archived"] = false
		}
		if err := f.contactRepo.Update(ctx, contact.ID, updates); err != nil {
			return nil, err
		}
	}

	err = f.contactRepo.AddMessage(ctx, &models.Message{
		Body:         req.Body,
		SID:          req.MessageSid,
		Direction:    models.MessageDirectionReceived,
		Unread:       true,
		SMSContactID: contact.ID,
	})
	if err != nil {
		return nil, err
	}

	resp = &dto.TwilioInboundSMSResponse{}
	if entry == nil || strings.TrimSpace(entry.FollowUp.MailText) == "" {
		return resp, nil
	}
	resp.Reply = utils.RenderTemplate(entry.FollowUp.MailText, lead.TemplateParams(inbound.number.Number))
	err = f.contactRepo.AddMessage(ctx, &models.Message{
		Body:         resp.Reply,
		SID:          req.MessageSid,
		Direction:    models.MessageDirectionSent,
		Unread:       false,
		SMSContactID: contact.ID,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type inboundContext struct {
	number *models.PhoneNumber
	lead   *models.Lead
	group  *models.FollowupGroup
}

// resolveInbound runs the checks shared by inbound calls and texts and
// returns the called number, the caller's lead and the group to plan from.
// A caller without a lead is enrolled in the group's campaign.
func (f *TelephonyWebhookFlowImpl) resolveInbound(ctx context.Context, to, from string, groupType models.FollowupGroupType, state, city string) (*inboundContext, error) {
	number, err := f.phoneNumberRepo.ByNumber(ctx, to)
	if err != nil {
		return nil, err
	}
	if number == nil {
		if normalized := utils.NormalizeE164(to); normalized != to {
			if number, err = f.phoneNumberRepo.ByNumber(ctx, normalized); err != nil {
				return nil, err
			}
		}
	}
	if number == nil {
		return nil, ErrPhoneNumberNotRegistered
	}

	blocked, err := f.blockRepo.IsPhoneBlocked(ctx, from)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrLeadBlocked
	}

	lead, err := f.leadRepo.ByPhones(ctx, utils.PhoneVariants(from))
	if err != nil {
		return nil, err
	}
	if lead != nil && lead.Blocked {
		return nil, ErrLeadBlocked
	}

	groups, err := f.groupRepo.ListByType(ctx, groupType)
	if err != nil {
		return nil, err
	}
	var group *models.FollowupGroup
	for _, g := range groups {
		if !g.KnownOnly || (lead != nil && lead.CampaignID == g.CampaignID) {
			group = g
			break
		}
	}
	if group == nil {
		return nil, ErrInboundGroupNotFound
	}

	if lead == nil {
		lead = &models.Lead{
			UUID:       uuid.New(),
			FirstName:  utils.UnknownLeadName,
			LastName:   utils.UnknownLeadName,
			Phone:      from,
			Type:       f.lineType(ctx, from),
			State:      state,
			City:       city,
			Status:     models.LeadStatusNotCalled,
			Version:    1,
			CampaignID: group.CampaignID,
		}
		if err := f.leadRepo.Save(ctx, lead); err != nil {
			return nil, err
		}
		f.logger.WithFields(logrus.Fields{
			"lead_id":     lead.ID,
			"campaign_id": lead.CampaignID,
			"group_type":  groupType,
		}).Info("lead created from inbound event")
	}

	return &inboundContext{number: number, lead: lead, group: group}, nil
}

// lineType classifies a new lead by carrier lookup; a failed lookup keeps
// the lead reachable by text.
func (f *TelephonyWebhookFlowImpl) lineType(ctx context.Context, phone string) models.LeadType {
	lineType, err := f.telephony.LookupLineType(ctx, phone)
	if err != nil {
		f.logger.WithError(err).WithField("phone", phone).Warn("line type lookup failed")
		return models.LeadTypeMobile
	}
	if lineType == services.LineTypeMobile {
		return models.LeadTypeMobile
	}
	return models.LeadTypeLandline
}

// consume completes the passive entry step the inbound event just performed,
// then arms the step after it.
func (f *TelephonyWebhookFlowImpl) consume(ctx context.Context, step *models.FollowupProgress) {
	log := f.logger.WithFields(logrus.Fields{
		"progress_id": step.ID,
		"lead_id":     step.LeadID,
	})
	consumed, err := f.progressRepo.Consume(ctx, step.ID)
	if err != nil {
		log.WithError(err).Error("failed to consume entry step")
		return
	}
	if !consumed {
		return
	}
	if _, err := f.progress.Advance(ctx, step.LeadID, step.LeadInteractionID); err != nil {
		log.WithError(err).Warn("failed to arm step after entry")
	}
}

// applyOutcome runs the state machine after a status update; a failure is
// reported but does not fail the callback.
func (f *TelephonyWebhookFlowImpl) applyOutcome(ctx context.Context, callLog *models.CallLog) {
	if err := f.progress.ApplyCallOutcome(ctx, callLog); err != nil {
		if IsConcurrentUpdate(err) {
			f.logger.WithError(err).WithField("sid", callLog.SID).Warn("call outcome raced another update")
			return
		}
		f.logger.WithError(err).WithField("sid", callLog.SID).Error("failed to apply call outcome")
		f.reporter.Report(err, map[string]string{"component": "telephony_webhook"}, map[string]any{
			"sid":     callLog.SID,
			"lead_id": callLog.LeadID,
		})
	}
}

// callbackTime reads the callback timestamp; now when absent or malformed
func callbackTime(value string) time.Time {
	if t := utils.ParseTimestamp(value); !t.IsZero() {
		return t
	}
	return utils.UTCNow()
}
