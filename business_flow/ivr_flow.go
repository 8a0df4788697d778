package businessflow

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
)

// AnsweredBy values reported by machine detection
const (
	AnsweredByMachineStart      = "machine_start"
	AnsweredByFax               = "fax"
	AnsweredByMachineEndBeep    = "machine_end_beep"
	AnsweredByMachineEndSilence = "machine_end_silence"
	AnsweredByMachineEndOther   = "machine_end_other"
)

const (
	noAvailableTransferAnnounce = "Sorry, there is not available number"
	entryPromptMissingAnnounce  = "Sorry, not found action"
)

// IVR actions reported in IVRResult
const (
	ivrActionHangup              = "hangup"
	ivrActionVoicemail           = "voicemail"
	ivrActionPrompt              = "prompt"
	ivrActionRepeat              = "repeat"
	ivrActionRemove              = "remove"
	ivrActionTransfer            = "transfer"
	ivrActionTransferUnavailable = "transfer_unavailable"
	ivrActionEndCall             = "end_call"
)

// MachineGreeting reports a machine picked up and is still greeting
func MachineGreeting(answeredBy string) bool {
	return answeredBy == AnsweredByMachineStart || answeredBy == AnsweredByFax
}

// VoicemailReady reports the machine greeting ended and a message can be left
func VoicemailReady(answeredBy string) bool {
	switch answeredBy {
	case AnsweredByMachineEndBeep, AnsweredByMachineEndSilence, AnsweredByMachineEndOther:
		return true
	default:
		return false
	}
}

// PlayPromptRequest renders a node for a call leg
type PlayPromptRequest struct {
	CallSID    string
	PromptID   uint
	AnsweredBy string
	FirstCall  bool
}

// GatherPromptRequest resolves a pressed digit on a node
type GatherPromptRequest struct {
	CallSID         string
	PromptID        uint
	PromptMessageID uint
	Digits          string
}

// IVRResult is the voice markup to return and the action taken, for metrics
type IVRResult struct {
	Response *services.VoiceResponse
	Action   string
}

// IVRFlow traverses IVR graphs driven by telephony webhooks
type IVRFlow interface {
	PlayPrompt(ctx context.Context, req PlayPromptRequest) (*IVRResult, error)
	GatherPrompt(ctx context.Context, req GatherPromptRequest) (*IVRResult, error)
}

// IVRFlowImpl implements IVRFlow
type IVRFlowImpl struct {
	promptRepo   repository.IVRPromptRepository
	messageRepo  repository.IVRPromptMessageRepository
	callLogRepo  repository.CallLogRepository
	leadRepo     repository.LeadRepository
	followUpRepo repository.FollowUpRepository
	resolver     TransferResolver
	urls         CallbackURLs
	logger       *logrus.Entry

	// draw returns a uniform value in [0, 1)
	draw func() float64
}

func NewIVRFlow(
	promptRepo repository.IVRPromptRepository,
	messageRepo repository.IVRPromptMessageRepository,
	callLogRepo repository.CallLogRepository,
	leadRepo repository.LeadRepository,
	followUpRepo repository.FollowUpRepository,
	resolver TransferResolver,
	urls CallbackURLs,
	logger *logrus.Logger,
) IVRFlow {
	return &IVRFlowImpl{
		promptRepo:   promptRepo,
		messageRepo:  messageRepo,
		callLogRepo:  callLogRepo,
		leadRepo:     leadRepo,
		followUpRepo: followUpRepo,
		resolver:     resolver,
		urls:         urls,
		logger:       logger.WithField("component", "ivr"),
		draw:         rand.Float64,
	}
}

// PlayPrompt renders a node, or reacts to machine detection on outbound legs
func (f *IVRFlowImpl) PlayPrompt(ctx context.Context, req PlayPromptRequest) (result *IVRResult, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("IVR_PLAY_PROMPT_FAILED", "Failed to render IVR prompt", err)
		}
	}()

	prompt, err := f.promptRepo.ByID(ctx, req.PromptID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, ErrPromptNotFound
	}

	resp := services.NewVoiceResponse()
	switch {
	case MachineGreeting(req.AnsweredBy):
		resp.Hangup()
		return &IVRResult{Response: resp, Action: ivrActionHangup}, nil

	case VoicemailReady(req.AnsweredBy):
		audio, err := f.voicemailAudio(ctx, req.CallSID)
		if err != nil {
			return nil, err
		}
		if audio == "" {
			resp.Hangup()
			return &IVRResult{Response: resp, Action: ivrActionHangup}, nil
		}
		resp.Play(f.urls.Storage(audio))
		return &IVRResult{Response: resp, Action: ivrActionVoicemail}, nil
	}

	callLog, err := f.callLogRepo.BySID(ctx, req.CallSID)
	if err != nil {
		return nil, err
	}
	if callLog == nil {
		return nil, ErrCallLogNotFound
	}
	if err := f.promptRepo.IncrementUsed(ctx, prompt.ID); err != nil {
		return nil, err
	}
	if err := f.renderPrompt(ctx, resp, prompt, req.FirstCall); err != nil {
		return nil, err
	}
	return &IVRResult{Response: resp, Action: ivrActionPrompt}, nil
}

// voicemailAudio returns the voicemail recording of the step that placed the call
func (f *IVRFlowImpl) voicemailAudio(ctx context.Context, callSID string) (string, error) {
	callLog, err := f.callLogRepo.BySID(ctx, callSID)
	if err != nil {
		return "", err
	}
	if callLog == nil || callLog.FollowUpID == nil {
		return "", nil
	}
	followUp, err := f.followUpRepo.ByID(ctx, *callLog.FollowUpID)
	if err != nil {
		return "", err
	}
	if followUp == nil {
		return "", nil
	}
	return followUp.MailAudio, nil
}

// renderPrompt appends a node's normal response. Nodes with buttons wrap the
// playback in a Gather so a digit can interrupt it.
func (f *IVRFlowImpl) renderPrompt(ctx context.Context, resp *services.VoiceResponse, prompt *models.IVRPrompt, firstCall bool) error {
	ivr := prompt.IVR
	if ivr == nil {
		ivr = &models.IVR{PauseTime: 2, LoopTime: 3, Loop: 3}
	}
	if firstCall {
		resp.Pause(ivr.PauseTime)
	}

	message, err := f.pickMessage(ctx, prompt.ID)
	if err != nil {
		return err
	}
	play := func(target *services.VoiceResponse) {
		if message == nil {
			return
		}
		for i := 0; i < ivr.Loop; i++ {
			target.Play(f.urls.PromptAudio(message.Audio))
			target.Pause(ivr.LoopTime)
		}
	}

	if len(prompt.Buttons) == 0 {
		play(resp)
		return nil
	}

	var messageID uint
	if message != nil {
		messageID = message.ID
	}
	resp.Gather(services.GatherOptions{
		Action:    f.urls.API(PathIVRGather, prompt.ID, messageID),
		NumDigits: 1,
		Timeout:   utils.GatherTimeout,
	}, play)
	return nil
}

// pickMessage draws a variant by percent weight and counts its use. When the
// weights sum below the draw the last variant is used.
func (f *IVRFlowImpl) pickMessage(ctx context.Context, promptID uint) (*models.IVRPromptMessage, error) {
	messages, err := f.messageRepo.ListByPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	chosen := selectWeighted(messages, f.draw()*100)
	if err := f.messageRepo.IncrementUsed(ctx, chosen.ID); err != nil {
		return nil, err
	}
	return chosen, nil
}

// selectWeighted returns the first variant whose cumulative range holds draw
func selectWeighted(messages []*models.IVRPromptMessage, draw float64) *models.IVRPromptMessage {
	acc := 0.0
	for _, m := range messages {
		upper := acc + float64(m.Percent)
		if draw >= acc && draw < upper {
			return m
		}
		acc = upper
	}
	return messages[len(messages)-1]
}

// GatherPrompt follows the button bound to the pressed digit. An unbound digit
// repeats the current node.
func (f *IVRFlowImpl) GatherPrompt(ctx context.Context, req GatherPromptRequest) (result *IVRResult, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("IVR_GATHER_PROMPT_FAILED", "Failed to handle IVR digit", err)
		}
	}()

	prompt, err := f.promptRepo.ByID(ctx, req.PromptID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, ErrPromptNotFound
	}
	callLog, err := f.callLogRepo.BySID(ctx, req.CallSID)
	if err != nil {
		return nil, err
	}
	if callLog == nil {
		return nil, ErrCallLogNotFound
	}

	digit, _ := strconv.Atoi(strings.TrimSpace(req.Digits))
	button, pressed := prompt.Button(digit)

	var next *models.IVRPrompt
	if pressed && button.Next != 0 {
		if next, err = f.promptRepo.ByID(ctx, button.Next); err != nil {
			return nil, err
		}
	}

	resp := services.NewVoiceResponse()
	action := ivrActionRepeat
	if next == nil {
		resp.Redirect(f.urls.API(PathIVRPrompt, prompt.ID))
	} else {
		if action, err = f.follow(ctx, resp, prompt, next, callLog); err != nil {
			return nil, err
		}
		if req.PromptMessageID != 0 {
			if err := f.messageRepo.IncrementConversions(ctx, req.PromptMessageID); err != nil {
				return nil, err
			}
		}
	}

	if pressed {
		if err := f.promptRepo.IncrementButtonUsed(ctx, prompt.ID, digit-1); err != nil {
			return nil, err
		}
	}

	f.logger.WithFields(logrus.Fields{
		"call_sid":  req.CallSID,
		"prompt_id": prompt.ID,
		"digit":     req.Digits,
		"action":    action,
	}).Info("ivr digit handled")
	return &IVRResult{Response: resp, Action: action}, nil
}

// follow appends the response for entering node next from current
func (f *IVRFlowImpl) follow(ctx context.Context, resp *services.VoiceResponse, current, next *models.IVRPrompt, callLog *models.CallLog) (string, error) {
	switch next.Type {
	case models.PromptTypePrompt:
		resp.Redirect(f.urls.API(PathIVRPrompt, next.ID))
		return ivrActionPrompt, nil

	case models.PromptTypeRemove:
		if err := f.promptRepo.IncrementUsed(ctx, next.ID); err != nil {
			return "", err
		}
		if err := f.callLogRepo.UpdateBySID(ctx, callLog.SID, map[string]any{
			"status": models.CallOutcomeRemoved,
		}); err != nil {
			return "", err
		}
		resp.Play(f.urls.Storage(ivrAudio(current).RemoveAudio()))
		return ivrActionRemove, nil

	case models.PromptTypeTransfer:
		return f.transfer(ctx, resp, current, next, callLog)

	case models.PromptTypeEndCall:
		if err := f.promptRepo.IncrementUsed(ctx, next.ID); err != nil {
			return "", err
		}
		message, err := f.pickMessage(ctx, next.ID)
		if err != nil {
			return "", err
		}
		if message != nil {
			resp.Play(f.urls.PromptAudio(message.Audio))
		}
		resp.Hangup()
		return ivrActionEndCall, nil

	default:
		f.logger.WithField("prompt_id", next.ID).Warnf("unknown prompt type %q, repeating", next.Type)
		resp.Redirect(f.urls.API(PathIVRPrompt, current.ID))
		return ivrActionRepeat, nil
	}
}

// transfer bridges the call to a resolved destination or announces that none is free
func (f *IVRFlowImpl) transfer(ctx context.Context, resp *services.VoiceResponse, current, next *models.IVRPrompt, callLog *models.CallLog) (string, error) {
	lead, err := f.leadRepo.ByID(ctx, callLog.LeadID)
	if err != nil {
		return "", err
	}
	if lead == nil {
		return "", ErrLeadNotFound
	}

	var number *models.TransferNumber
	if next.TransferOptionID != nil {
		number, err = f.resolver.GetAvailableNumber(ctx, *next.TransferOptionID, lead, callLog.SID)
		if err != nil {
			return "", err
		}
	}
	if number == nil {
		f.logger.WithFields(logrus.Fields{
			"call_sid":  callLog.SID,
			"prompt_id": next.ID,
		}).Warn("no transfer destination available")
		resp.Say(noAvailableTransferAnnounce)
		return ivrActionTransferUnavailable, nil
	}

	if err := f.callLogRepo.UpdateBySID(ctx, callLog.SID, map[string]any{
		"status":             models.CallOutcomeTransferred,
		"transfer_number_id": number.ID,
		"transfer_start":     utils.UTCNow(),
	}); err != nil {
		return "", err
	}

	f.resolver.Ping(ctx, number, lead)

	resp.Play(f.urls.Storage(ivrAudio(current).TransferAudio()))
	resp.Dial(services.DialOptions{
		Action:   f.urls.API(PathDialCallback),
		CallerID: lead.Phone,
	}, number.DialPhone())

	if err := f.promptRepo.IncrementUsed(ctx, next.ID); err != nil {
		return "", err
	}
	f.logger.WithFields(logrus.Fields{
		"call_sid":           callLog.SID,
		"transfer_number_id": number.ID,
	}).Info("call transferred")
	return ivrActionTransfer, nil
}

// ivrAudio returns the IVR whose fixed recordings a node plays
func ivrAudio(prompt *models.IVRPrompt) *models.IVR {
	if prompt.IVR != nil {
		return prompt.IVR
	}
	return &models.IVR{ID: prompt.IVRID}
}
