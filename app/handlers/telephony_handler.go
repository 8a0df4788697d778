package handlers

import (
	"context"
	"strconv"

	"github.com/amirphl/dialflow/app/dto"
	"github.com/amirphl/dialflow/app/middleware"
	"github.com/amirphl/dialflow/app/services"
	businessflow "github.com/amirphl/dialflow/business_flow"
	"github.com/amirphl/dialflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// TelephonyHandlerInterface defines the webhooks the telephony platform calls
type TelephonyHandlerInterface interface {
	PlayPrompt(c fiber.Ctx) error
	GatherPrompt(c fiber.Ctx) error
	CallStatus(c fiber.Ctx) error
	SMSStatus(c fiber.Ctx) error
	DialCallback(c fiber.Ctx) error
	InboundVoice(c fiber.Ctx) error
	InboundSMS(c fiber.Ctx) error
	TriggerSweep(c fiber.Ctx) error
}

// Sweeper runs one dispatcher sweep on demand
type Sweeper interface {
	RunOnce(ctx context.Context) (*businessflow.SweepResult, error)
}

// TelephonyHandler handles telephony webhooks
type TelephonyHandler struct {
	ivrFlow     businessflow.IVRFlow
	webhookFlow businessflow.TelephonyWebhookFlow
	sweeper     Sweeper
	validator   *validator.Validate
	logger      *logrus.Entry
}

func NewTelephonyHandler(
	ivrFlow businessflow.IVRFlow,
	webhookFlow businessflow.TelephonyWebhookFlow,
	sweeper Sweeper,
	logger *logrus.Logger,
) *TelephonyHandler {
	return &TelephonyHandler{
		ivrFlow:     ivrFlow,
		webhookFlow: webhookFlow,
		sweeper:     sweeper,
		validator:   validator.New(),
		logger:      logger.WithField("component", "telephony_handler"),
	}
}

func (h *TelephonyHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TelephonyHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindForm parses and validates a webhook form and checks it was sent for
// our account. On failure the error response is already written and
// handled is true.
func (h *TelephonyHandler) bindForm(c fiber.Ctx, req any, accountSID func() string) (handled bool, err error) {
	if err := c.Bind().Form(req); err != nil {
		return true, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return true, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	if err := h.webhookFlow.VerifyAccount(accountSID()); err != nil {
		return true, h.ErrorResponse(c, fiber.StatusForbidden, "Unknown account", "INVALID_ACCOUNT", nil)
	}
	return false, nil
}

// webhookError maps a flow error to its response
func (h *TelephonyHandler) webhookError(c fiber.Ctx, webhook string, err error) error {
	status, code, message := fiber.StatusInternalServerError, "WEBHOOK_FAILED", "Failed to handle webhook"
	switch {
	case businessflow.IsCallLogNotFound(err):
		status, code, message = fiber.StatusNotFound, "CALL_NOT_FOUND", "Call not found"
	case businessflow.IsPromptNotFound(err):
		status, code, message = fiber.StatusNotFound, "PROMPT_NOT_FOUND", "IVR prompt not found"
	case businessflow.IsPhoneNumberNotRegistered(err):
		status, code, message = fiber.StatusUnprocessableEntity, "PHONE_NUMBER_NOT_REGISTERED", "Called number is not registered"
	case businessflow.IsLeadBlocked(err):
		status, code, message = fiber.StatusServiceUnavailable, "LEAD_BLOCKED", "Caller is blocked"
	case businessflow.IsInboundGroupNotFound(err):
		status, code, message = fiber.StatusNotFound, "INBOUND_GROUP_NOT_FOUND", "No inbound follow-up group available"
	case businessflow.IsUnexpectedEntryStep(err):
		status, code, message = fiber.StatusNotFound, "UNEXPECTED_ENTRY_STEP", "Inbound follow-up group has an unexpected entry step"
	}

	log := h.logger.WithError(err).WithField("webhook", webhook)
	if status == fiber.StatusInternalServerError {
		log.Error("webhook failed")
	} else {
		log.Warn("webhook rejected")
	}
	middleware.RecordWebhook(webhook, code)
	return h.ErrorResponse(c, status, message, code, nil)
}

func (h *TelephonyHandler) sendVoice(c fiber.Ctx, webhook string, resp *services.VoiceResponse) error {
	body, err := resp.Render()
	if err != nil {
		return h.webhookError(c, webhook, err)
	}
	middleware.RecordWebhook(webhook, "ok")
	return sendXML(c, body)
}

func promptID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("promptId"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// PlayPrompt renders an IVR node for a call leg
// @Summary Render IVR prompt
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param promptId path int true "Prompt ID"
// @Param firstCall query string false "1 on the first leg of an outbound call"
// @Router /twilio/ivr-prompts/{promptId} [post]
func (h *TelephonyHandler) PlayPrompt(c fiber.Ctx) error {
	var req dto.TwilioVoiceRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}
	id, ok := promptID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid prompt id", "INVALID_PROMPT_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/twilio/ivr-prompts", utils.DefaultRequestTimeout)
	defer cancel()

	firstCall, _ := strconv.ParseBool(c.Query("firstCall"))
	result, err := h.ivrFlow.PlayPrompt(ctx, businessflow.PlayPromptRequest{
		CallSID:    req.CallSid,
		PromptID:   id,
		AnsweredBy: req.AnsweredBy,
		FirstCall:  firstCall,
	})
	if err != nil {
		return h.webhookError(c, "ivr_prompt", err)
	}
	middleware.RecordIVRAction(result.Action)
	return h.sendVoice(c, "ivr_prompt", result.Response)
}

// GatherPrompt handles a digit pressed on an IVR node
// @Summary Handle IVR digit
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param promptId path int true "Prompt ID"
// @Param promptMessageId query int false "Message variant that was played"
// @Router /twilio/ivr-prompts/{promptId}/gather [post]
func (h *TelephonyHandler) GatherPrompt(c fiber.Ctx) error {
	var req dto.TwilioVoiceRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}
	id, ok := promptID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid prompt id", "INVALID_PROMPT_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/twilio/ivr-prompts/gather", utils.DefaultRequestTimeout)
	defer cancel()

	messageID, _ := strconv.ParseUint(c.Query("promptMessageId"), 10, 64)
	result, err := h.ivrFlow.GatherPrompt(ctx, businessflow.GatherPromptRequest{
		CallSID:         req.CallSid,
		PromptID:        id,
		PromptMessageID: uint(messageID),
		Digits:          req.Digits,
	})
	if err != nil {
		return h.webhookError(c, "ivr_gather", err)
	}
	middleware.RecordIVRAction(result.Action)
	return h.sendVoice(c, "ivr_gather", result.Response)
}

// CallStatus applies a call status callback
// @Summary Call status callback
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce json
// @Router /twilio/status [post]
func (h *TelephonyHandler) CallStatus(c fiber.Ctx) error {
	var req dto.TwilioCallStatusRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}

	ctx, cancel := createRequestContext(c, "/twilio/status", utils.DefaultRequestTimeout)
	defer cancel()

	callLog, err := h.webhookFlow.CallStatus(ctx, &req)
	if err != nil {
		return h.webhookError(c, "call_status", err)
	}
	middleware.RecordWebhook("call_status", "ok")
	return h.SuccessResponse(c, fiber.StatusOK, "Call status applied", callLog)
}

// SMSStatus applies a message status callback
// @Summary SMS status callback
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce json
// @Router /twilio/status-sms [post]
func (h *TelephonyHandler) SMSStatus(c fiber.Ctx) error {
	var req dto.TwilioSMSStatusRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}

	ctx, cancel := createRequestContext(c, "/twilio/status-sms", utils.DefaultRequestTimeout)
	defer cancel()

	callLog, err := h.webhookFlow.SMSStatus(ctx, &req)
	if err != nil {
		return h.webhookError(c, "sms_status", err)
	}
	middleware.RecordWebhook("sms_status", "ok")
	return h.SuccessResponse(c, fiber.StatusOK, "SMS status applied", callLog)
}

// DialCallback closes a transferred leg
// @Summary Dial callback
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Router /twilio/dial-callback [post]
func (h *TelephonyHandler) DialCallback(c fiber.Ctx) error {
	var req dto.TwilioDialCallbackRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}

	ctx, cancel := createRequestContext(c, "/twilio/dial-callback", utils.DefaultRequestTimeout)
	defer cancel()

	resp, err := h.webhookFlow.DialCallback(ctx, &req)
	if err != nil {
		return h.webhookError(c, "dial_callback", err)
	}
	return h.sendVoice(c, "dial_callback", resp)
}

// InboundVoice accepts an inbound call
// @Summary Inbound call
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Failure 422 {object} dto.APIResponse "Called number is not registered"
// @Failure 503 {object} dto.APIResponse "Caller is blocked"
// @Router /twilio/voice [post]
func (h *TelephonyHandler) InboundVoice(c fiber.Ctx) error {
	var req dto.TwilioVoiceRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}

	ctx, cancel := createRequestContext(c, "/twilio/voice", utils.DefaultRequestTimeout)
	defer cancel()

	resp, err := h.webhookFlow.InboundVoice(ctx, &req)
	if err != nil {
		return h.webhookError(c, "inbound_voice", err)
	}
	return h.sendVoice(c, "inbound_voice", resp)
}

// InboundSMS accepts an inbound text and returns the auto reply
// @Summary Inbound SMS
// @Tags Telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Router /twilio/sms [post]
func (h *TelephonyHandler) InboundSMS(c fiber.Ctx) error {
	var req dto.TwilioInboundSMSRequest
	if handled, err := h.bindForm(c, &req, func() string { return req.AccountSid }); handled {
		return err
	}

	ctx, cancel := createRequestContext(c, "/twilio/sms", utils.DefaultRequestTimeout)
	defer cancel()

	resp, err := h.webhookFlow.InboundSMS(ctx, &req)
	if err != nil {
		return h.webhookError(c, "inbound_sms", err)
	}
	body, err := services.MessagingReply(resp.Reply)
	if err != nil {
		return h.webhookError(c, "inbound_sms", err)
	}
	middleware.RecordWebhook("inbound_sms", "ok")
	return sendXML(c, body)
}

// TriggerSweep runs one dispatcher sweep. Like scheduled sweeps it is not
// bounded by the webhook timeout.
// @Summary Run dispatcher
// @Tags Telephony
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.SweepResponse}
// @Router /twilio/call [get]
func (h *TelephonyHandler) TriggerSweep(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/twilio/call", 0)
	defer cancel()

	result, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		h.logger.WithError(err).Error("manual sweep failed")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Dispatcher sweep failed", "SWEEP_FAILED", nil)
	}

	message := "Dispatcher sweep finished"
	if result.Busy {
		message = "Dispatcher sweep already running"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, dto.SweepResponse{
		Busy:       result.Busy,
		Due:        result.Due,
		Dispatched: result.Dispatched,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		Exhausted:  result.Exhausted,
		Duration:   result.Duration.String(),
	})
}
