package handlers

import (
	"strconv"

	"github.com/amirphl/dialflow/app/dto"
	businessflow "github.com/amirphl/dialflow/business_flow"
	"github.com/amirphl/dialflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// SequenceHandlerInterface defines the contract for follow-up sequence handlers
type SequenceHandlerInterface interface {
	PlanLeadSequence(c fiber.Ctx) error
	ReestimateCampaign(c fiber.Ctx) error
}

// SequenceHandler handles follow-up sequence requests
type SequenceHandler struct {
	flow      businessflow.SequenceFlow
	validator *validator.Validate
	logger    *logrus.Entry
}

func NewSequenceHandler(flow businessflow.SequenceFlow, logger *logrus.Logger) *SequenceHandler {
	return &SequenceHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger.WithField("component", "sequence_handler"),
	}
}

func (h *SequenceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SequenceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func pathID(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// PlanLeadSequence writes a new follow-up episode for a lead
// @Summary Plan lead sequence
// @Tags Sequences
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body dto.PlanSequenceRequest true "Follow-up group and optional start time"
// @Success 201 {object} dto.APIResponse{data=dto.PlanSequenceResponse}
// @Failure 404 {object} dto.APIResponse "Lead or follow-up group not found"
// @Failure 422 {object} dto.APIResponse "Group cannot be planned"
// @Router /api/v1/leads/{id}/sequences [post]
func (h *SequenceHandler) PlanLeadSequence(c fiber.Ctx) error {
	leadID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	var req dto.PlanSequenceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	req.LeadID = leadID

	ctx, cancel := createRequestContext(c, "/api/v1/leads/sequences", utils.DefaultRequestTimeout)
	defer cancel()

	result, err := h.flow.PlanLeadSequence(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsLeadNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		case businessflow.IsFollowupGroupNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Follow-up group not found", "FOLLOWUP_GROUP_NOT_FOUND", nil)
		case businessflow.IsSequencing(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Sequence cannot be planned", "SEQUENCING_FAILED", err.Error())
		}
		h.logger.WithError(err).WithField("lead_id", leadID).Error("failed to plan sequence")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to plan sequence", "SEQUENCE_PLAN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// ReestimateCampaign reschedules pending steps after a campaign's windows change
// @Summary Re-estimate campaign steps
// @Tags Sequences
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.ReestimateCampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 422 {object} dto.APIResponse "Campaign has no usable windows"
// @Router /api/v1/campaigns/{id}/reestimate [post]
func (h *SequenceHandler) ReestimateCampaign(c fiber.Ctx) error {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/campaigns/reestimate", utils.DefaultRequestTimeout)
	defer cancel()

	result, err := h.flow.ReestimateCampaign(ctx, campaignID)
	if err != nil {
		switch {
		case businessflow.IsCampaignNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		case businessflow.IsSequencing(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign cannot be re-estimated", "SEQUENCING_FAILED", err.Error())
		}
		h.logger.WithError(err).WithField("campaign_id", campaignID).Error("failed to re-estimate campaign")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to re-estimate campaign", "REESTIMATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
