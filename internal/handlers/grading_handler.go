package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
	"github.com/jeromwolf/LearnFlow/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeAttempt applies manual grading to an attempt
// @Summary Grade attempt
// @Description Applies manual grading overrides to an attempt and finalizes
// its score. Points are clamped to each question's maximum.
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param grades body services.GradeAttemptRequest true "Grading overrides keyed by question ID"
// @Success 200 {object} services.AttemptGradingResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /grading/attempts/{id} [post]
func (h *GradingHandler) GradeAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Grading attempt", "attempt_id", attemptID)

	var req services.GradeAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.gradingService.GradeAttempt(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGradingOverview returns the grading state of an attempt
// @Summary Get grading overview
// @Description Returns how many answers of the attempt are graded and how
// many still wait for manual review
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=repositories.GradingStats}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /grading/attempts/{id}/overview [get]
func (h *GradingHandler) GetGradingOverview(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Getting grading overview", "attempt_id", attemptID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	overview, err := h.gradingService.GetGradingOverview(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Grading overview retrieved successfully",
		Data:    overview,
	})
}
