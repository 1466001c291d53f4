package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"github.com/jeromwolf/LearnFlow/pkg/monitoring"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new quiz attempt
// @Summary Start quiz attempt
// @Description Starts a new attempt for a published quiz
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting quiz attempt")

	var req services.StartAttemptRequest
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

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	monitoring.AttemptsStarted.Inc()
	c.JSON(http.StatusCreated, attempt)
}

// SubmitAttempt submits a quiz attempt
// @Summary Submit quiz attempt
// @Description Submits a quiz attempt with all answers. Auto-gradable
// questions are scored immediately; with auto_grade=false the attempt waits
// for manual grading.
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.SubmitAttemptRequest true "Submit attempt data"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.LogRequest(c, "Submitting quiz attempt")

	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	monitoring.AttemptsSubmitted.WithLabelValues(string(attempt.Status)).Inc()
	c.JSON(http.StatusOK, attempt)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Description Retrieves an attempt by its ID
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttemptWithAnswers retrieves an attempt including its answers
// @Summary Get attempt with answers
// @Description Retrieves an attempt with its full answer list
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/{id}/answers [get]
func (h *AttemptHandler) GetAttemptWithAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt with answers", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByIDWithAnswers(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetMyAttempts lists the current user's attempts
// @Summary List my attempts
// @Description Lists attempts made by the current user
// @Tags attempts
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param status query string false "Attempt status"
// @Success 200 {object} services.AttemptListResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/my [get]
func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing own attempts")

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, err := h.attemptService.GetByStudent(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// GetAttemptsByQuiz lists attempts of a quiz
// @Summary List quiz attempts
// @Description Lists attempts made against a quiz. Restricted to the quiz
// creator and admins.
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param status query string false "Attempt status"
// @Param user_id query string false "Filter by user"
// @Success 200 {object} services.AttemptListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/quiz/{quiz_id} [get]
func (h *AttemptHandler) GetAttemptsByQuiz(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Listing quiz attempts", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)
	attempts, err := h.attemptService.GetByQuiz(c.Request.Context(), quizID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// CanStartAttempt checks whether a new attempt may be started
// @Summary Check attempt availability
// @Description Checks whether the current user may start a new attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse{data=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/can-start/{quiz_id} [get]
func (h *AttemptHandler) CanStartAttempt(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Checking attempt availability", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	canStart, err := h.attemptService.CanStart(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Availability check completed",
		Data:    canStart,
	})
}

// GetAttemptCount returns the current user's attempt count for a quiz
// @Summary Get attempt count
// @Description Returns how many attempts the current user has made on a quiz
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse{data=int}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/count/{quiz_id} [get]
func (h *AttemptHandler) GetAttemptCount(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt count", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	count, err := h.attemptService.GetAttemptCount(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt count retrieved successfully",
		Data:    count,
	})
}

// GetAttemptStats retrieves attempt statistics for a quiz
// @Summary Get attempt statistics
// @Description Retrieves aggregate attempt statistics for a quiz
// @Tags attempts
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse{data=repositories.AttemptStats}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /attempts/stats/{quiz_id} [get]
func (h *AttemptHandler) GetAttemptStats(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt stats", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.attemptService.GetStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt stats retrieved successfully",
		Data:    stats,
	})
}

// Helper methods

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	if userIDStr := strings.TrimSpace(c.Query("user_id")); userIDStr != "" {
		filters.UserID = &userIDStr
	}

	return filters
}
