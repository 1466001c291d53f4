package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
	}
}

// GetMyProgress returns the current user's progress on a quiz
// @Summary Get my quiz progress
// @Description Returns the current user's progress rollup for one quiz. Users
// without attempts get an empty rollup, not an error.
// @Tags progress
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} services.ProgressResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/my/{quiz_id} [get]
func (h *ProgressHandler) GetMyProgress(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Getting own quiz progress", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.GetProgress(c.Request.Context(), userID, quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetUserProgress returns a user's progress across all quizzes
// @Summary Get user progress
// @Description Returns one progress rollup per quiz the user has attempted.
// Users may read their own progress; teachers and admins may read anyone's.
// @Tags progress
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {array} services.ProgressResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/user/{user_id} [get]
func (h *ProgressHandler) GetUserProgress(c *gin.Context) {
	targetUserID := ParseStringIDParam(c, "user_id")
	if targetUserID == "" {
		return
	}

	h.LogRequest(c, "Getting user progress", "target_user_id", targetUserID)

	requesterID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.GetUserProgress(c.Request.Context(), targetUserID, requesterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetQuizProgress returns the progress of all users on one quiz
// @Summary Get quiz progress
// @Description Returns one progress rollup per user who attempted the quiz.
// Restricted to the quiz creator and admins.
// @Tags progress
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {array} services.ProgressResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /progress/quiz/{quiz_id} [get]
func (h *ProgressHandler) GetQuizProgress(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Getting quiz progress", "quiz_id", quizID)

	requesterID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	progress, err := h.progressService.GetQuizProgress(c.Request.Context(), quizID, requesterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}
