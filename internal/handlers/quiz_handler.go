package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
	"github.com/jeromwolf/LearnFlow/internal/validator"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
	validator   *validator.Validator
}

func NewQuizHandler(
	quizService services.QuizService,
	validator *validator.Validator,
	logger utils.Logger,
) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
		validator:   validator,
	}
}

// CreateQuiz creates a new quiz
// @Summary Create quiz
// @Description Creates a new quiz with questions and choices
// @Tags quizzes
// @Accept json
// @Produce json
// @Param quiz body services.CreateQuizRequest true "Quiz data"
// @Success 201 {object} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes [post]
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	h.LogRequest(c, "Creating quiz")

	var req services.CreateQuizRequest
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

	quiz, err := h.quizService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz retrieves a quiz by ID
// @Summary Get quiz
// @Description Retrieves a quiz by its ID
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting quiz", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// GetQuizWithQuestions retrieves a quiz with its full question list
// @Summary Get quiz with questions
// @Description Retrieves a quiz with questions and choices. The answer key is
// stripped for users who cannot edit the quiz.
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id}/questions [get]
func (h *QuizHandler) GetQuizWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting quiz with questions", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.GetByIDWithQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// UpdateQuiz updates an existing quiz
// @Summary Update quiz
// @Description Updates quiz settings and reconciles its question list
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Param quiz body services.UpdateQuizRequest true "Quiz update data"
// @Success 200 {object} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id} [put]
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating quiz", "quiz_id", id)

	var req services.UpdateQuizRequest
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

	quiz, err := h.quizService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// DeleteQuiz deletes a quiz
// @Summary Delete quiz
// @Description Deletes a quiz. Blocked when the quiz has recorded attempts.
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting quiz", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListQuizzes lists quizzes with filters
// @Summary List quizzes
// @Description Lists quizzes with optional filtering. Learners only see
// published quizzes.
// @Tags quizzes
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Param is_published query bool false "Publication state"
// @Param content_id query uint false "Content ID"
// @Success 200 {object} services.QuizListResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes [get]
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	h.LogRequest(c, "Listing quizzes")

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseQuizFilters(c)
	quizzes, err := h.quizService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizzes)
}

// GetQuizzesByCreator lists quizzes by creator
// @Summary Get quizzes by creator
// @Description Lists quizzes created by a specific user
// @Tags quizzes
// @Accept json
// @Produce json
// @Param creator_id path string true "Creator ID"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} services.QuizListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/creator/{creator_id} [get]
func (h *QuizHandler) GetQuizzesByCreator(c *gin.Context) {
	creatorID := ParseStringIDParam(c, "creator_id")
	if creatorID == "" {
		return
	}

	h.LogRequest(c, "Getting quizzes by creator", "creator_id", creatorID)

	filters := h.parseQuizFilters(c)
	quizzes, err := h.quizService.GetByCreator(c.Request.Context(), creatorID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizzes)
}

// GetQuizzesByContent lists quizzes attached to a content item
// @Summary Get quizzes by content
// @Description Lists quizzes attached to a lecture or course content item
// @Tags quizzes
// @Accept json
// @Produce json
// @Param content_id path uint true "Content ID"
// @Success 200 {array} services.QuizResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/content/{content_id} [get]
func (h *QuizHandler) GetQuizzesByContent(c *gin.Context) {
	contentID := h.parseIDParam(c, "content_id")
	if contentID == 0 {
		return
	}

	h.LogRequest(c, "Getting quizzes by content", "content_id", contentID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	quizzes, err := h.quizService.GetByContent(c.Request.Context(), contentID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, quizzes)
}

// PublishQuiz publishes a quiz
// @Summary Publish quiz
// @Description Publishes a quiz, opening it for attempts
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id}/publish [post]
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Publishing quiz", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.quizService.Publish(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Quiz published successfully",
	})
}

// UnpublishQuiz unpublishes a quiz
// @Summary Unpublish quiz
// @Description Unpublishes a quiz, closing it for new attempts
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id}/unpublish [post]
func (h *QuizHandler) UnpublishQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Unpublishing quiz", "quiz_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.quizService.Unpublish(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Quiz unpublished successfully",
	})
}

// CanTakeQuiz checks whether the current user may start an attempt
// @Summary Check quiz availability
// @Description Checks whether the current user may start an attempt on the quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} SuccessResponse{data=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /quizzes/{id}/can-take [get]
func (h *QuizHandler) CanTakeQuiz(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	canTake, err := h.quizService.CanTake(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Availability check completed",
		Data:    canTake,
	})
}

// Helper methods

func (h *QuizHandler) parseQuizFilters(c *gin.Context) repositories.QuizFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.QuizFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if publishedStr := c.Query("is_published"); publishedStr != "" {
		if published, err := strconv.ParseBool(publishedStr); err == nil {
			filters.IsPublished = &published
		}
	}

	if contentIDStr := c.Query("content_id"); contentIDStr != "" {
		if contentID, err := strconv.ParseUint(contentIDStr, 10, 32); err == nil {
			id := uint(contentID)
			filters.ContentID = &id
		}
	}

	if creatorID := strings.TrimSpace(c.Query("created_by")); creatorID != "" {
		filters.CreatedBy = &creatorID
	}

	return filters
}
