package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StatsHandler struct {
	BaseHandler
	statsService  services.StatsService
	exportService services.ExportService
}

func NewStatsHandler(
	statsService services.StatsService,
	exportService services.ExportService,
	logger utils.Logger,
) *StatsHandler {
	return &StatsHandler{
		BaseHandler:   NewBaseHandler(logger),
		statsService:  statsService,
		exportService: exportService,
	}
}

// GetQuizStats retrieves aggregate statistics for a quiz
// @Summary Get quiz statistics
// @Description Retrieves aggregate statistics over finalized attempts,
// including per-question correctness rates and answer distributions
// @Tags stats
// @Accept json
// @Produce json
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {object} repositories.QuizStats
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/quiz/{quiz_id} [get]
func (h *StatsHandler) GetQuizStats(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Getting quiz stats", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.GetQuizStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportQuizStats exports quiz statistics as an Excel workbook
// @Summary Export quiz statistics
// @Description Exports the quiz statistics workbook with a summary sheet and
// per-question rows
// @Tags stats
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/quiz/{quiz_id}/export [get]
func (h *StatsHandler) ExportQuizStats(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Exporting quiz stats", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	file, err := h.exportService.ExportQuizStats(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.writeWorkbook(c, file, fmt.Sprintf("quiz_%d_stats.xlsx", quizID))
}

// ExportQuizAttempts exports a quiz's finalized attempts as an Excel workbook
// @Summary Export quiz attempts
// @Description Exports one row per finalized attempt of the quiz
// @Tags stats
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param quiz_id path uint true "Quiz ID"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/quiz/{quiz_id}/export-attempts [get]
func (h *StatsHandler) ExportQuizAttempts(c *gin.Context) {
	quizID := h.parseIDParam(c, "quiz_id")
	if quizID == 0 {
		return
	}

	h.LogRequest(c, "Exporting quiz attempts", "quiz_id", quizID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	file, err := h.exportService.ExportAttempts(c.Request.Context(), quizID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.writeWorkbook(c, file, fmt.Sprintf("quiz_%d_attempts.xlsx", quizID))
}

func (h *StatsHandler) writeWorkbook(c *gin.Context, file *excelize.File, filename string) {
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := file.WriteTo(c.Writer); err != nil {
		h.LogError(c, err, "Failed to stream workbook", "filename", filename)
	}
}
