package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/LearnFlow/internal/config"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/services"
	"github.com/jeromwolf/LearnFlow/internal/utils"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"github.com/jeromwolf/LearnFlow/pkg/monitoring"
)

type HandlerManager struct {
	quizHandler     *QuizHandler
	attemptHandler  *AttemptHandler
	gradingHandler  *GradingHandler
	progressHandler *ProgressHandler
	statsHandler    *StatsHandler
	userHandler     *UserHandler
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		quizHandler:     NewQuizHandler(serviceManager.Quiz(), validator, logger),
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		gradingHandler:  NewGradingHandler(serviceManager.Grading(), validator, logger),
		progressHandler: NewProgressHandler(serviceManager.Progress(), logger),
		statsHandler:    NewStatsHandler(serviceManager.Stats(), serviceManager.Export(), logger),
		userHandler:     NewUserHandler(userRepo, logger),
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware()) // Apply authentication to all API routes
	{
		// Quiz routes
		quizzes := v1.Group("/quizzes")
		{
			// Authoring - Teachers and Admins only
			quizzes.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.CreateQuiz)
			quizzes.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.UpdateQuiz)
			quizzes.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.DeleteQuiz)
			quizzes.POST("/:id/publish", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.PublishQuiz)
			quizzes.POST("/:id/unpublish", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.UnpublishQuiz)

			// View quizzes - All authenticated users
			quizzes.GET("", hm.quizHandler.ListQuizzes)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.GET("/:id/questions", hm.quizHandler.GetQuizWithQuestions)
			quizzes.GET("/:id/can-take", hm.quizHandler.CanTakeQuiz)
			quizzes.GET("/content/:content_id", hm.quizHandler.GetQuizzesByContent)

			// Creator-specific routes - Teachers and Admins only
			quizzes.GET("/creator/:creator_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.quizHandler.GetQuizzesByCreator)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/my", hm.attemptHandler.GetMyAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/answers", hm.attemptHandler.GetAttemptWithAnswers)

			// Quiz-specific routes
			attempts.GET("/can-start/:quiz_id", hm.attemptHandler.CanStartAttempt)
			attempts.GET("/count/:quiz_id", hm.attemptHandler.GetAttemptCount)
			attempts.GET("/quiz/:quiz_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.attemptHandler.GetAttemptsByQuiz)
			attempts.GET("/stats/:quiz_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.attemptHandler.GetAttemptStats)
		}

		// Grading routes - Teachers and Admins only
		grading := v1.Group("/grading")
		grading.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			grading.POST("/attempts/:id", hm.gradingHandler.GradeAttempt)
			grading.GET("/attempts/:id/overview", hm.gradingHandler.GetGradingOverview)
		}

		// Progress routes
		progress := v1.Group("/progress")
		{
			progress.GET("/my/:quiz_id", hm.progressHandler.GetMyProgress)
			progress.GET("/user/:user_id", hm.progressHandler.GetUserProgress)
			progress.GET("/quiz/:quiz_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.progressHandler.GetQuizProgress)
		}

		// Stats and export routes - Teachers and Admins only
		stats := v1.Group("/stats")
		stats.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			stats.GET("/quiz/:quiz_id", hm.statsHandler.GetQuizStats)
			stats.GET("/quiz/:quiz_id/export", hm.statsHandler.ExportQuizStats)
			stats.GET("/quiz/:quiz_id/export-attempts", hm.statsHandler.ExportQuizAttempts)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})

	// Prometheus metrics endpoint
	router.GET("/metrics", monitoring.PrometheusHandler())
}
