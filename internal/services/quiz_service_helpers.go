package services

import (
	"context"
	"fmt"

	"github.com/jeromwolf/LearnFlow/internal/events"
	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"gorm.io/gorm"
)

// ===== REQUEST MAPPING =====

func buildQuizFromRequest(req *CreateQuizRequest, creatorID string) *models.Quiz {
	quiz := &models.Quiz{
		Title:        req.Title,
		Description:  req.Description,
		ContentID:    req.ContentID,
		TimeLimit:    req.TimeLimit,
		MaxAttempts:  req.MaxAttempts,
		PassingScore: req.PassingScore,
		CreatedBy:    creatorID,
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}

	quiz.Questions = make([]models.Question, 0, len(req.Questions))
	for i, qreq := range req.Questions {
		quiz.Questions = append(quiz.Questions, buildQuestionFromRequest(&qreq, i))
	}
	return quiz
}

func buildQuestionFromRequest(req *QuestionUpsertRequest, position int) models.Question {
	question := models.Question{
		Type:        req.Type,
		Text:        req.Text,
		Points:      req.Points,
		OrderNum:    position,
		Explanation: req.Explanation,
	}
	if req.OrderNum != nil {
		question.OrderNum = *req.OrderNum
	}

	question.Choices = make([]models.Choice, 0, len(req.Choices))
	for j, creq := range req.Choices {
		choice := models.Choice{
			Text:      creq.Text,
			IsCorrect: creq.IsCorrect,
			OrderNum:  j,
		}
		if creq.OrderNum != nil {
			choice.OrderNum = *creq.OrderNum
		}
		question.Choices = append(question.Choices, choice)
	}
	return question
}

func applyQuizPatch(quiz *models.Quiz, req *UpdateQuizRequest) {
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = req.Description
	}
	if req.ContentID != nil {
		quiz.ContentID = req.ContentID
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}
}

// ===== QUESTION RECONCILIATION =====

// reconcileQuestions diffs the submitted question tree against the stored
// one: entries with a known ID update in place, entries without one insert,
// and stored questions missing from the request are removed along with their
// answers' question reference.
func (s *quizService) reconcileQuestions(ctx context.Context, tx *gorm.DB, quizID uint, reqs []QuestionUpsertRequest) error {
	existing, err := s.repo.Question().GetByQuiz(ctx, tx, quizID)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}

	existingByID := make(map[uint]*models.Question, len(existing))
	for _, q := range existing {
		existingByID[q.ID] = q
	}

	keepIDs := make([]uint, 0, len(reqs))

	for i := range reqs {
		qreq := &reqs[i]

		var current *models.Question
		if qreq.ID != nil {
			current = existingByID[*qreq.ID]
		}

		if current == nil {
			question := buildQuestionFromRequest(qreq, i)
			question.QuizID = quizID
			if err := s.repo.Question().Create(ctx, tx, &question); err != nil {
				return fmt.Errorf("failed to create question: %w", err)
			}
			keepIDs = append(keepIDs, question.ID)
			continue
		}

		current.Type = qreq.Type
		current.Text = qreq.Text
		current.Points = qreq.Points
		current.Explanation = qreq.Explanation
		current.OrderNum = i
		if qreq.OrderNum != nil {
			current.OrderNum = *qreq.OrderNum
		}

		if err := s.repo.Question().Update(ctx, tx, current); err != nil {
			return fmt.Errorf("failed to update question %d: %w", current.ID, err)
		}
		if err := s.reconcileChoices(ctx, tx, current, qreq.Choices); err != nil {
			return err
		}
		keepIDs = append(keepIDs, current.ID)
	}

	if err := s.repo.Question().DeleteByQuizExcluding(ctx, tx, quizID, keepIDs); err != nil {
		return fmt.Errorf("failed to remove stale questions: %w", err)
	}
	return nil
}

func (s *quizService) reconcileChoices(ctx context.Context, tx *gorm.DB, question *models.Question, reqs []ChoiceUpsertRequest) error {
	existingByID := make(map[uint]*models.Choice, len(question.Choices))
	for i := range question.Choices {
		existingByID[question.Choices[i].ID] = &question.Choices[i]
	}

	keepIDs := make([]uint, 0, len(reqs))
	var newChoices []*models.Choice

	for j := range reqs {
		creq := &reqs[j]

		var current *models.Choice
		if creq.ID != nil {
			current = existingByID[*creq.ID]
		}

		orderNum := j
		if creq.OrderNum != nil {
			orderNum = *creq.OrderNum
		}

		if current == nil {
			newChoices = append(newChoices, &models.Choice{
				QuestionID: question.ID,
				Text:       creq.Text,
				IsCorrect:  creq.IsCorrect,
				OrderNum:   orderNum,
			})
			continue
		}

		current.Text = creq.Text
		current.IsCorrect = creq.IsCorrect
		current.OrderNum = orderNum
		if err := s.repo.Question().UpdateChoice(ctx, tx, current); err != nil {
			return fmt.Errorf("failed to update choice %d: %w", current.ID, err)
		}
		keepIDs = append(keepIDs, current.ID)
	}

	if err := s.repo.Question().DeleteChoicesExcluding(ctx, tx, question.ID, keepIDs); err != nil {
		return fmt.Errorf("failed to remove stale choices: %w", err)
	}
	if len(newChoices) > 0 {
		if err := s.repo.Question().CreateChoices(ctx, tx, newChoices); err != nil {
			return fmt.Errorf("failed to create choices: %w", err)
		}
	}
	return nil
}

// ===== PERMISSION HELPERS =====

func (s *quizService) canEditQuiz(quiz *models.Quiz, role models.UserRole, userID string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role.CanGrade() && quiz.CreatedBy == userID
}

func (s *quizService) checkQuizVisibility(quiz *models.Quiz, role models.UserRole, userID, action string) error {
	if quiz.IsPublished || s.canEditQuiz(quiz, role, userID) {
		return nil
	}
	return NewPermissionError(userID, quiz.ID, "quiz", action, "quiz is not published")
}

func (s *quizService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// sanitizeQuizForLearner strips the answer key and explanations before a
// learner sees the question list.
func sanitizeQuizForLearner(quiz *models.Quiz) {
	for i := range quiz.Questions {
		quiz.Questions[i].Explanation = nil
		for j := range quiz.Questions[i].Choices {
			quiz.Questions[i].Choices[j].IsCorrect = false
		}
	}
}

// ===== RESPONSE BUILDERS =====

func (s *quizService) buildQuizResponse(quiz *models.Quiz, role models.UserRole, userID string) *QuizResponse {
	canEdit := s.canEditQuiz(quiz, role, userID)
	return &QuizResponse{
		Quiz:      quiz,
		CanEdit:   canEdit,
		CanDelete: canEdit,
		CanTake:   quiz.IsPublished,
	}
}

func (s *quizService) buildQuizListResponse(quizzes []*models.Quiz, total int64, filters repositories.QuizFilters, role models.UserRole, userID string) *QuizListResponse {
	responses := make([]*QuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		responses = append(responses, s.buildQuizResponse(quiz, role, userID))
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &QuizListResponse{
		Quizzes: responses,
		Total:   total,
		Page:    page,
		Size:    len(responses),
	}
}

// ===== EVENT PUBLISHING =====

func (s *quizService) publishQuizStateChanged(ctx context.Context, quiz *models.Quiz, published bool) {
	eventType := events.EventQuizPublished
	if !published {
		eventType = events.EventQuizUnpublished
	}

	event := events.NewEvent(eventType, events.QuizPublishedEvent{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		CreatedBy: quiz.CreatedBy,
		Published: published,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish quiz state event", "quiz_id", quiz.ID, "error", err)
	}
}
