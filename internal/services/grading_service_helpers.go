package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"gorm.io/datatypes"
)

// ===== AUTO GRADING =====

// autoGradeAnswer scores one answer against its question. Manual-only types
// come back with a nil verdict and zero points until a teacher grades them.
// Malformed answer payloads are an error, not a silent zero.
func autoGradeAnswer(question *models.Question, raw datatypes.JSON) (*bool, int, error) {
	payload, err := models.DecodeAnswerData(question.Type, raw)
	if err != nil {
		return nil, 0, fmt.Errorf("question %d: %w", question.ID, err)
	}

	if !models.AutoGradeableTypes[question.Type] {
		// Pending manual review.
		return nil, 0, nil
	}

	switch question.Type {
	case models.MultipleChoice:
		correct := gradeMultipleChoice(question, payload.Choice)
		return boolPtr(correct), awardedPoints(correct, question.Points), nil
	case models.TrueFalse:
		correct := gradeTrueFalse(question, payload.Bool)
		return boolPtr(correct), awardedPoints(correct, question.Points), nil
	default:
		return nil, 0, fmt.Errorf("unsupported question type: %s", question.Type)
	}
}

// gradeMultipleChoice checks exact set equality between the selected choice
// IDs and the choices flagged correct. Partial or extra selections score as
// wrong.
func gradeMultipleChoice(question *models.Question, answer *models.ChoiceAnswerData) bool {
	if answer == nil {
		return false
	}
	return equalChoiceSets(answer.SelectedChoiceIDs, question.CorrectChoiceIDs())
}

// gradeTrueFalse compares the submitted boolean against the correct answer
// derived from the question's choices: true when a choice whose text reads
// "true" is flagged correct, false otherwise.
func gradeTrueFalse(question *models.Question, answer *models.BoolAnswerData) bool {
	if answer == nil {
		return false
	}
	return answer.Answer == trueFalseCorrectAnswer(question)
}

func trueFalseCorrectAnswer(question *models.Question) bool {
	for i := range question.Choices {
		c := &question.Choices[i]
		if c.IsCorrect && strings.EqualFold(strings.TrimSpace(c.Text), "true") {
			return true
		}
	}
	return false
}

// ===== SCORING =====

// computeScore converts earned points into a whole percentage, rounded down.
// A zero-point denominator scores 0 rather than dividing by zero.
func computeScore(totalPoints, maxPoints int) int {
	if maxPoints <= 0 {
		return 0
	}
	if totalPoints < 0 {
		totalPoints = 0
	}
	return 100 * totalPoints / maxPoints
}

// clampPoints bounds a manual grade to what the question is worth.
func clampPoints(points, maxPoints int) int {
	if points < 0 {
		return 0
	}
	if points > maxPoints {
		return maxPoints
	}
	return points
}

func awardedPoints(correct bool, points int) int {
	if correct {
		return points
	}
	return 0
}

// equalChoiceSets compares two choice ID slices as sets, ignoring order and
// duplicates.
func equalChoiceSets(a, b []uint) bool {
	as := make(map[uint]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[uint]struct{}, len(b))
	for _, id := range b {
		bs[id] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}

// canonicalChoiceKey renders a choice ID set in a stable form, used to bucket
// answers in per-question distributions.
func canonicalChoiceKey(ids []uint) string {
	sorted := make([]uint, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted))
	var last uint
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d", id))
		last = id
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ===== PERMISSION HELPERS =====

func (s *gradingService) checkGradingPermission(ctx context.Context, graderID string, quiz *models.Quiz) error {
	role, err := s.getUserRole(ctx, graderID)
	if err != nil {
		return err
	}
	if !role.CanGrade() {
		return NewPermissionError(graderID, quiz.ID, "quiz", "grade", "insufficient role permissions")
	}
	if role != models.RoleAdmin && quiz.CreatedBy != graderID {
		return NewPermissionError(graderID, quiz.ID, "quiz", "grade", "not owner or insufficient permissions")
	}
	return nil
}

func (s *gradingService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

func boolPtr(b bool) *bool {
	return &b
}
