package services

import (
	"testing"

	"github.com/jeromwolf/LearnFlow/internal/models"
)

func TestBuildQuizFromRequest(t *testing.T) {
	published := true
	desc := "intro quiz"
	explain := "because"

	req := &CreateQuizRequest{
		Title:        "Go Basics",
		Description:  &desc,
		TimeLimit:    600,
		MaxAttempts:  3,
		PassingScore: 70,
		IsPublished:  &published,
		Questions: []QuestionUpsertRequest{
			{
				Type:        models.MultipleChoice,
				Text:        "Pick one",
				Points:      4,
				Explanation: &explain,
				Choices: []ChoiceUpsertRequest{
					{Text: "A", IsCorrect: true},
					{Text: "B"},
				},
			},
			{
				Type:   models.Essay,
				Text:   "Explain interfaces",
				Points: 10,
			},
		},
	}

	quiz := buildQuizFromRequest(req, "teacher-1")

	if quiz.Title != "Go Basics" || quiz.CreatedBy != "teacher-1" {
		t.Errorf("quiz = %q by %q, want Go Basics by teacher-1", quiz.Title, quiz.CreatedBy)
	}
	if !quiz.IsPublished {
		t.Error("IsPublished = false, want true")
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(quiz.Questions))
	}
	if quiz.Questions[0].OrderNum != 0 || quiz.Questions[1].OrderNum != 1 {
		t.Errorf("order = %d,%d, want positional defaults 0,1", quiz.Questions[0].OrderNum, quiz.Questions[1].OrderNum)
	}
	if len(quiz.Questions[0].Choices) != 2 {
		t.Fatalf("choices = %d, want 2", len(quiz.Questions[0].Choices))
	}
	if !quiz.Questions[0].Choices[0].IsCorrect || quiz.Questions[0].Choices[1].IsCorrect {
		t.Error("choice correctness not carried over")
	}
}

func TestApplyQuizPatch(t *testing.T) {
	title := "Renamed"
	attempts := 5

	quiz := &models.Quiz{Title: "Original", MaxAttempts: 1, PassingScore: 80, TimeLimit: 300}
	applyQuizPatch(quiz, &UpdateQuizRequest{Title: &title, MaxAttempts: &attempts})

	if quiz.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", quiz.Title)
	}
	if quiz.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", quiz.MaxAttempts)
	}
	// Untouched fields keep their values.
	if quiz.PassingScore != 80 || quiz.TimeLimit != 300 {
		t.Errorf("unpatched fields changed: passing=%d time=%d", quiz.PassingScore, quiz.TimeLimit)
	}
}

func TestSanitizeQuizForLearner(t *testing.T) {
	explain := "the reason"
	quiz := &models.Quiz{
		Questions: []models.Question{
			{
				Explanation: &explain,
				Choices: []models.Choice{
					{Text: "A", IsCorrect: true},
					{Text: "B", IsCorrect: false},
				},
			},
		},
	}

	sanitizeQuizForLearner(quiz)

	if quiz.Questions[0].Explanation != nil {
		t.Error("explanation leaked to learner view")
	}
	for _, c := range quiz.Questions[0].Choices {
		if c.IsCorrect {
			t.Error("answer key leaked to learner view")
		}
	}
}

func TestCanEditQuiz(t *testing.T) {
	s := &quizService{}
	quiz := &models.Quiz{ID: 1, CreatedBy: "teacher-1"}

	tests := []struct {
		name   string
		role   models.UserRole
		userID string
		want   bool
	}{
		{name: "owner teacher", role: models.RoleTeacher, userID: "teacher-1", want: true},
		{name: "other teacher", role: models.RoleTeacher, userID: "teacher-2", want: false},
		{name: "admin", role: models.RoleAdmin, userID: "someone-else", want: true},
		{name: "student owner id match still denied", role: models.RoleStudent, userID: "teacher-1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.canEditQuiz(quiz, tt.role, tt.userID); got != tt.want {
				t.Errorf("canEditQuiz() = %v, want %v", got, tt.want)
			}
		})
	}
}
