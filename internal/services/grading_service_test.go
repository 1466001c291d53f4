package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestNewGradingService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
	}
	tests := []struct {
		name string
		args args
		want GradingService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewGradingService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator, nil)
		})
	}
}

func multipleChoiceQuestion(points int, correctIDs ...uint) *models.Question {
	q := &models.Question{
		ID:     1,
		Type:   models.MultipleChoice,
		Points: points,
	}
	correct := make(map[uint]bool, len(correctIDs))
	for _, id := range correctIDs {
		correct[id] = true
	}
	for _, id := range []uint{10, 20, 30, 40} {
		q.Choices = append(q.Choices, models.Choice{ID: id, QuestionID: 1, IsCorrect: correct[id]})
	}
	return q
}

func trueFalseQuestion(points int, correctIsTrue bool) *models.Question {
	return &models.Question{
		ID:     2,
		Type:   models.TrueFalse,
		Points: points,
		Choices: []models.Choice{
			{ID: 1, QuestionID: 2, Text: "True", IsCorrect: correctIsTrue},
			{ID: 2, QuestionID: 2, Text: "False", IsCorrect: !correctIsTrue},
		},
	}
}

func TestAutoGradeAnswer_MultipleChoice(t *testing.T) {
	question := multipleChoiceQuestion(5, 10, 30)

	tests := []struct {
		name        string
		answer      string
		wantCorrect bool
		wantPoints  int
	}{
		{name: "exact match", answer: `{"selected_choices":[10,30]}`, wantCorrect: true, wantPoints: 5},
		{name: "order insensitive", answer: `{"selected_choices":[30,10]}`, wantCorrect: true, wantPoints: 5},
		{name: "subset scores zero", answer: `{"selected_choices":[10]}`, wantCorrect: false, wantPoints: 0},
		{name: "superset scores zero", answer: `{"selected_choices":[10,30,20]}`, wantCorrect: false, wantPoints: 0},
		{name: "wrong selection", answer: `{"selected_choices":[20,40]}`, wantCorrect: false, wantPoints: 0},
		{name: "empty selection", answer: `{"selected_choices":[]}`, wantCorrect: false, wantPoints: 0},
		{name: "duplicate ids collapse", answer: `{"selected_choices":[10,10,30]}`, wantCorrect: true, wantPoints: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isCorrect, points, err := autoGradeAnswer(question, datatypes.JSON(tt.answer))
			if err != nil {
				t.Fatalf("autoGradeAnswer() error = %v", err)
			}
			if isCorrect == nil {
				t.Fatal("autoGradeAnswer() verdict = nil, want non-nil")
			}
			if *isCorrect != tt.wantCorrect {
				t.Errorf("autoGradeAnswer() correct = %v, want %v", *isCorrect, tt.wantCorrect)
			}
			if points != tt.wantPoints {
				t.Errorf("autoGradeAnswer() points = %d, want %d", points, tt.wantPoints)
			}
		})
	}
}

func TestAutoGradeAnswer_TrueFalse(t *testing.T) {
	tests := []struct {
		name          string
		correctIsTrue bool
		answer        string
		wantCorrect   bool
	}{
		{name: "true is correct, answered true", correctIsTrue: true, answer: `{"answer":true}`, wantCorrect: true},
		{name: "true is correct, answered false", correctIsTrue: true, answer: `{"answer":false}`, wantCorrect: false},
		{name: "false is correct, answered false", correctIsTrue: false, answer: `{"answer":false}`, wantCorrect: true},
		{name: "false is correct, answered true", correctIsTrue: false, answer: `{"answer":true}`, wantCorrect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := trueFalseQuestion(2, tt.correctIsTrue)
			isCorrect, points, err := autoGradeAnswer(question, datatypes.JSON(tt.answer))
			if err != nil {
				t.Fatalf("autoGradeAnswer() error = %v", err)
			}
			if isCorrect == nil || *isCorrect != tt.wantCorrect {
				t.Errorf("autoGradeAnswer() correct = %v, want %v", isCorrect, tt.wantCorrect)
			}
			wantPoints := 0
			if tt.wantCorrect {
				wantPoints = 2
			}
			if points != wantPoints {
				t.Errorf("autoGradeAnswer() points = %d, want %d", points, wantPoints)
			}
		})
	}
}

func TestAutoGradeAnswer_ManualTypes(t *testing.T) {
	for _, qt := range []models.QuestionType{models.ShortAnswer, models.Essay} {
		t.Run(string(qt), func(t *testing.T) {
			question := &models.Question{ID: 3, Type: qt, Points: 10}
			isCorrect, points, err := autoGradeAnswer(question, datatypes.JSON(`{"text":"my answer"}`))
			if err != nil {
				t.Fatalf("autoGradeAnswer() error = %v", err)
			}
			if isCorrect != nil {
				t.Errorf("autoGradeAnswer() verdict = %v, want nil for manual grading", *isCorrect)
			}
			if points != 0 {
				t.Errorf("autoGradeAnswer() points = %d, want 0 before manual grading", points)
			}
		})
	}
}

func TestAutoGradeAnswer_MalformedPayload(t *testing.T) {
	tests := []struct {
		name     string
		question *models.Question
		answer   string
	}{
		{name: "empty payload", question: multipleChoiceQuestion(1, 10), answer: ""},
		{name: "wrong shape for choice", question: multipleChoiceQuestion(1, 10), answer: `{"selected_choices":"oops"}`},
		{name: "wrong shape for bool", question: trueFalseQuestion(1, true), answer: `{"answer":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := autoGradeAnswer(tt.question, datatypes.JSON(tt.answer)); err == nil {
				t.Error("autoGradeAnswer() error = nil, want error for malformed payload")
			}
		})
	}
}

func TestTrueFalseCorrectAnswer(t *testing.T) {
	tests := []struct {
		name    string
		choices []models.Choice
		want    bool
	}{
		{
			name: "flagged true wins",
			choices: []models.Choice{
				{Text: "True", IsCorrect: true},
				{Text: "False", IsCorrect: false},
			},
			want: true,
		},
		{
			name: "case and whitespace insensitive",
			choices: []models.Choice{
				{Text: "  TRUE ", IsCorrect: true},
				{Text: "False", IsCorrect: false},
			},
			want: true,
		},
		{
			name: "only false flagged",
			choices: []models.Choice{
				{Text: "True", IsCorrect: false},
				{Text: "False", IsCorrect: true},
			},
			want: false,
		},
		{
			name:    "no choices defaults to false",
			choices: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := &models.Question{Type: models.TrueFalse, Choices: tt.choices}
			if got := trueFalseCorrectAnswer(question); got != tt.want {
				t.Errorf("trueFalseCorrectAnswer() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name        string
		totalPoints int
		maxPoints   int
		want        int
	}{
		{name: "full marks", totalPoints: 10, maxPoints: 10, want: 100},
		{name: "zero marks", totalPoints: 0, maxPoints: 10, want: 0},
		{name: "rounds down", totalPoints: 2, maxPoints: 3, want: 66},
		{name: "one third", totalPoints: 1, maxPoints: 3, want: 33},
		{name: "zero max guards division", totalPoints: 5, maxPoints: 0, want: 0},
		{name: "negative total clamps", totalPoints: -1, maxPoints: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeScore(tt.totalPoints, tt.maxPoints); got != tt.want {
				t.Errorf("computeScore(%d, %d) = %d, want %d", tt.totalPoints, tt.maxPoints, got, tt.want)
			}
		})
	}
}

func TestClampPoints(t *testing.T) {
	tests := []struct {
		name      string
		points    int
		maxPoints int
		want      int
	}{
		{name: "within range", points: 3, maxPoints: 5, want: 3},
		{name: "over max clamps", points: 8, maxPoints: 5, want: 5},
		{name: "negative clamps to zero", points: -2, maxPoints: 5, want: 0},
		{name: "exactly max", points: 5, maxPoints: 5, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampPoints(tt.points, tt.maxPoints); got != tt.want {
				t.Errorf("clampPoints(%d, %d) = %d, want %d", tt.points, tt.maxPoints, got, tt.want)
			}
		})
	}
}

func TestCanonicalChoiceKey(t *testing.T) {
	tests := []struct {
		name string
		ids  []uint
		want string
	}{
		{name: "sorted", ids: []uint{3, 1, 2}, want: "[1,2,3]"},
		{name: "deduplicated", ids: []uint{2, 2, 1}, want: "[1,2]"},
		{name: "empty", ids: nil, want: "[]"},
		{name: "single", ids: []uint{7}, want: "[7]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canonicalChoiceKey(tt.ids); got != tt.want {
				t.Errorf("canonicalChoiceKey(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}
}

func newTestGradingService(repo repositories.Repository) GradingService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewGradingService(repo, nil, logger, validator.New(), nil)
}

func gradingRepo(attemptStatus models.AttemptStatus) *stubRepository {
	repo := newStubRepository()
	repo.quiz.quizzes[1] = &models.Quiz{
		ID:           1,
		PassingScore: 80,
		IsPublished:  true,
		CreatedBy:    "teacher-1",
		Questions: []models.Question{
			{ID: 1, QuizID: 1, Type: models.Essay, Points: 10},
		},
	}
	repo.user.users["teacher-1"] = &models.User{ID: "teacher-1", Role: models.RoleTeacher}
	repo.user.users["student-1"] = &models.User{ID: "student-1", Role: models.RoleStudent}
	repo.attempt.attempts[7] = &models.QuizAttempt{
		ID:            7,
		QuizID:        1,
		UserID:        "student-1",
		AttemptNumber: 1,
		Status:        attemptStatus,
		StartedAt:     time.Now().Add(-time.Minute),
	}
	repo.attempt.nextID = 7
	return repo
}

func TestGradeAttempt_EssayLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := gradingRepo(models.AttemptInProgress)
	attempts := newTestAttemptService(repo)
	grading := newTestGradingService(repo)

	submitted, err := attempts.Submit(ctx, &SubmitAttemptRequest{
		AttemptID: 7,
		Answers: []SubmitAnswerRequest{
			{QuestionID: 1, AnswerData: json.RawMessage(`{"text":"my essay"}`)},
		},
	}, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.Status != models.AttemptCompleted || submitted.Score != 0 || submitted.Passed {
		t.Fatalf("submitted essay attempt = %s score %d passed %v, want completed at 0",
			submitted.Status, submitted.Score, submitted.Passed)
	}

	result, err := grading.GradeAttempt(ctx, 7, &GradeAttemptRequest{
		Grades: map[uint]*GradeAnswerRequest{
			1: {PointsAwarded: 8, IsCorrect: boolPtr(true)},
		},
	}, "teacher-1")
	if err != nil {
		t.Fatalf("GradeAttempt() error = %v", err)
	}

	if result.Score != 80 || !result.Passed {
		t.Errorf("result = score %d passed %v, want 80 and passed", result.Score, result.Passed)
	}
	if result.TotalPoints != 8 || result.MaxPoints != 10 {
		t.Errorf("points = %d/%d, want 8/10", result.TotalPoints, result.MaxPoints)
	}

	if len(repo.answer.updated) != 1 {
		t.Fatalf("updated answers = %d, want 1", len(repo.answer.updated))
	}
	updated := repo.answer.updated[0]
	if updated.PointsAwarded != 8 || updated.GradedBy == nil || *updated.GradedBy != "teacher-1" {
		t.Errorf("persisted answer = %+v, want 8 points graded by teacher-1", updated)
	}

	attempt := repo.attempt.attempts[7]
	if attempt.Status != models.AttemptGraded || attempt.Score != 80 || !attempt.Passed {
		t.Errorf("attempt = %s score %d passed %v, want graded at 80", attempt.Status, attempt.Score, attempt.Passed)
	}

	progress, err := repo.progress.Get(ctx, nil, "student-1", 1)
	if err != nil {
		t.Fatalf("progress row missing: %v", err)
	}
	if progress.CompletedAttempts != 1 {
		t.Errorf("CompletedAttempts = %d, want grading to not count a new attempt", progress.CompletedAttempts)
	}
	if progress.BestScore != 80 || !progress.Passed {
		t.Errorf("progress = best %d passed %v, want 80 and passed", progress.BestScore, progress.Passed)
	}
	if progress.LastAttemptAt == nil {
		t.Error("LastAttemptAt should survive from the submit")
	}
}

func TestGradeAttempt_Guards(t *testing.T) {
	ctx := context.Background()

	grades := map[uint]*GradeAnswerRequest{1: {PointsAwarded: 8}}

	t.Run("in progress attempt is not gradable", func(t *testing.T) {
		repo := gradingRepo(models.AttemptInProgress)
		grading := newTestGradingService(repo)

		_, err := grading.GradeAttempt(ctx, 7, &GradeAttemptRequest{Grades: grades}, "teacher-1")
		if !errors.Is(err, ErrAttemptNotGradable) {
			t.Errorf("GradeAttempt() error = %v, want ErrAttemptNotGradable", err)
		}
	})

	t.Run("override for an unanswered question rejected", func(t *testing.T) {
		repo := gradingRepo(models.AttemptCompleted)
		repo.answer.byAttempt[7] = []*models.QuestionAnswer{
			{ID: 1, AttemptID: 7, QuestionID: 1, AnswerData: []byte(`{"text":"my essay"}`)},
		}
		grading := newTestGradingService(repo)

		_, err := grading.GradeAttempt(ctx, 7, &GradeAttemptRequest{
			Grades: map[uint]*GradeAnswerRequest{99: {PointsAwarded: 1}},
		}, "teacher-1")
		if !errors.Is(err, ErrGradingNotAllowed) {
			t.Errorf("GradeAttempt() error = %v, want ErrGradingNotAllowed", err)
		}
	})

	t.Run("students cannot grade", func(t *testing.T) {
		repo := gradingRepo(models.AttemptCompleted)
		grading := newTestGradingService(repo)

		_, err := grading.GradeAttempt(ctx, 7, &GradeAttemptRequest{Grades: grades}, "student-1")
		if !IsPermissionError(err) {
			t.Errorf("GradeAttempt() error = %v, want permission error", err)
		}
	})

	t.Run("unknown attempt", func(t *testing.T) {
		repo := gradingRepo(models.AttemptCompleted)
		grading := newTestGradingService(repo)

		_, err := grading.GradeAttempt(ctx, 42, &GradeAttemptRequest{Grades: grades}, "teacher-1")
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("GradeAttempt() error = %v, want ErrAttemptNotFound", err)
		}
	})
}

func TestGradeAttempt_AllQuestionsRemoved(t *testing.T) {
	ctx := context.Background()
	repo := gradingRepo(models.AttemptCompleted)

	// The quiz lost its questions after the attempt was scored.
	repo.quiz.quizzes[1].Questions = nil
	repo.attempt.attempts[7].Score = 75
	repo.attempt.attempts[7].Passed = false
	repo.answer.byAttempt[7] = []*models.QuestionAnswer{
		{ID: 1, AttemptID: 7, QuestionID: 1, AnswerData: []byte(`{"text":"my essay"}`)},
	}

	grading := newTestGradingService(repo)
	result, err := grading.GradeAttempt(ctx, 7, &GradeAttemptRequest{
		Grades: map[uint]*GradeAnswerRequest{1: {PointsAwarded: 3}},
	}, "teacher-1")
	if err != nil {
		t.Fatalf("GradeAttempt() error = %v", err)
	}

	if result.MaxPoints != 0 {
		t.Errorf("MaxPoints = %d, want 0 with every question removed", result.MaxPoints)
	}
	if result.Score != 75 {
		t.Errorf("Score = %d, want the previous score kept", result.Score)
	}
	if attempt := repo.attempt.attempts[7]; attempt.Score != 75 || attempt.Status != models.AttemptGraded {
		t.Errorf("attempt = %s score %d, want graded with score 75 kept", attempt.Status, attempt.Score)
	}
}
