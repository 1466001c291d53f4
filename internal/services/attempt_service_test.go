package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jeromwolf/LearnFlow/internal/models"
	"github.com/jeromwolf/LearnFlow/internal/repositories"
	"github.com/jeromwolf/LearnFlow/internal/validator"
	"gorm.io/gorm"
)

// ===== HAND-WRITTEN REPOSITORY STUBS =====
//
// In-memory fakes of the repository interfaces. Unimplemented methods panic
// through the embedded nil interface, which keeps the stubs honest about what
// a flow actually touches.

type stubRepository struct {
	quiz     *stubQuizRepo
	attempt  *stubAttemptRepo
	answer   *stubAnswerRepo
	progress *stubProgressRepo
	user     *stubUserRepo
}

func newStubRepository() *stubRepository {
	answer := &stubAnswerRepo{byAttempt: map[uint][]*models.QuestionAnswer{}}
	return &stubRepository{
		quiz:     &stubQuizRepo{quizzes: map[uint]*models.Quiz{}},
		attempt:  &stubAttemptRepo{attempts: map[uint]*models.QuizAttempt{}, answers: answer},
		answer:   answer,
		progress: &stubProgressRepo{rows: map[string]*models.UserQuizProgress{}},
		user:     &stubUserRepo{users: map[string]*models.User{}},
	}
}

func (r *stubRepository) Quiz() repositories.QuizRepository         { return r.quiz }
func (r *stubRepository) Question() repositories.QuestionRepository { return nil }
func (r *stubRepository) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *stubRepository) Answer() repositories.AnswerRepository     { return r.answer }
func (r *stubRepository) Progress() repositories.ProgressRepository { return r.progress }
func (r *stubRepository) User() repositories.UserRepository         { return r.user }
func (r *stubRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}
func (r *stubRepository) Ping(ctx context.Context) error { return nil }
func (r *stubRepository) Close() error                   { return nil }

type stubQuizRepo struct {
	repositories.QuizRepository
	quizzes map[uint]*models.Quiz
}

func (r *stubQuizRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return quiz, nil
}

func (r *stubQuizRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) {
	return r.GetByID(ctx, tx, id)
}

type stubAttemptRepo struct {
	repositories.AttemptRepository
	attempts map[uint]*models.QuizAttempt
	answers  *stubAnswerRepo
	nextID   uint
}

func (r *stubAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	for _, existing := range r.attempts {
		if existing.QuizID == attempt.QuizID && existing.UserID == attempt.UserID && existing.AttemptNumber == attempt.AttemptNumber {
			return repositories.ErrDuplicateAttemptNumber
		}
	}
	r.nextID++
	attempt.ID = r.nextID
	r.attempts[attempt.ID] = attempt
	return nil
}

func (r *stubAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return attempt, nil
}

func (r *stubAttemptRepo) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizAttempt, error) {
	attempt, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	attempt.Answers = nil
	for _, answer := range r.answers.byAttempt[id] {
		attempt.Answers = append(attempt.Answers, *answer)
	}
	return attempt, nil
}

func (r *stubAttemptRepo) CountByUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int64, error) {
	var count int64
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *stubAttemptRepo) Finalize(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus, score int, passed bool, timeSpent int, completedAt time.Time) (bool, error) {
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress {
		return false, nil
	}
	attempt.Status = status
	attempt.Score = score
	attempt.Passed = passed
	attempt.TimeSpent = timeSpent
	attempt.CompletedAt = &completedAt
	return true, nil
}

func (r *stubAttemptRepo) MarkGraded(ctx context.Context, tx *gorm.DB, id uint, score int, passed bool) (bool, error) {
	attempt, ok := r.attempts[id]
	if !ok {
		return false, nil
	}
	gradable := false
	for _, st := range models.GradableStatuses {
		if attempt.Status == st {
			gradable = true
		}
	}
	if !gradable {
		return false, nil
	}
	attempt.Status = models.AttemptGraded
	attempt.Score = score
	attempt.Passed = passed
	return true, nil
}

type stubAnswerRepo struct {
	repositories.AnswerRepository
	byAttempt map[uint][]*models.QuestionAnswer
	updated   []*models.QuestionAnswer
	nextID    uint
}

func (r *stubAnswerRepo) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.QuestionAnswer) error {
	for _, answer := range answers {
		r.nextID++
		answer.ID = r.nextID
		r.byAttempt[answer.AttemptID] = append(r.byAttempt[answer.AttemptID], answer)
	}
	return nil
}

func (r *stubAnswerRepo) Update(ctx context.Context, tx *gorm.DB, answer *models.QuestionAnswer) error {
	r.updated = append(r.updated, answer)
	return nil
}

func (r *stubAnswerRepo) DeleteByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	delete(r.byAttempt, attemptID)
	return nil
}

type stubProgressRepo struct {
	repositories.ProgressRepository
	rows map[string]*models.UserQuizProgress
}

func progressKey(userID string, quizID uint) string {
	return fmt.Sprintf("%s:%d", userID, quizID)
}

func (r *stubProgressRepo) Get(ctx context.Context, tx *gorm.DB, userID string, quizID uint) (*models.UserQuizProgress, error) {
	progress, ok := r.rows[progressKey(userID, quizID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return progress, nil
}

func (r *stubProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, progress *models.UserQuizProgress) error {
	r.rows[progressKey(progress.UserID, progress.QuizID)] = progress
	return nil
}

type stubUserRepo struct {
	repositories.UserRepository
	users map[string]*models.User
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newTestAttemptService(repo repositories.Repository) AttemptService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewAttemptService(repo, nil, logger, validator.New(), nil)
}

func TestNewAttemptService(t *testing.T) {
	type args struct {
		repo      repositories.Repository
		db        *gorm.DB
		logger    *slog.Logger
		validator *validator.Validator
	}
	tests := []struct {
		name string
		args args
		want AttemptService
	}{
		{name: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NewAttemptService(tt.args.repo, tt.args.db, tt.args.logger, tt.args.validator, nil)
		})
	}
}

func submissionQuiz() *models.Quiz {
	return &models.Quiz{
		ID:           1,
		PassingScore: 80,
		Questions: []models.Question{
			{
				ID:     1,
				QuizID: 1,
				Type:   models.MultipleChoice,
				Points: 4,
				Choices: []models.Choice{
					{ID: 10, QuestionID: 1, IsCorrect: true},
					{ID: 11, QuestionID: 1, IsCorrect: false},
				},
			},
			{
				ID:     2,
				QuizID: 1,
				Type:   models.TrueFalse,
				Points: 2,
				Choices: []models.Choice{
					{ID: 20, QuestionID: 2, Text: "True", IsCorrect: true},
					{ID: 21, QuestionID: 2, Text: "False", IsCorrect: false},
				},
			},
			{
				ID:     3,
				QuizID: 1,
				Type:   models.Essay,
				Points: 10,
			},
		},
	}
}

func TestGradeSubmission(t *testing.T) {
	s := &attemptService{}
	quiz := submissionQuiz()

	t.Run("all questions answered", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
			{QuestionID: 2, AnswerData: json.RawMessage(`{"answer":false}`)},
			{QuestionID: 3, AnswerData: json.RawMessage(`{"text":"an essay"}`)},
		}

		graded, err := s.gradeSubmission(quiz, 7, answers, true)
		if err != nil {
			t.Fatalf("gradeSubmission() error = %v", err)
		}
		if len(graded.answers) != 3 {
			t.Fatalf("gradeSubmission() answers = %d, want 3", len(graded.answers))
		}
		// Correct MC (4) + wrong TF (0) + ungraded essay (0).
		if graded.totalPoints != 4 {
			t.Errorf("gradeSubmission() totalPoints = %d, want 4", graded.totalPoints)
		}
		if graded.maxPoints != 16 {
			t.Errorf("gradeSubmission() maxPoints = %d, want 16", graded.maxPoints)
		}
		if graded.answers[2].IsCorrect != nil {
			t.Error("essay answer verdict should stay nil until manual grading")
		}
		for _, a := range graded.answers {
			if a.AttemptID != 7 {
				t.Errorf("answer attempt_id = %d, want 7", a.AttemptID)
			}
		}
	})

	t.Run("unanswered questions do not count toward the maximum", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
		}

		graded, err := s.gradeSubmission(quiz, 7, answers, true)
		if err != nil {
			t.Fatalf("gradeSubmission() error = %v", err)
		}
		if graded.totalPoints != 4 || graded.maxPoints != 4 {
			t.Errorf("gradeSubmission() = %d/%d, want 4/4", graded.totalPoints, graded.maxPoints)
		}
	})

	t.Run("empty submission", func(t *testing.T) {
		graded, err := s.gradeSubmission(quiz, 7, nil, true)
		if err != nil {
			t.Fatalf("gradeSubmission() error = %v", err)
		}
		if graded.totalPoints != 0 || graded.maxPoints != 0 {
			t.Errorf("gradeSubmission() = %d/%d, want 0/0", graded.totalPoints, graded.maxPoints)
		}
	})

	t.Run("unknown question rejected", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 99, AnswerData: json.RawMessage(`{"answer":true}`)},
		}

		_, err := s.gradeSubmission(quiz, 7, answers, true)
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("gradeSubmission() error = %v, want ErrQuestionNotFound", err)
		}
	})

	t.Run("duplicate answers rejected", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
			{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[11]}`)},
		}

		if _, err := s.gradeSubmission(quiz, 7, answers, true); err == nil {
			t.Error("gradeSubmission() error = nil, want duplicate answer error")
		}
	})

	t.Run("malformed payload rejected even without auto grading", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 2, AnswerData: json.RawMessage(`{"answer":"not a bool"}`)},
		}

		if _, err := s.gradeSubmission(quiz, 7, answers, false); err == nil {
			t.Error("gradeSubmission() error = nil, want decode error")
		}
	})

	t.Run("manual submission leaves answers ungraded", func(t *testing.T) {
		answers := []SubmitAnswerRequest{
			{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
			{QuestionID: 2, AnswerData: json.RawMessage(`{"answer":true}`)},
		}

		graded, err := s.gradeSubmission(quiz, 7, answers, false)
		if err != nil {
			t.Fatalf("gradeSubmission() error = %v", err)
		}
		if graded.totalPoints != 0 {
			t.Errorf("gradeSubmission() totalPoints = %d, want 0 without auto grading", graded.totalPoints)
		}
		for _, a := range graded.answers {
			if a.IsCorrect != nil {
				t.Error("answers should stay ungraded when auto grading is off")
			}
		}
	})
}

func TestBuildAttemptResponse(t *testing.T) {
	s := &attemptService{}

	tests := []struct {
		name           string
		status         models.AttemptStatus
		wantCanSubmit  bool
		wantPendingful bool
	}{
		{name: "in progress", status: models.AttemptInProgress, wantCanSubmit: true, wantPendingful: false},
		{name: "completed", status: models.AttemptCompleted, wantCanSubmit: false, wantPendingful: false},
		{name: "submitted awaits grading", status: models.AttemptSubmitted, wantCanSubmit: false, wantPendingful: true},
		{name: "graded", status: models.AttemptGraded, wantCanSubmit: false, wantPendingful: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.buildAttemptResponse(&models.QuizAttempt{ID: 1, Status: tt.status})
			if resp.CanSubmit != tt.wantCanSubmit {
				t.Errorf("CanSubmit = %v, want %v", resp.CanSubmit, tt.wantCanSubmit)
			}
			if resp.IsPendingGrade != tt.wantPendingful {
				t.Errorf("IsPendingGrade = %v, want %v", resp.IsPendingGrade, tt.wantPendingful)
			}
		})
	}
}

func TestStartAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("numbers attempts sequentially", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.quizzes[1] = &models.Quiz{ID: 1, IsPublished: true, MaxAttempts: 3}
		service := newTestAttemptService(repo)

		first, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		second, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1")
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		if first.AttemptNumber != 1 || second.AttemptNumber != 2 {
			t.Errorf("attempt numbers = %d, %d, want 1, 2", first.AttemptNumber, second.AttemptNumber)
		}
		if first.Status != models.AttemptInProgress || !first.CanSubmit {
			t.Errorf("new attempt status = %s canSubmit = %v, want in_progress and submittable", first.Status, first.CanSubmit)
		}
	})

	t.Run("attempt limit rejects the next start", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.quizzes[1] = &models.Quiz{ID: 1, IsPublished: true, MaxAttempts: 2}
		service := newTestAttemptService(repo)

		for i := 0; i < 2; i++ {
			if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1"); err != nil {
				t.Fatalf("Start() #%d error = %v", i+1, err)
			}
		}

		if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1"); !errors.Is(err, ErrAttemptLimitExceeded) {
			t.Errorf("Start() error = %v, want ErrAttemptLimitExceeded", err)
		}
	})

	t.Run("limit is per learner", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.quizzes[1] = &models.Quiz{ID: 1, IsPublished: true, MaxAttempts: 1}
		service := newTestAttemptService(repo)

		if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-2"); err != nil {
			t.Errorf("Start() for another learner error = %v", err)
		}
	})

	t.Run("unpublished quiz rejected", func(t *testing.T) {
		repo := newStubRepository()
		repo.quiz.quizzes[1] = &models.Quiz{ID: 1, IsPublished: false}
		service := newTestAttemptService(repo)

		if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 1}, "student-1"); !errors.Is(err, ErrQuizNotPublished) {
			t.Errorf("Start() error = %v, want ErrQuizNotPublished", err)
		}
	})

	t.Run("unknown quiz rejected", func(t *testing.T) {
		service := newTestAttemptService(newStubRepository())

		if _, err := service.Start(ctx, &StartAttemptRequest{QuizID: 99}, "student-1"); !errors.Is(err, ErrQuizNotFound) {
			t.Errorf("Start() error = %v, want ErrQuizNotFound", err)
		}
	})
}

func TestSubmitAttempt(t *testing.T) {
	ctx := context.Background()

	seed := func(status models.AttemptStatus) (*stubRepository, AttemptService) {
		repo := newStubRepository()
		repo.quiz.quizzes[1] = submissionQuiz()
		repo.quiz.quizzes[1].IsPublished = true
		repo.attempt.attempts[7] = &models.QuizAttempt{
			ID:            7,
			QuizID:        1,
			UserID:        "student-1",
			AttemptNumber: 1,
			Status:        status,
			StartedAt:     time.Now().Add(-time.Minute),
		}
		repo.attempt.nextID = 7
		return repo, newTestAttemptService(repo)
	}

	t.Run("auto graded submit finalizes and feeds progress", func(t *testing.T) {
		repo, service := seed(models.AttemptInProgress)

		resp, err := service.Submit(ctx, &SubmitAttemptRequest{
			AttemptID: 7,
			Answers: []SubmitAnswerRequest{
				{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
				{QuestionID: 2, AnswerData: json.RawMessage(`{"answer":true}`)},
			},
		}, "student-1")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if resp.Status != models.AttemptCompleted {
			t.Errorf("status = %s, want completed", resp.Status)
		}
		if resp.Score != 100 || !resp.Passed {
			t.Errorf("score = %d passed = %v, want 100 and passed", resp.Score, resp.Passed)
		}

		progress, err := repo.progress.Get(ctx, nil, "student-1", 1)
		if err != nil {
			t.Fatalf("progress row missing: %v", err)
		}
		if progress.CompletedAttempts != 1 || progress.BestScore != 100 || !progress.Passed {
			t.Errorf("progress = %+v, want 1 attempt, best 100, passed", progress)
		}
		if progress.LastAttemptAt == nil {
			t.Error("LastAttemptAt should be set after a submit")
		}
	})

	t.Run("submission awaiting manual grading still counts toward progress", func(t *testing.T) {
		repo, service := seed(models.AttemptInProgress)
		manual := false

		resp, err := service.Submit(ctx, &SubmitAttemptRequest{
			AttemptID: 7,
			Answers: []SubmitAnswerRequest{
				{QuestionID: 3, AnswerData: json.RawMessage(`{"text":"my essay"}`)},
			},
			AutoGrade: &manual,
		}, "student-1")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if resp.Status != models.AttemptSubmitted || !resp.IsPendingGrade {
			t.Errorf("status = %s pending = %v, want submitted and pending", resp.Status, resp.IsPendingGrade)
		}

		progress, err := repo.progress.Get(ctx, nil, "student-1", 1)
		if err != nil {
			t.Fatalf("progress row missing: %v", err)
		}
		if progress.CompletedAttempts != 1 {
			t.Errorf("CompletedAttempts = %d, want 1 for a submitted attempt", progress.CompletedAttempts)
		}
		if progress.LastAttemptAt == nil {
			t.Error("LastAttemptAt should be set for a submitted attempt")
		}
	})

	t.Run("finalized attempt cannot be submitted again", func(t *testing.T) {
		for _, status := range []models.AttemptStatus{models.AttemptCompleted, models.AttemptSubmitted, models.AttemptGraded} {
			_, service := seed(status)

			_, err := service.Submit(ctx, &SubmitAttemptRequest{
				AttemptID: 7,
				Answers: []SubmitAnswerRequest{
					{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
				},
			}, "student-1")
			if !errors.Is(err, ErrAttemptNotActive) {
				t.Errorf("Submit() on %s attempt error = %v, want ErrAttemptNotActive", status, err)
			}
		}
	})

	t.Run("resubmission replaces the previous answer set", func(t *testing.T) {
		repo, service := seed(models.AttemptInProgress)
		repo.answer.byAttempt[7] = []*models.QuestionAnswer{
			{ID: 1, AttemptID: 7, QuestionID: 1, AnswerData: []byte(`{"selected_choices":[11]}`)},
			{ID: 2, AttemptID: 7, QuestionID: 2, AnswerData: []byte(`{"answer":false}`)},
		}
		repo.answer.nextID = 2

		_, err := service.Submit(ctx, &SubmitAttemptRequest{
			AttemptID: 7,
			Answers: []SubmitAnswerRequest{
				{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
			},
		}, "student-1")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		stored := repo.answer.byAttempt[7]
		if len(stored) != 1 {
			t.Fatalf("stored answers = %d, want previous set replaced by 1", len(stored))
		}
		if stored[0].QuestionID != 1 || stored[0].ID <= 2 {
			t.Errorf("stored answer = %+v, want a fresh row for question 1", stored[0])
		}
	})

	t.Run("only the owner can submit", func(t *testing.T) {
		_, service := seed(models.AttemptInProgress)

		_, err := service.Submit(ctx, &SubmitAttemptRequest{
			AttemptID: 7,
			Answers: []SubmitAnswerRequest{
				{QuestionID: 1, AnswerData: json.RawMessage(`{"selected_choices":[10]}`)},
			},
		}, "student-2")
		if !IsPermissionError(err) {
			t.Errorf("Submit() by non-owner error = %v, want permission error", err)
		}
	})
}
