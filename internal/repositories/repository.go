package repositories

import "context"

// Repository aggregates all entity repositories behind one access point.
type Repository interface {
	// Quiz catalog
	Quiz() QuizRepository
	Question() QuestionRepository

	// Attempt lifecycle
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// Learner progress
	Progress() ProgressRepository

	// User domain (read-only, owned by the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
