package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateQuizCache invalidates all quiz-related caches
func InvalidateQuizCache(ctx context.Context, cm *CacheManager, quizID uint, creatorID string) {
	SafeDelete(ctx, cm.Quiz,
		fmt.Sprintf("id:%d", quizID),
		fmt.Sprintf("details:%d", quizID))

	SafeInvalidatePattern(ctx, cm.Quiz, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Quiz, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("quiz:%d:*", quizID))
}

// InvalidateAttemptCache invalidates caches derived from a quiz's attempts.
// Called whenever an attempt is finalized or re-graded.
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, quizID uint, userID string) {
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("quiz:%d:*", quizID))
	SafeDelete(ctx, cm.Progress, fmt.Sprintf("user:%s:quiz:%d", userID, quizID))
	SafeInvalidatePattern(ctx, cm.Progress, fmt.Sprintf("user:%s:list*", userID))
}
