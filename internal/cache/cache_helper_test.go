package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedQuiz struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func newTestHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, prefix), mr
}

func TestCacheHelperGetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		stored := cachedQuiz{ID: 42, Title: "Go Basics"}
		if err := helper.Set(ctx, "id:42", stored, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		var got cachedQuiz
		if err := helper.Get(ctx, "id:42", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != stored {
			t.Errorf("Get() = %+v, want %+v", got, stored)
		}
	})

	t.Run("missing key returns ErrCacheNotFound", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		var got cachedQuiz
		if err := helper.Get(ctx, "id:404", &got); err != ErrCacheNotFound {
			t.Errorf("Get() error = %v, want ErrCacheNotFound", err)
		}
	})

	t.Run("keys carry prefix", func(t *testing.T) {
		helper, mr := newTestHelper(t, "quiz:")

		if err := helper.Set(ctx, "id:7", cachedQuiz{ID: 7}, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if !mr.Exists("quiz:id:7") {
			t.Error("expected key quiz:id:7 in redis")
		}
	})

	t.Run("entries expire after TTL", func(t *testing.T) {
		helper, mr := newTestHelper(t, "quiz:")

		if err := helper.Set(ctx, "id:9", cachedQuiz{ID: 9}, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		mr.FastForward(2 * time.Minute)

		var got cachedQuiz
		if err := helper.Get(ctx, "id:9", &got); err != ErrCacheNotFound {
			t.Errorf("Get() after TTL error = %v, want ErrCacheNotFound", err)
		}
	})

	t.Run("nil client degrades gracefully", func(t *testing.T) {
		helper := NewCacheHelper(nil, "")

		if err := helper.Set(ctx, "id:1", cachedQuiz{ID: 1}, time.Minute); err != nil {
			t.Errorf("Set() with nil client error = %v, want nil", err)
		}

		var got cachedQuiz
		if err := helper.Get(ctx, "id:1", &got); err != ErrCacheNotAvailable {
			t.Errorf("Get() with nil client error = %v, want ErrCacheNotAvailable", err)
		}
	})
}

func TestCacheHelperDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("single key", func(t *testing.T) {
		helper, mr := newTestHelper(t, "quiz:")

		if err := helper.Set(ctx, "id:1", cachedQuiz{ID: 1}, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := helper.Delete(ctx, "id:1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if mr.Exists("quiz:id:1") {
			t.Error("expected quiz:id:1 to be removed")
		}
	})

	t.Run("multiple keys via pipeline", func(t *testing.T) {
		helper, mr := newTestHelper(t, "quiz:")

		for i := 1; i <= 3; i++ {
			key := fmt.Sprintf("id:%d", i)
			if err := helper.Set(ctx, key, cachedQuiz{ID: uint(i)}, time.Minute); err != nil {
				t.Fatalf("Set(%s) error = %v", key, err)
			}
		}
		if err := helper.Delete(ctx, "id:1", "id:2", "id:3"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		for i := 1; i <= 3; i++ {
			if mr.Exists(fmt.Sprintf("quiz:id:%d", i)) {
				t.Errorf("expected quiz:id:%d to be removed", i)
			}
		}
	})

	t.Run("no keys is a no-op", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		if err := helper.Delete(ctx); err != nil {
			t.Errorf("Delete() with no keys error = %v", err)
		}
	})
}

func TestCacheHelperExists(t *testing.T) {
	ctx := context.Background()
	helper, _ := newTestHelper(t, "exists:")

	if err := helper.Set(ctx, "quiz:5", true, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	found, err := helper.Exists(ctx, "quiz:5")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !found {
		t.Error("Exists() = false, want true")
	}

	found, err = helper.Exists(ctx, "quiz:6")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if found {
		t.Error("Exists() = true for missing key, want false")
	}
}

func TestCacheHelperInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	helper, mr := newTestHelper(t, "stats:")

	for i := 1; i <= 5; i++ {
		key := fmt.Sprintf("quiz:3:page:%d", i)
		if err := helper.Set(ctx, key, cachedQuiz{ID: uint(i)}, time.Minute); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}
	if err := helper.Set(ctx, "quiz:4:page:1", cachedQuiz{ID: 99}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := helper.InvalidatePattern(ctx, "quiz:3:*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	for i := 1; i <= 5; i++ {
		if mr.Exists(fmt.Sprintf("stats:quiz:3:page:%d", i)) {
			t.Errorf("expected stats:quiz:3:page:%d to be invalidated", i)
		}
	}
	if !mr.Exists("stats:quiz:4:page:1") {
		t.Error("expected stats:quiz:4:page:1 to survive unrelated invalidation")
	}
}

func TestCacheOrExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips fetch", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		cached := cachedQuiz{ID: 10, Title: "cached"}
		if err := helper.Set(ctx, "id:10", cached, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		fetched := false
		var got cachedQuiz
		err := helper.CacheOrExecute(ctx, "id:10", &got, time.Minute, func() (interface{}, error) {
			fetched = true
			return cachedQuiz{ID: 10, Title: "fresh"}, nil
		})
		if err != nil {
			t.Fatalf("CacheOrExecute() error = %v", err)
		}
		if fetched {
			t.Error("fetch function ran despite cache hit")
		}
		if got != cached {
			t.Errorf("CacheOrExecute() = %+v, want %+v", got, cached)
		}
	})

	t.Run("cache miss falls back to fetch", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		fresh := cachedQuiz{ID: 11, Title: "fresh"}
		var got cachedQuiz
		err := helper.CacheOrExecute(ctx, "id:11", &got, time.Minute, func() (interface{}, error) {
			return fresh, nil
		})
		if err != nil {
			t.Fatalf("CacheOrExecute() error = %v", err)
		}
		if got != fresh {
			t.Errorf("CacheOrExecute() = %+v, want %+v", got, fresh)
		}
	})

	t.Run("fetch error propagates", func(t *testing.T) {
		helper, _ := newTestHelper(t, "quiz:")

		boom := errors.New("db down")
		var got cachedQuiz
		err := helper.CacheOrExecute(ctx, "id:12", &got, time.Minute, func() (interface{}, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("CacheOrExecute() error = %v, want wrapped %v", err, boom)
		}
	})
}

func TestCacheManager(t *testing.T) {
	ctx := context.Background()

	t.Run("health check with live redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		cm := NewCacheManager(client)
		if err := cm.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("health check without redis", func(t *testing.T) {
		cm := NewCacheManager(nil)
		if err := cm.HealthCheck(ctx); err != ErrCacheNotAvailable {
			t.Errorf("HealthCheck() error = %v, want ErrCacheNotAvailable", err)
		}
	})

	t.Run("helpers use distinct prefixes", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		cm := NewCacheManager(client)
		if err := cm.Quiz.Set(ctx, "id:1", cachedQuiz{ID: 1}, time.Minute); err != nil {
			t.Fatalf("Quiz.Set() error = %v", err)
		}
		if err := cm.Progress.Set(ctx, "user:u1:quiz:1", cachedQuiz{ID: 1}, time.Minute); err != nil {
			t.Fatalf("Progress.Set() error = %v", err)
		}

		if !mr.Exists("quiz:id:1") {
			t.Error("expected quiz-prefixed key")
		}
		if !mr.Exists("progress:user:u1:quiz:1") {
			t.Error("expected progress-prefixed key")
		}
	})
}

func TestInvalidateQuizCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cm := NewCacheManager(client)
	seed := map[*CacheHelper][]string{
		cm.Quiz:  {"id:3", "details:3", "creator:u1:page:1", "list:page:1"},
		cm.Stats: {"quiz:3:summary"},
	}
	for helper, keys := range seed {
		for _, key := range keys {
			if err := helper.Set(ctx, key, cachedQuiz{ID: 3}, time.Minute); err != nil {
				t.Fatalf("Set(%s) error = %v", key, err)
			}
		}
	}

	InvalidateQuizCache(ctx, cm, 3, "u1")

	for _, key := range []string{
		"quiz:id:3", "quiz:details:3", "quiz:creator:u1:page:1",
		"quiz:list:page:1", "stats:quiz:3:summary",
	} {
		if mr.Exists(key) {
			t.Errorf("expected %s to be invalidated", key)
		}
	}
}

func TestInvalidateAttemptCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cm := NewCacheManager(client)
	if err := cm.Stats.Set(ctx, "quiz:5:summary", cachedQuiz{ID: 5}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cm.Progress.Set(ctx, "user:u2:quiz:5", cachedQuiz{ID: 5}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cm.Progress.Set(ctx, "user:u3:quiz:5", cachedQuiz{ID: 5}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	InvalidateAttemptCache(ctx, cm, 5, "u2")

	if mr.Exists("stats:quiz:5:summary") {
		t.Error("expected quiz stats cache to be invalidated")
	}
	if mr.Exists("progress:user:u2:quiz:5") {
		t.Error("expected u2 progress cache to be invalidated")
	}
	if !mr.Exists("progress:user:u3:quiz:5") {
		t.Error("expected other users' progress caches to survive")
	}
}
