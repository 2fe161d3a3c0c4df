package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/progress"
)

func newTestStore(t *testing.T) (*ProgressStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewProgressStore(client, time.Hour), mr
}

func TestProgressStoreSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	if err := store.Save(ctx, "quiz:progress:k", []byte("snapshot")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:progress:k") {
		t.Fatalf("expected key in redis")
	}

	value, ok, err := store.Load(ctx, "quiz:progress:k")
	if err != nil || !ok || string(value) != "snapshot" {
		t.Fatalf("load: value=%q ok=%v err=%v", value, ok, err)
	}

	if _, ok, err := store.Load(ctx, "quiz:progress:absent"); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}

	if err := store.Delete(ctx, "quiz:progress:k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:progress:k") {
		t.Fatalf("expected key removed")
	}
}

func TestProgressStoreDeleteByPrefixSweepsContext(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	qctx := domain.QuizContext{ClassID: "class6", Level: "Easy", TopicID: 0, Language: "en"}

	_ = store.Save(ctx, progress.SnapshotKey(qctx, 10), []byte("a"))
	_ = store.Save(ctx, progress.SnapshotKey(qctx, 15), []byte("b"))
	_ = store.Save(ctx, progress.RewardKey(qctx), []byte("3"))
	_ = store.Save(ctx, progress.CacheKey(qctx), []byte("cached"))
	_ = store.Save(ctx, progress.LeaderboardKey(qctx), []byte("[]"))

	deleted, err := store.DeleteByPrefix(ctx, progress.ContextPrefix(qctx))
	if err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 keys swept, got %d", deleted)
	}
	if !mr.Exists(progress.CacheKey(qctx)) || !mr.Exists(progress.LeaderboardKey(qctx)) {
		t.Fatalf("cache and leaderboard keys must survive a reset")
	}
}

func TestProgressStoreKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	a := domain.QuizContext{ClassID: "class6", Level: "Easy", TopicID: 0, Language: "en"}
	b := domain.QuizContext{ClassID: "class7", Level: "Hard", TopicID: 2, Language: "ta"}
	_ = store.Save(ctx, progress.LeaderboardKey(a), []byte("[]"))
	_ = store.Save(ctx, progress.LeaderboardKey(b), []byte("[]"))
	_ = store.Save(ctx, progress.SnapshotKey(a, 10), []byte("x"))

	keys, err := store.Keys(ctx, progress.LeaderboardPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 leaderboard keys, got %v", keys)
	}
}
