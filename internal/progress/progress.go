package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"sciquiz-service/internal/domain"
)

// Store is a durable key-value store for quiz progress. Writes are atomic
// per key: a concurrent Load never observes a partially written value.
// Concurrent writers to the same key are last-write-wins; that is accepted,
// not coordinated.
type Store interface {
	Save(ctx context.Context, key string, value []byte) error
	// Load returns the stored value, or ok=false when the key is absent.
	Load(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix and reports
	// how many were deleted.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key derivation. All progress for one context lives under ContextPrefix
// so a reset can clear snapshot and reward keys in one prefix sweep, even
// when pool-size suffixes differ between sessions of the same context.

func contextPart(c domain.QuizContext) string {
	return fmt.Sprintf("%s:%s:%d:%s", c.ClassID, c.Level, c.TopicID, c.Language)
}

// ContextPrefix is the namespace swept by a reset.
func ContextPrefix(c domain.QuizContext) string {
	return "quiz:progress:" + contextPart(c) + ":"
}

// SnapshotKey stores the serialized session, suffixed by pool size.
func SnapshotKey(c domain.QuizContext, poolSize int) string {
	return fmt.Sprintf("%s%d", ContextPrefix(c), poolSize)
}

// RewardKey tracks the correct-answer count feeding the reveal reward.
// It lives under the context prefix so resets remove it too.
func RewardKey(c domain.QuizContext) string {
	return ContextPrefix(c) + "reward"
}

// CacheKey stores the last successful question-bank fetch for a context.
// Deliberately outside the progress prefix: a reset must not destroy the
// fetch cache.
func CacheKey(c domain.QuizContext) string {
	return "quiz:cache:" + contextPart(c)
}

// LeaderboardKey stores the local fallback leaderboard for a context.
func LeaderboardKey(c domain.QuizContext) string {
	return LeaderboardPrefix + contextPart(c)
}

// LeaderboardPrefix is the naming convention scanned when building the
// merged leaderboard view.
const LeaderboardPrefix = "quiz:leaderboard:"

// EncodeSnapshot serializes a snapshot with the current format version.
func EncodeSnapshot(s domain.Snapshot) ([]byte, error) {
	s.Version = domain.SnapshotVersion
	return json.Marshal(s)
}

// DecodeSnapshot parses and validates a stored snapshot. Malformed JSON, a
// version mismatch, or a missing pool all yield ErrSnapshotInvalid so the
// caller falls through to a fresh load.
func DecodeSnapshot(data []byte) (domain.Snapshot, error) {
	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %v", domain.ErrSnapshotInvalid, err)
	}
	if s.Version != domain.SnapshotVersion {
		return domain.Snapshot{}, fmt.Errorf("%w: version %d", domain.ErrSnapshotInvalid, s.Version)
	}
	if len(s.Pool) == 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: empty pool", domain.ErrSnapshotInvalid)
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Pool) {
		return domain.Snapshot{}, fmt.Errorf("%w: index %d out of range", domain.ErrSnapshotInvalid, s.CurrentIndex)
	}
	if s.Answers == nil {
		s.Answers = map[int]int{}
	}
	return s, nil
}
