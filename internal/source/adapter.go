package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/sync/singleflight"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/progress"
	"sciquiz-service/internal/question"
)

// Adapter assembles a question pool for a quiz context by walking an
// ordered fallback chain: question bank, last successful cache, AI
// generation, built-in questions. Every step's failure is soft; the chain
// runs strictly sequentially and concurrent loads of the same context are
// collapsed into one.
type Adapter struct {
	bank  *BankClient
	gen   Generator
	cache progress.Store
	sf    singleflight.Group
	seed  func() int64
}

// New builds an adapter. bank and gen may be nil, disabling their steps;
// cache must not be nil (it also backs the DB Cache step).
func New(bank *BankClient, gen Generator, cache progress.Store) *Adapter {
	return &Adapter{
		bank:  bank,
		gen:   gen,
		cache: cache,
		seed:  func() int64 { return time.Now().UnixNano() },
	}
}

type loaded struct {
	pool   []domain.Question
	source domain.SourceLabel
}

// Load returns exactly count questions for the context, labeled with the
// step that produced them. The only caller-visible failure is
// domain.ErrNoQuestions once every step is exhausted.
func (a *Adapter) Load(ctx context.Context, qctx domain.QuizContext, count int) ([]domain.Question, domain.SourceLabel, error) {
	key := fmt.Sprintf("%s#%d", qctx, count)
	v, err, _ := a.sf.Do(key, func() (any, error) {
		return a.load(ctx, qctx, count)
	})
	if err != nil {
		return nil, "", err
	}
	result := v.(loaded)
	return result.pool, result.source, nil
}

func (a *Adapter) load(ctx context.Context, qctx domain.QuizContext, count int) (loaded, error) {
	rnd := rand.New(rand.NewSource(a.seed()))
	fallback := question.Builtin(qctx.Language, rnd)

	if a.bank != nil {
		records, err := a.bank.Fetch(ctx, qctx)
		if err == nil {
			// shuffle record order so a bank with more than count
			// questions yields a different pool each quiz
			normalized := question.ShufflePool(normalizeAll(records, qctx.Language, rnd), rnd)
			pool := question.EnsureCount(normalized, fallback, count)
			a.writeCache(ctx, qctx, pool)
			return loaded{pool: pool, source: domain.SourceDatabase}, nil
		}
		log.Printf("question bank fetch failed for %s: %v", qctx, err)

		if pool := a.readCache(ctx, qctx); len(pool) > 0 {
			return loaded{pool: question.EnsureCount(pool, fallback, count), source: domain.SourceDBCache}, nil
		}
	}

	if a.gen != nil {
		records, err := a.gen.Generate(ctx, qctx, count)
		if err == nil {
			pool := question.EnsureCount(normalizeAll(records, qctx.Language, rnd), fallback, count)
			return loaded{pool: pool, source: domain.SourceAI}, nil
		}
		log.Printf("AI generation failed for %s: %v", qctx, err)
	}

	pool := question.EnsureCount(nil, fallback, count)
	if len(pool) == 0 {
		return loaded{}, domain.ErrNoQuestions
	}
	return loaded{pool: pool, source: domain.SourceFallback}, nil
}

func normalizeAll(records []map[string]any, lang string, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, 0, len(records))
	for _, raw := range records {
		q := question.Normalize(raw, lang)
		if q.Text == "" || len(q.Options) == 0 {
			continue
		}
		out = append(out, question.ShuffleOptions(q, rnd))
	}
	return out
}

// writeCache stores the normalized pool so a later bank outage can resume
// from the last good fetch. Best effort: a cache failure never fails the load.
func (a *Adapter) writeCache(ctx context.Context, qctx domain.QuizContext, pool []domain.Question) {
	data, err := json.Marshal(pool)
	if err != nil {
		return
	}
	if err := a.cache.Save(ctx, progress.CacheKey(qctx), data); err != nil {
		log.Printf("question cache write failed for %s: %v", qctx, err)
	}
}

func (a *Adapter) readCache(ctx context.Context, qctx domain.QuizContext) []domain.Question {
	data, ok, err := a.cache.Load(ctx, progress.CacheKey(qctx))
	if err != nil || !ok {
		return nil
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil
	}
	return pool
}
