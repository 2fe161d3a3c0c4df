package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/leaderboard"
	"sciquiz-service/internal/progress"
)

// SessionRepository abstracts how quiz sessions are stored.
type SessionRepository interface {
	GetOrCreate(qctx domain.QuizContext) *Session
	Get(qctx domain.QuizContext) (*Session, bool)
	Delete(qctx domain.QuizContext)
}

// QuestionSource assembles a question pool for a quiz context.
type QuestionSource interface {
	Load(ctx context.Context, qctx domain.QuizContext, count int) ([]domain.Question, domain.SourceLabel, error)
}

// ScoreBoard records finished attempts.
type ScoreBoard interface {
	Submit(ctx context.Context, qctx domain.QuizContext, entry domain.LeaderboardEntry) (leaderboard.Outcome, error)
}

// Config tunes quiz sessions.
type Config struct {
	// PoolSize is the number of questions per quiz.
	PoolSize int
	// Duration is the countdown for a whole quiz. Zero disables the timer.
	Duration time.Duration
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	return c
}

// SessionService contains the quiz use cases: entering a context (resuming
// saved progress when present), answering, navigating, restarting, and
// wiping a context clean. Every mutation is persisted to the progress
// store before it returns.
type SessionService struct {
	sessions SessionRepository
	source   QuestionSource
	store    progress.Store
	board    ScoreBoard
	cfg      Config

	tmu    sync.Mutex
	timers map[domain.QuizContext]context.CancelFunc
}

func NewSessionService(sessions SessionRepository, source QuestionSource, store progress.Store, board ScoreBoard, cfg Config) *SessionService {
	return &SessionService{
		sessions: sessions,
		source:   source,
		store:    store,
		board:    board,
		cfg:      cfg.withDefaults(),
		timers:   make(map[domain.QuizContext]context.CancelFunc),
	}
}

// Enter opens (or resumes) the session for a quiz context. A valid saved
// snapshot always wins over fetching fresh questions; an invalid snapshot
// is discarded and the source chain runs instead.
func (s *SessionService) Enter(ctx context.Context, qctx domain.QuizContext, playerName string) (View, error) {
	session := s.sessions.GetOrCreate(qctx)
	session.setPlayer(playerName)

	view := session.view()
	if view.Status != StatusNotStarted {
		return view, nil
	}

	if snap, ok := s.loadSnapshot(ctx, qctx); ok {
		if err := session.restore(snap); err == nil {
			view = session.view()
			if view.Status == StatusInProgress {
				s.startTimer(qctx, session)
			}
			return view, nil
		}
	}

	pool, label, err := s.source.Load(ctx, qctx, s.cfg.PoolSize)
	if err != nil {
		return View{}, err
	}
	timeLeft := int(s.cfg.Duration.Seconds())
	if err := session.start(pool, label, timeLeft); err != nil {
		if errors.Is(err, domain.ErrAlreadyStarted) {
			// Lost the race to a concurrent Enter; their state stands.
			return session.view(), nil
		}
		return View{}, err
	}
	s.persist(ctx, qctx, session)
	s.startTimer(qctx, session)
	return session.view(), nil
}

// Answer records the pick for the current question.
func (s *SessionService) Answer(ctx context.Context, qctx domain.QuizContext, option int) (View, error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	recorded, _, err := session.answer(option)
	if err != nil {
		return View{}, err
	}
	if recorded {
		s.persist(ctx, qctx, session)
	}
	return session.view(), nil
}

// Advance moves to the next question; past the last one the quiz completes
// and the attempt is recorded exactly once.
func (s *SessionService) Advance(ctx context.Context, qctx domain.QuizContext) (View, error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	completed, err := session.advance()
	if err != nil {
		return View{}, err
	}
	if completed {
		s.finish(ctx, qctx, session)
	}
	s.persist(ctx, qctx, session)
	return session.view(), nil
}

// Retreat moves back one question.
func (s *SessionService) Retreat(ctx context.Context, qctx domain.QuizContext) (View, error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	if err := session.retreat(); err != nil {
		return View{}, err
	}
	s.persist(ctx, qctx, session)
	return session.view(), nil
}

// Restart throws away all progress for the context and begins a fresh quiz
// with newly loaded questions.
func (s *SessionService) Restart(ctx context.Context, qctx domain.QuizContext) (View, error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		session = s.sessions.GetOrCreate(qctx)
	}
	pool, label, err := s.source.Load(ctx, qctx, s.cfg.PoolSize)
	if err != nil {
		return View{}, err
	}
	if err := session.restartWith(pool, label, int(s.cfg.Duration.Seconds())); err != nil {
		return View{}, err
	}
	s.persist(ctx, qctx, session)
	s.startTimer(qctx, session)
	return session.view(), nil
}

// Reset drops the in-memory session and deletes every persisted key under
// the context prefix: snapshots, rewards, everything scoped to the context.
func (s *SessionService) Reset(ctx context.Context, qctx domain.QuizContext) error {
	s.stopTimer(qctx)
	s.sessions.Delete(qctx)
	_, err := s.store.DeleteByPrefix(ctx, progress.ContextPrefix(qctx))
	return err
}

// State returns the current view without mutating anything.
func (s *SessionService) State(qctx domain.QuizContext) (View, error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		return View{}, domain.ErrSessionNotFound
	}
	return session.view(), nil
}

// Subscribe returns a channel that receives session events for a context.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, qctx domain.QuizContext) (<-chan Event, func(), error) {
	session, ok := s.sessions.Get(qctx)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Shutdown stops every running countdown.
func (s *SessionService) Shutdown() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	for qctx, cancel := range s.timers {
		cancel()
		delete(s.timers, qctx)
	}
}

func (s *SessionService) loadSnapshot(ctx context.Context, qctx domain.QuizContext) (domain.Snapshot, bool) {
	key := progress.SnapshotKey(qctx, s.cfg.PoolSize)
	data, ok, err := s.store.Load(ctx, key)
	if err != nil || !ok {
		return domain.Snapshot{}, false
	}
	snap, err := progress.DecodeSnapshot(data)
	if err != nil {
		log.Printf("discarding saved progress for %s: %v", qctx, err)
		_ = s.store.Delete(ctx, key)
		return domain.Snapshot{}, false
	}
	return snap, true
}

// persist writes the session snapshot and the reward tally. Failures are
// logged, not surfaced: losing a save must never break a running quiz.
func (s *SessionService) persist(ctx context.Context, qctx domain.QuizContext, session *Session) {
	snap := session.snapshot()
	data, err := progress.EncodeSnapshot(snap)
	if err != nil {
		log.Printf("encode progress for %s: %v", qctx, err)
		return
	}
	if err := s.store.Save(ctx, progress.SnapshotKey(qctx, len(snap.Pool)), data); err != nil {
		log.Printf("save progress for %s: %v", qctx, err)
	}
	reward := strconv.Itoa(snap.CorrectCount)
	if err := s.store.Save(ctx, progress.RewardKey(qctx), []byte(reward)); err != nil {
		log.Printf("save reward for %s: %v", qctx, err)
	}
}

// finish records the attempt on the leaderboard. The session-level guard
// keeps timer expiry and a simultaneous Advance from double-submitting.
func (s *SessionService) finish(ctx context.Context, qctx domain.QuizContext, session *Session) {
	s.stopTimer(qctx)
	if s.board == nil || !session.markSubmitted() {
		return
	}
	view := session.view()
	entry := domain.LeaderboardEntry{
		Name:    session.player(),
		Score:   view.FinalScore,
		Total:   len(view.Questions),
		ClassID: qctx.ClassID,
		Level:   qctx.Level,
		Topic:   qctx.TopicName(),
		Meta: map[string]any{
			"source":   string(view.Source),
			"timeLeft": view.TimeLeft,
		},
	}
	if _, err := s.board.Submit(ctx, qctx, entry); err != nil {
		log.Printf("leaderboard submit for %s: %v", qctx, err)
	}
}

func (s *SessionService) startTimer(qctx domain.QuizContext, session *Session) {
	if s.cfg.Duration <= 0 {
		return
	}
	s.tmu.Lock()
	if cancel, ok := s.timers[qctx]; ok {
		cancel()
	}
	tctx, cancel := context.WithCancel(context.Background())
	s.timers[qctx] = cancel
	s.tmu.Unlock()

	go s.runTimer(tctx, qctx, session)
}

func (s *SessionService) stopTimer(qctx domain.QuizContext) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	if cancel, ok := s.timers[qctx]; ok {
		cancel()
		delete(s.timers, qctx)
	}
}

func (s *SessionService) runTimer(ctx context.Context, qctx domain.QuizContext, session *Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, expired := session.tick()
			if expired {
				s.finish(context.Background(), qctx, session)
			}
			s.persist(context.Background(), qctx, session)
			if expired {
				return
			}
		}
	}
}
