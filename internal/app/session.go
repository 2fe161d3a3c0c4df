package app

import (
	"sync"
	"time"

	"sciquiz-service/internal/domain"
)

// Status is the lifecycle phase of a quiz session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// EventType distinguishes the pushes a session emits to subscribers.
type EventType string

const (
	// EventState carries the full session view after any mutation.
	EventState EventType = "state"
	// EventCelebration fires once per milestone score. Consumers decide
	// how long to display it; the session never re-announces a milestone.
	EventCelebration EventType = "celebration"
	// EventCompleted fires exactly once when the quiz finishes, whether
	// by answering the last question or by the countdown expiring.
	EventCompleted EventType = "completed"
)

// Event is a push delivered to session subscribers.
type Event struct {
	Type      EventType `json:"type"`
	State     *View     `json:"state,omitempty"`
	Milestone int       `json:"milestone,omitempty"`
	Score     int       `json:"score,omitempty"`
	Total     int       `json:"total,omitempty"`
}

// View is the read model handed to transports and subscribers.
type View struct {
	Context      domain.QuizContext `json:"context"`
	Status       Status             `json:"status"`
	Questions    []domain.Question  `json:"questions"`
	CurrentIndex int                `json:"currentQ"`
	Answers      map[int]int        `json:"answers"`
	CorrectCount int                `json:"correctCount"`
	FinalScore   int                `json:"finalScore"`
	TimeLeft     int                `json:"timeLeft"`
	Source       domain.SourceLabel `json:"source"`
}

var defaultMilestones = []int{3, 5, 10}

// Session is the in-memory state machine for one quiz context: a fixed
// question pool, per-question answers recorded at most once, a cursor the
// player moves forward and back, and a countdown. All state transitions
// happen under the session lock and are pushed to subscribers.
type Session struct {
	qctx       domain.QuizContext
	now        func() time.Time
	milestones []int

	mu          sync.RWMutex
	playerName  string
	status      Status
	pool        []domain.Question
	current     int
	answers     map[int]int
	correct     int
	finalScore  int
	timeLeft    int
	source      domain.SourceLabel
	announced   map[int]bool
	submitted   bool
	subscribers map[chan Event]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(qctx domain.QuizContext) *Session {
	return newSessionWithClock(qctx, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(qctx domain.QuizContext, now func() time.Time) *Session {
	return newSessionWithClock(qctx, now)
}

func newSessionWithClock(qctx domain.QuizContext, now func() time.Time) *Session {
	return &Session{
		qctx:        qctx,
		now:         now,
		milestones:  defaultMilestones,
		status:      StatusNotStarted,
		answers:     make(map[int]int),
		announced:   make(map[int]bool),
		subscribers: make(map[chan Event]struct{}),
	}
}

func (s *Session) setPlayer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.playerName = name
	}
}

func (s *Session) player() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerName
}

// start moves a fresh session into progress with the given pool.
func (s *Session) start(pool []domain.Question, source domain.SourceLabel, timeLeft int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusNotStarted {
		return domain.ErrAlreadyStarted
	}
	if len(pool) == 0 {
		return domain.ErrNoQuestions
	}
	s.beginLocked(pool, source, timeLeft)
	s.broadcastLocked(Event{Type: EventState})
	return nil
}

// restore seeds the session from a saved snapshot. Only legal before start.
func (s *Session) restore(snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusNotStarted {
		return domain.ErrAlreadyStarted
	}
	s.pool = snap.Pool
	s.current = snap.CurrentIndex
	s.answers = snap.Answers
	if s.answers == nil {
		s.answers = make(map[int]int)
	}
	s.correct = snap.CorrectCount
	s.finalScore = snap.FinalScore
	s.timeLeft = snap.TimeLeft
	s.source = domain.SourceSaved
	s.announced = make(map[int]bool)
	for _, m := range snap.Announced {
		s.announced[m] = true
	}
	if snap.Completed {
		s.status = StatusCompleted
		s.submitted = true
	} else {
		s.status = StatusInProgress
	}
	s.broadcastLocked(Event{Type: EventState})
	return nil
}

// restartWith throws away all progress and begins again with a new pool.
func (s *Session) restartWith(pool []domain.Question, source domain.SourceLabel, timeLeft int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(pool) == 0 {
		return domain.ErrNoQuestions
	}
	s.beginLocked(pool, source, timeLeft)
	s.broadcastLocked(Event{Type: EventState})
	return nil
}

func (s *Session) beginLocked(pool []domain.Question, source domain.SourceLabel, timeLeft int) {
	s.pool = pool
	s.current = 0
	s.answers = make(map[int]int)
	s.correct = 0
	s.finalScore = 0
	s.timeLeft = timeLeft
	s.source = source
	s.announced = make(map[int]bool)
	s.submitted = false
	s.status = StatusInProgress
}

// answer records the player's pick for the current question. Option indexes
// outside the question's options are rejected so snapshots only ever hold
// real picks. A question already answered keeps its first answer; re-submits
// report recorded=false and never move the score. milestone is non-zero when this answer pushed
// the correct count onto an unannounced milestone.
func (s *Session) answer(option int) (recorded bool, milestone int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return false, 0, domain.ErrNotStarted
	}
	q := s.pool[s.current]
	if option < 0 || option >= len(q.Options) {
		return false, 0, domain.ErrInvalidOption
	}
	if _, dup := s.answers[s.current]; dup {
		return false, 0, nil
	}
	s.answers[s.current] = option
	if q.HasAnswer() && option == q.CorrectIndex {
		s.correct++
		for _, m := range s.milestones {
			if s.correct == m && !s.announced[m] {
				s.announced[m] = true
				milestone = m
				break
			}
		}
	}
	s.broadcastLocked(Event{Type: EventState})
	if milestone > 0 {
		s.broadcastLocked(Event{Type: EventCelebration, Milestone: milestone})
	}
	return true, milestone, nil
}

// advance moves to the next question. Advancing past the last question
// completes the quiz: the final score is the number of correct answers, so
// every unanswered question counts as wrong.
func (s *Session) advance() (completedNow bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return false, domain.ErrNotStarted
	}
	if s.current >= len(s.pool)-1 {
		s.completeLocked()
		return true, nil
	}
	s.current++
	s.broadcastLocked(Event{Type: EventState})
	return false, nil
}

// retreat moves back one question, clamped at the first.
func (s *Session) retreat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return domain.ErrNotStarted
	}
	if s.current > 0 {
		s.current--
	}
	s.broadcastLocked(Event{Type: EventState})
	return nil
}

// tick decrements the countdown by one second and completes the quiz when
// it hits zero.
func (s *Session) tick() (timeLeft int, completedNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return s.timeLeft, false
	}
	s.timeLeft--
	if s.timeLeft <= 0 {
		s.timeLeft = 0
		s.completeLocked()
		return 0, true
	}
	return s.timeLeft, false
}

func (s *Session) completeLocked() {
	s.status = StatusCompleted
	s.finalScore = s.correct
	s.broadcastLocked(Event{Type: EventState})
	s.broadcastLocked(Event{Type: EventCompleted, Score: s.finalScore, Total: len(s.pool)})
}

// markSubmitted flips the leaderboard guard; only the first caller gets true.
func (s *Session) markSubmitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return false
	}
	s.submitted = true
	return true
}

func (s *Session) snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	announced := make([]int, 0, len(s.announced))
	for m := range s.announced {
		announced = append(announced, m)
	}
	return domain.Snapshot{
		Version:      domain.SnapshotVersion,
		Pool:         s.pool,
		CurrentIndex: s.current,
		Answers:      answers,
		CorrectCount: s.correct,
		Completed:    s.status == StatusCompleted,
		FinalScore:   s.finalScore,
		TimeLeft:     s.timeLeft,
		Source:       s.source,
		Announced:    announced,
		SavedAt:      s.now(),
	}
}

func (s *Session) view() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	answers := make(map[int]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return View{
		Context:      s.qctx,
		Status:       s.status,
		Questions:    s.pool,
		CurrentIndex: s.current,
		Answers:      answers,
		CorrectCount: s.correct,
		FinalScore:   s.finalScore,
		TimeLeft:     s.timeLeft,
		Source:       s.source,
	}
}

func (s *Session) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.viewLocked()
	s.mu.Unlock()

	ch <- Event{Type: EventState, State: &initial}

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev Event) {
	if ev.Type == EventState && ev.State == nil {
		v := s.viewLocked()
		ev.State = &v
	}
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
