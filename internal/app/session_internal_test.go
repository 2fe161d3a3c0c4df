package app

import (
	"errors"
	"testing"
	"time"

	"sciquiz-service/internal/domain"
)

func tinyPool(n int) []domain.Question {
	pool := make([]domain.Question, n)
	for i := range pool {
		pool[i] = domain.Question{
			Text:         "q",
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: 0,
		}
	}
	return pool
}

func TestTickCompletesOnExpiry(t *testing.T) {
	s := newSessionWithClock(domain.QuizContext{ClassID: "class6"}, time.Now)
	if err := s.start(tinyPool(3), domain.SourceDatabase, 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := s.answer(0); err != nil {
		t.Fatalf("answer: %v", err)
	}

	left, done := s.tick()
	if left != 1 || done {
		t.Fatalf("first tick: left=%d done=%v", left, done)
	}
	left, done = s.tick()
	if left != 0 || !done {
		t.Fatalf("second tick: left=%d done=%v", left, done)
	}
	v := s.view()
	if v.Status != StatusCompleted {
		t.Fatalf("expected completed after expiry, got %s", v.Status)
	}
	if v.FinalScore != 1 {
		t.Fatalf("expected final score 1 (unanswered count as wrong), got %d", v.FinalScore)
	}

	// ticking a finished session is a no-op
	if left, done = s.tick(); done || left != 0 {
		t.Fatalf("tick after completion: left=%d done=%v", left, done)
	}
}

func TestMarkSubmittedIsOneShot(t *testing.T) {
	s := NewSession(domain.QuizContext{ClassID: "class6"})
	if !s.markSubmitted() {
		t.Fatal("first markSubmitted must win")
	}
	if s.markSubmitted() {
		t.Fatal("second markSubmitted must lose")
	}
}

func TestRestoreRejectedAfterStart(t *testing.T) {
	s := NewSession(domain.QuizContext{ClassID: "class6"})
	if err := s.start(tinyPool(2), domain.SourceDatabase, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := s.restore(domain.Snapshot{Pool: tinyPool(2)})
	if err != domain.ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestAnswerRejectsOutOfRangeOption(t *testing.T) {
	s := newSessionWithClock(domain.QuizContext{ClassID: "class6"}, time.Now)
	if err := s.start(tinyPool(2), domain.SourceDatabase, 30); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, opt := range []int{-1, 4} {
		if _, _, err := s.answer(opt); !errors.Is(err, domain.ErrInvalidOption) {
			t.Fatalf("option %d: expected ErrInvalidOption, got %v", opt, err)
		}
	}
	if snap := s.snapshot(); len(snap.Answers) != 0 {
		t.Fatalf("rejected options were recorded: %v", snap.Answers)
	}

	recorded, _, err := s.answer(1)
	if err != nil || !recorded {
		t.Fatalf("valid pick after rejects: recorded=%v err=%v", recorded, err)
	}
}
