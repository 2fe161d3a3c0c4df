package domain

import (
	"fmt"
	"time"
)

// Question is the canonical multiple-choice question shape. Every upstream
// record (question bank, AI generation, built-in fallback) is normalized
// into this form before entering a session pool.
type Question struct {
	ID           string   `json:"id,omitempty"`
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"answer"`
	Explanation  string   `json:"explanation,omitempty"`
}

// UnknownIndex marks a question whose correct option could not be
// determined from the source record.
const UnknownIndex = -1

// HasAnswer reports whether CorrectIndex is a valid index into Options.
func (q Question) HasAnswer() bool {
	return q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options)
}

// QuizContext scopes a quiz session and everything persisted for it.
type QuizContext struct {
	ClassID  string `json:"classId"`
	Level    string `json:"level"`
	TopicID  int    `json:"topicId"`
	Language string `json:"language"`
}

// topicNames is the fixed topic lookup table; TopicID indexes into it.
var topicNames = []string{
	"Physics",
	"Chemistry",
	"Biology",
	"General Knowledge",
	"Astronomy",
	"Human Body",
	"Genetics",
	"Environmental Science",
}

// TopicIDByName is the reverse of TopicName; the question-bank API speaks
// topic names on the wire while storage and routing key by ID.
func TopicIDByName(name string) (int, bool) {
	for id, n := range topicNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// TopicName resolves the context's topic ID to its display name.
// Out-of-range IDs resolve to "Science".
func (c QuizContext) TopicName() string {
	if c.TopicID >= 0 && c.TopicID < len(topicNames) {
		return topicNames[c.TopicID]
	}
	return "Science"
}

func (c QuizContext) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", c.ClassID, c.Level, c.TopicID, c.Language)
}

// SourceLabel identifies which step of the fallback chain produced a pool.
type SourceLabel string

const (
	SourceDatabase SourceLabel = "Database"
	SourceDBCache  SourceLabel = "DB Cache"
	SourceAI       SourceLabel = "AI"
	SourceFallback SourceLabel = "Fallback"
	SourceSaved    SourceLabel = "Saved"
)

// SnapshotVersion tags persisted snapshots so the format can migrate later.
const SnapshotVersion = 1

// Snapshot is the serialized form of an in-progress session. A saved
// snapshot with no intervening mutation must restore to an identical
// session state.
type Snapshot struct {
	Version      int         `json:"version"`
	Pool         []Question  `json:"questions"`
	CurrentIndex int         `json:"currentQ"`
	Answers      map[int]int `json:"answers"`
	CorrectCount int         `json:"correctCount"`
	Completed    bool        `json:"quizCompleted"`
	FinalScore   int         `json:"finalScore"`
	TimeLeft     int         `json:"timeLeft"`
	Source       SourceLabel `json:"source"`
	Announced    []int       `json:"announced,omitempty"`
	SavedAt      time.Time   `json:"savedAt"`
}

// EntryOrigin records where a leaderboard entry was persisted.
type EntryOrigin string

const (
	OriginServer EntryOrigin = "server"
	OriginLocal  EntryOrigin = "local"
)

// LeaderboardEntry is one completed attempt. Entries are append-only:
// never edited, only added or bulk-cleared.
type LeaderboardEntry struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Score   int            `json:"score"`
	Total   int            `json:"total,omitempty"`
	ClassID string         `json:"classId,omitempty"`
	Level   string         `json:"level,omitempty"`
	Topic   string         `json:"topic,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Date    time.Time      `json:"date"`
	Origin  EntryOrigin    `json:"origin,omitempty"`
}

// Signature identifies an entry across server and local copies so a merge
// never double-counts an attempt recorded in both places.
func (e LeaderboardEntry) Signature() string {
	return fmt.Sprintf("%s::%d::%s::%s", e.Name, e.Score, e.Date.UTC().Format(time.RFC3339), e.ClassID)
}
