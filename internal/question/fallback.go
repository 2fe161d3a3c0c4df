package question

import (
	"math/rand"

	"sciquiz-service/internal/domain"
)

// builtin is the last-resort question set used when every remote source
// fails. Kept as raw records so it passes through the same normalization
// path as real data.
var builtin = []map[string]any{
	{
		"question":    "Where does the Sun rise?",
		"options":     []any{"East", "West", "North", "South"},
		"answer":      float64(0),
		"explanation": "The Sun always rises in the East.",
	},
	{
		"question":    "What is H2O commonly known as?",
		"options":     []any{"Water", "Oxygen", "Hydrogen", "Carbon Dioxide"},
		"answer":      float64(0),
		"explanation": "H2O is the chemical formula for water.",
	},
	{
		"question":    "Which planet is known as the Red Planet?",
		"options":     []any{"Mars", "Venus", "Jupiter", "Saturn"},
		"answer":      float64(0),
		"explanation": "Mars is called the Red Planet due to iron oxide dust.",
	},
}

// Builtin returns the normalized built-in fallback set, options shuffled.
func Builtin(lang string, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, 0, len(builtin))
	for _, raw := range builtin {
		out = append(out, ShuffleOptions(Normalize(raw, lang), rnd))
	}
	return out
}

// EnsureCount truncates or pads pool to exactly n questions, recycling
// fallback entries when the fallback set is shorter than the gap.
func EnsureCount(pool, fallback []domain.Question, n int) []domain.Question {
	if n <= 0 {
		return nil
	}
	out := make([]domain.Question, 0, n)
	if len(pool) > n {
		out = append(out, pool[:n]...)
		return out
	}
	out = append(out, pool...)
	if len(fallback) == 0 {
		return out
	}
	for i := 0; len(out) < n; i++ {
		out = append(out, fallback[i%len(fallback)])
	}
	return out
}
