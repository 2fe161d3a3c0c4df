package question

import (
	"math/rand"

	"sciquiz-service/internal/domain"
)

// ShuffleOptions returns a copy of q with its options permuted by an
// unbiased Fisher-Yates shuffle and the correct index remapped through the
// same permutation. The pair moves atomically: exactly one index points at
// the original correct answer afterwards. Questions with no options or an
// unknown answer keep their index untouched.
func ShuffleOptions(q domain.Question, rnd *rand.Rand) domain.Question {
	if len(q.Options) == 0 {
		return q
	}

	perm := make([]int, len(q.Options))
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	shuffled := make([]string, len(q.Options))
	remapped := domain.UnknownIndex
	for newIdx, oldIdx := range perm {
		shuffled[newIdx] = q.Options[oldIdx]
		if oldIdx == q.CorrectIndex {
			remapped = newIdx
		}
	}

	out := q
	out.Options = shuffled
	if q.HasAnswer() {
		out.CorrectIndex = remapped
	}
	return out
}

// ShufflePool shuffles the order of a question slice in place-safe copy,
// used to vary which bank questions make it into a pool.
func ShufflePool(qs []domain.Question, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
