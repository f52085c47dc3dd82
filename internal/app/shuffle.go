package app

import (
	"math/rand"
	"sync"
	"time"

	"quiz-attempt-engine/internal/domain"
)

// Shuffler produces uniform permutations. It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewShuffler(src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Shuffler{rnd: rand.New(src)}
}

// Permutation returns a Fisher-Yates shuffle of [0, n).
func (s *Shuffler) Permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// materializeQuestionOrder sets the attempt's question order once. It reports
// whether the attempt was modified.
func materializeQuestionOrder(attempt *domain.Attempt, count int, shuffler *Shuffler) ([]int, bool) {
	if len(attempt.QuestionOrder) > 0 || count == 0 {
		return attempt.QuestionOrder, false
	}
	attempt.QuestionOrder = shuffler.Permutation(count)
	return attempt.QuestionOrder, true
}

// materializeOptionOrder sets the option order of one question once.
func materializeOptionOrder(attempt *domain.Attempt, questionIndex, count int, shuffler *Shuffler) ([]int, bool) {
	if order, ok := attempt.OptionOrderFor(questionIndex); ok {
		return order, false
	}
	order := shuffler.Permutation(count)
	attempt.OptionsOrder = append(attempt.OptionsOrder, domain.OptionOrder{
		QuestionIndex:  questionIndex,
		OptionsIndices: order,
	})
	return order, true
}

// reconcileOrder maps a persisted permutation onto n items: indices out of
// range are dropped and uncovered indices are appended in order. Content edits
// during an attempt therefore never hide or duplicate a question.
func reconcileOrder(order []int, n int) []int {
	out := make([]int, 0, n)
	seen := make([]bool, n)
	for _, idx := range order {
		if idx >= 0 && idx < n && !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

func identityOrder(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
