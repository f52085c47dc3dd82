package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-engine/internal/domain"
)

// ContentLoader fetches quiz content from a backing store (e.g., document DB).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// ContentRepository caches quizzes and questions with TTL to avoid repeated DB hits.
type ContentRepository struct {
	loader ContentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu        sync.RWMutex
	quizzes   map[string]cached[domain.QuizDefinition]
	questions map[string]cached[domain.Question]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
}

func NewContentRepository(loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader:    loader,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		quizzes:   make(map[string]cached[domain.QuizDefinition]),
		questions: make(map[string]cached[domain.Question]),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	return getCached(r, r.quizzes, "quiz:"+quizID, quizID, func() (domain.QuizDefinition, error) {
		return r.loader.LoadQuiz(ctx, quizID)
	})
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return getCached(r, r.questions, "question:"+questionID, questionID, func() (domain.Question, error) {
		return r.loader.LoadQuestion(ctx, questionID)
	})
}

func getCached[T any](r *ContentRepository, cache map[string]cached[T], flightKey, id string, load func() (T, error)) (T, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := cache[id]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.value, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(flightKey, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := cache[id]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.value, nil
		}
		r.mu.RUnlock()

		value, err := load()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		cache[id] = cached[T]{
			value:     value,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticContentLoader is a simple loader backed by in-memory maps (useful for tests/demos).
type StaticContentLoader struct {
	quizzes   map[string]domain.QuizDefinition
	questions map[string]domain.Question
}

func NewStaticContentLoader(quizzes []domain.QuizDefinition, questions []domain.Question) *StaticContentLoader {
	l := &StaticContentLoader{
		quizzes:   make(map[string]domain.QuizDefinition, len(quizzes)),
		questions: make(map[string]domain.Question, len(questions)),
	}
	for _, q := range quizzes {
		l.quizzes[q.ID] = q
	}
	for _, q := range questions {
		l.questions[q.ID] = q
	}
	return l
}

func (l *StaticContentLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}

func (l *StaticContentLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
