package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-engine/internal/domain"
)

// ContentLoader fetches quiz content from a backing store (e.g., document DB).
type ContentLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// ContentRepository caches quiz content in Redis as JSON and falls back to a loader on cache miss.
// Quizzes are stored as:   SET content:quiz:{quizID}         {json}
// Questions are stored as: SET content:question:{questionID} {json}
type ContentRepository struct {
	client *redis.Client
	loader ContentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewContentRepository(client *redis.Client, loader ContentLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ContentRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var quiz domain.QuizDefinition
	err := r.get(ctx, quizKey(quizID), &quiz, func() (any, error) {
		return r.loader.LoadQuiz(ctx, quizID)
	})
	return quiz, err
}

func (r *ContentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := r.get(ctx, questionKey(questionID), &q, func() (any, error) {
		return r.loader.LoadQuestion(ctx, questionID)
	})
	return q, err
}

// Invalidate drops cached content after an edit so the next read reloads it.
func (r *ContentRepository) Invalidate(ctx context.Context, quizID string, questionIDs ...string) error {
	keys := []string{quizKey(quizID)}
	for _, id := range questionIDs {
		keys = append(keys, questionKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *ContentRepository) get(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if ok, err := r.fromCache(ctx, key, dst); err == nil && ok {
		return nil
	}

	raw, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if data, err := r.client.Get(ctx, key).Bytes(); err == nil {
			return data, nil
		}

		value, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.([]byte), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *ContentRepository) fromCache(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func quizKey(quizID string) string {
	return "content:quiz:" + quizID
}

func questionKey(questionID string) string {
	return "content:question:" + questionID
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
