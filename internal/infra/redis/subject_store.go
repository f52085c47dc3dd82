package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-engine/internal/domain"
)

// SubjectStore keeps subject aggregates as JSON documents in Redis.
// Writes run inside WATCH/MULTI so a concurrent save aborts the transaction,
// which surfaces as domain.ErrConcurrentModification.
type SubjectStore struct {
	client *redis.Client
}

func NewSubjectStore(client *redis.Client) *SubjectStore {
	return &SubjectStore{client: client}
}

func (s *SubjectStore) LoadSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	return s.read(ctx, s.client, subjectID)
}

func (s *SubjectStore) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	subject.Version = 1
	data, err := json.Marshal(subject)
	if err != nil {
		return fmt.Errorf("encode subject: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(subject.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	if !ok {
		return domain.ErrSubjectExists
	}
	return nil
}

func (s *SubjectStore) SaveSubject(ctx context.Context, subject *domain.Subject) error {
	key := s.key(subject.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := s.read(ctx, tx, subject.ID)
		if err != nil {
			return err
		}
		if stored.Version != subject.Version {
			return fmt.Errorf("save %s at version %d (stored %d): %w", subject.ID, subject.Version, stored.Version, domain.ErrConcurrentModification)
		}

		next := *subject
		next.Version++
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode subject: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("save %s: %w", subject.ID, domain.ErrConcurrentModification)
	}
	if err != nil {
		return err
	}
	subject.Version++
	return nil
}

// DeleteSubject removes the subject key.
func (s *SubjectStore) DeleteSubject(ctx context.Context, subjectID string) error {
	return s.client.Del(ctx, s.key(subjectID)).Err()
}

func (s *SubjectStore) read(ctx context.Context, c getter, subjectID string) (domain.Subject, error) {
	data, err := c.Get(ctx, s.key(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Subject{}, fmt.Errorf("load %s: %w", subjectID, domain.ErrSubjectNotFound)
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("load subject: %w", err)
	}
	var subject domain.Subject
	if err := json.Unmarshal(data, &subject); err != nil {
		return domain.Subject{}, fmt.Errorf("decode subject: %w", err)
	}
	return subject, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SubjectStore) key(subjectID string) string {
	return "quiz:subject:" + subjectID
}
