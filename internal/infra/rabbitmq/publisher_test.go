package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quiz-attempt-engine/internal/domain"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishAttemptEventRoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisherWithChannel(ch, DefaultExchange)

	event := domain.AttemptEvent{
		ID:            "evt-1",
		Type:          domain.EventAttemptCompleted,
		SubjectID:     "s1",
		QuizID:        "quiz-1",
		AttemptNumber: 2,
		Score:         80,
		Passed:        true,
		OccurredAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := p.PublishAttemptEvent(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ch.exchange != DefaultExchange || ch.key != "quiz.attempt.completed" {
		t.Fatalf("unexpected routing exchange=%s key=%s", ch.exchange, ch.key)
	}
	if ch.msg.MessageId != "evt-1" || ch.msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing %+v", ch.msg)
	}
	var decoded domain.AttemptEvent
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Score != 80 || !decoded.Passed || decoded.SubjectID != "s1" {
		t.Fatalf("unexpected body %+v", decoded)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("expected channel closed, err=%v", err)
	}
}

func TestPublishAttemptEventWrapsErrors(t *testing.T) {
	boom := errors.New("channel closed")
	p := newPublisherWithChannel(&fakeChannel{err: boom}, DefaultExchange)
	err := p.PublishAttemptEvent(context.Background(), domain.AttemptEvent{Type: domain.EventAttemptTimeout})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}
