package memory

import (
	"context"
	"log"
	"sync"

	"quiz-attempt-engine/internal/domain"
)

// Publisher records attempt events in memory. It is used when no broker is
// configured and by tests that assert on emitted notifications.
type Publisher struct {
	mu     sync.Mutex
	events []domain.AttemptEvent
	logged bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// NewLoggingPublisher also logs each event, for running without a broker.
func NewLoggingPublisher() *Publisher {
	return &Publisher{logged: true}
}

func (p *Publisher) PublishAttemptEvent(_ context.Context, event domain.AttemptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if p.logged {
		log.Printf("event %s: subject=%s quiz=%s attempt=%d score=%d", event.Type, event.SubjectID, event.QuizID, event.AttemptNumber, event.Score)
	}
	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []domain.AttemptEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AttemptEvent(nil), p.events...)
}
