package domain

import "time"

// EventType is used as the routing key for attempt notifications.
type EventType string

const (
	EventAttemptCompleted EventType = "quiz.attempt.completed"
	EventAttemptTimeout   EventType = "quiz.attempt.timeout"
)

// AttemptEvent is published after an attempt reaches a notifiable terminal state.
type AttemptEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	SubjectID     string    `json:"subjectId"`
	QuizID        string    `json:"quizId"`
	AttemptNumber int       `json:"attemptNumber"`
	Score         int       `json:"score"`
	Passed        bool      `json:"passed"`
	OccurredAt    time.Time `json:"occurredAt"`
}
