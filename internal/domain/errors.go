package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every not-found error below.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an attempt is not in the status an operation requires.
	ErrInvalidState = errors.New("invalid attempt state")
	// ErrConcurrentModification is returned when the stored subject changed between read and write.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrPolicyViolation is matched by *PolicyViolationError.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrInvalidQuiz indicates quiz content failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrSubjectExists is returned by stores when creating a subject twice.
	ErrSubjectExists = errors.New("subject already exists")

	// ErrSubjectNotFound is returned when no student or guest exists for an id.
	ErrSubjectNotFound = fmt.Errorf("subject %w", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a referenced question does not exist.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrAttemptNotFound indicates the subject has no such attempt for the quiz.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
)

// DenialReason says why a new attempt may not start.
type DenialReason string

const (
	ReasonAlreadyPassed      DenialReason = "already_passed"
	ReasonMaxAttemptsReached DenialReason = "max_attempts_reached"
)

// Message is the human-readable form of the reason.
func (r DenialReason) Message() string {
	switch r {
	case ReasonAlreadyPassed:
		return "already passed"
	case ReasonMaxAttemptsReached:
		return "max attempts reached"
	}
	return string(r)
}

// PolicyViolationError is returned when starting an attempt is denied.
type PolicyViolationError struct {
	Reason DenialReason
}

func (e *PolicyViolationError) Error() string {
	return "attempt not allowed: " + e.Reason.Message()
}

func (e *PolicyViolationError) Is(target error) bool {
	return target == ErrPolicyViolation
}
