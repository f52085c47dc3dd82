package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-engine/internal/domain"
)

// SubjectRepository abstracts how subject aggregates are stored (in-memory, MongoDB, etc).
// SaveSubject must reject the write with domain.ErrConcurrentModification when
// the stored version differs from subject.Version, and bump Version on success.
type SubjectRepository interface {
	LoadSubject(ctx context.Context, subjectID string) (domain.Subject, error)
	SaveSubject(ctx context.Context, subject *domain.Subject) error
	CreateSubject(ctx context.Context, subject *domain.Subject) error
}

// SubjectEraser removes a subject with its whole attempt history. It backs
// account deletion; attempts are never removed one by one.
type SubjectEraser interface {
	DeleteSubject(ctx context.Context, subjectID string) error
}

// EventPublisher forwards attempt events to the notification collaborator.
type EventPublisher interface {
	PublishAttemptEvent(ctx context.Context, event domain.AttemptEvent) error
}

// AttemptService contains the quiz attempt use cases. Every mutation is a
// read-modify-write of one subject document, retried on version conflicts.
type AttemptService struct {
	subjects    SubjectRepository
	content     *ContentService
	events      EventPublisher
	shuffler    *Shuffler
	now         func() time.Time
	maxRetries  int
	submitGrace time.Duration
}

// Option configures an AttemptService.
type Option func(*AttemptService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(s *AttemptService) { s.now = now } }

func WithPublisher(p EventPublisher) Option { return func(s *AttemptService) { s.events = p } }
func WithShuffler(sh *Shuffler) Option      { return func(s *AttemptService) { s.shuffler = sh } }
func WithMaxRetries(n int) Option           { return func(s *AttemptService) { s.maxRetries = n } }

// WithSubmitGrace tolerates submissions arriving shortly after the deadline.
func WithSubmitGrace(d time.Duration) Option { return func(s *AttemptService) { s.submitGrace = d } }

func NewAttemptService(subjects SubjectRepository, content *ContentService, opts ...Option) *AttemptService {
	s := &AttemptService{
		subjects:   subjects,
		content:    content,
		now:        time.Now,
		maxRetries: 3,
	}
	for _, o := range opts {
		o(s)
	}
	if s.shuffler == nil {
		s.shuffler = NewShuffler(nil)
	}
	return s
}

// RegisterSubject creates a student or guest aggregate if it does not exist yet.
func (s *AttemptService) RegisterSubject(ctx context.Context, subjectID string, kind domain.SubjectKind) (domain.Subject, error) {
	existing, err := s.subjects.LoadSubject(ctx, subjectID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrSubjectNotFound) {
		return domain.Subject{}, err
	}
	now := s.now()
	subject := domain.Subject{
		ID:           subjectID,
		Kind:         kind,
		QuizAttempts: []domain.QuizAttemptGroup{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.subjects.CreateSubject(ctx, &subject); err != nil {
		if errors.Is(err, domain.ErrSubjectExists) {
			return s.subjects.LoadSubject(ctx, subjectID)
		}
		return domain.Subject{}, err
	}
	return subject, nil
}

// StartAttempt resumes the in-progress attempt or creates a new one. A stale
// in-progress attempt is timed out first. No policy is applied here.
func (s *AttemptService) StartAttempt(ctx context.Context, subjectID, quizID string, durationMinutes int) (domain.StartResult, error) {
	return s.start(ctx, subjectID, quizID, durationMinutes, nil)
}

// BeginAttempt resolves the quiz and starts an attempt subject to the access
// policy. An active attempt is always resumable; a denial carries its reason.
func (s *AttemptService) BeginAttempt(ctx context.Context, subjectID, quizID string) (domain.StartResult, error) {
	def, err := s.content.Definition(ctx, quizID)
	if err != nil {
		return domain.StartResult{}, err
	}
	return s.start(ctx, subjectID, quizID, def.Duration, &def)
}

func (s *AttemptService) start(ctx context.Context, subjectID, quizID string, durationMinutes int, policy *domain.QuizDefinition) (domain.StartResult, error) {
	var result domain.StartResult
	err := s.mutate(ctx, subjectID, func(c *change) error {
		now := s.now()
		group := c.subject.GroupOrCreate(quizID)
		if active := group.Active(); active != nil {
			if !active.Expired(now) {
				result = domain.StartResult{Attempt: active.Clone()}
				return nil
			}
			c.expire(subjectID, quizID, active, now)
		}

		if policy != nil {
			if d := CanStartAttempt(group, *policy); !d.Allowed {
				c.fail = &domain.PolicyViolationError{Reason: d.Reason}
				return nil
			}
		}

		attempt := domain.Attempt{
			AttemptNumber: len(group.Attempts) + 1,
			Status:        domain.StatusInProgress,
			StartedAt:     now,
			QuestionOrder: []int{},
			OptionsOrder:  []domain.OptionOrder{},
			Answers:       []domain.Answer{},
		}
		if durationMinutes > 0 {
			end := now.Add(time.Duration(durationMinutes) * time.Minute)
			attempt.ExpectedEnd = &end
		}
		group.Attempts = append(group.Attempts, attempt)
		c.dirty = true
		result = domain.StartResult{IsNewAttempt: true, Attempt: attempt.Clone()}
		return nil
	})
	return result, err
}

// GetActiveAttempt returns the in-progress attempt, or nil. It never mutates,
// so a returned attempt may already be past its deadline.
func (s *AttemptService) GetActiveAttempt(ctx context.Context, subjectID, quizID string) (*domain.Attempt, error) {
	subject, err := s.subjects.LoadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	group := subject.Group(quizID)
	if group == nil {
		return nil, nil
	}
	active := group.Active()
	if active == nil {
		return nil, nil
	}
	a := active.Clone()
	return &a, nil
}

// Until reports the time left before deadline on the service clock.
func (s *AttemptService) Until(deadline time.Time) time.Duration {
	return deadline.Sub(s.now())
}

// ReconcileExpiry times out a stale in-progress attempt and reports whether it did.
func (s *AttemptService) ReconcileExpiry(ctx context.Context, subjectID, quizID string) (bool, error) {
	var expired bool
	err := s.mutate(ctx, subjectID, func(c *change) error {
		expired = false
		group := c.subject.Group(quizID)
		if group == nil {
			return nil
		}
		now := s.now()
		if active := group.Active(); active != nil && active.Expired(now) {
			c.expire(subjectID, quizID, active, now)
			expired = true
		}
		return nil
	})
	return expired, err
}

// CompleteAttempt records a result on an in-progress attempt and updates the
// group's best score.
func (s *AttemptService) CompleteAttempt(ctx context.Context, subjectID, quizID string, attemptNumber int, result domain.AttemptResult) (domain.Attempt, error) {
	var completed domain.Attempt
	err := s.mutate(ctx, subjectID, func(c *change) error {
		group, attempt, err := findAttempt(c.subject, quizID, attemptNumber)
		if err != nil {
			return err
		}
		if err := c.complete(subjectID, group, attempt, result, s.now()); err != nil {
			return err
		}
		completed = attempt.Clone()
		return nil
	})
	return completed, err
}

// AbandonAttempt explicitly ends an in-progress attempt without a result.
func (s *AttemptService) AbandonAttempt(ctx context.Context, subjectID, quizID string, attemptNumber int) (domain.Attempt, error) {
	var abandoned domain.Attempt
	err := s.mutate(ctx, subjectID, func(c *change) error {
		_, attempt, err := findAttempt(c.subject, quizID, attemptNumber)
		if err != nil {
			return err
		}
		if attempt.Status != domain.StatusInProgress {
			return fmt.Errorf("abandon attempt %d in status %s: %w", attemptNumber, attempt.Status, domain.ErrInvalidState)
		}
		now := s.now()
		attempt.Status = domain.StatusAbandoned
		attempt.CompletedAt = &now
		c.dirty = true
		abandoned = attempt.Clone()
		return nil
	})
	return abandoned, err
}

// MaterializeQuestionOrder returns the attempt's question permutation,
// generating and persisting it on first use.
func (s *AttemptService) MaterializeQuestionOrder(ctx context.Context, subjectID, quizID string, attemptNumber, questionCount int) ([]int, error) {
	var order []int
	err := s.mutate(ctx, subjectID, func(c *change) error {
		_, attempt, err := findAttempt(c.subject, quizID, attemptNumber)
		if err != nil {
			return err
		}
		if len(attempt.QuestionOrder) == 0 && attempt.Status != domain.StatusInProgress {
			return fmt.Errorf("shuffle attempt %d in status %s: %w", attemptNumber, attempt.Status, domain.ErrInvalidState)
		}
		o, changed := materializeQuestionOrder(attempt, questionCount, s.shuffler)
		c.dirty = c.dirty || changed
		order = append([]int(nil), o...)
		return nil
	})
	return order, err
}

// MaterializeOptionOrder returns the option permutation of one question,
// generating and persisting it on first use.
func (s *AttemptService) MaterializeOptionOrder(ctx context.Context, subjectID, quizID string, attemptNumber, questionIndex, optionCount int) ([]int, error) {
	var order []int
	err := s.mutate(ctx, subjectID, func(c *change) error {
		_, attempt, err := findAttempt(c.subject, quizID, attemptNumber)
		if err != nil {
			return err
		}
		if _, ok := attempt.OptionOrderFor(questionIndex); !ok && attempt.Status != domain.StatusInProgress {
			return fmt.Errorf("shuffle attempt %d in status %s: %w", attemptNumber, attempt.Status, domain.ErrInvalidState)
		}
		o, changed := materializeOptionOrder(attempt, questionIndex, optionCount, s.shuffler)
		c.dirty = c.dirty || changed
		order = append([]int(nil), o...)
		return nil
	})
	return order, err
}

func findAttempt(subject *domain.Subject, quizID string, attemptNumber int) (*domain.QuizAttemptGroup, *domain.Attempt, error) {
	group := subject.Group(quizID)
	if group == nil {
		return nil, nil, fmt.Errorf("quiz %s: %w", quizID, domain.ErrAttemptNotFound)
	}
	attempt := group.Attempt(attemptNumber)
	if attempt == nil {
		return nil, nil, fmt.Errorf("quiz %s number %d: %w", quizID, attemptNumber, domain.ErrAttemptNotFound)
	}
	return group, attempt, nil
}

// change is the unit of work handed to mutate. Events are published only after
// the write lands; fail is returned after a successful write.
type change struct {
	subject *domain.Subject
	dirty   bool
	events  []domain.AttemptEvent
	fail    error
}

func (c *change) expire(subjectID, quizID string, attempt *domain.Attempt, now time.Time) {
	attempt.Status = domain.StatusTimeout
	attempt.CompletedAt = &now
	c.dirty = true
	c.events = append(c.events, newAttemptEvent(domain.EventAttemptTimeout, subjectID, quizID, attempt, now))
}

func (c *change) complete(subjectID string, group *domain.QuizAttemptGroup, attempt *domain.Attempt, result domain.AttemptResult, now time.Time) error {
	if attempt.Status != domain.StatusInProgress {
		return fmt.Errorf("complete attempt %d in status %s: %w", attempt.AttemptNumber, attempt.Status, domain.ErrInvalidState)
	}
	attempt.Score = result.Score
	attempt.TotalQuestions = result.TotalQuestions
	attempt.CorrectAnswers = result.CorrectAnswers
	attempt.WrongAnswers = result.WrongAnswers
	attempt.SkippedAnswers = result.SkippedAnswers
	attempt.TimeSpent = result.TimeSpent
	attempt.Passed = result.Passed
	attempt.Answers = append([]domain.Answer{}, result.Answers...)
	attempt.Status = domain.StatusCompleted
	attempt.CompletedAt = &now
	group.RecomputeBestScore()
	c.dirty = true
	c.events = append(c.events, newAttemptEvent(domain.EventAttemptCompleted, subjectID, group.QuizID, attempt, now))
	return nil
}

func newAttemptEvent(typ domain.EventType, subjectID, quizID string, attempt *domain.Attempt, now time.Time) domain.AttemptEvent {
	return domain.AttemptEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		SubjectID:     subjectID,
		QuizID:        quizID,
		AttemptNumber: attempt.AttemptNumber,
		Score:         attempt.Score,
		Passed:        attempt.Passed,
		OccurredAt:    now,
	}
}

// mutate runs fn against a fresh copy of the subject and saves it when fn
// changed something. On a version conflict the whole read-modify-write is
// retried, up to maxRetries times.
func (s *AttemptService) mutate(ctx context.Context, subjectID string, fn func(*change) error) error {
	var lastErr error
	for try := 0; try <= s.maxRetries; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject, err := s.subjects.LoadSubject(ctx, subjectID)
		if err != nil {
			return err
		}
		c := &change{subject: &subject}
		if err := fn(c); err != nil {
			return err
		}
		if !c.dirty {
			return c.fail
		}
		subject.UpdatedAt = s.now()
		err = s.subjects.SaveSubject(ctx, &subject)
		if err == nil {
			s.publish(ctx, c.events)
			return c.fail
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		lastErr = err
	}
	log.Printf("subject %s: giving up after %d conflicting writes", subjectID, s.maxRetries+1)
	return lastErr
}

func (s *AttemptService) publish(ctx context.Context, events []domain.AttemptEvent) {
	if s.events == nil {
		return
	}
	for _, ev := range events {
		if err := s.events.PublishAttemptEvent(ctx, ev); err != nil {
			log.Printf("publish %s for subject %s: %v", ev.Type, ev.SubjectID, err)
		}
	}
}
