package memory

import (
	"context"
	"fmt"
	"sync"

	"quiz-attempt-engine/internal/domain"
)

// SubjectStore is an in-memory implementation of app.SubjectRepository.
// Subjects are copied on the way in and out so callers never share state.
type SubjectStore struct {
	mu       sync.RWMutex
	subjects map[string]domain.Subject
}

func NewSubjectStore() *SubjectStore {
	return &SubjectStore{
		subjects: make(map[string]domain.Subject),
	}
}

func (s *SubjectStore) LoadSubject(_ context.Context, subjectID string) (domain.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return domain.Subject{}, fmt.Errorf("load %s: %w", subjectID, domain.ErrSubjectNotFound)
	}
	return subject.Clone(), nil
}

func (s *SubjectStore) CreateSubject(_ context.Context, subject *domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; ok {
		return domain.ErrSubjectExists
	}
	subject.Version = 1
	s.subjects[subject.ID] = subject.Clone()
	return nil
}

// SaveSubject writes the subject only if nobody saved it since it was loaded.
func (s *SubjectStore) SaveSubject(_ context.Context, subject *domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.subjects[subject.ID]
	if !ok {
		return fmt.Errorf("save %s: %w", subject.ID, domain.ErrSubjectNotFound)
	}
	if stored.Version != subject.Version {
		return fmt.Errorf("save %s at version %d (stored %d): %w", subject.ID, subject.Version, stored.Version, domain.ErrConcurrentModification)
	}
	subject.Version++
	s.subjects[subject.ID] = subject.Clone()
	return nil
}

// DeleteSubject drops a subject with all of its attempts.
func (s *SubjectStore) DeleteSubject(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, subjectID)
	return nil
}
