package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quiz-attempt-engine/internal/domain"
)

// SubjectStore keeps one document per student or guest in the "subjects"
// collection. Saves filter on the loaded version so a concurrent writer makes
// the update match nothing.
type SubjectStore struct {
	col *mongo.Collection
}

func NewSubjectStore(db *mongo.Database) *SubjectStore {
	return &SubjectStore{col: db.Collection("subjects")}
}

func (s *SubjectStore) LoadSubject(ctx context.Context, subjectID string) (domain.Subject, error) {
	var subject domain.Subject
	err := s.col.FindOne(ctx, bson.M{"_id": subjectID}).Decode(&subject)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Subject{}, fmt.Errorf("load %s: %w", subjectID, domain.ErrSubjectNotFound)
	}
	if err != nil {
		return domain.Subject{}, fmt.Errorf("load subject: %w", err)
	}
	return subject, nil
}

func (s *SubjectStore) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	subject.Version = 1
	if _, err := s.col.InsertOne(ctx, subject); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrSubjectExists
		}
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

func (s *SubjectStore) SaveSubject(ctx context.Context, subject *domain.Subject) error {
	next := *subject
	next.Version++

	filter := bson.M{"_id": subject.ID, "version": subject.Version}
	res, err := s.col.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("save subject: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.col.CountDocuments(ctx, bson.M{"_id": subject.ID})
		if err != nil {
			return fmt.Errorf("save subject: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("save %s: %w", subject.ID, domain.ErrSubjectNotFound)
		}
		return fmt.Errorf("save %s at version %d: %w", subject.ID, subject.Version, domain.ErrConcurrentModification)
	}
	subject.Version = next.Version
	return nil
}

// DeleteSubject removes a subject and all of its attempts.
func (s *SubjectStore) DeleteSubject(ctx context.Context, subjectID string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": subjectID}); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
