package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-engine/internal/domain"
)

// ContentRepository loads quiz content (from cache/backing store).
type ContentRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// ContentService resolves quiz definitions into gradable quizzes.
type ContentService struct {
	repo     ContentRepository
	validate *validator.Validate
	// maxFetch bounds concurrent question lookups per quiz.
	maxFetch int
}

func NewContentService(repo ContentRepository) *ContentService {
	return &ContentService{
		repo:     repo,
		validate: validator.New(),
		maxFetch: 8,
	}
}

// Definition loads and validates a quiz definition without its questions.
func (s *ContentService) Definition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	def, err := s.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	if err := s.validate.StructCtx(ctx, def); err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("%w %s: %v", domain.ErrInvalidQuiz, quizID, err)
	}
	return def, nil
}

// ResolveQuiz loads a quiz and every selected question, in quiz order.
func (s *ContentService) ResolveQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	def, err := s.Definition(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}

	items := make([]domain.QuizItem, len(def.Questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxFetch)
	for i, sel := range def.Questions {
		g.Go(func() error {
			q, err := s.repo.GetQuestion(gctx, sel.QuestionID)
			if err != nil {
				return fmt.Errorf("quiz %s: %w", quizID, err)
			}
			if err := s.validate.StructCtx(gctx, q); err != nil {
				return fmt.Errorf("%w %s: question %s: %v", domain.ErrInvalidQuiz, quizID, q.ID, err)
			}
			items[i] = domain.QuizItem{Question: q, Points: sel.Points, Order: sel.Order}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Quiz{}, err
	}

	domain.SortItems(items)
	return domain.Quiz{Definition: def, Items: items}, nil
}
