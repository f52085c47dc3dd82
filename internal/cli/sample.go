package cli

import (
	"context"
	"fmt"
	"log"

	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/domain"
	inframongo "quiz-attempt-engine/internal/infra/mongo"
	pgloader "quiz-attempt-engine/internal/infra/postgres"
)

type contentWriter interface {
	SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error
	SaveQuestion(ctx context.Context, q domain.Question) error
}

// seedContent writes the sample quiz to every configured content store.
func seedContent(ctx context.Context, cfg config.Config) error {
	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var writers []contentWriter
	if b.pool != nil {
		writers = append(writers, pgloader.NewContentLoader(b.pool))
	}
	if b.mongoDB != nil {
		writers = append(writers, inframongo.NewContentLoader(b.mongoDB))
	}
	for _, w := range writers {
		for _, q := range sampleQuestions() {
			if err := w.SaveQuestion(ctx, q); err != nil {
				return fmt.Errorf("seed question %s: %w", q.ID, err)
			}
		}
		for _, quiz := range sampleQuizzes() {
			if err := w.SaveQuiz(ctx, quiz); err != nil {
				return fmt.Errorf("seed quiz %s: %w", quiz.ID, err)
			}
		}
	}
	log.Printf("seeded %d quizzes into %d stores", len(sampleQuizzes()), len(writers))
	return nil
}

// sampleQuizzes is served when no content store is configured.
func sampleQuizzes() []domain.QuizDefinition {
	return []domain.QuizDefinition{
		{
			ID:    "quiz-1",
			Title: "Basics",
			Questions: []domain.SelectedQuestion{
				{QuestionID: "q1", Points: 1, Order: 1},
				{QuestionID: "q2", Points: 1, Order: 2},
				{QuestionID: "q3", Points: 2, Order: 3},
			},
			Duration:           10,
			PassingScore:       60,
			MaxAttempts:        3,
			ShuffleQuestions:   true,
			ShuffleOptions:     true,
			ShowCorrectAnswers: true,
			ShowResults:        true,
		},
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           "q1",
			Prompt:       "What is 2 + 2?",
			QuestionType: domain.QuestionMCQ,
			Options: []domain.Option{
				{Text: "3"},
				{Text: "4", IsCorrect: true},
				{Text: "5"},
			},
		},
		{
			ID:           "q2",
			Prompt:       "Water boils at 100°C at sea level.",
			QuestionType: domain.QuestionTrueFalse,
			Options: []domain.Option{
				{Text: "True", IsCorrect: true},
				{Text: "False"},
			},
		},
		{
			ID:             "q3",
			Prompt:         "Name the chemical symbol for gold.",
			QuestionType:   domain.QuestionWritten,
			CorrectAnswers: []domain.CorrectAnswer{{Text: "Au"}},
			Explanation:    "From the Latin aurum.",
		},
	}
}
