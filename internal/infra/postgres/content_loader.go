package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-engine/internal/domain"
)

// ContentLoader loads quiz and question JSONB documents from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var quiz domain.QuizDefinition
	if err := l.load(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID, &quiz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuizDefinition{}, fmt.Errorf("load quiz %s: %w", quizID, domain.ErrQuizNotFound)
		}
		return domain.QuizDefinition{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.ID = quizID
	return quiz, nil
}

func (l *ContentLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	if err := l.load(ctx, `SELECT data FROM questions WHERE id=$1`, questionID, &q); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, fmt.Errorf("load question %s: %w", questionID, domain.ErrQuestionNotFound)
		}
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	q.ID = questionID
	return q, nil
}

// SaveQuiz upserts a quiz definition; used by seeding and the migrate command.
func (l *ContentLoader) SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error {
	return l.upsert(ctx, `INSERT INTO quizzes (id, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, quiz.ID, quiz)
}

// SaveQuestion upserts a question.
func (l *ContentLoader) SaveQuestion(ctx context.Context, q domain.Question) error {
	return l.upsert(ctx, `INSERT INTO questions (id, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, q.ID, q)
}

func (l *ContentLoader) load(ctx context.Context, query, id string, dst any) error {
	var raw []byte
	if err := l.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return nil
}

func (l *ContentLoader) upsert(ctx context.Context, query, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	if _, err := l.pool.Exec(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}
