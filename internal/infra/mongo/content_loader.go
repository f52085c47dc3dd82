package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-attempt-engine/internal/domain"
)

// ContentLoader reads quizzes and questions maintained by content management.
type ContentLoader struct {
	quizzes   *mongo.Collection
	questions *mongo.Collection
}

func NewContentLoader(db *mongo.Database) *ContentLoader {
	return &ContentLoader{
		quizzes:   db.Collection("quizzes"),
		questions: db.Collection("questions"),
	}
}

func (l *ContentLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	var quiz domain.QuizDefinition
	err := l.quizzes.FindOne(ctx, bson.M{"_id": quizID}).Decode(&quiz)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}
	if err != nil {
		return domain.QuizDefinition{}, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (l *ContentLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var q domain.Question
	err := l.questions.FindOne(ctx, bson.M{"_id": questionID}).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Question{}, fmt.Errorf("load question %s: %w", questionID, domain.ErrQuestionNotFound)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

// SaveQuiz upserts a quiz definition.
func (l *ContentLoader) SaveQuiz(ctx context.Context, quiz domain.QuizDefinition) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := l.quizzes.ReplaceOne(ctx, bson.M{"_id": quiz.ID}, quiz, opts); err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

// SaveQuestion upserts a question.
func (l *ContentLoader) SaveQuestion(ctx context.Context, q domain.Question) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := l.questions.ReplaceOne(ctx, bson.M{"_id": q.ID}, q, opts); err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
