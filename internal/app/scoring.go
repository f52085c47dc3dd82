package app

import (
	"math"
	"strings"

	"quiz-attempt-engine/internal/domain"
)

// GradeAnswer grades one submitted answer against a quiz item.
// Choice questions compare the submitted option text; written questions use
// lenient normalized matching (see matchWritten).
func GradeAnswer(item domain.QuizItem, submitted string) domain.AnswerGrade {
	var correct bool
	if item.Question.QuestionType.HasOptions() {
		correct = matchOption(item.Question.Options, submitted)
	} else {
		correct = matchWritten(item.Question.CorrectAnswers, submitted)
	}
	if !correct {
		return domain.AnswerGrade{}
	}
	return domain.AnswerGrade{IsCorrect: true, Points: itemPoints(item)}
}

// GradeAttempt grades every quiz item in quiz order. Unanswered questions are
// incorrect. Score is rounded once on the final ratio.
func GradeAttempt(quiz domain.Quiz, answers map[string]string) domain.GradeResult {
	result := domain.GradeResult{
		TotalQuestions: len(quiz.Items),
		Questions:      make([]domain.QuestionResult, 0, len(quiz.Items)),
	}
	for _, item := range quiz.Items {
		q := item.Question
		submitted, ok := answers[q.ID]
		answered := ok && strings.TrimSpace(submitted) != ""

		qr := domain.QuestionResult{
			QuestionID:     q.ID,
			QuestionType:   q.QuestionType,
			SelectedAnswer: submitted,
			CorrectAnswer:  CorrectAnswerText(q),
			Answered:       answered,
		}
		if answered {
			grade := GradeAnswer(item, submitted)
			qr.IsCorrect = grade.IsCorrect
			qr.Points = grade.Points
			result.AnsweredCount++
		} else if q.QuestionType == domain.QuestionWritten {
			qr.SelectedAnswer = domain.NoAnswer
		}

		if qr.IsCorrect {
			result.CorrectCount++
			result.TotalPoints += qr.Points
		}
		result.Questions = append(result.Questions, qr)
	}

	if result.TotalQuestions > 0 {
		ratio := float64(result.CorrectCount) / float64(result.TotalQuestions)
		result.Score = int(math.Round(ratio * 100))
	}
	result.Passed = result.Score >= quiz.Definition.PassingScore
	return result
}

// CorrectAnswerText is the display copy of a question's correct answer.
func CorrectAnswerText(q domain.Question) string {
	var parts []string
	if q.QuestionType.HasOptions() {
		for _, opt := range q.Options {
			if opt.IsCorrect {
				parts = append(parts, opt.Text)
			}
		}
	} else {
		for _, ca := range q.CorrectAnswers {
			parts = append(parts, ca.Text)
		}
	}
	return strings.Join(parts, ", ")
}

func itemPoints(item domain.QuizItem) int {
	if item.Points == 0 {
		return 1
	}
	return item.Points
}

func matchOption(options []domain.Option, submitted string) bool {
	want := strings.TrimSpace(submitted)
	for _, opt := range options {
		if strings.TrimSpace(opt.Text) == want {
			return opt.IsCorrect
		}
	}
	return false
}

// matchWritten accepts a submission equal to, or containing, any accepted
// alternative. Containment lets "the answer is x+1" match "x+1"; short
// alternatives can therefore match unrelated submissions.
func matchWritten(accepted []domain.CorrectAnswer, submitted string) bool {
	got := normalizeAnswer(submitted)
	if got == "" {
		return false
	}
	for _, ca := range accepted {
		for _, alt := range strings.Split(ca.Text, ",") {
			alt = normalizeAnswer(alt)
			if alt == "" {
				continue
			}
			if got == alt || strings.Contains(got, alt) {
				return true
			}
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
