package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quiz-attempt-engine/internal/domain"
)

// PresentAttempt builds the render model of the active attempt. Question and
// option orders are materialized in the same write the first time, so reloads
// always see the same arrangement.
func (s *AttemptService) PresentAttempt(ctx context.Context, subjectID, quizID string) (domain.Presentation, error) {
	quiz, err := s.content.ResolveQuiz(ctx, quizID)
	if err != nil {
		return domain.Presentation{}, err
	}
	def := quiz.Definition

	var attempt domain.Attempt
	err = s.mutate(ctx, subjectID, func(c *change) error {
		group := c.subject.Group(quizID)
		if group == nil {
			return fmt.Errorf("quiz %s: no active attempt: %w", quizID, domain.ErrAttemptNotFound)
		}
		active := group.Active()
		if active == nil {
			return fmt.Errorf("quiz %s: no active attempt: %w", quizID, domain.ErrAttemptNotFound)
		}
		now := s.now()
		if active.Expired(now) {
			c.expire(subjectID, quizID, active, now)
			c.fail = fmt.Errorf("attempt %d expired: %w", active.AttemptNumber, domain.ErrInvalidState)
			return nil
		}

		if def.ShuffleQuestions {
			if _, changed := materializeQuestionOrder(active, len(quiz.Items), s.shuffler); changed {
				c.dirty = true
			}
		}
		if def.ShuffleOptions {
			for i, item := range quiz.Items {
				if !item.Question.QuestionType.HasOptions() {
					continue
				}
				if _, changed := materializeOptionOrder(active, i, len(item.Question.Options), s.shuffler); changed {
					c.dirty = true
				}
			}
		}
		attempt = active.Clone()
		return nil
	})
	if err != nil {
		return domain.Presentation{}, err
	}
	return buildPresentation(quiz, attempt, s.now()), nil
}

func buildPresentation(quiz domain.Quiz, attempt domain.Attempt, now time.Time) domain.Presentation {
	def := quiz.Definition
	n := len(quiz.Items)
	order := identityOrder(n)
	if def.ShuffleQuestions && len(attempt.QuestionOrder) > 0 {
		order = reconcileOrder(attempt.QuestionOrder, n)
	}

	p := domain.Presentation{
		QuizID:        def.ID,
		AttemptNumber: attempt.AttemptNumber,
		StartedAt:     attempt.StartedAt,
		ExpectedEnd:   attempt.ExpectedEnd,
		Questions:     make([]domain.PresentedQuestion, 0, n),
	}
	if attempt.ExpectedEnd != nil {
		p.RemainingSeconds = int(max(attempt.ExpectedEnd.Unix()-now.Unix(), 0))
	}

	for _, idx := range order {
		item := quiz.Items[idx]
		q := item.Question
		pq := domain.PresentedQuestion{
			Index:        idx,
			QuestionID:   q.ID,
			Prompt:       q.Prompt,
			QuestionType: q.QuestionType,
			Points:       itemPoints(item),
		}
		if q.QuestionType.HasOptions() {
			optOrder := identityOrder(len(q.Options))
			if def.ShuffleOptions {
				if persisted, ok := attempt.OptionOrderFor(idx); ok {
					optOrder = reconcileOrder(persisted, len(q.Options))
				}
			}
			pq.Options = make([]domain.PresentedOption, 0, len(q.Options))
			for _, oi := range optOrder {
				opt := q.Options[oi]
				pq.Options = append(pq.Options, domain.PresentedOption{Index: oi, Text: opt.Text, Image: opt.Image})
			}
		}
		p.Questions = append(p.Questions, pq)
	}
	return p
}

// SubmitAttempt grades the answers and completes the active attempt. A
// submission past the deadline (plus grace) times the attempt out instead.
func (s *AttemptService) SubmitAttempt(ctx context.Context, subjectID, quizID string, answers map[string]string, timeSpentSeconds int) (domain.AttemptOutcome, error) {
	quiz, err := s.content.ResolveQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptOutcome{}, err
	}
	grade := GradeAttempt(quiz, answers)

	var outcome domain.AttemptOutcome
	err = s.mutate(ctx, subjectID, func(c *change) error {
		group := c.subject.Group(quizID)
		if group == nil {
			return fmt.Errorf("quiz %s: %w", quizID, domain.ErrAttemptNotFound)
		}
		active := group.Active()
		if active == nil {
			return fmt.Errorf("quiz %s: no attempt in progress: %w", quizID, domain.ErrInvalidState)
		}
		now := s.now()
		if active.Expired(now.Add(-s.submitGrace)) {
			c.expire(subjectID, quizID, active, now)
			c.fail = fmt.Errorf("attempt %d expired before submission: %w", active.AttemptNumber, domain.ErrInvalidState)
			return nil
		}

		timeSpent := timeSpentSeconds
		if timeSpent <= 0 {
			timeSpent = int(now.Sub(active.StartedAt).Seconds())
		}
		if err := c.complete(subjectID, group, active, attemptResult(grade, timeSpent), now); err != nil {
			return err
		}
		outcome = domain.AttemptOutcome{
			Attempt:                active.Clone(),
			Grade:                  grade,
			BestScore:              group.BestScore,
			CanViewDetailedResults: CanViewDetailedResults(group, quiz.Definition),
		}
		return nil
	})
	if err != nil {
		return domain.AttemptOutcome{}, err
	}
	detailed := outcome.CanViewDetailedResults && quiz.Definition.ShowCorrectAnswers
	if !detailed {
		outcome.Grade = withholdCorrectAnswers(outcome.Grade)
	}
	redactAnswers(&outcome.Attempt, quiz.Definition, detailed)
	return outcome, nil
}

func attemptResult(grade domain.GradeResult, timeSpent int) domain.AttemptResult {
	answers := make([]domain.Answer, 0, len(grade.Questions))
	for _, qr := range grade.Questions {
		answers = append(answers, domain.Answer{
			QuestionID:     qr.QuestionID,
			SelectedAnswer: qr.SelectedAnswer,
			CorrectAnswer:  qr.CorrectAnswer,
			IsCorrect:      qr.IsCorrect,
			Points:         qr.Points,
			QuestionType:   qr.QuestionType,
		})
	}
	return domain.AttemptResult{
		Score:          grade.Score,
		TotalQuestions: grade.TotalQuestions,
		CorrectAnswers: grade.CorrectCount,
		WrongAnswers:   grade.AnsweredCount - grade.CorrectCount,
		SkippedAnswers: grade.TotalQuestions - grade.AnsweredCount,
		TimeSpent:      timeSpent,
		Passed:         grade.Passed,
		Answers:        answers,
	}
}

// redactAnswers strips stored correct answers unless detailed results are
// visible, and correctness flags when the quiz hides results.
func redactAnswers(a *domain.Attempt, def domain.QuizDefinition, detailed bool) {
	for i := range a.Answers {
		if !detailed {
			a.Answers[i].CorrectAnswer = ""
		}
		if !def.ShowResults {
			a.Answers[i].IsCorrect = false
		}
	}
}

func withholdCorrectAnswers(grade domain.GradeResult) domain.GradeResult {
	out := grade
	out.Questions = make([]domain.QuestionResult, len(grade.Questions))
	for i, qr := range grade.Questions {
		qr.CorrectAnswer = ""
		out.Questions[i] = qr
	}
	return out
}

// ReviewAttempt returns the results view of a finished attempt. Correct
// answers, explanations and option flags appear only when the quiz shows them
// and the anti-cheating gate is open; the gate is evaluated on every call.
func (s *AttemptService) ReviewAttempt(ctx context.Context, subjectID, quizID string, attemptNumber int) (domain.Review, error) {
	quiz, err := s.content.ResolveQuiz(ctx, quizID)
	if err != nil {
		return domain.Review{}, err
	}
	subject, err := s.subjects.LoadSubject(ctx, subjectID)
	if err != nil {
		return domain.Review{}, err
	}
	group, attempt, err := findAttempt(&subject, quizID, attemptNumber)
	if err != nil {
		return domain.Review{}, err
	}
	if attempt.Status == domain.StatusInProgress {
		return domain.Review{}, fmt.Errorf("review attempt %d in progress: %w", attemptNumber, domain.ErrInvalidState)
	}

	def := quiz.Definition
	detailed := def.ShowCorrectAnswers && CanViewDetailedResults(group, def)
	review := domain.Review{
		QuizID:          quizID,
		AttemptNumber:   attempt.AttemptNumber,
		Status:          attempt.Status,
		Score:           attempt.Score,
		Passed:          attempt.Passed,
		TimeSpent:       attempt.TimeSpent,
		DetailedResults: detailed,
		Questions:       make([]domain.ReviewQuestion, 0, len(quiz.Items)),
	}

	stored := make(map[string]domain.Answer, len(attempt.Answers))
	for _, a := range attempt.Answers {
		stored[a.QuestionID] = a
	}
	for _, item := range quiz.Items {
		q := item.Question
		ans, ok := stored[q.ID]
		rq := domain.ReviewQuestion{
			QuestionID:     q.ID,
			Prompt:         q.Prompt,
			QuestionType:   q.QuestionType,
			SelectedAnswer: ans.SelectedAnswer,
			Points:         ans.Points,
		}
		if !ok && q.QuestionType == domain.QuestionWritten {
			rq.SelectedAnswer = domain.NoAnswer
		}
		if def.ShowResults {
			correct := ans.IsCorrect
			rq.IsCorrect = &correct
		}
		if detailed {
			rq.CorrectAnswer = strings.TrimSpace(CorrectAnswerText(q))
			rq.Explanation = q.Explanation
		}
		for _, opt := range q.Options {
			ro := domain.ReviewOption{Text: opt.Text, Image: opt.Image}
			if detailed {
				flag := opt.IsCorrect
				ro.IsCorrect = &flag
			}
			rq.Options = append(rq.Options, ro)
		}
		review.Questions = append(review.Questions, rq)
	}
	return review, nil
}

// Overview reports the subject's standing on a quiz without side effects.
func (s *AttemptService) Overview(ctx context.Context, subjectID, quizID string) (domain.Overview, error) {
	def, err := s.content.Definition(ctx, quizID)
	if err != nil {
		return domain.Overview{}, err
	}
	subject, err := s.subjects.LoadSubject(ctx, subjectID)
	if err != nil {
		return domain.Overview{}, err
	}
	group := subject.Group(quizID)

	ov := domain.Overview{
		QuizID:      quizID,
		MaxAttempts: def.MaxAttempts,
		Remaining:   remainingAttempts(group, def),
		CanStart:    CanStartAttempt(group, def),
		Attempts:    []domain.Attempt{},
	}
	if group == nil {
		return ov, nil
	}
	ov.AttemptsUsed = group.CompletedCount()
	ov.BestScore = group.BestScore
	ov.Passed = group.HasPassed()
	detailed := def.ShowCorrectAnswers && CanViewDetailedResults(group, def)
	for _, a := range group.Attempts {
		c := a.Clone()
		redactAnswers(&c, def, detailed)
		ov.Attempts = append(ov.Attempts, c)
	}
	if active := group.Active(); active != nil {
		a := active.Clone()
		ov.ActiveAttempt = &a
	}
	return ov, nil
}
