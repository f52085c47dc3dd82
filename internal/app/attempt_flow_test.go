package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/domain"
)

func TestPresentAttemptKeepsShuffledOrder(t *testing.T) {
	def := quizDef("quiz", 0, "q1", "q2", "q3", "q4")
	def.ShuffleQuestions = true
	def.ShuffleOptions = true
	f := newFixture(t, []domain.QuizDefinition{def})
	ctx := context.Background()

	if _, err := f.service.PresentAttempt(ctx, "s1", "quiz"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected no active attempt, got %v", err)
	}
	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	first, err := f.service.PresentAttempt(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if len(first.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(first.Questions))
	}
	for i := 0; i < 3; i++ {
		again, err := f.service.PresentAttempt(ctx, "s1", "quiz")
		if err != nil {
			t.Fatalf("present again: %v", err)
		}
		if order(again) != order(first) {
			t.Fatalf("presentation changed between reloads: %s vs %s", order(first), order(again))
		}
	}

	active, _ := f.service.GetActiveAttempt(ctx, "s1", "quiz")
	if len(active.QuestionOrder) != 4 {
		t.Fatalf("expected persisted question order, got %v", active.QuestionOrder)
	}
	if len(active.OptionsOrder) != 3 {
		t.Fatalf("expected option orders for the three choice questions, got %d", len(active.OptionsOrder))
	}
}

func order(p domain.Presentation) string {
	s := ""
	for _, q := range p.Questions {
		s += q.QuestionID + ":"
		for _, o := range q.Options {
			s += o.Text + ","
		}
		s += ";"
	}
	return s
}

func TestPresentAttemptWithoutShuffleUsesQuizOrder(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 0, "q2", "q1")})
	ctx := context.Background()
	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	p, err := f.service.PresentAttempt(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if p.Questions[0].QuestionID != "q2" || p.Questions[1].QuestionID != "q1" {
		t.Fatalf("expected quiz order, got %s", order(p))
	}
	if p.Questions[0].Points != 1 {
		t.Fatalf("expected default point value, got %d", p.Questions[0].Points)
	}
	active, _ := f.service.GetActiveAttempt(ctx, "s1", "quiz")
	if len(active.QuestionOrder) != 0 || len(active.OptionsOrder) != 0 {
		t.Fatalf("unshuffled quizzes must not persist orders: %+v", active)
	}
}

func TestPresentAttemptExpired(t *testing.T) {
	def := quizDef("quiz", 0, "q1")
	def.Duration = 10
	f := newFixture(t, []domain.QuizDefinition{def})
	ctx := context.Background()

	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	f.clock.Advance(4 * time.Minute)
	p, err := f.service.PresentAttempt(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if p.RemainingSeconds != 360 {
		t.Fatalf("expected 360s remaining, got %d", p.RemainingSeconds)
	}

	f.clock.Advance(7 * time.Minute)
	if _, err := f.service.PresentAttempt(ctx, "s1", "quiz"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected expired attempt, got %v", err)
	}
	if active, _ := f.service.GetActiveAttempt(ctx, "s1", "quiz"); active != nil {
		t.Fatalf("expired attempt must be timed out")
	}
}

func TestSubmitAttemptRecordsResult(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 3, "q1", "q2", "q3", "q4")})

	out := submit(t, f, map[string]string{"q1": "4", "q2": "Rome", "q3": "x+1"})
	a := out.Attempt
	if a.Status != domain.StatusCompleted || a.Score != 50 || !a.Passed {
		t.Fatalf("unexpected attempt %+v", a)
	}
	if a.CorrectAnswers != 2 || a.WrongAnswers != 1 || a.SkippedAnswers != 1 || a.TotalQuestions != 4 {
		t.Fatalf("unexpected counts %+v", a)
	}
	if a.TimeSpent != 30 || len(a.Answers) != 4 {
		t.Fatalf("unexpected time or answers %+v", a)
	}
	if out.BestScore != 50 || !out.CanViewDetailedResults {
		t.Fatalf("a pass must set best score and open the gate: %+v", out)
	}

	events := f.events.Events()
	last := events[len(events)-1]
	if last.Type != domain.EventAttemptCompleted || last.Score != 50 || !last.Passed {
		t.Fatalf("unexpected completion event %+v", last)
	}
}

func TestSubmitAttemptWithholdsAnswersUntilGateOpens(t *testing.T) {
	def := quizDef("quiz", 2, "q1")
	def.ShowCorrectAnswers = true
	f := newFixture(t, []domain.QuizDefinition{def})

	out := submit(t, f, allWrong)
	if out.CanViewDetailedResults || out.Grade.Questions[0].CorrectAnswer != "" {
		t.Fatalf("correct answers must stay hidden: %+v", out.Grade.Questions[0])
	}
	out = submit(t, f, allWrong)
	if !out.CanViewDetailedResults || out.Grade.Questions[0].CorrectAnswer != "4" {
		t.Fatalf("exhausted attempts must reveal answers: %+v", out.Grade.Questions[0])
	}
}

func TestStoredAnswersStayRedactedUntilGateOpens(t *testing.T) {
	def := quizDef("quiz", 3, "q1", "q3")
	def.ShowCorrectAnswers = true
	def.ShowResults = true
	f := newFixture(t, []domain.QuizDefinition{def})
	ctx := context.Background()

	out := submit(t, f, allWrong)
	for _, a := range out.Attempt.Answers {
		if a.CorrectAnswer != "" {
			t.Fatalf("submission outcome leaks %s answer %q", a.QuestionID, a.CorrectAnswer)
		}
	}
	ov, err := f.service.Overview(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	for _, a := range ov.Attempts[0].Answers {
		if a.CorrectAnswer != "" {
			t.Fatalf("overview leaks %s answer %q", a.QuestionID, a.CorrectAnswer)
		}
	}

	out = submit(t, f, allCorrect)
	if out.Attempt.Answers[0].CorrectAnswer != "4" {
		t.Fatalf("passing opens the gate: %+v", out.Attempt.Answers[0])
	}
	ov, err = f.service.Overview(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Attempts[0].Answers[0].CorrectAnswer != "4" {
		t.Fatalf("earlier attempts are revealed once the gate opens: %+v", ov.Attempts[0].Answers[0])
	}
}

func TestStoredAnswersHideCorrectnessWithoutShowResults(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 0, "q1")})

	out := submit(t, f, allCorrect)
	if !out.Grade.Passed {
		t.Fatalf("expected pass")
	}
	if out.Attempt.Answers[0].IsCorrect {
		t.Fatalf("per-question correctness must stay hidden: %+v", out.Attempt.Answers[0])
	}
	ov, err := f.service.Overview(context.Background(), "s1", "quiz")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Attempts[0].Answers[0].IsCorrect {
		t.Fatalf("overview must hide correctness: %+v", ov.Attempts[0].Answers[0])
	}
}

func TestSubmitAttemptComputesTimeSpent(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 0, "q1")})
	ctx := context.Background()
	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	f.clock.Advance(90 * time.Second)
	out, err := f.service.SubmitAttempt(ctx, "s1", "quiz", allCorrect, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Attempt.TimeSpent != 90 {
		t.Fatalf("expected 90s from the clock, got %d", out.Attempt.TimeSpent)
	}
}

func TestSubmitAttemptAfterDeadline(t *testing.T) {
	def := quizDef("quiz", 0, "q1")
	def.Duration = 1
	f := newFixture(t, []domain.QuizDefinition{def}, app.WithSubmitGrace(10*time.Second))
	ctx := context.Background()

	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	f.clock.Advance(time.Minute + 5*time.Second)
	if _, err := f.service.SubmitAttempt(ctx, "s1", "quiz", allCorrect, 0); err != nil {
		t.Fatalf("submission within grace must be accepted: %v", err)
	}

	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("passed quiz must deny, got %v", err)
	}

	g := newFixture(t, []domain.QuizDefinition{def}, app.WithSubmitGrace(10*time.Second))
	if _, err := g.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	g.clock.Advance(2 * time.Minute)
	if _, err := g.service.SubmitAttempt(ctx, "s1", "quiz", allCorrect, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("late submission must be rejected, got %v", err)
	}
	subject, _ := g.store.LoadSubject(ctx, "s1")
	if got := subject.Group("quiz").Attempt(1).Status; got != domain.StatusTimeout {
		t.Fatalf("late submission must time the attempt out, got %s", got)
	}
	if _, err := g.service.SubmitAttempt(ctx, "s1", "quiz", allCorrect, 0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("no attempt in progress, got %v", err)
	}
}

func TestSubmitZeroQuestionQuiz(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 0)})
	ctx := context.Background()
	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	p, err := f.service.PresentAttempt(ctx, "s1", "quiz")
	if err != nil || len(p.Questions) != 0 {
		t.Fatalf("present: %+v %v", p, err)
	}
	out, err := f.service.SubmitAttempt(ctx, "s1", "quiz", nil, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Attempt.Score != 0 || out.Attempt.Passed {
		t.Fatalf("empty quiz must score 0 and fail a positive threshold: %+v", out.Attempt)
	}
}

func TestReviewAttemptGating(t *testing.T) {
	def := quizDef("quiz", 3, "q1", "q4")
	def.ShowCorrectAnswers = true
	def.ShowResults = true
	f := newFixture(t, []domain.QuizDefinition{def})
	ctx := context.Background()

	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := f.service.ReviewAttempt(ctx, "s1", "quiz", 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("in-progress attempts cannot be reviewed, got %v", err)
	}
	if _, err := f.service.SubmitAttempt(ctx, "s1", "quiz", allWrong, 10); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rv, err := f.service.ReviewAttempt(ctx, "s1", "quiz", 1)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if rv.DetailedResults {
		t.Fatalf("gate must be closed after one failed attempt")
	}
	q := rv.Questions[0]
	if q.IsCorrect == nil || *q.IsCorrect {
		t.Fatalf("results are shown, expected incorrect flag: %+v", q)
	}
	if q.CorrectAnswer != "" || q.Explanation != "" {
		t.Fatalf("correct answer leaked: %+v", q)
	}
	for _, o := range q.Options {
		if o.IsCorrect != nil {
			t.Fatalf("option flag leaked: %+v", o)
		}
	}

	submit(t, f, allCorrect)
	rv, err = f.service.ReviewAttempt(ctx, "s1", "quiz", 1)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !rv.DetailedResults {
		t.Fatalf("a pass must open the gate for earlier attempts too")
	}
	tf := rv.Questions[1]
	if tf.CorrectAnswer != "True" || tf.Explanation == "" || tf.Options[0].IsCorrect == nil || !*tf.Options[0].IsCorrect {
		t.Fatalf("expected revealed answer, got %+v", tf)
	}
}

func TestReviewHidesCorrectnessWithoutShowResults(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 0, "q1", "q3")})
	submit(t, f, map[string]string{"q1": "4"})

	rv, err := f.service.ReviewAttempt(context.Background(), "s1", "quiz", 1)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	for _, q := range rv.Questions {
		if q.IsCorrect != nil {
			t.Fatalf("per-question correctness must be hidden: %+v", q)
		}
	}
	if rv.Questions[1].SelectedAnswer != domain.NoAnswer {
		t.Fatalf("expected no answer placeholder, got %q", rv.Questions[1].SelectedAnswer)
	}
	if rv.Score != 50 {
		t.Fatalf("expected score 50, got %d", rv.Score)
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t, []domain.QuizDefinition{quizDef("quiz", 3, "q1")})
	ctx := context.Background()

	ov, err := f.service.Overview(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if !ov.CanStart.Allowed || ov.Remaining != 3 || ov.AttemptsUsed != 0 {
		t.Fatalf("unexpected fresh overview %+v", ov)
	}

	submit(t, f, allWrong)
	if _, err := f.service.BeginAttempt(ctx, "s1", "quiz"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	ov, err = f.service.Overview(ctx, "s1", "quiz")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.AttemptsUsed != 1 || ov.Remaining != 2 || ov.ActiveAttempt == nil || ov.ActiveAttempt.AttemptNumber != 2 {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if len(ov.Attempts) != 2 || ov.Passed {
		t.Fatalf("unexpected history %+v", ov.Attempts)
	}

	if _, err := f.service.Overview(ctx, "s1", "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestInvalidQuizDefinition(t *testing.T) {
	def := quizDef("quiz", 0, "q1")
	def.PassingScore = 120
	f := newFixture(t, []domain.QuizDefinition{def})
	if _, err := f.service.BeginAttempt(context.Background(), "s1", "quiz"); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz, got %v", err)
	}
}
