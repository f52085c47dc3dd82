package domain

import "time"

// NoAnswer is the display value stored for unanswered written questions.
const NoAnswer = "no answer"

// AnswerGrade is the outcome of grading one response.
type AnswerGrade struct {
	IsCorrect bool `json:"isCorrect"`
	Points    int  `json:"points"`
}

// QuestionResult is the graded view of one quiz item.
type QuestionResult struct {
	QuestionID     string       `json:"questionId"`
	QuestionType   QuestionType `json:"questionType"`
	SelectedAnswer string       `json:"selectedAnswer"`
	CorrectAnswer  string       `json:"correctAnswer"`
	Answered       bool         `json:"answered"`
	IsCorrect      bool         `json:"isCorrect"`
	Points         int          `json:"points"`
}

// GradeResult summarizes a graded answer set. Score is a rounded percentage of
// correct questions; TotalPoints sums awarded points and is independent of it.
type GradeResult struct {
	Score          int              `json:"score"`
	CorrectCount   int              `json:"correctCount"`
	AnsweredCount  int              `json:"answeredCount"`
	TotalQuestions int              `json:"totalQuestions"`
	TotalPoints    int              `json:"totalPoints"`
	Passed         bool             `json:"passed"`
	Questions      []QuestionResult `json:"questions"`
}

// AttemptResult is what completing an attempt records.
type AttemptResult struct {
	Score          int
	TotalQuestions int
	CorrectAnswers int
	WrongAnswers   int
	SkippedAnswers int
	TimeSpent      int
	Passed         bool
	Answers        []Answer
}

// StartResult reports whether startAttempt created or resumed an attempt.
type StartResult struct {
	IsNewAttempt bool    `json:"isNewAttempt"`
	Attempt      Attempt `json:"attempt"`
}

// Decision is the outcome of the start-attempt policy.
type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
}

// PresentedOption is an option as shown to a test-taker: no correctness flag.
type PresentedOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// PresentedQuestion is a question in presentation order.
type PresentedQuestion struct {
	Index        int               `json:"index"` // index in quiz order
	QuestionID   string            `json:"questionId"`
	Prompt       string            `json:"prompt"`
	QuestionType QuestionType      `json:"questionType"`
	Points       int               `json:"points"`
	Options      []PresentedOption `json:"options,omitempty"`
}

// Presentation is the render model for an in-progress attempt.
type Presentation struct {
	QuizID           string              `json:"quizId"`
	AttemptNumber    int                 `json:"attemptNumber"`
	StartedAt        time.Time           `json:"startedAt"`
	ExpectedEnd      *time.Time          `json:"expectedEnd,omitempty"`
	RemainingSeconds int                 `json:"remainingSeconds,omitempty"`
	Questions        []PresentedQuestion `json:"questions"`
}

// AttemptOutcome is returned after submission.
type AttemptOutcome struct {
	Attempt                Attempt     `json:"attempt"`
	Grade                  GradeResult `json:"grade"`
	BestScore              int         `json:"bestScore"`
	CanViewDetailedResults bool        `json:"canViewDetailedResults"`
}

// ReviewOption is an option in a review; IsCorrect is nil when withheld.
type ReviewOption struct {
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

// ReviewQuestion is one question of a finished attempt.
type ReviewQuestion struct {
	QuestionID     string         `json:"questionId"`
	Prompt         string         `json:"prompt"`
	QuestionType   QuestionType   `json:"questionType"`
	SelectedAnswer string         `json:"selectedAnswer"`
	IsCorrect      *bool          `json:"isCorrect,omitempty"`
	Points         int            `json:"points"`
	CorrectAnswer  string         `json:"correctAnswer,omitempty"`
	Explanation    string         `json:"explanation,omitempty"`
	Options        []ReviewOption `json:"options,omitempty"`
}

// Review is the results view of one attempt.
type Review struct {
	QuizID          string           `json:"quizId"`
	AttemptNumber   int              `json:"attemptNumber"`
	Status          AttemptStatus    `json:"status"`
	Score           int              `json:"score"`
	Passed          bool             `json:"passed"`
	TimeSpent       int              `json:"timeSpent"`
	DetailedResults bool             `json:"detailedResults"`
	Questions       []ReviewQuestion `json:"questions"`
}

// Overview summarizes a subject's standing on a quiz.
type Overview struct {
	QuizID        string    `json:"quizId"`
	AttemptsUsed  int       `json:"attemptsUsed"`
	MaxAttempts   int       `json:"maxAttempts"`
	Remaining     int       `json:"remaining"` // -1 when unlimited
	BestScore     int       `json:"bestScore"`
	Passed        bool      `json:"passed"`
	CanStart      Decision  `json:"canStart"`
	ActiveAttempt *Attempt  `json:"activeAttempt,omitempty"`
	Attempts      []Attempt `json:"attempts"`
}
