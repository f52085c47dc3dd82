package domain

import (
	"sort"
	"time"
)

// QuestionType enumerates the gradable question kinds.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "MCQ"
	QuestionTrueFalse QuestionType = "TrueFalse"
	QuestionWritten   QuestionType = "Written"
)

// HasOptions reports whether answers are picked from a fixed option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// Option represents a possible answer for a choice question.
type Option struct {
	Text      string `bson:"text" json:"text"`
	IsCorrect bool   `bson:"isCorrect" json:"isCorrect"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
}

// CorrectAnswer is an accepted answer for a written question. Text may hold
// several comma-separated alternatives.
type CorrectAnswer struct {
	Text string `bson:"text" json:"text"`
}

// Question is the read model supplied by the content service.
type Question struct {
	ID             string          `bson:"_id" json:"id" validate:"required"`
	Prompt         string          `bson:"prompt" json:"prompt"`
	QuestionType   QuestionType    `bson:"questionType" json:"questionType" validate:"oneof=MCQ TrueFalse Written"`
	Options        []Option        `bson:"options,omitempty" json:"options,omitempty"`
	CorrectAnswers []CorrectAnswer `bson:"correctAnswers,omitempty" json:"correctAnswers,omitempty"`
	Explanation    string          `bson:"explanation,omitempty" json:"explanation,omitempty"`
}

// SelectedQuestion places a question inside a quiz.
type SelectedQuestion struct {
	QuestionID string `bson:"question" json:"question" validate:"required"`
	Points     int    `bson:"points" json:"points" validate:"gte=0"` // defaults to 1 if zero
	Order      int    `bson:"order" json:"order"`
}

// QuizDefinition is owned by content management; the engine never mutates it.
type QuizDefinition struct {
	ID                 string             `bson:"_id" json:"id" validate:"required"`
	Title              string             `bson:"title" json:"title"`
	Questions          []SelectedQuestion `bson:"questions" json:"questions" validate:"dive"`
	Duration           int                `bson:"duration" json:"duration" validate:"gte=0"` // minutes, 0 = untimed
	PassingScore       int                `bson:"passingScore" json:"passingScore" validate:"gte=0,lte=100"`
	MaxAttempts        int                `bson:"maxAttempts" json:"maxAttempts" validate:"gte=0"` // 0 = unlimited
	ShuffleQuestions   bool               `bson:"shuffleQuestions" json:"shuffleQuestions"`
	ShuffleOptions     bool               `bson:"shuffleOptions" json:"shuffleOptions"`
	ShowCorrectAnswers bool               `bson:"showCorrectAnswers" json:"showCorrectAnswers"`
	ShowResults        bool               `bson:"showResults" json:"showResults"`
}

// QuizItem is a selected question with its content resolved.
type QuizItem struct {
	Question Question `json:"question"`
	Points   int      `json:"points"`
	Order    int      `json:"order"`
}

// Quiz is a definition whose questions have been resolved, in quiz order.
type Quiz struct {
	Definition QuizDefinition `json:"definition"`
	Items      []QuizItem     `json:"items"`
}

// SortItems orders items by their configured order, keeping ties stable.
func SortItems(items []QuizItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
}

// AttemptStatus is the lifecycle state of one attempt.
type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusCompleted  AttemptStatus = "completed"
	StatusTimeout    AttemptStatus = "timeout"
	StatusAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further transitions are defined.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusTimeout || s == StatusAbandoned
}

// OptionOrder is the persisted option permutation for one question.
type OptionOrder struct {
	QuestionIndex  int   `bson:"questionIndex" json:"questionIndex"`
	OptionsIndices []int `bson:"optionsIndices" json:"optionsIndices"`
}

// Answer is one graded response stored on an attempt.
type Answer struct {
	QuestionID     string       `bson:"questionId" json:"questionId"`
	SelectedAnswer string       `bson:"selectedAnswer" json:"selectedAnswer"`
	CorrectAnswer  string       `bson:"correctAnswer" json:"correctAnswer"`
	IsCorrect      bool         `bson:"isCorrect" json:"isCorrect"`
	Points         int          `bson:"points" json:"points"`
	QuestionType   QuestionType `bson:"questionType" json:"questionType"`
}

// Attempt is one timed or untimed run of a quiz.
type Attempt struct {
	AttemptNumber  int           `bson:"attemptNumber" json:"attemptNumber"`
	Status         AttemptStatus `bson:"status" json:"status"`
	StartedAt      time.Time     `bson:"startedAt" json:"startedAt"`
	ExpectedEnd    *time.Time    `bson:"expectedEnd,omitempty" json:"expectedEnd,omitempty"`
	CompletedAt    *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Score          int           `bson:"score" json:"score"`
	TotalQuestions int           `bson:"totalQuestions" json:"totalQuestions"`
	CorrectAnswers int           `bson:"correctAnswers" json:"correctAnswers"`
	WrongAnswers   int           `bson:"wrongAnswers" json:"wrongAnswers"`
	SkippedAnswers int           `bson:"skippedAnswers" json:"skippedAnswers"`
	TimeSpent      int           `bson:"timeSpent" json:"timeSpent"` // seconds
	Passed         bool          `bson:"passed" json:"passed"`
	QuestionOrder  []int         `bson:"questionOrder" json:"questionOrder"`
	OptionsOrder   []OptionOrder `bson:"optionsOrder" json:"optionsOrder"`
	Answers        []Answer      `bson:"answers" json:"answers"`
}

// Expired reports whether a timed attempt has passed its deadline at now.
func (a *Attempt) Expired(now time.Time) bool {
	return a.ExpectedEnd != nil && now.After(*a.ExpectedEnd)
}

// OptionOrderFor returns the persisted permutation for a question index.
func (a *Attempt) OptionOrderFor(questionIndex int) ([]int, bool) {
	for _, o := range a.OptionsOrder {
		if o.QuestionIndex == questionIndex {
			return o.OptionsIndices, true
		}
	}
	return nil, false
}

// QuizAttemptGroup holds every attempt by one subject on one quiz.
// Attempts are append-only; historical entries only change status.
type QuizAttemptGroup struct {
	QuizID    string    `bson:"quizId" json:"quizId"`
	Attempts  []Attempt `bson:"attempts" json:"attempts"`
	BestScore int       `bson:"bestScore" json:"bestScore"`
}

// Active returns the in-progress attempt, if any.
func (g *QuizAttemptGroup) Active() *Attempt {
	for i := range g.Attempts {
		if g.Attempts[i].Status == StatusInProgress {
			return &g.Attempts[i]
		}
	}
	return nil
}

// Attempt returns the attempt with the given number.
func (g *QuizAttemptGroup) Attempt(number int) *Attempt {
	for i := range g.Attempts {
		if g.Attempts[i].AttemptNumber == number {
			return &g.Attempts[i]
		}
	}
	return nil
}

// CompletedCount counts attempts in the completed state.
func (g *QuizAttemptGroup) CompletedCount() int {
	n := 0
	for _, a := range g.Attempts {
		if a.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// HasPassed reports whether any completed attempt passed.
func (g *QuizAttemptGroup) HasPassed() bool {
	for _, a := range g.Attempts {
		if a.Status == StatusCompleted && a.Passed {
			return true
		}
	}
	return false
}

// RecomputeBestScore sets BestScore to the max over completed attempts,
// never lowering it.
func (g *QuizAttemptGroup) RecomputeBestScore() {
	for _, a := range g.Attempts {
		if a.Status == StatusCompleted && a.Score > g.BestScore {
			g.BestScore = a.Score
		}
	}
}

// SubjectKind distinguishes students from guests.
type SubjectKind string

const (
	SubjectStudent SubjectKind = "student"
	SubjectGuest   SubjectKind = "guest"
)

// Subject is the aggregate root owning all of a user's quiz attempts.
// Version is bumped on every successful save.
type Subject struct {
	ID           string             `bson:"_id" json:"id"`
	Kind         SubjectKind        `bson:"kind" json:"kind"`
	Version      int64              `bson:"version" json:"version"`
	QuizAttempts []QuizAttemptGroup `bson:"quizAttempts" json:"quizAttempts"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Group returns the attempt group for a quiz, or nil.
func (s *Subject) Group(quizID string) *QuizAttemptGroup {
	for i := range s.QuizAttempts {
		if s.QuizAttempts[i].QuizID == quizID {
			return &s.QuizAttempts[i]
		}
	}
	return nil
}

// GroupOrCreate returns the attempt group for a quiz, creating it if absent.
func (s *Subject) GroupOrCreate(quizID string) *QuizAttemptGroup {
	if g := s.Group(quizID); g != nil {
		return g
	}
	s.QuizAttempts = append(s.QuizAttempts, QuizAttemptGroup{QuizID: quizID})
	return &s.QuizAttempts[len(s.QuizAttempts)-1]
}

// Clone returns a deep copy so stores never share slices with callers.
func (s Subject) Clone() Subject {
	out := s
	out.QuizAttempts = make([]QuizAttemptGroup, len(s.QuizAttempts))
	for i, g := range s.QuizAttempts {
		out.QuizAttempts[i] = g.Clone()
	}
	return out
}

// Clone returns a deep copy of the group.
func (g QuizAttemptGroup) Clone() QuizAttemptGroup {
	out := g
	out.Attempts = make([]Attempt, len(g.Attempts))
	for i, a := range g.Attempts {
		out.Attempts[i] = a.Clone()
	}
	return out
}

// Clone returns a deep copy of the attempt.
func (a Attempt) Clone() Attempt {
	out := a
	if a.ExpectedEnd != nil {
		t := *a.ExpectedEnd
		out.ExpectedEnd = &t
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	out.QuestionOrder = append([]int(nil), a.QuestionOrder...)
	out.OptionsOrder = make([]OptionOrder, len(a.OptionsOrder))
	for i, o := range a.OptionsOrder {
		out.OptionsOrder[i] = OptionOrder{
			QuestionIndex:  o.QuestionIndex,
			OptionsIndices: append([]int(nil), o.OptionsIndices...),
		}
	}
	out.Answers = append([]Answer(nil), a.Answers...)
	return out
}
