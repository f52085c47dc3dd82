package app

import "quiz-attempt-engine/internal/domain"

// CanStartAttempt decides whether a new attempt may begin. A nil group means
// the subject has never attempted the quiz.
func CanStartAttempt(group *domain.QuizAttemptGroup, quiz domain.QuizDefinition) domain.Decision {
	if group == nil {
		return domain.Decision{Allowed: true}
	}
	if group.HasPassed() {
		return domain.Decision{Reason: domain.ReasonAlreadyPassed}
	}
	if attemptsExhausted(group, quiz) {
		return domain.Decision{Reason: domain.ReasonMaxAttemptsReached}
	}
	return domain.Decision{Allowed: true}
}

// CanViewDetailedResults is the anti-cheating gate: correct answers stay hidden
// until the subject has passed or used every allowed attempt. Callers must
// evaluate it on every results request.
func CanViewDetailedResults(group *domain.QuizAttemptGroup, quiz domain.QuizDefinition) bool {
	if group == nil {
		return false
	}
	return group.HasPassed() || attemptsExhausted(group, quiz)
}

// An unlimited quiz is never exhausted.
func attemptsExhausted(group *domain.QuizAttemptGroup, quiz domain.QuizDefinition) bool {
	return quiz.MaxAttempts > 0 && group.CompletedCount() >= quiz.MaxAttempts
}

// remainingAttempts returns -1 for unlimited quizzes.
func remainingAttempts(group *domain.QuizAttemptGroup, quiz domain.QuizDefinition) int {
	if quiz.MaxAttempts == 0 {
		return -1
	}
	used := 0
	if group != nil {
		used = group.CompletedCount()
	}
	return max(quiz.MaxAttempts-used, 0)
}
