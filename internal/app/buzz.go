package app

import (
	"fmt"
	"time"

	"quizbowl-practice/internal/clock"
	"quizbowl-practice/internal/domain"
)

const (
	DefaultCountdown    = 5
	DefaultTickInterval = time.Second
	DefaultFeedbackTTL  = 3 * time.Second
)

// answerFlow is the buzz modal: open while the countdown runs, closed once
// the answer is judged, the time runs out, or the user dismisses it.
type answerFlow struct {
	session domain.AnswerSession

	// captured at buzz time so an incorrect answer can pick up where reading stopped
	resumeOffset int
	wasSpeaking  bool

	timer  clock.Timer
	tickID int
}

func (a *answerFlow) open(countdown, offset int, wasSpeaking bool) {
	a.session = domain.AnswerSession{Open: true, RemainingSeconds: countdown}
	a.resumeOffset = offset
	a.wasSpeaking = wasSpeaking
}

// tick counts down one step and reports whether the time ran out.
func (a *answerFlow) tick() bool {
	if a.session.RemainingSeconds > 0 {
		a.session.RemainingSeconds--
	}
	return a.session.RemainingSeconds == 0
}

func (a *answerFlow) close() {
	a.stopTimer()
	a.session.Open = false
}

func (a *answerFlow) stopTimer() {
	a.tickID++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *answerFlow) view() *domain.AnswerSession {
	if !a.session.Open {
		return nil
	}
	s := a.session
	return &s
}

func feedbackFor(outcome domain.Outcome, answer string) domain.Feedback {
	switch outcome {
	case domain.OutcomeCorrect:
		return domain.Feedback{Correct: true, Outcome: outcome, Message: fmt.Sprintf("Correct! The answer was %s.", answer)}
	case domain.OutcomeTimeout:
		return domain.Feedback{Outcome: outcome, Message: fmt.Sprintf("Time's up! The answer was %s.", answer)}
	default:
		return domain.Feedback{Outcome: domain.OutcomeIncorrect, Message: "Incorrect."}
	}
}
