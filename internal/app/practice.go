package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"quizbowl-practice/internal/clock"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/speech"
)

// ErrSessionClosed is returned by operations on a torn-down session.
var ErrSessionClosed = errors.New("practice session closed")

// SessionConfig tunes the timings of a practice session. Zero values use defaults.
type SessionConfig struct {
	Countdown      int
	TickInterval   time.Duration
	FeedbackTTL    time.Duration
	WordsPerMinute int
	Rate           float64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Countdown <= 0 {
		c.Countdown = DefaultCountdown
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.FeedbackTTL <= 0 {
		c.FeedbackTTL = DefaultFeedbackTTL
	}
	c.Rate = speech.NormalizeRate(c.Rate)
	return c
}

// Session is one user's reading of a question set. All state, including the
// speech driver and every timer callback, is guarded by mu.
type Session struct {
	userID string
	set    domain.QuestionSet
	cfg    SessionConfig
	clock  clock.Clock

	mu          sync.Mutex
	nav         *Navigator
	driver      *speech.Driver
	voice       *domain.Voice
	rate        float64
	answer      answerFlow
	feedback    *domain.Feedback
	feedbackID  int
	feedbackTmr clock.Timer
	revealed    string
	speechErr   string
	voiceErr    string
	closed      bool
	subscribers map[chan domain.PracticeState]struct{}
}

// NewSession builds a session positioned on the first question.
func NewSession(userID string, set domain.QuestionSet, synth speech.Synthesizer, clk clock.Clock, cfg SessionConfig) *Session {
	if clk == nil {
		clk = clock.Real()
	}
	cfg = cfg.withDefaults()
	s := &Session{
		userID:      userID,
		set:         set,
		cfg:         cfg,
		clock:       clk,
		nav:         NewNavigator(set.Questions),
		rate:        cfg.Rate,
		subscribers: make(map[chan domain.PracticeState]struct{}),
	}
	s.driver = speech.NewDriver(synth, clk, &s.mu, speech.Handlers{
		OnStart: func(domain.Clip) {
			s.speechErr = ""
			s.broadcastLocked()
		},
		OnProgress: func(speech.Progress) { s.broadcastLocked() },
		OnEnd:      func() { s.broadcastLocked() },
		OnError: func(err error) {
			s.speechErr = err.Error()
			s.broadcastLocked()
		},
	}, speech.Options{WordsPerMinute: cfg.WordsPerMinute})
	return s
}

func (s *Session) UserID() string { return s.userID }
func (s *Session) SetID() string  { return s.set.ID }

// Play starts reading the current question, or resumes it when paused.
func (s *Session) Play() (domain.PracticeState, error) {
	return s.update(func() error {
		if s.answer.session.Open {
			return domain.ErrAnswerOpen
		}
		if s.driver.State() == domain.PlaybackPaused || s.driver.Loading() {
			s.driver.Resume()
			return nil
		}
		if s.driver.State() == domain.PlaybackSpeaking {
			return nil
		}
		q, ok := s.nav.Current()
		if !ok {
			return domain.ErrEmptySet
		}
		start := s.driver.Offset()
		if start >= len(q.Text) {
			start = 0
		}
		return s.speakLocked(q.Text, start)
	})
}

// Pause suspends reading without losing position.
func (s *Session) Pause() (domain.PracticeState, error) {
	return s.update(func() error {
		s.driver.Pause()
		return nil
	})
}

// Resume continues a paused reading.
func (s *Session) Resume() (domain.PracticeState, error) {
	return s.update(func() error {
		if s.answer.session.Open {
			return domain.ErrAnswerOpen
		}
		s.driver.Resume()
		return nil
	})
}

// Stop halts reading and rewinds to the start of the question.
func (s *Session) Stop() (domain.PracticeState, error) {
	return s.update(func() error {
		s.driver.Stop()
		return nil
	})
}

// Next moves to the following question, cancelling speech and any open answer.
func (s *Session) Next() (domain.PracticeState, error) {
	return s.update(func() error {
		s.leaveQuestionLocked()
		s.nav.Next()
		return nil
	})
}

// Previous moves to the preceding question, cancelling speech and any open answer.
func (s *Session) Previous() (domain.PracticeState, error) {
	return s.update(func() error {
		s.leaveQuestionLocked()
		s.nav.Previous()
		return nil
	})
}

// Seek jumps to question i (clamped), used to restore a resume point.
func (s *Session) Seek(i int) (domain.PracticeState, error) {
	return s.update(func() error {
		s.leaveQuestionLocked()
		s.nav.Seek(i)
		return nil
	})
}

// Buzz pauses reading and opens the answer countdown. Buzzing again while
// the countdown runs returns ErrAnswerOpen and changes nothing.
func (s *Session) Buzz() (domain.PracticeState, error) {
	return s.update(func() error {
		if s.answer.session.Open {
			return domain.ErrAnswerOpen
		}
		if _, ok := s.nav.Current(); !ok {
			return domain.ErrEmptySet
		}
		wasSpeaking := s.driver.Pause()
		s.answer.open(s.cfg.Countdown, s.driver.Offset(), wasSpeaking)
		s.clearFeedbackLocked()
		s.scheduleTickLocked()
		return nil
	})
}

// Type records the in-progress answer text.
func (s *Session) Type(text string) (domain.PracticeState, error) {
	return s.update(func() error {
		if !s.answer.session.Open {
			return domain.ErrNoAnswerOpen
		}
		s.answer.session.TypedAnswer = text
		return nil
	})
}

// Submit judges the typed answer and closes the countdown.
func (s *Session) Submit(text string) (domain.PracticeState, error) {
	return s.update(func() error {
		if !s.answer.session.Open {
			return domain.ErrNoAnswerOpen
		}
		s.answer.session.TypedAnswer = text
		q, _ := s.nav.Current()
		outcome := domain.OutcomeIncorrect
		if Judge(text, q.Answer) {
			outcome = domain.OutcomeCorrect
		}
		s.judgeLocked(outcome)
		return nil
	})
}

// Dismiss closes the countdown without judging; reading stays paused.
func (s *Session) Dismiss() (domain.PracticeState, error) {
	return s.update(func() error {
		if !s.answer.session.Open {
			return domain.ErrNoAnswerOpen
		}
		s.answer.close()
		return nil
	})
}

// SetVoice changes the voice for subsequent clips. A reading in progress is
// restarted from its current offset with the new voice.
func (s *Session) SetVoice(v domain.Voice) (domain.PracticeState, error) {
	return s.update(func() error {
		s.voice = &v
		s.voiceErr = ""
		return s.respeakLocked()
	})
}

// SetRate changes the speaking rate, restarting a reading in progress.
func (s *Session) SetRate(rate float64) (domain.PracticeState, error) {
	return s.update(func() error {
		s.rate = speech.NormalizeRate(rate)
		return s.respeakLocked()
	})
}

// SetVoiceError records a voice-list failure. The session stays usable with
// the synthesizer's fallback voice.
func (s *Session) SetVoiceError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceErr = msg
	s.broadcastLocked()
}

// ReportSpeechError records an on-device synthesis failure from the client and
// stops the reading, keeping its offset.
func (s *Session) ReportSpeechError(msg string) (domain.PracticeState, error) {
	return s.update(func() error {
		s.driver.Fail()
		s.speechErr = "speech synthesis error: " + msg
		return nil
	})
}

// Snapshot returns the current view state.
func (s *Session) Snapshot() domain.PracticeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Progress returns the resume point for this session.
func (s *Session) Progress() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Progress{SetID: s.set.ID, Index: s.nav.Index()}
}

// Subscribe returns a channel of snapshots, primed with the current one.
// The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.PracticeState, func()) {
	ch := make(chan domain.PracticeState, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops speech and timers and ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.driver.Stop()
	s.answer.close()
	s.clearFeedbackLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) update(fn func() error) (domain.PracticeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked(), ErrSessionClosed
	}
	err := fn()
	s.broadcastLocked()
	return s.snapshotLocked(), err
}

func (s *Session) speakLocked(text string, offset int) error {
	if err := s.driver.SpeakFrom(text, s.voice, s.rate, offset); err != nil {
		s.speechErr = err.Error()
		return err
	}
	s.speechErr = ""
	return nil
}

// respeakLocked restarts an active reading with the current voice and rate.
// Paused readings keep their clip; the open answer countdown holds speech.
func (s *Session) respeakLocked() error {
	if s.answer.session.Open || s.driver.Paused() {
		return nil
	}
	if s.driver.State() != domain.PlaybackSpeaking && !s.driver.Loading() {
		return nil
	}
	q, ok := s.nav.Current()
	if !ok {
		return nil
	}
	return s.speakLocked(q.Text, s.driver.Offset())
}

func (s *Session) leaveQuestionLocked() {
	s.answer.close()
	s.driver.Stop()
	s.clearFeedbackLocked()
	s.revealed = ""
	s.speechErr = ""
}

func (s *Session) scheduleTickLocked() {
	s.answer.stopTimer()
	id := s.answer.tickID
	s.answer.timer = s.clock.AfterFunc(s.cfg.TickInterval, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || id != s.answer.tickID || !s.answer.session.Open {
			return
		}
		if s.answer.tick() {
			s.judgeLocked(domain.OutcomeTimeout)
		} else {
			s.scheduleTickLocked()
		}
		s.broadcastLocked()
	})
}

func (s *Session) judgeLocked(outcome domain.Outcome) {
	s.answer.close()
	q, _ := s.nav.Current()
	fb := feedbackFor(outcome, q.Answer)
	s.setFeedbackLocked(fb)

	if outcome == domain.OutcomeCorrect || outcome == domain.OutcomeTimeout {
		s.revealed = q.Answer
	}
	if outcome == domain.OutcomeCorrect || !s.answer.wasSpeaking {
		return
	}
	if s.driver.Resume() {
		return
	}
	// The paused clip is gone (stopped or failed meanwhile); read the rest afresh.
	if err := s.speakLocked(q.Text, s.answer.resumeOffset); err != nil {
		log.Printf("resume after buzz failed for %s: %v", s.userID, err)
	}
}

func (s *Session) setFeedbackLocked(fb domain.Feedback) {
	s.clearFeedbackLocked()
	s.feedback = &fb
	id := s.feedbackID
	s.feedbackTmr = s.clock.AfterFunc(s.cfg.FeedbackTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || id != s.feedbackID {
			return
		}
		s.feedback = nil
		s.feedbackTmr = nil
		s.broadcastLocked()
	})
}

func (s *Session) clearFeedbackLocked() {
	s.feedbackID++
	s.feedback = nil
	if s.feedbackTmr != nil {
		s.feedbackTmr.Stop()
		s.feedbackTmr = nil
	}
}

func (s *Session) broadcastLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// Snapshots are complete, so a slow reader only needs the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) snapshotLocked() domain.PracticeState {
	state := domain.PracticeState{
		UserID: s.userID,
		SetID:  s.set.ID,
		Title:  s.set.Title,
		Index:  s.nav.Index(),
		Total:  s.nav.Len(),
		Playback: domain.PlaybackView{
			State:   s.driver.State(),
			Loading: s.driver.Loading(),
			Offset:  s.driver.Offset(),
			Spoken:  s.driver.Spoken(),
		},
		Clip:           s.driver.Clip(),
		Answer:         s.answer.view(),
		RevealedAnswer: s.revealed,
		Rate:           s.rate,
		SpeechError:    s.speechErr,
		VoiceError:     s.voiceErr,
		UpdatedAt:      s.clock.Now(),
	}
	if q, ok := s.nav.Current(); ok {
		state.QuestionID = q.ID
	}
	if s.feedback != nil {
		fb := *s.feedback
		state.Feedback = &fb
	}
	if s.voice != nil {
		v := *s.voice
		state.Voice = &v
	}
	return state
}
