package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"quizbowl-practice/internal/clock"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/speech"
)

// SessionRepository keeps the open practice sessions, one per user.
type SessionRepository interface {
	Get(userID string) (*Session, bool)
	Put(userID string, session *Session)
	Delete(userID string)
}

// ProgressStore persists resume points.
type ProgressStore interface {
	SaveProgress(ctx context.Context, userID string, progress domain.Progress) error
	LoadProgress(ctx context.Context, userID, setID string) (domain.Progress, bool, error)
}

// QuestionRepository provides question sets by id.
type QuestionRepository interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// VoiceDirectory lists the voices a session can read with.
type VoiceDirectory interface {
	Voices(ctx context.Context) ([]domain.Voice, error)
	Default(ctx context.Context) (*domain.Voice, error)
	Lookup(ctx context.Context, name string) (domain.Voice, error)
}

// Dependencies wires a PracticeService. Progress and Voices are optional.
type Dependencies struct {
	Sessions    SessionRepository
	Progress    ProgressStore
	Sets        QuestionRepository
	Voices      VoiceDirectory
	Synthesizer speech.Synthesizer
	Clock       clock.Clock
}

// PracticeService coordinates practice sessions across users.
type PracticeService struct {
	sessions SessionRepository
	progress ProgressStore
	sets     QuestionRepository
	voices   VoiceDirectory
	synth    speech.Synthesizer
	clock    clock.Clock
	cfg      SessionConfig

	mu       sync.Mutex
	attached map[string]int
}

func NewPracticeService(deps Dependencies, cfg SessionConfig) *PracticeService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &PracticeService{
		sessions: deps.Sessions,
		progress: deps.Progress,
		sets:     deps.Sets,
		voices:   deps.Voices,
		synth:    deps.Synthesizer,
		clock:    clk,
		cfg:      cfg,
		attached: make(map[string]int),
	}
}

// Open attaches a connection to the user's session for setID, creating it when
// needed. A session for a different set is saved and replaced. Loading the set,
// the resume point and the default voice happens outside the service lock.
func (s *PracticeService) Open(ctx context.Context, userID, setID string) (*Session, error) {
	if existing := s.attach(userID, setID); existing != nil {
		return existing, nil
	}

	session, err := s.build(ctx, userID, setID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions.Get(userID); ok {
		if existing.SetID() == setID {
			// another connection won the race; share its session
			session.Close()
			s.attached[userID]++
			return existing, nil
		}
		s.teardownLocked(ctx, userID, existing)
	}
	s.sessions.Put(userID, session)
	s.attached[userID] = 1
	return session, nil
}

func (s *PracticeService) attach(userID, setID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions.Get(userID)
	if !ok || existing.SetID() != setID {
		return nil
	}
	s.attached[userID]++
	return existing
}

func (s *PracticeService) build(ctx context.Context, userID, setID string) (*Session, error) {
	set, err := s.sets.GetSet(ctx, setID)
	if err != nil {
		return nil, fmt.Errorf("load set %s: %w", setID, err)
	}
	if len(set.Questions) == 0 {
		return nil, domain.ErrEmptySet
	}

	session := NewSession(userID, set, s.synth, s.clock, s.cfg)
	if s.progress != nil {
		progress, ok, err := s.progress.LoadProgress(ctx, userID, setID)
		if err != nil {
			log.Printf("load progress for %s: %v", userID, err)
		} else if ok {
			_, _ = session.Seek(progress.Index)
		}
	}
	if s.voices != nil {
		v, err := s.voices.Default(ctx)
		switch {
		case err != nil:
			session.SetVoiceError(fmt.Sprintf("Failed to load voices: %v", err))
		case v != nil:
			_, _ = session.SetVoice(*v)
		}
	}
	return session, nil
}

// Leave detaches one connection from session. The last one out saves the
// resume point and closes it. Sessions already replaced or closed are ignored.
func (s *PracticeService) Leave(ctx context.Context, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := session.UserID()
	if current, ok := s.sessions.Get(userID); !ok || current != session {
		return
	}
	if s.attached[userID] > 1 {
		s.attached[userID]--
		return
	}
	s.teardownLocked(ctx, userID, session)
}

// SignedOut closes the user's session regardless of attached connections.
func (s *PracticeService) SignedOut(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions.Get(userID); ok {
		s.teardownLocked(ctx, userID, session)
	}
}

func (s *PracticeService) teardownLocked(ctx context.Context, userID string, session *Session) {
	if s.progress != nil {
		if err := s.progress.SaveProgress(ctx, userID, session.Progress()); err != nil {
			log.Printf("save progress for %s: %v", userID, err)
		}
	}
	session.Close()
	s.sessions.Delete(userID)
	delete(s.attached, userID)
}

func (s *PracticeService) Play(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Play)
}

func (s *PracticeService) Pause(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Pause)
}

func (s *PracticeService) Resume(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Resume)
}

func (s *PracticeService) Stop(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Stop)
}

func (s *PracticeService) Next(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Next)
}

func (s *PracticeService) Previous(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Previous)
}

func (s *PracticeService) Buzz(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Buzz)
}

func (s *PracticeService) Dismiss(userID string) (domain.PracticeState, error) {
	return s.with(userID, (*Session).Dismiss)
}

func (s *PracticeService) Type(userID, text string) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		return session.Type(text)
	})
}

func (s *PracticeService) Submit(userID, text string) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		return session.Submit(text)
	})
}

func (s *PracticeService) SetRate(userID string, rate float64) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		return session.SetRate(rate)
	})
}

func (s *PracticeService) ReportSpeechError(userID, message string) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		return session.ReportSpeechError(message)
	})
}

// SelectVoice switches the user's session to the named voice.
func (s *PracticeService) SelectVoice(ctx context.Context, userID, name string) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		if s.voices == nil {
			return session.Snapshot(), domain.ErrVoiceNotFound
		}
		v, err := s.voices.Lookup(ctx, name)
		if err != nil {
			return session.Snapshot(), err
		}
		return session.SetVoice(v)
	})
}

func (s *PracticeService) Snapshot(userID string) (domain.PracticeState, error) {
	return s.with(userID, func(session *Session) (domain.PracticeState, error) {
		return session.Snapshot(), nil
	})
}

// Subscribe streams the user's session snapshots.
func (s *PracticeService) Subscribe(userID string) (<-chan domain.PracticeState, func(), error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Voices returns the voice list and the default pick.
func (s *PracticeService) Voices(ctx context.Context) ([]domain.Voice, *domain.Voice, error) {
	if s.voices == nil {
		return nil, nil, nil
	}
	voices, err := s.voices.Voices(ctx)
	if err != nil {
		return nil, nil, err
	}
	def, err := s.voices.Default(ctx)
	if err != nil {
		return voices, nil, err
	}
	return voices, def, nil
}

// Set returns a question set by id.
func (s *PracticeService) Set(ctx context.Context, setID string) (domain.QuestionSet, error) {
	return s.sets.GetSet(ctx, setID)
}

func (s *PracticeService) with(userID string, fn func(*Session) (domain.PracticeState, error)) (domain.PracticeState, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.PracticeState{}, domain.ErrSessionNotFound
	}
	return fn(session)
}
