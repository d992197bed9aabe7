package voice

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"
	"quizbowl-practice/internal/domain"
)

// Registry is a process-wide, lazily loaded voice list. The first caller
// triggers the load; later callers share it. Loads that fail are not cached.
type Registry struct {
	source Source
	prefix string
	sf     singleflight.Group

	mu      sync.Mutex
	loaded  bool
	voices  []domain.Voice
	waiters []func([]domain.Voice)
}

// NewRegistry wraps source, keeping only voices whose language starts with prefix.
func NewRegistry(source Source, prefix string) *Registry {
	return &Registry{source: source, prefix: prefix}
}

// Voices returns the voice list, loading it on first use.
func (r *Registry) Voices(ctx context.Context) ([]domain.Voice, error) {
	r.mu.Lock()
	if r.loaded {
		voices := r.voices
		r.mu.Unlock()
		return voices, nil
	}
	r.mu.Unlock()

	result, err, _ := r.sf.Do("voices", func() (interface{}, error) {
		r.mu.Lock()
		if r.loaded {
			voices := r.voices
			r.mu.Unlock()
			return voices, nil
		}
		r.mu.Unlock()

		listed, err := r.source.ListVoices(ctx)
		if err != nil {
			return nil, err
		}
		voices := FilterLanguage(listed, r.prefix)

		r.mu.Lock()
		r.loaded = true
		r.voices = voices
		waiters := r.waiters
		r.waiters = nil
		r.mu.Unlock()

		for _, fn := range waiters {
			fn(voices)
		}
		return voices, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Voice), nil
}

// OnReady runs fn with the voice list once it is available: immediately when
// already loaded, otherwise after the pending load completes. Registering a
// waiter starts a background load if none is running.
func (r *Registry) OnReady(fn func([]domain.Voice)) {
	r.mu.Lock()
	if r.loaded {
		voices := r.voices
		r.mu.Unlock()
		fn(voices)
		return
	}
	r.waiters = append(r.waiters, fn)
	r.mu.Unlock()

	go func() {
		if _, err := r.Voices(context.Background()); err != nil {
			log.Printf("voice registry load failed: %v", err)
		}
	}()
}

// Default returns the preferred default voice, or nil when the list is empty.
func (r *Registry) Default(ctx context.Context) (*domain.Voice, error) {
	voices, err := r.Voices(ctx)
	if err != nil {
		return nil, err
	}
	return DefaultVoice(voices), nil
}

// Lookup finds a voice by name.
func (r *Registry) Lookup(ctx context.Context, name string) (domain.Voice, error) {
	voices, err := r.Voices(ctx)
	if err != nil {
		return domain.Voice{}, err
	}
	for _, v := range voices {
		if v.Name == name {
			return v, nil
		}
	}
	return domain.Voice{}, domain.ErrVoiceNotFound
}
