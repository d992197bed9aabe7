package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizbowl-practice/internal/domain"
)

type countingSource struct {
	mu     sync.Mutex
	calls  int
	err    error
	voices []domain.Voice
}

func (s *countingSource) ListVoices(_ context.Context) ([]domain.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.voices, nil
}

func sampleVoices() []domain.Voice {
	return []domain.Voice{
		{Name: "fr-FR-Standard-A", LanguageCodes: []string{"fr-FR"}, Gender: domain.GenderFemale},
		{Name: "en-US-Standard-B", LanguageCodes: []string{"en-US"}, Gender: domain.GenderMale},
		{Name: "en-GB-Wavenet-A", LanguageCodes: []string{"en-GB"}, Gender: domain.GenderFemale},
		{Name: "en-US-Wavenet-D", LanguageCodes: []string{"en-US"}, Gender: domain.GenderMale},
	}
}

func TestFilterLanguageSortsByName(t *testing.T) {
	got := FilterLanguage(sampleVoices(), "en-")
	if len(got) != 3 {
		t.Fatalf("expected 3 english voices, got %d", len(got))
	}
	if got[0].Name != "en-GB-Wavenet-A" || got[2].Name != "en-US-Wavenet-D" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestDefaultVoicePreference(t *testing.T) {
	if v := DefaultVoice(sampleVoices()); v == nil || v.Name != "en-US-Wavenet-D" {
		t.Fatalf("expected en-US Wavenet default, got %+v", v)
	}
	noWavenet := []domain.Voice{{Name: "en-GB-Standard-A"}, {Name: "en-US-Standard-B"}}
	if v := DefaultVoice(noWavenet); v == nil || v.Name != "en-US-Standard-B" {
		t.Fatalf("expected en-US fallback, got %+v", v)
	}
	if v := DefaultVoice([]domain.Voice{{Name: "de-DE-Standard-A"}}); v == nil || v.Name != "de-DE-Standard-A" {
		t.Fatalf("expected first voice fallback, got %+v", v)
	}
	if v := DefaultVoice(nil); v != nil {
		t.Fatalf("expected nil default for empty list")
	}
}

func TestRegistryLoadsOnce(t *testing.T) {
	source := &countingSource{voices: sampleVoices()}
	reg := NewRegistry(source, "en-")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Voices(context.Background()); err != nil {
				t.Errorf("voices: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := reg.Voices(context.Background()); err != nil {
		t.Fatalf("voices: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected single load, got %d", source.calls)
	}
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	source := &countingSource{err: errors.New("offline")}
	reg := NewRegistry(source, "")

	if _, err := reg.Voices(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	source.mu.Lock()
	source.err = nil
	source.voices = sampleVoices()
	source.mu.Unlock()

	voices, err := reg.Voices(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(voices) != 4 {
		t.Fatalf("expected 4 voices, got %d", len(voices))
	}
}

func TestRegistryOnReadyQueuesUntilLoaded(t *testing.T) {
	source := &countingSource{voices: sampleVoices()}
	reg := NewRegistry(source, "en-")

	ready := make(chan []domain.Voice, 1)
	reg.OnReady(func(v []domain.Voice) { ready <- v })

	select {
	case voices := <-ready:
		if len(voices) != 3 {
			t.Fatalf("expected 3 voices, got %d", len(voices))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for OnReady")
	}

	called := false
	reg.OnReady(func([]domain.Voice) { called = true })
	if !called {
		t.Fatalf("expected immediate callback once loaded")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(NewStaticSource(sampleVoices()), "en-")
	v, err := reg.Lookup(context.Background(), "en-GB-Wavenet-A")
	if err != nil || v.Gender != domain.GenderFemale {
		t.Fatalf("unexpected lookup result %+v %v", v, err)
	}
	if _, err := reg.Lookup(context.Background(), "fr-FR-Standard-A"); !errors.Is(err, domain.ErrVoiceNotFound) {
		t.Fatalf("expected ErrVoiceNotFound for filtered voice, got %v", err)
	}
}

func TestRegistryUnavailableSource(t *testing.T) {
	boom := errors.New("missing key")
	reg := NewRegistry(Unavailable(boom), "en-")
	if _, err := reg.Default(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}
