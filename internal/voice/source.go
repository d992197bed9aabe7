// Package voice enumerates the synthetic voices a reader can pick from.
package voice

import (
	"context"
	"sort"
	"strings"

	"quizbowl-practice/internal/domain"
)

// Source lists available voices (remote endpoint or on-device registry).
type Source interface {
	ListVoices(ctx context.Context) ([]domain.Voice, error)
}

// StaticSource serves a fixed voice list, e.g. the voices a client device reported
// or the ones configured for on-device synthesis.
type StaticSource struct {
	voices []domain.Voice
}

func NewStaticSource(voices []domain.Voice) *StaticSource {
	return &StaticSource{voices: voices}
}

func (s *StaticSource) ListVoices(_ context.Context) ([]domain.Voice, error) {
	out := make([]domain.Voice, len(s.voices))
	copy(out, s.voices)
	return out, nil
}

// FilterLanguage keeps voices with any language code starting with prefix and
// sorts them by name. An empty prefix keeps everything.
func FilterLanguage(voices []domain.Voice, prefix string) []domain.Voice {
	out := make([]domain.Voice, 0, len(voices))
	for _, v := range voices {
		if prefix == "" || hasLanguagePrefix(v, prefix) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func hasLanguagePrefix(v domain.Voice, prefix string) bool {
	for _, code := range v.LanguageCodes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// DefaultVoice prefers an en-US Wavenet voice, then any en-US voice, then the first one.
func DefaultVoice(voices []domain.Voice) *domain.Voice {
	pick := func(match func(domain.Voice) bool) *domain.Voice {
		for i := range voices {
			if match(voices[i]) {
				v := voices[i]
				return &v
			}
		}
		return nil
	}
	if v := pick(func(v domain.Voice) bool {
		return strings.Contains(v.Name, "en-US") && strings.Contains(v.Name, "Wavenet")
	}); v != nil {
		return v
	}
	if v := pick(func(v domain.Voice) bool { return strings.Contains(v.Name, "en-US") }); v != nil {
		return v
	}
	if len(voices) == 0 {
		return nil
	}
	v := voices[0]
	return &v
}

type unavailableSource struct {
	err error
}

// Unavailable returns a Source that always fails with err, e.g. when the
// remote provider could not be configured.
func Unavailable(err error) Source {
	return unavailableSource{err: err}
}

func (s unavailableSource) ListVoices(context.Context) ([]domain.Voice, error) {
	return nil, s.err
}
