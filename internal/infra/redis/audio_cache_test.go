package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/speech"
)

type countingSynth struct {
	audio speech.Audio
	err   error
	calls int
}

func (s *countingSynth) Synthesize(_ context.Context, _ speech.Request) (speech.Audio, error) {
	s.calls++
	return s.audio, s.err
}

func TestAudioCacheReusesClips(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	next := &countingSynth{audio: speech.Audio{Content: "bXAz", Encoding: speech.EncodingMP3}}
	cache := NewAudioCache(newClient(mr), next, time.Hour)
	voice := &domain.Voice{Name: "en-US-Wavenet-D"}
	req := speech.Request{Text: "Name this capital", Voice: voice, Rate: 1}

	for i := 0; i < 2; i++ {
		audio, err := cache.Synthesize(context.Background(), req)
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if audio.Content != "bXAz" || audio.Encoding != speech.EncodingMP3 {
			t.Fatalf("unexpected audio %+v", audio)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}

	req.Rate = 1.5
	if _, err := cache.Synthesize(context.Background(), req); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("rate must be part of the cache key, calls=%d", next.calls)
	}
}

func TestAudioCacheSkipsDeviceClipsAndErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	next := &countingSynth{audio: speech.Audio{Encoding: speech.EncodingDevice}}
	cache := NewAudioCache(newClient(mr), next, time.Hour)
	req := speech.Request{Text: "Name this largest planet", Rate: 1}

	_, _ = cache.Synthesize(context.Background(), req)
	_, _ = cache.Synthesize(context.Background(), req)
	if next.calls != 2 || len(mr.Keys()) != 0 {
		t.Fatalf("device clips must not be cached, calls=%d keys=%v", next.calls, mr.Keys())
	}

	next.err = errors.New("quota")
	if _, err := cache.Synthesize(context.Background(), req); err == nil {
		t.Fatalf("expected upstream error")
	}
}
