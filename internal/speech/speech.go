// Package speech turns question text into timed playback: a Synthesizer
// produces the audio, and a Driver paces word-boundary progress over it.
package speech

import (
	"context"
	"errors"

	"quizbowl-practice/internal/domain"
)

const (
	// EncodingMP3 marks base64 MP3 audio produced by a remote synthesizer.
	EncodingMP3 = "mp3"
	// EncodingDevice marks clips the client speaks with its own speech engine.
	EncodingDevice = "device"
)

var (
	// ErrNoSynthesizer is returned when no synthesis capability is configured.
	ErrNoSynthesizer = errors.New("speech synthesis not available")
	// ErrEmptyText is returned when there is nothing left to speak.
	ErrEmptyText = errors.New("nothing to speak")
	// ErrSynthesis wraps failures reported by the synthesizer.
	ErrSynthesis = errors.New("failed to synthesize speech")
	// ErrNoAudio is returned when a synthesizer answers without audio content.
	ErrNoAudio = errors.New("no audio content returned")
)

// Request describes one utterance.
type Request struct {
	Text  string
	Voice *domain.Voice
	Rate  float64
}

// Audio is synthesized speech ready for the client.
type Audio struct {
	Content  string // base64
	Encoding string
}

// Synthesizer converts text to Audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// DeviceSynthesizer hands text back to the client for on-device synthesis.
type DeviceSynthesizer struct{}

func (DeviceSynthesizer) Synthesize(_ context.Context, req Request) (Audio, error) {
	if req.Text == "" {
		return Audio{}, ErrEmptyText
	}
	return Audio{Encoding: EncodingDevice}, nil
}
