package googletts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/speech"
)

const (
	fallbackLanguage = "en-US"
	fallbackVoice    = "en-US-Wavenet-D"
)

// ErrMissingAPIKey is returned when the client is built without credentials.
var ErrMissingAPIKey = errors.New("missing Google Cloud API key")

// Client talks to the Cloud Text-to-Speech REST API. It is both the remote
// voice source and the remote synthesizer.
type Client struct {
	svc *texttospeech.Service
}

// New builds a client authenticated with an API key. endpoint overrides the
// service base URL when non-empty.
func New(ctx context.Context, apiKey, endpoint string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return NewWithOptions(ctx, opts...)
}

// NewWithOptions builds a client from raw client options.
func NewWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListVoices returns every voice the service offers.
func (c *Client) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	resp, err := c.svc.Voices.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := make([]domain.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		if v == nil {
			continue
		}
		voices = append(voices, domain.Voice{
			Name:          v.Name,
			LanguageCodes: v.LanguageCodes,
			Gender:        domain.Gender(v.SsmlGender),
		})
	}
	return voices, nil
}

// Synthesize requests MP3 audio for req.
func (c *Client) Synthesize(ctx context.Context, req speech.Request) (speech.Audio, error) {
	language, name := fallbackLanguage, fallbackVoice
	if req.Voice != nil {
		if lc := req.Voice.PrimaryLanguage(); lc != "" {
			language = lc
		}
		if req.Voice.Name != "" {
			name = req.Voice.Name
		}
	}

	start := time.Now()
	resp, err := c.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: language,
			Name:         name,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  speech.NormalizeRate(req.Rate),
		},
	}).Context(ctx).Do()
	if err != nil {
		return speech.Audio{}, fmt.Errorf("synthesize: %w", err)
	}
	if resp.AudioContent == "" {
		return speech.Audio{}, speech.ErrNoAudio
	}
	log.Printf("synthesized %d chars with %s in %v", len([]rune(req.Text)), name, time.Since(start))
	return speech.Audio{Content: resp.AudioContent, Encoding: speech.EncodingMP3}, nil
}
