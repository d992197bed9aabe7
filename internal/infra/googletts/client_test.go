package googletts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/option"
	"quizbowl-practice/internal/domain"
	"quizbowl-practice/internal/speech"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewWithOptions(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestListVoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/voices", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices": []map[string]any{
				{"name": "en-US-Wavenet-D", "languageCodes": []string{"en-US"}, "ssmlGender": "MALE"},
				{"name": "fr-FR-Standard-A", "languageCodes": []string{"fr-FR"}, "ssmlGender": "FEMALE"},
			},
		})
	})
	client := newTestClient(t, mux)

	voices, err := client.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("list voices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "en-US-Wavenet-D" || voices[0].Gender != domain.GenderMale || voices[0].PrimaryLanguage() != "en-US" {
		t.Fatalf("unexpected voice %+v", voices[0])
	}
}

func TestSynthesizeSendsVoiceAndDecodesAudio(t *testing.T) {
	var got struct {
		Input struct {
			Text string `json:"text"`
		} `json:"input"`
		Voice struct {
			LanguageCode string `json:"languageCode"`
			Name         string `json:"name"`
		} `json:"voice"`
		AudioConfig struct {
			AudioEncoding string  `json:"audioEncoding"`
			SpeakingRate  float64 `json:"speakingRate"`
		} `json:"audioConfig"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text:synthesize", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": "SUQz"})
	})
	client := newTestClient(t, mux)

	audio, err := client.Synthesize(context.Background(), speech.Request{Text: "Name this inventor.", Rate: 1.5})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if audio.Content != "SUQz" || audio.Encoding != speech.EncodingMP3 {
		t.Fatalf("unexpected audio %+v", audio)
	}
	if got.Input.Text != "Name this inventor." || got.Voice.Name != fallbackVoice || got.Voice.LanguageCode != fallbackLanguage {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.AudioConfig.AudioEncoding != "MP3" || got.AudioConfig.SpeakingRate != 1.5 {
		t.Fatalf("unexpected audio config %+v", got.AudioConfig)
	}
}

func TestSynthesizeWithoutAudio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text:synthesize", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	client := newTestClient(t, mux)

	_, err := client.Synthesize(context.Background(), speech.Request{Text: "hi"})
	if !errors.Is(err, speech.ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestSynthesizeHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/text:synthesize", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})
	client := newTestClient(t, mux)

	if _, err := client.Synthesize(context.Background(), speech.Request{Text: "hi"}); err == nil {
		t.Fatalf("expected error for forbidden response")
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
