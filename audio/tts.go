package audio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"agent-widget/config"
	"agent-widget/models"

	google_translate_tts "github.com/GrailFinder/google-translate-tts"
	"github.com/GrailFinder/google-translate-tts/handlers"
)

// Synthesizer turns bot reply text into a playable mp3 clip. Any failure
// means "no audio": the caller keeps the text-only turn and moves on.
type Synthesizer interface {
	Synthesize(text, voiceModelID string) ([]byte, error)
}

// NewSynthesizer picks the provider from config; kokoro is the default.
func NewSynthesizer(logger *slog.Logger, cfg *config.Config) Synthesizer {
	switch strings.ToLower(cfg.TTSProvider) {
	case "google", "google-translate", "google_translate":
		return NewGoogleSynthesizer(logger, cfg)
	default:
		return NewKokoroSynthesizer(logger, cfg)
	}
}

// KokoroSynthesizer calls a Kokoro-FastAPI compatible speech endpoint.
type KokoroSynthesizer struct {
	logger     *slog.Logger
	baseURL    string
	format     models.AudioFormat
	httpClient *http.Client
}

func NewKokoroSynthesizer(logger *slog.Logger, cfg *config.Config) *KokoroSynthesizer {
	return &KokoroSynthesizer{
		logger:     logger,
		baseURL:    strings.TrimRight(cfg.TTSAPIURL, "/"),
		format:     models.AFMP3,
		httpClient: &http.Client{},
	}
}

// Synthesize issues exactly one request per bot turn. Fixed mp3 encoding,
// fixed speed=1, never retried.
func (s *KokoroSynthesizer) Synthesize(text, voiceModelID string) ([]byte, error) {
	cleaned := CleanForSpeech(text)
	if cleaned == "" {
		return nil, fmt.Errorf("nothing speakable after cleaning")
	}
	payload := map[string]interface{}{
		"model":           "kokoro",
		"input":           cleaned,
		"voice":           voiceModelID,
		"response_format": s.format,
		"speed":           1,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequest("POST", s.baseURL+"/v1/audio/speech", bytes.NewBuffer(payloadBytes)) //nolint:noctx
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio payload: %w", err)
	}
	if len(clip) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}
	return clip, nil
}

// GoogleSynthesizer is the fallback provider for setups without a Kokoro
// server nearby.
type GoogleSynthesizer struct {
	logger *slog.Logger
	speech *google_translate_tts.Speech
}

func NewGoogleSynthesizer(logger *slog.Logger, cfg *config.Config) *GoogleSynthesizer {
	return &GoogleSynthesizer{
		logger: logger,
		speech: &google_translate_tts.Speech{
			Folder:   os.TempDir() + "/agent-widget-tts",
			Language: cfg.TTSLanguage,
			Speed:    cfg.TTSSpeed,
			Handler:  &handlers.Beep{},
		},
	}
}

func (s *GoogleSynthesizer) Synthesize(text, _ string) ([]byte, error) {
	cleaned := CleanForSpeech(text)
	if cleaned == "" {
		return nil, fmt.Errorf("nothing speakable after cleaning")
	}
	reader, err := s.speech.GenerateSpeech(cleaned)
	if err != nil {
		return nil, fmt.Errorf("generate speech failed: %w", err)
	}
	clip, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated speech: %w", err)
	}
	if len(clip) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}
	return clip, nil
}
