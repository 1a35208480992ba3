package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"agent-widget/config"
)

var specialTokenRE = regexp.MustCompile(`\[.*?\]`)

type sessionState uint8

const (
	sttIdle sessionState = iota
	sttListening
)

// Microphone captures raw PCM into sink until stopped. Stop returns only
// after the capture loop has finished writing, so the caller may read sink
// afterwards without racing it.
type Microphone interface {
	Start(sampleRate int, sink *bytes.Buffer) error
	Stop() error
}

// WhisperRecognizer is the single-shot speech input session: one
// activation yields at most one transcript. State machine is
// idle -> listening -> idle; onEnd always fires before the session is
// reusable again.
type WhisperRecognizer struct {
	mu         sync.Mutex
	logger     *slog.Logger
	serverURL  string
	sampleRate int
	mic        Microphone
	httpClient *http.Client

	state    sessionState
	buf      bytes.Buffer
	onResult func(string)
	onEnd    func()
}

// NewRecognizer returns nil when the capability is unavailable (no server
// configured); callers treat nil as "recognition unsupported".
func NewRecognizer(logger *slog.Logger, cfg *config.Config) *WhisperRecognizer {
	if cfg.STTURL == "" {
		logger.Debug("no whisper server configured, speech input disabled")
		return nil
	}
	return &WhisperRecognizer{
		logger:     logger,
		serverURL:  cfg.STTURL,
		sampleRate: cfg.STTSampleRate,
		mic:        &PortAudioMic{logger: logger},
		httpClient: &http.Client{},
	}
}

// Start begins listening. No-op (with a log line) when a session is
// already active or the microphone cannot be opened.
func (r *WhisperRecognizer) Start(onResult func(string), onEnd func()) error {
	r.mu.Lock()
	if r.state == sttListening {
		r.mu.Unlock()
		r.logger.Debug("speech session already active")
		return nil
	}
	r.state = sttListening
	r.onResult = onResult
	r.onEnd = onEnd
	r.buf.Reset()
	r.mu.Unlock()
	if err := r.mic.Start(r.sampleRate, &r.buf); err != nil {
		r.finish(nil)
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	return nil
}

// Stop ends an active session. The captured audio goes to the whisper
// server off the caller's goroutine; onResult fires once on a usable
// transcript, then onEnd, then the session is idle again.
func (r *WhisperRecognizer) Stop() {
	r.mu.Lock()
	if r.state != sttListening {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	if err := r.mic.Stop(); err != nil {
		r.logger.Error("failed to stop microphone", "error", err)
	}
	go func() {
		transcript, err := r.transcribe()
		if err != nil {
			r.logger.Error("transcription failed", "error", err)
			r.finish(nil)
			return
		}
		if transcript == "" {
			r.finish(nil)
			return
		}
		r.finish(&transcript)
	}()
}

func (r *WhisperRecognizer) finish(transcript *string) {
	r.mu.Lock()
	onResult, onEnd := r.onResult, r.onEnd
	r.onResult, r.onEnd = nil, nil
	r.mu.Unlock()
	if transcript != nil && onResult != nil {
		onResult(*transcript)
	}
	if onEnd != nil {
		onEnd()
	}
	r.mu.Lock()
	r.state = sttIdle
	r.mu.Unlock()
}

func (r *WhisperRecognizer) transcribe() (string, error) {
	r.mu.Lock()
	dataSize := r.buf.Len()
	r.mu.Unlock()
	if dataSize == 0 {
		return "", nil
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	writeWavHeader(part, r.sampleRate, dataSize)
	r.mu.Lock()
	_, err = io.Copy(part, &r.buf)
	r.buf.Reset()
	r.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("failed to write response_format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	resp, err := r.httpClient.Post(r.serverURL, writer.FormDataContentType(), body) //nolint:noctx
	if err != nil {
		return "", fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server returned status %d", resp.StatusCode)
	}
	respText, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read whisper response: %w", err)
	}
	// whisper emits special tokens like [_BEG_] in text mode
	transcript := specialTokenRE.ReplaceAllString(string(respText), "")
	return strings.TrimSpace(transcript), nil
}

// writeWavHeader prepends a 16-bit mono PCM RIFF header.
func writeWavHeader(w io.Writer, sampleRate, dataSize int) {
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate)*2)
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	w.Write(header) //nolint:errcheck
}
