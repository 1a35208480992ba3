package audio

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"agent-widget/config"
)

type fakeMic struct {
	mu       sync.Mutex
	pcm      []byte
	startErr error
	starts   int
}

func (m *fakeMic) Start(sampleRate int, sink *bytes.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.starts++
	sink.Write(m.pcm)
	return nil
}

func (m *fakeMic) Stop() error { return nil }

// callbackLog records the callback order; a speech session must fire
// onResult at most once, always before onEnd.
type callbackLog struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func newCallbackLog() *callbackLog {
	return &callbackLog{done: make(chan struct{})}
}

func (l *callbackLog) onResult(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "result:"+text)
}

func (l *callbackLog) onEnd() {
	l.mu.Lock()
	l.events = append(l.events, "end")
	l.mu.Unlock()
	close(l.done)
}

func (l *callbackLog) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session never ended")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.events...)
}

func newTestRecognizer(serverURL string, mic Microphone) *WhisperRecognizer {
	return &WhisperRecognizer{
		logger:     testLogger(),
		serverURL:  serverURL,
		sampleRate: 16000,
		mic:        mic,
		httpClient: &http.Client{},
	}
}

func TestSpeechSessionRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad multipart body: %v", err)
		}
		if got := r.FormValue("response_format"); got != "text" {
			t.Errorf("response_format = %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
		} else {
			wav, _ := io.ReadAll(file)
			if len(wav) < 44 || string(wav[0:4]) != "RIFF" {
				t.Errorf("upload is not a wav file (%d bytes)", len(wav))
			}
			file.Close()
		}
		fmt.Fprint(w, " [_BEG_] turn on the lights [_TT_350]\n")
	}))
	defer srv.Close()
	mic := &fakeMic{pcm: []byte{1, 0, 2, 0, 3, 0}}
	r := newTestRecognizer(srv.URL, mic)
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	events := log.wait(t)
	want := []string{"result:turn on the lights", "end"}
	if len(events) != 2 || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestSpeechSessionSecondStartIgnored(t *testing.T) {
	mic := &fakeMic{pcm: []byte{1, 0}}
	r := newTestRecognizer("http://localhost:1", mic)
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Errorf("second start returned error: %v", err)
	}
	if mic.starts != 1 {
		t.Errorf("microphone opened %d times, want 1", mic.starts)
	}
}

func TestSpeechSessionStopWhenIdle(t *testing.T) {
	r := newTestRecognizer("http://localhost:1", &fakeMic{})
	r.Stop() // must not panic or fire callbacks
}

func TestSpeechSessionEmptyCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("whisper server called with no audio")
	}))
	defer srv.Close()
	r := newTestRecognizer(srv.URL, &fakeMic{})
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	events := log.wait(t)
	if len(events) != 1 || events[0] != "end" {
		t.Errorf("events = %v, want [end]", events)
	}
}

func TestSpeechSessionMicFailure(t *testing.T) {
	mic := &fakeMic{startErr: fmt.Errorf("device busy")}
	r := newTestRecognizer("http://localhost:1", mic)
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err == nil {
		t.Fatal("expected microphone error")
	}
	events := log.wait(t)
	if len(events) != 1 || events[0] != "end" {
		t.Errorf("events = %v, want [end]", events)
	}
	// the failed session must not wedge the state machine
	mic.startErr = nil
	log2 := newCallbackLog()
	if err := r.Start(log2.onResult, log2.onEnd); err != nil {
		t.Errorf("restart after failure: %v", err)
	}
}

func TestSpeechSessionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	r := newTestRecognizer(srv.URL, &fakeMic{pcm: []byte{1, 0}})
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	events := log.wait(t)
	if len(events) != 1 || events[0] != "end" {
		t.Errorf("events = %v, want [end]", events)
	}
}

// trailingWriteMic finishes one last buffered write while Stop is in
// progress, like a capture loop draining its final stream read.
type trailingWriteMic struct {
	sink    *bytes.Buffer
	stopped chan struct{}
	flushed chan struct{}
}

func newTrailingWriteMic() *trailingWriteMic {
	return &trailingWriteMic{
		stopped: make(chan struct{}),
		flushed: make(chan struct{}),
	}
}

func (m *trailingWriteMic) Start(sampleRate int, sink *bytes.Buffer) error {
	m.sink = sink
	sink.Write([]byte{1, 0})
	go func() {
		<-m.stopped
		time.Sleep(10 * time.Millisecond)
		m.sink.Write([]byte{2, 0})
		close(m.flushed)
	}()
	return nil
}

func (m *trailingWriteMic) Stop() error {
	close(m.stopped)
	<-m.flushed
	return nil
}

func TestSpeechSessionWaitsForFinalWrite(t *testing.T) {
	var wavLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("bad multipart body: %v", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
		} else {
			wav, _ := io.ReadAll(file)
			wavLen = len(wav)
			file.Close()
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()
	r := newTestRecognizer(srv.URL, newTrailingWriteMic())
	log := newCallbackLog()
	if err := r.Start(log.onResult, log.onEnd); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	log.wait(t)
	// header plus both capture chunks; a short upload means the session
	// read the buffer before the capture loop was done with it
	if wavLen != 44+4 {
		t.Errorf("upload was %d bytes, want %d", wavLen, 44+4)
	}
}

func TestNewRecognizerWithoutServer(t *testing.T) {
	cfg := &config.Config{}
	if r := NewRecognizer(testLogger(), cfg); r != nil {
		t.Error("expected nil recognizer when no server is configured")
	}
}
