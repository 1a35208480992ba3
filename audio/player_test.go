package audio

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"agent-widget/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine reports every control call back through the sink right away,
// the way a real engine reports asynchronously.
type fakeEngine struct {
	sink     func(uint32, Event)
	started  []uint32
	paused   []uint32
	resumed  []uint32
	startErr error
}

func (e *fakeEngine) Start(id uint32, clip []byte) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.started = append(e.started, id)
	e.sink(id, EvPlay)
	return nil
}

func (e *fakeEngine) Pause(id uint32) {
	e.paused = append(e.paused, id)
	e.sink(id, EvPause)
}

func (e *fakeEngine) Resume(id uint32) {
	e.resumed = append(e.resumed, id)
	e.sink(id, EvPlay)
}

func newTestPlayer(onState func(uint32, models.AudioState)) (*Player, *fakeEngine) {
	eng := &fakeEngine{}
	p := NewPlayer(testLogger(), func(sink func(uint32, Event)) Engine {
		eng.sink = sink
		return eng
	}, onState)
	return p, eng
}

func TestLoadRejectsEmptyClip(t *testing.T) {
	p, _ := newTestPlayer(nil)
	if err := p.Load(1, nil); err == nil {
		t.Error("expected error for empty clip")
	}
	if err := p.Load(1, []byte("mp3")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := p.State(1); got != models.AudioIdle {
		t.Errorf("state after load = %s, want idle", got)
	}
}

func TestToggleUnknownClip(t *testing.T) {
	p, _ := newTestPlayer(nil)
	if err := p.Toggle(7); err == nil {
		t.Error("expected error for unknown clip")
	}
}

func TestPlayPauseResumeCycle(t *testing.T) {
	p, eng := newTestPlayer(nil)
	if err := p.Load(1, []byte("mp3")); err != nil {
		t.Fatal(err)
	}
	if err := p.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if got := p.State(1); got != models.AudioPlaying {
		t.Fatalf("state after first toggle = %s, want playing", got)
	}
	if got := p.PlayingID(); got != 1 {
		t.Fatalf("playing id = %d, want 1", got)
	}
	if err := p.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if got := p.State(1); got != models.AudioPaused {
		t.Fatalf("state after second toggle = %s, want paused", got)
	}
	if got := p.PlayingID(); got != 0 {
		t.Fatalf("playing id while paused = %d, want 0", got)
	}
	if err := p.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if got := p.State(1); got != models.AudioPlaying {
		t.Fatalf("state after third toggle = %s, want playing", got)
	}
	// one fresh start, one resume, never a second decode
	if len(eng.started) != 1 || len(eng.resumed) != 1 {
		t.Errorf("engine calls: started=%v resumed=%v", eng.started, eng.resumed)
	}
}

func TestAtMostOnePlaying(t *testing.T) {
	p, eng := newTestPlayer(nil)
	p.Load(1, []byte("a"))
	p.Load(2, []byte("b"))
	if err := p.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if err := p.Toggle(2); err != nil {
		t.Fatal(err)
	}
	if got := p.State(1); got != models.AudioPaused {
		t.Errorf("first clip state = %s, want paused", got)
	}
	if got := p.State(2); got != models.AudioPlaying {
		t.Errorf("second clip state = %s, want playing", got)
	}
	if got := p.PlayingID(); got != 2 {
		t.Errorf("playing id = %d, want 2", got)
	}
	if len(eng.paused) != 1 || eng.paused[0] != 1 {
		t.Errorf("paused calls = %v, want [1]", eng.paused)
	}
}

func TestNaturalEndAndReplay(t *testing.T) {
	p, eng := newTestPlayer(nil)
	p.Load(1, []byte("mp3"))
	p.Toggle(1)
	// the engine reaches end of stream on its own
	eng.sink(1, EvEnded)
	if got := p.State(1); got != models.AudioEnded {
		t.Fatalf("state after ended = %s, want ended", got)
	}
	if got := p.PlayingID(); got != 0 {
		t.Fatalf("playing id after ended = %d, want 0", got)
	}
	// toggling an ended clip replays it from the start
	if err := p.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if got := p.State(1); got != models.AudioPlaying {
		t.Fatalf("state after replay = %s, want playing", got)
	}
	if len(eng.started) != 2 {
		t.Errorf("started calls = %v, want a fresh start per replay", eng.started)
	}
}

func TestInvalidEventsIgnored(t *testing.T) {
	p, eng := newTestPlayer(nil)
	p.Load(1, []byte("mp3"))
	eng.sink(1, EvPause)
	if got := p.State(1); got != models.AudioIdle {
		t.Errorf("pause while idle moved state to %s", got)
	}
	eng.sink(1, EvEnded)
	if got := p.State(1); got != models.AudioIdle {
		t.Errorf("ended while idle moved state to %s", got)
	}
	// events for turns that never loaded a clip are dropped
	eng.sink(99, EvPlay)
	if got := p.PlayingID(); got != 0 {
		t.Errorf("unknown clip became playing id %d", got)
	}
}

func TestLoadSupersedesPlayingClip(t *testing.T) {
	p, eng := newTestPlayer(nil)
	p.Load(1, []byte("v1"))
	p.Toggle(1)
	if err := p.Load(1, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if len(eng.paused) != 1 || eng.paused[0] != 1 {
		t.Errorf("superseded clip was not paused: %v", eng.paused)
	}
	if got := p.State(1); got != models.AudioIdle {
		t.Errorf("state after reload = %s, want idle", got)
	}
}

func TestStartFailureSurfaces(t *testing.T) {
	p, eng := newTestPlayer(nil)
	eng.startErr = fmt.Errorf("no speaker")
	p.Load(1, []byte("mp3"))
	if err := p.Toggle(1); err == nil {
		t.Error("expected start failure to surface")
	}
	if got := p.State(1); got != models.AudioIdle {
		t.Errorf("state after failed start = %s, want idle", got)
	}
}

func TestOnStateHook(t *testing.T) {
	var seen []models.AudioState
	p, eng := newTestPlayer(func(id uint32, st models.AudioState) {
		seen = append(seen, st)
	})
	p.Load(1, []byte("mp3"))
	p.Toggle(1)
	p.Toggle(1)
	eng.sink(1, EvEnded)
	want := []models.AudioState{models.AudioPlaying, models.AudioPaused, models.AudioEnded}
	if len(seen) != len(want) {
		t.Fatalf("onState calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("onState[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}
