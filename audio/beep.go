package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// BeepEngine plays mp3 clips through the system speaker. Each Start
// decodes the clip from scratch, so a toggle after ended replays from the
// beginning, like the original widget's Audio elements.
type BeepEngine struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sink     func(uint32, Event)
	ctrls    map[uint32]*beep.Ctrl
	spkrInit bool
}

func NewBeepEngine(logger *slog.Logger) func(sink func(uint32, Event)) Engine {
	return func(sink func(uint32, Event)) Engine {
		return &BeepEngine{
			logger: logger,
			sink:   sink,
			ctrls:  map[uint32]*beep.Ctrl{},
		}
	}
}

func (e *BeepEngine) Start(id uint32, clip []byte) error {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
	if err != nil {
		return fmt.Errorf("mp3 decode failed: %w", err)
	}
	e.mu.Lock()
	if !e.spkrInit {
		// the speaker can only be initialized once per process; clips all
		// come from the same TTS endpoint with one sample rate
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to init speaker: %w", err)
		}
		e.spkrInit = true
	}
	ctrl := &beep.Ctrl{Streamer: beep.Seq(streamer, beep.Callback(func() {
		e.mu.Lock()
		delete(e.ctrls, id)
		e.mu.Unlock()
		e.sink(id, EvEnded)
	})), Paused: false}
	e.ctrls[id] = ctrl
	e.mu.Unlock()
	speaker.Play(ctrl)
	e.sink(id, EvPlay)
	return nil
}

func (e *BeepEngine) Pause(id uint32) {
	e.mu.Lock()
	ctrl, ok := e.ctrls[id]
	e.mu.Unlock()
	if !ok {
		e.logger.Debug("pause for clip that is not loaded", "id", id)
		return
	}
	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
	e.sink(id, EvPause)
}

func (e *BeepEngine) Resume(id uint32) {
	e.mu.Lock()
	ctrl, ok := e.ctrls[id]
	e.mu.Unlock()
	if !ok {
		e.logger.Debug("resume for clip that is not loaded", "id", id)
		return
	}
	speaker.Lock()
	ctrl.Paused = false
	speaker.Unlock()
	e.sink(id, EvPlay)
}
