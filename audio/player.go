// Package audio covers the widget's voice plumbing: the playback
// coordinator for synthesized clips, the TTS synthesizers and the
// speech-input session.
package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"agent-widget/models"
)

// Event is a playback-engine-level signal. Engine events are the sole
// source of truth for clip state; the coordinator only reacts to them.
type Event uint8

const (
	EvPlay Event = iota
	EvPause
	EvEnded
)

func (e Event) String() string {
	switch e {
	case EvPlay:
		return "play"
	case EvPause:
		return "pause"
	case EvEnded:
		return "ended"
	}
	return fmt.Sprintf("event(%d)", e)
}

// transitions is the clip state machine. A missing entry means the event
// is ignored in that state.
var transitions = map[models.AudioState]map[Event]models.AudioState{
	models.AudioIdle: {
		EvPlay: models.AudioPlaying,
	},
	models.AudioPlaying: {
		EvPause: models.AudioPaused,
		EvEnded: models.AudioEnded,
	},
	models.AudioPaused: {
		EvPlay:  models.AudioPlaying,
		EvEnded: models.AudioEnded,
	},
	models.AudioEnded: {
		EvPlay: models.AudioPlaying,
	},
}

// Engine actually makes noise. Start begins a fresh playback of the clip;
// Pause/Resume control a started one. Implementations report state changes
// through the sink passed at construction, including the natural end of a
// clip.
type Engine interface {
	Start(id uint32, clip []byte) error
	Pause(id uint32)
	Resume(id uint32)
}

type clip struct {
	data  []byte
	state models.AudioState
}

// Player coordinates playback across all turns: at most one clip is in the
// playing state at any time.
type Player struct {
	mu        sync.Mutex
	logger    *slog.Logger
	engine    Engine
	clips     map[uint32]*clip
	playingID uint32 // 0 = nothing playing
	onState   func(id uint32, state models.AudioState)
}

// NewPlayer wires a coordinator to an engine built by mkEngine, which
// receives the coordinator's event sink. onState may be nil; it is the UI
// hook for play/pause icon updates.
func NewPlayer(logger *slog.Logger, mkEngine func(sink func(uint32, Event)) Engine, onState func(id uint32, state models.AudioState)) *Player {
	p := &Player{
		logger:  logger,
		clips:   map[uint32]*clip{},
		onState: onState,
	}
	p.engine = mkEngine(p.handleEvent)
	return p
}

// Load registers a synthesized clip for a turn. A second load for the same
// turn supersedes the first.
func (p *Player) Load(turnID uint32, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty clip for turn %d", turnID)
	}
	p.mu.Lock()
	old, ok := p.clips[turnID]
	playing := ok && old.state == models.AudioPlaying
	p.mu.Unlock()
	if playing {
		p.engine.Pause(turnID)
	}
	p.mu.Lock()
	p.clips[turnID] = &clip{data: data, state: models.AudioIdle}
	p.mu.Unlock()
	return nil
}

// Toggle is the per-message play/pause button. Playing target: pause it.
// Anything else: pause whatever else is playing first, then start or
// resume the target.
func (p *Player) Toggle(turnID uint32) error {
	p.mu.Lock()
	c, ok := p.clips[turnID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("no clip for turn %d", turnID)
	}
	state := c.state
	other := p.playingID
	data := c.data
	p.mu.Unlock()
	if state == models.AudioPlaying {
		p.engine.Pause(turnID)
		return nil
	}
	if other != 0 && other != turnID {
		p.engine.Pause(other)
	}
	if state == models.AudioPaused {
		p.engine.Resume(turnID)
		return nil
	}
	// idle or ended: fresh start from the beginning
	if err := p.engine.Start(turnID, data); err != nil {
		return fmt.Errorf("failed to start playback for turn %d: %w", turnID, err)
	}
	return nil
}

// State reports a clip's current state; idle when none is loaded.
func (p *Player) State(turnID uint32) models.AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clips[turnID]; ok {
		return c.state
	}
	return models.AudioIdle
}

// PlayingID returns the turn whose clip is playing, 0 when silent.
func (p *Player) PlayingID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playingID
}

// handleEvent advances the clip FSM on engine events and keeps the
// currently-playing bookkeeping in sync, external end-of-clip included.
func (p *Player) handleEvent(turnID uint32, ev Event) {
	p.mu.Lock()
	c, ok := p.clips[turnID]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn("engine event for unknown clip", "turn", turnID, "event", ev)
		return
	}
	next, ok := transitions[c.state][ev]
	if !ok {
		p.mu.Unlock()
		p.logger.Debug("ignoring engine event", "turn", turnID, "event", ev, "state", c.state)
		return
	}
	c.state = next
	switch next {
	case models.AudioPlaying:
		p.playingID = turnID
	default:
		if p.playingID == turnID {
			p.playingID = 0
		}
	}
	onState := p.onState
	p.mu.Unlock()
	if onState != nil {
		onState(turnID, next)
	}
}
