// Package widget holds the chat-widget core: the conversation log, the
// panel/voice state machine and the turn controller that talks to the
// agent, TTS and speech-recognition collaborators. Exactly one Widget per
// process is assumed; all shared flags live on the struct, not in globals.
package widget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"agent-widget/config"
	"agent-widget/models"
)

// Canned bot replies, same wording as the hosted widget.
const (
	FallbackReply = "I'm sorry, I couldn't process your request."
	FailureReply  = "I'm sorry, there was an error processing your request. Please try again."
)

// Chatter is the chat-endpoint collaborator. ok=false means the endpoint
// answered without a usable reply field.
type Chatter interface {
	Ask(text string, voiceMode bool) (reply string, ok bool, err error)
}

// Synthesizer converts bot text to a playable mp3 clip.
type Synthesizer interface {
	Synthesize(text, voiceModelID string) ([]byte, error)
}

// Player registers synthesized clips keyed by turn id.
type Player interface {
	Load(turnID uint32, clip []byte) error
}

// Recognizer is the single-shot speech input session. Start invokes onResult
// at most once, then onEnd; onEnd alone when the session yields nothing.
type Recognizer interface {
	Start(onResult func(string), onEnd func()) error
	Stop()
}

// TurnStore persists the transcript. Failures are log-only.
type TurnStore interface {
	UpsertChat(chat *models.Chat) (*models.Chat, error)
}

// Events are UI hooks. Any field may be nil. Callbacks run outside the
// widget lock but on the turn-controller goroutine, so keep them short.
type Events struct {
	OnTurn    func(turn models.Turn)
	OnTyping  func(active bool)
	OnUnread  func(count int)
	OnPanel   func(open, minimized bool)
	OnVoice   func(voiceMode, recording bool)
	OnRefresh func(turn models.Turn) // turn got its audio handle attached
}

type submitReq struct {
	turnID    uint32
	text      string
	voiceMode bool
}

type Widget struct {
	mu     sync.Mutex
	logger *slog.Logger
	cfg    *config.Config
	events Events

	chat   Chatter
	synth  Synthesizer
	player Player
	rec    Recognizer
	store  TurnStore

	turns  []models.Turn
	nextID uint32

	isOpen      bool
	isMinimized bool
	unreadCount int

	voiceModeEnabled bool
	isRecording      bool

	inFlight bool

	submitCh  chan submitReq
	chatID    uint32
	chatName  string
	createdAt time.Time
}

// New builds the widget and appends the greeting turn. The greeting is
// neither spoken nor counted as unread. Collaborators other than chat may
// be nil (voice disabled, no persistence).
func New(logger *slog.Logger, cfg *config.Config, chat Chatter, synth Synthesizer, player Player, rec Recognizer, store TurnStore, events Events) *Widget {
	w := &Widget{
		logger:    logger,
		cfg:       cfg,
		events:    events,
		chat:      chat,
		synth:     synth,
		player:    player,
		rec:       rec,
		store:     store,
		submitCh:  make(chan submitReq, 1),
		createdAt: time.Now(),
	}
	w.chatName = fmt.Sprintf("widget_%d", w.createdAt.Unix())
	greeting := cfg.Greeting
	if greeting == "" {
		greeting = fmt.Sprintf("Hi! I'm %s. How can I help you today?", cfg.AgentName)
	}
	w.appendTurn(models.RoleBot, greeting, false)
	return w
}

// Run consumes submitted turns until ctx is done. One round at a time; the
// in-flight guard in SubmitUserText makes sure the channel never backs up.
func (w *Widget) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.submitCh:
			w.runRound(req)
		}
	}
}

func (w *Widget) Config() *config.Config {
	return w.cfg
}

// Turns returns a copy of the conversation log in insertion order.
func (w *Widget) Turns() []models.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Widget) UnreadCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unreadCount
}

func (w *Widget) InFlight() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

func (w *Widget) PanelState() (open, minimized bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isOpen, w.isMinimized
}

func (w *Widget) VoiceState() (voiceMode, recording bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.voiceModeEnabled, w.isRecording
}

// Open shows the panel and clears the unread counter.
func (w *Widget) Open() {
	w.mu.Lock()
	w.isOpen = true
	w.unreadCount = 0
	open, min := w.isOpen, w.isMinimized
	w.mu.Unlock()
	w.emitPanel(open, min)
	w.emitUnread(0)
}

// Close hides the panel and forcibly ends any active recording session.
// In-flight chat or synthesis requests keep running; their results still
// land in the conversation (and bump the unread counter).
func (w *Widget) Close() {
	w.mu.Lock()
	w.isOpen = false
	w.isMinimized = false
	open, min := w.isOpen, w.isMinimized
	w.mu.Unlock()
	w.emitPanel(open, min)
	w.StopRecording()
}

// ToggleMinimize flips the minimized flag; the unread counter is untouched.
func (w *Widget) ToggleMinimize() {
	w.mu.Lock()
	w.isMinimized = !w.isMinimized
	open, min := w.isOpen, w.isMinimized
	w.mu.Unlock()
	w.emitPanel(open, min)
}

// ToggleVoiceMode flips voice mode; leaving it also ends recording.
func (w *Widget) ToggleVoiceMode() {
	if !w.cfg.EnableVoice {
		return
	}
	w.mu.Lock()
	w.voiceModeEnabled = !w.voiceModeEnabled
	enabled := w.voiceModeEnabled
	w.mu.Unlock()
	if !enabled {
		w.StopRecording()
	}
	w.mu.Lock()
	vm, rec := w.voiceModeEnabled, w.isRecording
	w.mu.Unlock()
	w.events.emitVoice(vm, rec)
}

// StartRecording begins a speech input session. No-op when voice mode is
// off, a session is already active, or recognition is unavailable.
func (w *Widget) StartRecording() {
	if w.rec == nil {
		w.logger.Debug("speech recognition not available")
		return
	}
	w.mu.Lock()
	if !w.voiceModeEnabled || w.isRecording {
		w.mu.Unlock()
		return
	}
	w.isRecording = true
	vm := w.voiceModeEnabled
	w.mu.Unlock()
	w.events.emitVoice(vm, true)
	err := w.rec.Start(func(transcript string) {
		// a transcript re-enters the same submit path as typed input
		w.SubmitUserText(transcript, true)
	}, func() {
		w.mu.Lock()
		w.isRecording = false
		vm := w.voiceModeEnabled
		w.mu.Unlock()
		w.events.emitVoice(vm, false)
	})
	if err != nil {
		w.logger.Error("failed to start recording", "error", err)
		w.mu.Lock()
		w.isRecording = false
		vm := w.voiceModeEnabled
		w.mu.Unlock()
		w.events.emitVoice(vm, false)
	}
}

// StopRecording forcibly ends an active session; otherwise no-op.
func (w *Widget) StopRecording() {
	w.mu.Lock()
	active := w.isRecording
	w.mu.Unlock()
	if !active || w.rec == nil {
		return
	}
	w.rec.Stop()
}

// ToggleRecording is the mic-button action.
func (w *Widget) ToggleRecording() {
	w.mu.Lock()
	active := w.isRecording
	w.mu.Unlock()
	if active {
		w.StopRecording()
		return
	}
	w.StartRecording()
}

// AddMessage appends a turn directly, bypassing the agent round. clip may
// be nil; a non-nil clip is registered with the player and marks the turn
// as playable. This is the host-facing API the original widget exposes.
func (w *Widget) AddMessage(content string, isUser bool, clip []byte) models.Turn {
	role := models.RoleBot
	if isUser {
		role = models.RoleUser
	}
	turn := w.appendTurn(role, content, true)
	if clip != nil && w.player != nil {
		if err := w.player.Load(turn.ID, clip); err != nil {
			w.logger.Warn("failed to load provided clip", "turn", turn.ID, "error", err)
		} else {
			turn = w.attachAudio(turn.ID)
		}
	}
	w.persist()
	return turn
}

// appendTurn assigns the next sequence id and appends. notify=false is
// used for the greeting, which never counts as unread.
func (w *Widget) appendTurn(role models.Role, text string, notify bool) models.Turn {
	w.mu.Lock()
	w.nextID++
	turn := models.Turn{
		ID:        w.nextID,
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
	w.turns = append(w.turns, turn)
	unread := -1
	if notify && role == models.RoleBot && (!w.isOpen || w.isMinimized) {
		w.unreadCount++
		unread = w.unreadCount
	}
	w.mu.Unlock()
	w.emitTurn(turn)
	if unread >= 0 {
		w.emitUnread(unread)
	}
	return turn
}

// attachAudio marks an existing turn as playable and returns the updated
// copy. Text and ordering are never touched.
func (w *Widget) attachAudio(turnID uint32) models.Turn {
	w.mu.Lock()
	var updated models.Turn
	for i := range w.turns {
		if w.turns[i].ID == turnID {
			w.turns[i].HasAudio = true
			updated = w.turns[i]
			break
		}
	}
	w.mu.Unlock()
	if updated.ID != 0 && w.events.OnRefresh != nil {
		w.events.OnRefresh(updated)
	}
	return updated
}

func (w *Widget) persist() {
	if w.store == nil {
		return
	}
	w.mu.Lock()
	msgs, err := models.TurnsToJSON(w.turns)
	id, name, created := w.chatID, w.chatName, w.createdAt
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("failed to encode transcript", "error", err)
		return
	}
	chat, err := w.store.UpsertChat(&models.Chat{
		ID:        id,
		Name:      name,
		Msgs:      msgs,
		CreatedAt: created,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		w.logger.Warn("failed to persist transcript", "error", err)
		return
	}
	w.mu.Lock()
	w.chatID = chat.ID
	w.mu.Unlock()
}

func (w *Widget) emitTurn(turn models.Turn) {
	if w.events.OnTurn != nil {
		w.events.OnTurn(turn)
	}
}

func (w *Widget) emitUnread(count int) {
	if w.events.OnUnread != nil {
		w.events.OnUnread(count)
	}
}

func (w *Widget) emitPanel(open, minimized bool) {
	if w.events.OnPanel != nil {
		w.events.OnPanel(open, minimized)
	}
}

func (e Events) emitVoice(voiceMode, recording bool) {
	if e.OnVoice != nil {
		e.OnVoice(voiceMode, recording)
	}
}

func (w *Widget) emitTyping(active bool) {
	if w.events.OnTyping != nil {
		w.events.OnTyping(active)
	}
}

// trimmed mirrors the original's input.value.trim().
func trimmed(s string) string {
	return strings.TrimSpace(s)
}
