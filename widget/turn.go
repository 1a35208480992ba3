package widget

import (
	"agent-widget/models"
)

// SubmitUserText runs one user turn: append the user message, ask the
// agent, append the reply. Empty input and submissions made while a
// request is in flight are dropped silently; there is no queue, by design.
// Reports whether the submission was accepted.
func (w *Widget) SubmitUserText(text string, isVoiceOrigin bool) bool {
	text = trimmed(text)
	if text == "" {
		return false
	}
	w.mu.Lock()
	if w.inFlight {
		w.mu.Unlock()
		w.logger.Debug("dropping submission, request already in flight", "text-len", len(text))
		return false
	}
	w.inFlight = true
	voiceMode := w.voiceModeEnabled
	w.mu.Unlock()
	// the user turn is appended before any network work and always stands
	turn := w.appendTurn(models.RoleUser, text, true)
	w.persist()
	w.submitCh <- submitReq{turnID: turn.ID, text: text, voiceMode: voiceMode}
	return true
}

// runRound is the network half of a turn, executed on the Run goroutine.
// Whatever happens, a bot turn is appended and the in-flight flag clears.
func (w *Widget) runRound(req submitReq) {
	w.emitTyping(true)
	reply, ok, err := w.chat.Ask(req.text, req.voiceMode)
	w.emitTyping(false)
	switch {
	case err != nil:
		// transport failure or non-2xx: terminal for this turn, no retry
		w.logger.Error("chat round failed", "turn", req.turnID, "error", err)
		reply = FailureReply
	case !ok:
		// 2xx with a malformed body; not log-worthy per the widget contract
		reply = FallbackReply
	}
	botTurn := w.appendTurn(models.RoleBot, reply, true)
	// the canned fallback is a bot reply like any other and gets spoken;
	// only a failed request stays silent
	if err == nil {
		w.maybeSpeak(botTurn, req.voiceMode)
	}
	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()
	w.persist()
}

// maybeSpeak synthesizes the bot reply when voice mode was active for the
// round. voiceMode is the flag sampled at submission, so toggling it while
// the request is pending does not change whether this reply is spoken.
// Synthesis failure degrades to text-only; the appended turn is never
// altered or rolled back.
func (w *Widget) maybeSpeak(turn models.Turn, voiceMode bool) {
	if !voiceMode || !w.cfg.EnableVoice || w.synth == nil || w.player == nil {
		return
	}
	clip, err := w.synth.Synthesize(turn.Text, w.cfg.VoiceModel)
	if err != nil {
		w.logger.Warn("speech synthesis failed, keeping text-only turn", "turn", turn.ID, "error", err)
		return
	}
	if err := w.player.Load(turn.ID, clip); err != nil {
		w.logger.Warn("failed to load synthesized clip", "turn", turn.ID, "error", err)
		return
	}
	w.attachAudio(turn.ID)
}
