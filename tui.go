package main

import (
	"fmt"
	"strconv"
	"strings"

	"agent-widget/models"
	"agent-widget/widget"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	app         *tview.Application
	pages       *tview.Pages
	buttonView  *tview.TextView
	headerView  *tview.TextView
	chatView    *tview.TextView
	inputArea   *tview.TextArea
	voiceBar    *tview.TextView
	statusView  *tview.TextView
	panelFlex   *tview.Flex
	playWindow  *tview.InputField
	helpView    *tview.TextView
	agentName   string
	agentAvatar string
	helpText    = `
[yellow]Enter[white]: send message (Shift+Enter for newline)
[yellow]Esc[white]: close panel
[yellow]F2[white]: toggle voice mode
[yellow]F3[white]: start/stop talking (voice mode)
[yellow]F4[white]: play/pause a reply by its number
[yellow]F9[white]: minimize/restore panel

Press Enter to go back
`
)

func buildUI() {
	theme := tview.Theme{
		PrimitiveBackgroundColor:    tcell.ColorDefault,
		ContrastBackgroundColor:     tcell.ColorGray,
		MoreContrastBackgroundColor: tcell.ColorNavy,
		BorderColor:                 tcell.GetColor(cfg.PrimaryColor),
		TitleColor:                  tcell.GetColor(cfg.PrimaryColor),
		GraphicsColor:               tcell.ColorBlue,
		PrimaryTextColor:            tcell.ColorDefault,
		SecondaryTextColor:          tcell.ColorYellow,
		TertiaryTextColor:           tcell.ColorOrange,
		InverseTextColor:            tcell.ColorPurple,
		ContrastSecondaryTextColor:  tcell.ColorLime,
	}
	if cfg.Theme == "dark" {
		theme.PrimitiveBackgroundColor = tcell.ColorBlack
	}
	tview.Styles = theme
	agentName = cfg.AgentName
	app = tview.NewApplication()
	pages = tview.NewPages()

	buttonView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(buttonAlign())
	buttonView.SetBorder(false)
	buttonView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			wdg.Open()
			return nil
		}
		return event
	})

	headerView = tview.NewTextView().SetDynamicColors(true)
	chatView = tview.NewTextView().
		SetDynamicColors(true).
		SetChangedFunc(func() {
			app.Draw()
		})
	chatView.SetBorder(true).SetTitle(" chat ")
	inputArea = tview.NewTextArea().
		SetPlaceholder(cfg.Placeholder)
	inputArea.SetBorder(true).SetTitle(" input ")
	inputArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter && event.Modifiers()&tcell.ModShift == 0 {
			text := inputArea.GetText()
			if wdg.SubmitUserText(text, false) {
				inputArea.SetText("", true)
			}
			return nil
		}
		return event
	})
	voiceBar = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	statusView = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)

	playWindow = tview.NewInputField().
		SetLabel("Reply number to play/pause: ").
		SetFieldWidth(4).
		SetAcceptanceFunc(tview.InputFieldInteger).
		SetDoneFunc(func(key tcell.Key) {
			pages.RemovePage("play")
		})
	playWindow.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			id, err := strconv.Atoi(playWindow.GetText())
			if err != nil {
				logger.Error("failed to parse turn index", "error", err)
				return event
			}
			if err := player.Toggle(uint32(id)); err != nil {
				logger.Warn("cannot toggle audio", "turn", id, "error", err)
			}
		}
		return event
	})

	helpView = tview.NewTextView().SetDynamicColors(true).SetText(helpText).
		SetDoneFunc(func(key tcell.Key) {
			pages.RemovePage("help")
		})

	panelFlex = tview.NewFlex().SetDirection(tview.FlexRow)
	applyPanelLayout(false)

	pages.AddPage("button", buttonPage(), true, true)
	pages.AddPage("panel", panelFlex, true, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		open, _ := wdg.PanelState()
		switch event.Key() {
		case tcell.KeyEscape:
			if open {
				wdg.Close()
				return nil
			}
		case tcell.KeyF2:
			wdg.ToggleVoiceMode()
			return nil
		case tcell.KeyF3:
			wdg.ToggleRecording()
			return nil
		case tcell.KeyF4:
			playWindow.SetText("")
			pages.AddPage("play", modal(playWindow, 40, 3), true, true)
			return nil
		case tcell.KeyF9:
			if open {
				wdg.ToggleMinimize()
			}
			return nil
		case tcell.KeyF12:
			pages.AddPage("help", helpView, true, true)
			return nil
		}
		return event
	})

	updateButton()
	updateHeader()
	renderChat()
	updateStatusLine()
}

// buttonPage frames the collapsed launcher into the configured corner.
func buttonPage() tview.Primitive {
	row := tview.NewFlex().SetDirection(tview.FlexColumn)
	col := tview.NewFlex().SetDirection(tview.FlexRow)
	switch cfg.Position {
	case "top-left", "top-right":
		col.AddItem(buttonView, 1, 0, true).AddItem(nil, 0, 1, false)
	default:
		col.AddItem(nil, 0, 1, false).AddItem(buttonView, 1, 0, true)
	}
	switch cfg.Position {
	case "bottom-left", "top-left":
		row.AddItem(col, 0, 1, true).AddItem(nil, 0, 2, false)
	default:
		row.AddItem(nil, 0, 2, false).AddItem(col, 0, 1, true)
	}
	return row
}

func buttonAlign() int {
	switch cfg.Position {
	case "bottom-left", "top-left":
		return tview.AlignLeft
	default:
		return tview.AlignRight
	}
}

func applyPanelLayout(minimized bool) {
	panelFlex.Clear()
	panelFlex.AddItem(headerView, 1, 0, false)
	if !minimized {
		panelFlex.AddItem(chatView, 0, 8, false)
		voiceMode, _ := wdg.VoiceState()
		if voiceMode {
			panelFlex.AddItem(voiceBar, 3, 0, false)
		} else {
			panelFlex.AddItem(inputArea, 4, 0, true)
		}
	}
	panelFlex.AddItem(statusView, 1, 0, false)
}

func updateButton() {
	badge := ""
	if n := wdg.UnreadCount(); n > 0 {
		label := strconv.Itoa(n)
		if n > 9 {
			label = "9+"
		}
		badge = fmt.Sprintf(" [white:red:b] %s [-:-:-]", label)
	}
	buttonView.SetText(fmt.Sprintf("[::b]%s %s[-:-:-]%s", cfg.ButtonIcon, agentName, badge))
}

func updateHeader() {
	avatar := "AI"
	if agentAvatar != "" {
		avatar = "◉"
	}
	headerView.SetText(fmt.Sprintf("[::b]%s %s[-:-:-] [green]● Online[-]  (F12 for keys)", avatar, agentName))
}

func updateStatusLine() {
	voiceMode, recording := wdg.VoiceState()
	parts := []string{}
	if wdg.InFlight() {
		parts = append(parts, "[yellow]thinking...[-]")
	}
	if voiceMode {
		parts = append(parts, "[orange]voice mode[-]")
	}
	if recording {
		parts = append(parts, "[red]● recording[-]")
	}
	if playing := player.PlayingID(); playing != 0 {
		parts = append(parts, fmt.Sprintf("[turquoise]♪ playing (%d)[-]", playing))
	}
	statusView.SetText(strings.Join(parts, " | "))
}

// renderChat redraws the whole transcript; cheap enough at widget scale
// and keeps audio markers honest after every state change.
func renderChat() {
	var sb strings.Builder
	for _, turn := range wdg.Turns() {
		sb.WriteString(turnToText(turn))
	}
	chatView.SetText(sb.String())
	chatView.ScrollToEnd()
}

func turnToText(turn models.Turn) string {
	who := agentName
	color := "olive"
	if turn.IsUser() {
		who = "You"
		color = "blue"
	}
	marker := ""
	if turn.HasAudio {
		switch player.State(turn.ID) {
		case models.AudioPlaying:
			marker = " [turquoise]⏸[-]"
		default:
			marker = " [turquoise]▶[-]"
		}
	}
	return fmt.Sprintf("[%s::b](%d) <%s>[-:-:-]%s %s [gray]%s[-]\n",
		color, turn.ID, who, marker, turn.Text, turn.CreatedAt.Format("15:04"))
}

func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

// uiEvents adapts widget callbacks to screen updates. Callbacks can fire
// from the key-handler goroutine or the turn-controller goroutine, so
// every update goes through QueueUpdateDraw on its own goroutine.
func uiEvents() widget.Events {
	return widget.Events{
		OnTurn: func(models.Turn) {
			queueDraw(func() {
				renderChat()
				updateButton()
				updateStatusLine()
			})
		},
		OnRefresh: func(models.Turn) {
			queueDraw(renderChat)
		},
		OnTyping: func(active bool) {
			queueDraw(func() {
				if active {
					inputArea.SetTitle(" " + agentName + " is typing... ")
				} else {
					inputArea.SetTitle(" input ")
				}
				updateStatusLine()
			})
		},
		OnUnread: func(int) {
			queueDraw(updateButton)
		},
		OnPanel: func(open, minimized bool) {
			queueDraw(func() {
				if open {
					applyPanelLayout(minimized)
					pages.SwitchToPage("panel")
					if !minimized {
						app.SetFocus(inputArea)
					}
				} else {
					pages.SwitchToPage("button")
				}
				updateButton()
			})
		},
		OnVoice: func(voiceMode, recording bool) {
			queueDraw(func() {
				_, minimized := wdg.PanelState()
				applyPanelLayout(minimized)
				switch {
				case recording:
					voiceBar.SetText("[red]● Listening... press F3 to stop[-]")
				case voiceMode:
					voiceBar.SetText("[orange]Voice mode: press F3 and speak[-]")
				}
				updateStatusLine()
			})
		},
	}
}

func onAudioState(id uint32, state models.AudioState) {
	logger.Debug("audio state change", "turn", id, "state", state.String())
	queueDraw(func() {
		renderChat()
		updateStatusLine()
	})
}

func queueDraw(fn func()) {
	go app.QueueUpdateDraw(fn)
}
