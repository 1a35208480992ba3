package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"agent-widget/agent"
	"agent-widget/audio"
	"agent-widget/config"
	"agent-widget/storage"
	"agent-widget/widget"
)

var (
	cfg      *config.Config
	logger   *slog.Logger
	logLevel = new(slog.LevelVar)
	wdg      *widget.Widget
	player   *audio.Player
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()
	var err error
	cfg, err = config.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("failed to load config:", err)
		os.Exit(1)
	}
	logfile, err := os.OpenFile(cfg.LogFile,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("failed to open log file:", err)
		os.Exit(1)
	}
	logLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(logfile, &slog.HandlerOptions{Level: logLevel}))

	var store widget.TurnStore
	if cfg.DBPath != "" {
		provider, err := storage.NewProviderSQL(cfg.DBPath, logger)
		if err != nil {
			logger.Error("failed to open transcript store", "error", err)
			os.Exit(1)
		}
		store = provider
	}
	chatClient := agent.NewClient(logger, cfg)
	var synth widget.Synthesizer
	var rec widget.Recognizer
	player = audio.NewPlayer(logger, audio.NewBeepEngine(logger), onAudioState)
	if cfg.EnableVoice {
		synth = audio.NewSynthesizer(logger, cfg)
		if r := audio.NewRecognizer(logger, cfg); r != nil {
			rec = r
		}
	}
	wdg = widget.New(logger, cfg, chatClient, synth, player, rec, store, uiEvents())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wdg.Run(ctx)

	buildUI()
	go loadAgentInfo(chatClient)
	if err := app.SetRoot(pages, true).EnableMouse(true).Run(); err != nil {
		logger.Error("failed to start tview app", "error", err)
		os.Exit(1)
	}
}

// loadAgentInfo relabels the panel header once the optional agent-info
// endpoint answers.
func loadAgentInfo(client *agent.Client) {
	info, err := client.FetchInfo()
	if err != nil {
		logger.Error("failed to fetch agent info", "error", err)
		return
	}
	if info == nil || info.Agent.Name == "" {
		return
	}
	app.QueueUpdateDraw(func() {
		agentName = info.Agent.Name
		agentAvatar = agent.AvatarURL(info.Agent.AvatarImg)
		updateHeader()
		updateButton()
	})
}
