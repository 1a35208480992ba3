package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Widget corner positions.
const (
	PosBottomRight = "bottom-right"
	PosBottomLeft  = "bottom-left"
	PosTopRight    = "top-right"
	PosTopLeft     = "top-left"
)

type Config struct {
	// agent endpoints
	ChatURL      string `toml:"ChatURL"`
	AgentInfoURL string `toml:"AgentInfoURL"`
	// widget look
	AgentName    string `toml:"AgentName"`
	PrimaryColor string `toml:"PrimaryColor"`
	Position     string `toml:"Position"`
	Greeting     string `toml:"Greeting"`
	Placeholder  string `toml:"Placeholder"`
	ButtonIcon   string `toml:"ButtonIcon"`
	Theme        string `toml:"Theme"`
	// voice
	EnableVoice   bool    `toml:"EnableVoice"`
	VoiceModel    string  `toml:"VoiceModel"`
	TTSAPIURL     string  `toml:"TTSAPIURL"`
	TTSProvider   string  `toml:"TTSProvider"` // kokoro (default) or google
	TTSLanguage   string  `toml:"TTSLanguage"`
	TTSSpeed      float32 `toml:"TTSSpeed"`
	STTURL        string  `toml:"STTURL"`
	STTSampleRate int     `toml:"STTSampleRate"`
	// ambient
	LogFile string `toml:"LogFile"`
	DBPath  string `toml:"DBPath"`
}

// LoadConfig reads fn (config.toml when empty) and fills the blanks with the
// same defaults the stock widget ships with.
func LoadConfig(fn string) (*Config, error) {
	if fn == "" {
		fn = "config.toml"
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(fn, cfg); err != nil {
		return nil, err
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) FillDefaults() {
	if c.AgentName == "" {
		c.AgentName = "Assistant"
	}
	if c.PrimaryColor == "" {
		c.PrimaryColor = "#1366d9"
	}
	if c.Position == "" {
		c.Position = PosBottomRight
	}
	if c.Placeholder == "" {
		c.Placeholder = "Type your message..."
	}
	if c.ButtonIcon == "" {
		c.ButtonIcon = "💬"
	}
	if c.Theme == "" {
		c.Theme = "light"
	}
	if c.VoiceModel == "" {
		c.VoiceModel = "af_bella"
	}
	if c.TTSAPIURL == "" {
		c.TTSAPIURL = "https://kokoro.cyreneai.com"
	}
	if c.TTSProvider == "" {
		c.TTSProvider = "kokoro"
	}
	if c.TTSLanguage == "" {
		c.TTSLanguage = "en"
	}
	if c.TTSSpeed <= 0 {
		c.TTSSpeed = 1
	}
	if c.STTSampleRate <= 0 {
		c.STTSampleRate = 16000
	}
	if c.LogFile == "" {
		c.LogFile = "agent-widget.log"
	}
}

func (c *Config) Validate() error {
	if c.ChatURL == "" {
		return fmt.Errorf("ChatURL is required")
	}
	switch c.Position {
	case PosBottomRight, PosBottomLeft, PosTopRight, PosTopLeft:
	default:
		return fmt.Errorf("unknown Position: %s", c.Position)
	}
	return nil
}
