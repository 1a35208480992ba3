package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one message in the conversation log. Immutable after creation
// except for HasAudio, which is flipped once when synthesis succeeds.
type Turn struct {
	ID        uint32    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	HasAudio  bool      `json:"has_audio"`
}

func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

// AudioState of a single playable clip.
type AudioState uint8

const (
	AudioIdle AudioState = iota
	AudioPlaying
	AudioPaused
	AudioEnded
)

func (s AudioState) String() string {
	switch s {
	case AudioIdle:
		return "idle"
	case AudioPlaying:
		return "playing"
	case AudioPaused:
		return "paused"
	case AudioEnded:
		return "ended"
	}
	return fmt.Sprintf("audiostate(%d)", s)
}

// AgentReply is one element of the chat endpoint's response array.
type AgentReply struct {
	Text string `json:"text"`
}

type AgentInfo struct {
	Agent struct {
		Name      string `json:"name"`
		AvatarImg string `json:"avatar_img"`
	} `json:"agent"`
}

type AudioFormat string

const (
	AFMP3 AudioFormat = "mp3"
	AFWav AudioFormat = "wav"
)

// Chat is a stored transcript row; turns are kept as a JSON blob like the
// rest of the message history tooling expects.
type Chat struct {
	ID        uint32    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Msgs      string    `db:"msgs" json:"msgs"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (c *Chat) ToTurns() ([]Turn, error) {
	resp := []Turn{}
	if err := json.Unmarshal([]byte(c.Msgs), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func TurnsToJSON(turns []Turn) (string, error) {
	data, err := json.Marshal(turns)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
