package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agent-widget/config"
	"agent-widget/models"
)

const ipfsGateway = "https://ipfs.erebrus.io/ipfs/"

// Client talks to the conversational-agent endpoints. One request per user
// turn; no streaming, no retries.
type Client struct {
	logger     *slog.Logger
	chatURL    string
	infoURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(logger *slog.Logger, cfg *config.Config) *Client {
	return &Client{
		logger:     logger,
		chatURL:    cfg.ChatURL,
		infoURL:    cfg.AgentInfoURL,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// Ask sends the user text to the chat endpoint and returns the reply text.
// The endpoint takes a multipart form (text, userId, voice_mode) and answers
// with a JSON array; the reply lives at [0].text. A missing reply field is
// not an error: the endpoint answered, it just had nothing usable to say,
// so ok=false lets the caller fall back to the canned apology.
func (c *Client) Ask(text string, voiceMode bool) (reply string, ok bool, err error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("text", text); err != nil {
		return "", false, fmt.Errorf("failed to write text field: %w", err)
	}
	userID := "widget-user-" + strconv.FormatInt(c.now().UnixMilli(), 10)
	if err := writer.WriteField("userId", userID); err != nil {
		return "", false, fmt.Errorf("failed to write userId field: %w", err)
	}
	if err := writer.WriteField("voice_mode", strconv.FormatBool(voiceMode)); err != nil {
		return "", false, fmt.Errorf("failed to write voice_mode field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", false, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	req, err := http.NewRequest("POST", c.chatURL, body) //nolint:noctx
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read chat response: %w", err)
	}
	replies := []models.AgentReply{}
	if err := json.Unmarshal(respBytes, &replies); err != nil {
		c.logger.Warn("chat response is not a json array", "error", err)
		return "", false, nil
	}
	if len(replies) == 0 || replies[0].Text == "" {
		c.logger.Debug("chat response carries no reply text")
		return "", false, nil
	}
	return replies[0].Text, true, nil
}

// FetchInfo loads agent name/avatar from the optional agent-info endpoint.
func (c *Client) FetchInfo() (*models.AgentInfo, error) {
	if c.infoURL == "" {
		return nil, nil
	}
	resp, err := c.httpClient.Get(c.infoURL) //nolint:noctx
	if err != nil {
		return nil, fmt.Errorf("agent info request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent info endpoint returned status %d", resp.StatusCode)
	}
	info := &models.AgentInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("failed to decode agent info: %w", err)
	}
	return info, nil
}

// AvatarURL expands bare IPFS hashes the way the hosted agents serve them.
func AvatarURL(avatarImg string) string {
	if avatarImg == "" {
		return ""
	}
	if strings.HasPrefix(avatarImg, "http") {
		return avatarImg
	}
	return ipfsGateway + avatarImg
}
