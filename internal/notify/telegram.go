package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grid-trading-btc-binance/internal/logger"
)

// TelegramSink is the concrete Sink (spec §1's "external collaborator"
// — the transport itself is out of scope, only this shape matters).
// Grounded directly on the teacher's internal/service/telegram.go.
type TelegramSink struct {
	token   string
	chatIDs []string
	client  *http.Client
	baseURL string // overridable in tests
}

// NewTelegramSink builds a sink posting to the Telegram Bot API on
// behalf of every chat ID in chatIDs (the externally managed
// whitelist, per spec §6).
func NewTelegramSink(token string, chatIDs []string) *TelegramSink {
	return &TelegramSink{
		token:   token,
		chatIDs: chatIDs,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.telegram.org",
	}
}

// Whitelist returns the externally managed recipient list.
func (s *TelegramSink) Whitelist() []string {
	return s.chatIDs
}

// Send posts text to recipient (a chat ID) via the Telegram Bot API.
func (s *TelegramSink) Send(recipient, text string) error {
	if s.token == "" {
		logger.Warn("telegram credentials not set, skipping message")
		return fmt.Errorf("telegram: token not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	payload := map[string]string{
		"chat_id":    recipient,
		"text":       escapeMarkdown(text),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}
	return nil
}

func escapeMarkdown(text string) string {
	return strings.ReplaceAll(text, "_", "\\_")
}
