package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Bot sends messages through the Telegram bot API.
type Bot struct {
	apiBase string
	token   string
	http    *http.Client
}

// NewBot creates a bot client. apiBase defaults to the public Telegram API.
func NewBot(apiBase, token string) *Bot {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Bot{
		apiBase: base,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether a bot token is present.
func (b *Bot) Configured() bool {
	return b.token != ""
}

// SendMessage posts one text message to a chat. Delivery is best effort;
// a non-2xx platform response is returned as an error.
func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", b.apiBase, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	return nil
}
