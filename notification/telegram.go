package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications through the Telegram Bot HTTP API.
type TelegramSender struct {
	// APIBase can be overridden for tests; it defaults to the public API.
	APIBase string

	token  string
	client *http.Client
}

// NewTelegramSender creates a sender authenticated with the given bot token.
func NewTelegramSender(token string) *TelegramSender {
	return &TelegramSender{
		APIBase: telegramAPIBase,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// sendMessageRequest is the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// sendMessageResponse is the subset of the Bot API response we check.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the text to the chat via the Bot API.
func (t *TelegramSender) Send(chatID, text string) error {
	jsonData, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.APIBase, t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("error decoding Bot API response: %w", err)
	}
	if !apiResp.OK {
		return fmt.Errorf("Bot API rejected message: %s", apiResp.Description)
	}
	return nil
}
