package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TelegramCredentials is the decrypted credential material for one
// user's Telegram channel, supplied by the credential store at call
// time. The engine never persists or logs it.
type TelegramCredentials struct {
	BotToken string
	ChatID   string
}

// CredentialStore resolves decrypted Telegram credentials per user
type CredentialStore interface {
	TelegramCredentials(ctx context.Context, userID string) (TelegramCredentials, error)
}

// StaticCredentialStore serves one fixed credential set for every
// user. Suits single-user deployments configured from the environment.
type StaticCredentialStore struct {
	Credentials TelegramCredentials
}

// TelegramCredentials returns the configured credentials
func (s *StaticCredentialStore) TelegramCredentials(ctx context.Context, userID string) (TelegramCredentials, error) {
	if s.Credentials.BotToken == "" || s.Credentials.ChatID == "" {
		return TelegramCredentials{}, Permanent(fmt.Errorf("telegram credentials not configured"))
	}
	return s.Credentials, nil
}

// TelegramTransport delivers notifications via the Telegram Bot API
type TelegramTransport struct {
	credentials CredentialStore
	baseURL     string
	client      *http.Client
}

// NewTelegramTransport creates a Telegram transport. baseURL is the
// Bot API root, normally https://api.telegram.org.
func NewTelegramTransport(credentials CredentialStore, baseURL string, timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		credentials: credentials,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
	}
}

// Send posts the message to the user's chat. Errors carry only HTTP
// status information, never the bot token or chat ID.
func (t *TelegramTransport) Send(ctx context.Context, payload Payload) error {
	creds, err := t.credentials.TelegramCredentials(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve telegram credentials: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    creds.ChatID,
		"text":       payload.Message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, creds.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The transport error may embed the request URL, which contains
		// the token. Report only that the call failed.
		return fmt.Errorf("telegram request failed: %w", sanitizeURLError(err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Permanent(fmt.Errorf("telegram rejected credentials: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("telegram send failed: status %d", resp.StatusCode)
	}
}

// sanitizeURLError strips the request URL (which embeds the bot token)
// from transport-level errors by unwrapping to the underlying cause.
func sanitizeURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
