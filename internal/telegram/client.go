package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Telegram Bot API client: send messages and long-poll
// updates. That is the whole surface the bot needs.
type Client struct {
	token      string
	httpClient *http.Client
}

// NewClient creates a Telegram client for the bot token.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			// Long polls run up to 30s; leave headroom over that.
			Timeout: 40 * time.Second,
		},
	}
}

// Update is one incoming Telegram update.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage posts a Markdown message to the chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	data := url.Values{}
	data.Set("chat_id", strconv.FormatInt(chatID, 10))
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	_, err := c.call(ctx, "sendMessage", data)
	return err
}

// GetUpdates long-polls for updates past offset for up to timeout seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	data := url.Values{}
	data.Set("offset", strconv.FormatInt(offset, 10))
	data.Set("timeout", strconv.Itoa(timeoutSeconds))
	data.Set("allowed_updates", `["message"]`)

	result, err := c.call(ctx, "getUpdates", data)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, data url.Values) (json.RawMessage, error) {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/%s", c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal telegram response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram API error: %s", parsed.Description)
	}
	return parsed.Result, nil
}
