package telegram

import "context"

// Sink adapts one Telegram chat to the notifier's delivery interface.
type Sink struct {
	client *Client
	chatID int64
}

// NewSink creates a notifier sink for the chat.
func NewSink(client *Client, chatID int64) *Sink {
	return &Sink{client: client, chatID: chatID}
}

// Send delivers one rendered message to the chat.
func (s *Sink) Send(ctx context.Context, text string) error {
	return s.client.SendMessage(ctx, s.chatID, text)
}
