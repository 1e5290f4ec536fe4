package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// Commands is the operator surface the bot exposes over chat. Replies are
// pre-rendered strings; errors become error messages in the chat.
type Commands interface {
	Status(ctx context.Context) (string, error)
	Balance(ctx context.Context) (string, error)
	Position(ctx context.Context) (string, error)
	Price(ctx context.Context) (string, error)
	Analyze(ctx context.Context, tf trading.Timeframe) (string, error)
	Last(tf trading.Timeframe) (string, error)
	Trade(ctx context.Context) (string, error)
	Stop(ctx context.Context) (string, error)
}

// Bot long-polls Telegram and dispatches operator commands. Only messages
// from the admin chat are honored; everything else is ignored.
type Bot struct {
	client      *Client
	adminChatID int64
	commands    Commands
	warnf       func(format string, args ...interface{})

	pollTimeout int
	offset      int64
}

// NewBot creates the command bot.
func NewBot(client *Client, adminChatID int64, commands Commands, warnf func(string, ...interface{})) *Bot {
	if warnf == nil {
		warnf = func(string, ...interface{}) {}
	}
	return &Bot{
		client:      client,
		adminChatID: adminChatID,
		commands:    commands,
		warnf:       warnf,
		pollTimeout: 30,
	}
}

// Run polls for commands until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, b.offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.warnf("telegram poll failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= b.offset {
				b.offset = update.UpdateID + 1
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update Update) {
	if update.Message == nil || update.Message.Chat.ID != b.adminChatID {
		return
	}
	text := strings.TrimSpace(update.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	reply, err := b.dispatch(ctx, text)
	if err != nil {
		reply = fmt.Sprintf("command failed: %v", err)
	}
	if reply == "" {
		return
	}
	if sendErr := b.client.SendMessage(ctx, b.adminChatID, reply); sendErr != nil {
		b.warnf("failed to send command reply: %v", sendErr)
	}
}

func (b *Bot) dispatch(ctx context.Context, text string) (string, error) {
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	// Group chats suffix commands with the bot name.
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/status":
		return b.commands.Status(ctx)
	case "/balance":
		return b.commands.Balance(ctx)
	case "/position":
		return b.commands.Position(ctx)
	case "/price":
		return b.commands.Price(ctx)
	case "/analyze":
		if len(fields) < 2 {
			return "usage: /analyze <15m|1h|4h|1d>", nil
		}
		tf, err := trading.ParseTimeframe(fields[1])
		if err != nil || !tf.IsSource() {
			return "usage: /analyze <15m|1h|4h|1d>", nil
		}
		return b.commands.Analyze(ctx, tf)
	case "/last":
		tf := trading.TimeframeFinal
		if len(fields) >= 2 {
			parsed, err := trading.ParseTimeframe(fields[1])
			if err != nil {
				return "usage: /last [15m|1h|4h|1d|final]", nil
			}
			tf = parsed
		}
		return b.commands.Last(tf)
	case "/trade":
		return b.commands.Trade(ctx)
	case "/stop":
		return b.commands.Stop(ctx)
	default:
		return fmt.Sprintf("unknown command %s", command), nil
	}
}
