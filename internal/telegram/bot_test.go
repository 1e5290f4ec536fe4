package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

type fakeCommands struct {
	analyzed trading.Timeframe
	last     trading.Timeframe
	traded   bool
	stopped  bool
}

func (f *fakeCommands) Status(ctx context.Context) (string, error)   { return "status ok", nil }
func (f *fakeCommands) Balance(ctx context.Context) (string, error)  { return "balance ok", nil }
func (f *fakeCommands) Position(ctx context.Context) (string, error) { return "position ok", nil }
func (f *fakeCommands) Price(ctx context.Context) (string, error)    { return "price ok", nil }

func (f *fakeCommands) Analyze(ctx context.Context, tf trading.Timeframe) (string, error) {
	f.analyzed = tf
	return "analyzing " + string(tf), nil
}

func (f *fakeCommands) Last(tf trading.Timeframe) (string, error) {
	f.last = tf
	return "last " + string(tf), nil
}

func (f *fakeCommands) Trade(ctx context.Context) (string, error) {
	f.traded = true
	return "trading", nil
}

func (f *fakeCommands) Stop(ctx context.Context) (string, error) {
	f.stopped = true
	return "stopping", nil
}

func newTestBot(commands Commands) *Bot {
	return NewBot(NewClient("test-token"), 42, commands, nil)
}

func TestBot_DispatchReadOnlyCommands(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)
	ctx := context.Background()

	for command, want := range map[string]string{
		"/status":   "status ok",
		"/balance":  "balance ok",
		"/position": "position ok",
		"/price":    "price ok",
	} {
		reply, err := bot.dispatch(ctx, command)
		require.NoError(t, err, command)
		assert.Equal(t, want, reply)
	}
}

func TestBot_DispatchAnalyze(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)

	reply, err := bot.dispatch(context.Background(), "/analyze 4h")
	require.NoError(t, err)
	assert.Equal(t, "analyzing 4h", reply)
	assert.Equal(t, trading.Timeframe4h, commands.analyzed)

	// Missing or bogus timeframe returns usage, not an error.
	reply, err = bot.dispatch(context.Background(), "/analyze")
	require.NoError(t, err)
	assert.Contains(t, reply, "usage")

	reply, err = bot.dispatch(context.Background(), "/analyze 2h")
	require.NoError(t, err)
	assert.Contains(t, reply, "usage")

	// The synthetic timeframe cannot be analyzed directly.
	reply, err = bot.dispatch(context.Background(), "/analyze final")
	require.NoError(t, err)
	assert.Contains(t, reply, "usage")
}

func TestBot_DispatchLastDefaultsToFinal(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)

	reply, err := bot.dispatch(context.Background(), "/last")
	require.NoError(t, err)
	assert.Equal(t, "last final", reply)
	assert.Equal(t, trading.TimeframeFinal, commands.last)

	_, err = bot.dispatch(context.Background(), "/last 1d")
	require.NoError(t, err)
	assert.Equal(t, trading.Timeframe1d, commands.last)
}

func TestBot_DispatchTradeAndStop(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)

	_, err := bot.dispatch(context.Background(), "/trade")
	require.NoError(t, err)
	assert.True(t, commands.traded)

	_, err = bot.dispatch(context.Background(), "/stop")
	require.NoError(t, err)
	assert.True(t, commands.stopped)
}

func TestBot_DispatchStripsBotSuffix(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)

	reply, err := bot.dispatch(context.Background(), "/status@futures_bot")
	require.NoError(t, err)
	assert.Equal(t, "status ok", reply)
}

func TestBot_DispatchUnknownCommand(t *testing.T) {
	bot := newTestBot(&fakeCommands{})

	reply, err := bot.dispatch(context.Background(), "/frobnicate")
	require.NoError(t, err)
	assert.Contains(t, reply, "unknown command")
}

func TestBot_IgnoresForeignChats(t *testing.T) {
	commands := &fakeCommands{}
	bot := newTestBot(commands)

	update := Update{}
	update.Message = nil
	bot.handle(context.Background(), update)
	assert.False(t, commands.traded)
}
