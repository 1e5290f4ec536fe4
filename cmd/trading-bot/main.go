package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/gpt-futures-bot/internal/advisor"
	"github.com/ducminhle1904/gpt-futures-bot/internal/bot"
	"github.com/ducminhle1904/gpt-futures-bot/internal/config"
	"github.com/ducminhle1904/gpt-futures-bot/internal/events"
	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange"
	"github.com/ducminhle1904/gpt-futures-bot/internal/logger"
	"github.com/ducminhle1904/gpt-futures-bot/internal/market"
	"github.com/ducminhle1904/gpt-futures-bot/internal/monitoring"
	"github.com/ducminhle1904/gpt-futures-bot/internal/policy"
	"github.com/ducminhle1904/gpt-futures-bot/internal/scheduler"
	"github.com/ducminhle1904/gpt-futures-bot/internal/store"
	"github.com/ducminhle1904/gpt-futures-bot/internal/telegram"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trader"
)

// Exit codes: 0 clean shutdown, 1 fatal error, 2 exchange authentication
// failure.
const (
	exitOK    = 0
	exitFatal = 1
	exitAuth  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configFile = flag.String("config", "bot.json", "Configuration file (in configs/ when no path given)")
		envFile    = flag.String("env", ".env", "Environment file with API credentials")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("⚠️ No env file loaded from %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Printf("❌ %v", err)
		return exitFatal
	}

	sessionLog, err := logger.NewLogger(cfg.LogDir(), cfg.Trading.Symbol)
	if err != nil {
		log.Printf("❌ Failed to open session log: %v", err)
		return exitFatal
	}
	defer sessionLog.Close()

	ex, err := exchange.New(exchange.Config{
		Name:      cfg.Exchange.Name,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
		QuoteCoin: cfg.Exchange.QuoteCoin,
	})
	if err != nil {
		log.Printf("❌ %v", err)
		return exitFatal
	}

	// Startup probe: credentials and connectivity must be good before the
	// scheduler takes over.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	equity, err := ex.GetEquity(probeCtx)
	probeCancel()
	if err != nil {
		if exchange.IsAuthFailure(err) {
			log.Printf("❌ Exchange authentication failed: %v", err)
			return exitAuth
		}
		log.Printf("❌ Exchange unreachable: %v", err)
		return exitFatal
	}
	log.Printf("✅ Connected to %s (%s equity: %.2f)", cfg.Exchange.Name, cfg.Exchange.QuoteCoin, equity)

	st, err := store.New(cfg.AnalysisDir())
	if err != nil {
		log.Printf("❌ %v", err)
		return exitFatal
	}
	history, err := store.NewHistory(cfg.HistoryPath())
	if err != nil {
		log.Printf("❌ %v", err)
		return exitFatal
	}

	llm := advisor.NewClient(&advisor.ClientConfig{
		Provider:    advisor.Provider(strings.ToLower(cfg.Advisor.Provider)),
		APIKey:      cfg.Advisor.APIKey,
		Model:       cfg.Advisor.Model,
		MaxTokens:   cfg.Advisor.MaxTokens,
		Temperature: cfg.Advisor.Temperature,
		Timeout:     advisor.DefaultCallTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	var tgClient *telegram.Client
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		tgClient = telegram.NewClient(cfg.Telegram.BotToken)
		bus.AddChannel("admin", events.RoleAdmin,
			telegram.NewSink(tgClient, cfg.Telegram.AdminChatID), cfg.Telegram.RatePerMinute)
		for _, chatID := range cfg.Telegram.NotifyChatIDs {
			bus.AddChannel(fmt.Sprintf("notify-%d", chatID), events.RoleNotifyOnly,
				telegram.NewSink(tgClient, chatID), cfg.Telegram.RatePerMinute)
		}
	}

	health := monitoring.NewHealthChecker()
	health.SetConnected(true)

	b := bot.New(bot.Deps{
		Symbol:      cfg.Trading.Symbol,
		Location:    cfg.Location(),
		Exchange:    ex,
		Collector:   market.NewCollector(ex, cfg.Trading.Symbol),
		Advisor:     advisor.NewGateway(llm, cfg.Trading.Symbol),
		Store:       st,
		History:     history,
		Policy:      policy.New(cfg.PolicyConfig(), cfg.Location()),
		Reconciler:  trader.NewReconciler(cfg.SizingConfig()),
		Executor:    trader.NewExecutor(ex, cfg.Trading.Symbol),
		Bus:         bus,
		Log:         sessionLog,
		Health:      health,
		RequestStop: cancel,
	})

	sched := scheduler.New(cfg.Location(), cfg.ScheduledTimeframes(), b.RunPass, sessionLog.Warning)
	b.AttachScheduler(sched)

	// The bus outlives the pipeline context so queued notifications can
	// still flush during the shutdown drain.
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	bus.Start(busCtx)

	if err := sched.Start(); err != nil {
		log.Printf("❌ %v", err)
		return exitFatal
	}
	log.Printf("🚀 Scheduler running for %v (%s)", cfg.ScheduledTimeframes(), cfg.Trading.Timezone)
	sessionLog.Info("scheduler running for %v", cfg.ScheduledTimeframes())

	if cfg.Monitoring != nil && cfg.Monitoring.Enabled {
		go serveMonitoring(ctx, cfg.Monitoring.ListenAddr, health)
	}

	if tgClient != nil {
		tgBot := telegram.NewBot(tgClient, cfg.Telegram.AdminChatID, b, sessionLog.Warning)
		go tgBot.Run(ctx)
		log.Printf("💬 Telegram operator surface enabled (chat %d)", cfg.Telegram.AdminChatID)
	}

	// Run until a signal or /stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("🛑 Received %v, shutting down", sig)
	case <-ctx.Done():
		log.Printf("🛑 Stop requested, shutting down")
	}

	cancel()
	sched.Stop()
	bus.Drain(5 * time.Second)
	busCancel()
	sessionLog.Info("shutdown complete")
	log.Printf("👋 Shutdown complete")
	return exitOK
}

// serveMonitoring exposes /health and /metrics until the context ends.
func serveMonitoring(ctx context.Context, addr string, health *monitoring.HealthChecker) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", monitoring.NewMetricsHandler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("⚠️ Monitoring server failed: %v", err)
	}
}
