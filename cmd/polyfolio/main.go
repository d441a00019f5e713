package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/polyfolio/internal/api"
	"github.com/rewired-gh/polyfolio/internal/config"
	"github.com/rewired-gh/polyfolio/internal/dashboard"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/performance"
	"github.com/rewired-gh/polyfolio/internal/polymarket"
	"github.com/rewired-gh/polyfolio/internal/portfolio"
	"github.com/rewired-gh/polyfolio/internal/storage"
	"github.com/rewired-gh/polyfolio/internal/telegram"
)

// resultHistory is the number of refresh results kept in memory.
const resultHistory = 12

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Compute the dashboard for the configured wallets, print it as JSON and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize Polymarket client
	polyClient := polymarket.NewClient(
		cfg.Polymarket.DataAPIURL,
		cfg.Polymarket.CLOBAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.ClientConfig{
			MaxRetries:        cfg.Polymarket.MaxRetries,
			RetryDelayBase:    cfg.Polymarket.RetryDelayBase,
			RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
			Burst:             cfg.Polymarket.Burst,
			TradeLimit:        cfg.Polymarket.TradeLimit,
		},
	)

	service := dashboard.NewService(polyClient, dashboard.Options{
		MarketBaseURL:     cfg.Polymarket.MarketBaseURL,
		HistoryFidelity:   cfg.Polymarket.HistoryFidelity,
		MaxConcurrency:    cfg.Polymarket.MaxConcurrency,
		TradeDisplayLimit: cfg.Dashboard.TradeDisplayLimit,
		TopN:              cfg.Dashboard.TopN,
		CashPlaceholder:   cfg.Dashboard.CashPlaceholder,
		StrictAddresses:   cfg.Dashboard.StrictAddresses,
		Location:          cfg.Dashboard.Location(),
	})

	params := dashboard.QueryParameters{
		Wallets:      portfolio.CleanWallets(cfg.Dashboard.Wallets, cfg.Dashboard.StrictAddresses),
		Hours:        performance.ValidHours(cfg.Dashboard.Hours),
		WalletFilter: dashboard.AllWallets,
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *once {
		if err := printOnce(ctx, service, params); err != nil {
			logger.Fatal("Dashboard computation failed: %v", err)
		}
		return
	}

	store := storage.New[*dashboard.Result](resultHistory)
	refresher := dashboard.NewRefresher(service, store)

	// Start API server
	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(&api.ServerConfig{
			Host:            cfg.API.Host,
			Port:            cfg.API.Port,
			ReadTimeout:     cfg.API.ReadTimeout,
			WriteTimeout:    cfg.API.WriteTimeout,
			ShutdownTimeout: cfg.API.ShutdownTimeout,
			DefaultWallets:  cfg.Dashboard.Wallets,
			DefaultHours:    cfg.Dashboard.Hours,
			StrictAddresses: cfg.Dashboard.StrictAddresses,
		}, service, store)

		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server failed: %v", err)
				cancel()
			}
		}()
	} else {
		logger.Debug("API server disabled")
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
		go telegramClient.ListenForCommands(ctx, refresher.Latest)
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	if cfg.Dashboard.RefreshInterval > 0 {
		runRefreshLoop(ctx, refresher, params, cfg.Dashboard.RefreshInterval, telegramClient)
	} else {
		logger.Info("Background refresh disabled; serving on-demand queries only")
		<-ctx.Done()
	}

	if server != nil {
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("API server shutdown failed: %v", err)
		}
	}
	logger.Info("Service stopped")
}

func printOnce(ctx context.Context, service *dashboard.Service, params dashboard.QueryParameters) error {
	result, err := service.Compute(ctx, params)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// runRefreshLoop refreshes the stored result every interval until ctx is done.
// A digest is sent after each successful refresh.
func runRefreshLoop(
	ctx context.Context,
	refresher *dashboard.Refresher,
	params dashboard.QueryParameters,
	interval time.Duration,
	telegramClient *telegram.Client,
) {
	logger.Info("Starting refresh loop (interval: %v, wallets: %d, hours: %d)",
		interval, len(params.Wallets), params.Hours)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(result *dashboard.Result, err error) {
		if errors.Is(err, dashboard.ErrSuperseded) {
			logger.Debug("Refresh cycle superseded by a newer one")
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveFailures++
			logger.Error("Refresh cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}

		if telegramClient != nil {
			if consecutiveFailures > 0 {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			if sendErr := telegramClient.SendDigest(result); sendErr != nil {
				logger.Error("Failed to send Telegram digest: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	runCycle := func() {
		start := time.Now()
		cycleCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		result, err := refresher.Refresh(cycleCtx, params)
		if err == nil {
			logger.Info("Refresh cycle %s completed in %v (%d holdings, %d trades, %d warnings)",
				result.CycleID, time.Since(start), len(result.Holdings), len(result.Trades), len(result.Warnings))
		}
		handleCycleResult(result, err)
	}

	// Run initial refresh immediately
	logger.Debug("Running initial refresh cycle")
	runCycle()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Debug("Starting scheduled refresh cycle")
			runCycle()
		}
	}
}
