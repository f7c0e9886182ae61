package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"pattern-signal-engine/config"
	"pattern-signal-engine/internal/ai"
	"pattern-signal-engine/internal/api"
	"pattern-signal-engine/internal/circuit"
	"pattern-signal-engine/internal/database"
	"pattern-signal-engine/internal/events"
	"pattern-signal-engine/internal/lifecycle"
	"pattern-signal-engine/internal/logging"
	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/risk"
	"pattern-signal-engine/internal/scanner"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to database")
	}
	defer db.Close()
	repo := database.NewRepository(db)

	bus := events.NewBus()

	var provider market.Provider = market.NewClient(
		cfg.MarketConfig.BaseURL,
		time.Duration(cfg.MarketConfig.TimeoutSeconds)*time.Second,
	)
	breaker := circuit.NewBreaker(provider, circuit.DefaultConfig(), logger)
	breaker.OnTrip(func(reason string) {
		bus.Publish(events.Event{
			Type: events.EventError,
			Data: map[string]interface{}{"source": "market", "reason": reason},
		})
	})
	provider = breaker
	if cfg.RedisConfig.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		provider = market.NewCachedProvider(provider, rdb,
			time.Duration(cfg.RedisConfig.TTLSeconds)*time.Second, logger)
		logger.Info().Str("addr", cfg.RedisConfig.Address).Msg("candle cache enabled")
	}

	engine := lifecycle.NewEngine(repo, provider, bus, logger)

	riskEngine := risk.NewEngine(risk.Policy{
		DefaultRiskPercent: cfg.RiskConfig.DefaultRiskPercent,
		MaxRiskPercent:     cfg.RiskConfig.MaxRiskPercent,
		MaxPositionSize:    cfg.RiskConfig.MaxPositionSize,
		MaxPositionPercent: cfg.RiskConfig.MaxPositionPercent,
		MinPortfolioSize:   cfg.RiskConfig.MinPortfolioSize,
	})

	var completer ai.Completer
	if cfg.AIConfig.Enabled {
		completer = ai.NewClient(&ai.ClientConfig{
			Provider:    ai.Provider(cfg.AIConfig.Provider),
			APIKey:      cfg.AIConfig.APIKey,
			Model:       cfg.AIConfig.Model,
			MaxTokens:   cfg.AIConfig.MaxTokens,
			Temperature: cfg.AIConfig.Temperature,
			Timeout:     time.Duration(cfg.AIConfig.RequestTimeoutSecond) * time.Second,
		})
	}
	advisor := ai.NewAdvisor(completer, repo, ai.AdvisorConfig{
		MaxConcurrentCalls: cfg.AIConfig.MaxConcurrentCalls,
		CallDelay:          time.Duration(cfg.AIConfig.CallDelaySeconds) * time.Second,
		PauseStart:         cfg.AIConfig.PauseStart,
		PauseEnd:           cfg.AIConfig.PauseEnd,
	}, logger)

	scan := scanner.NewScanner(scanner.Config{
		TickInterval:    cfg.TickInterval(),
		WorkerCount:     cfg.ScannerConfig.WorkerCount,
		MaxScansPerTick: cfg.ScannerConfig.MaxScansPerTick,
		PortfolioSize:   cfg.ScannerConfig.PortfolioSize,
		RiskPercent:     cfg.ScannerConfig.RiskPercent,
		MinConfidence:   cfg.ScannerConfig.MinConfidence,
	}, repo, provider, riskEngine, advisor, engine, bus, logger)

	if cfg.ScannerConfig.Enabled {
		go scan.Run(ctx)
	} else {
		logger.Warn().Msg("scanner disabled, API only")
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		ProductionMode: cfg.LoggingConfig.JSONFormat,
	}, repo, riskEngine, scan, bus, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server exited")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("stopped")
}
