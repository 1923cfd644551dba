package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"adaptive-trading-bot/config"
	"adaptive-trading-bot/internal/api"
	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/exchange"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/persistence"
	"adaptive-trading-bot/internal/scheduler"
	"adaptive-trading-bot/internal/storage"
	"adaptive-trading-bot/internal/trader"
	"adaptive-trading-bot/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}

	bus := events.NewBus()

	// Brain state store: Redis when enabled, in-memory otherwise.
	var store persistence.Client
	if cfg.RedisConfig.Enabled {
		redisStore := persistence.NewRedisStore(
			cfg.RedisConfig.Address,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			logger,
		)
		defer redisStore.Close()
		store = redisStore
	} else {
		store = persistence.NewMemoryStore()
	}

	br := brain.New(cfg.TradingConfig.Strategies, logger)
	if state, ok := store.LoadBrain(); ok {
		if err := br.Import(state); err != nil {
			logger.Warn().Err(err).Msg("saved brain state rejected, starting fresh")
		} else {
			logger.Info().Msg("brain state restored")
		}
	}

	client, err := buildExchangeClient(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build exchange client")
	}
	if err := client.Connect(); err != nil {
		logger.Warn().Err(err).Msg("initial exchange connection failed, reconnector will retry")
	}

	breaker := circuit.NewBreaker(&circuit.Config{
		Enabled:              cfg.CircuitConfig.Enabled,
		MaxLossPerHour:       cfg.CircuitConfig.MaxLossPerHour,
		MaxConsecutiveLosses: cfg.CircuitConfig.MaxConsecutiveLosses,
		CooldownMinutes:      cfg.CircuitConfig.CooldownMinutes,
		MaxDailyLoss:         cfg.CircuitConfig.MaxDailyLoss,
	})

	// Lesson history: PostgreSQL when configured.
	var lessonStore *storage.LessonStore
	if cfg.DatabaseConfig.Enabled {
		lessonStore, err = storage.NewLessonStore(context.Background(), storage.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("lesson store unavailable, lessons will not be archived")
			lessonStore = storage.NewNopLessonStore(logger)
		}
	} else {
		lessonStore = storage.NewNopLessonStore(logger)
	}
	defer lessonStore.Close()

	controller := trader.NewController(client, br, bus, breaker, lessonStore, trader.Config{
		Pairs:         cfg.TradingConfig.Pairs,
		KlineInterval: cfg.TradingConfig.KlineInterval,
		KlineLimit:    cfg.TradingConfig.KlineLimit,
		Leverage:      cfg.TradingConfig.Leverage,
		RetryDelay:    time.Duration(cfg.TradingConfig.RetrySeconds) * time.Second,
	}, logger)

	sched := scheduler.New(scheduler.Config{
		CycleInterval:  time.Duration(cfg.SchedulerConfig.CycleSeconds) * time.Second,
		HealthInterval: time.Duration(cfg.SchedulerConfig.HealthSeconds) * time.Second,
		SaveEvery:      cfg.BrainConfig.SaveEveryCycles,
	}, controller, client, br, store, bus, logger)

	if cfg.TradingConfig.AutoStart {
		if err := sched.Start(); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start trading")
		}
	}

	server := api.NewServer(
		cfg.ServerConfig,
		cfg.AuthConfig,
		br,
		controller,
		sched,
		client,
		breaker,
		bus,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			logger.Warn().Err(err).Msg("scheduler stop failed")
		}
	}
	cancel()

	// Final brain save so learning survives the restart.
	if state, err := br.Export(); err == nil {
		if result := store.SaveBrain(state); !result.Success {
			logger.Warn().Str("message", result.Message).Msg("final brain save failed")
		}
	}

	logger.Info().Msg("shutdown complete")
}

func buildExchangeClient(cfg *config.Config, logger zerolog.Logger) (exchange.Client, error) {
	if cfg.ExchangeConfig.PaperMode {
		walker := newRandomWalk(cfg.TradingConfig.Pairs)
		return exchange.NewPaperClient(
			cfg.ExchangeConfig.InitialBalance,
			cfg.TradingConfig.Pairs,
			walker.price,
		), nil
	}

	apiKey := cfg.ExchangeConfig.APIKey
	secretKey := cfg.ExchangeConfig.SecretKey

	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(vault.Config{
			Enabled:    true,
			Address:    cfg.VaultConfig.Address,
			Token:      cfg.VaultConfig.Token,
			SecretPath: cfg.VaultConfig.SecretPath,
			TLSEnabled: cfg.VaultConfig.TLSEnabled,
			CACert:     cfg.VaultConfig.CACert,
		})
		if err != nil {
			return nil, err
		}
		creds, err := vaultClient.GetCredentials(context.Background())
		if err != nil {
			return nil, err
		}
		apiKey = creds.APIKey
		secretKey = creds.SecretKey
	}

	return exchange.NewFuturesClient(
		apiKey,
		secretKey,
		cfg.ExchangeConfig.TestNet,
		cfg.TradingConfig.Pairs,
		logger,
	), nil
}

// randomWalk feeds the paper exchange a drifting price per symbol so dry
// runs exercise the full entry/exit path.
type randomWalk struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

func newRandomWalk(symbols []string) *randomWalk {
	w := &randomWalk{
		prices: make(map[string]float64, len(symbols)),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, symbol := range symbols {
		w.prices[symbol] = 100 + w.rng.Float64()*900
	}
	return w
}

func (w *randomWalk) price(symbol string) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	price, ok := w.prices[symbol]
	if !ok {
		price = 100
	}
	// Steps up to +-0.5% per read.
	price *= 1 + (w.rng.Float64()-0.5)*0.01
	w.prices[symbol] = price
	return price, nil
}
