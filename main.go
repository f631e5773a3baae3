package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/dosemate/internal/bot"
	"github.com/vladimiradmaev/dosemate/internal/bot/handlers"
	"github.com/vladimiradmaev/dosemate/internal/bot/state"
	"github.com/vladimiradmaev/dosemate/internal/config"
	"github.com/vladimiradmaev/dosemate/internal/database"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
	"github.com/vladimiradmaev/dosemate/internal/repository"
	"github.com/vladimiradmaev/dosemate/internal/securestore"
	"github.com/vladimiradmaev/dosemate/internal/services"
)

// repositories is the storage a backend provides.
type repositories struct {
	users    domain.UserRepository
	history  domain.HistoryRepository
	settings domain.SettingsRepository
	closer   io.Closer
}

func openStorage(ctx context.Context, cfg *config.Config) (*repositories, error) {
	hub := repository.NewHub()

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		db, err := database.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, apperrors.NewDatabaseError(err)
		}
		return &repositories{
			users:    repository.NewUserRepository(db),
			history:  repository.NewHistoryRepository(db, hub),
			settings: repository.NewSettingsRepository(db),
		}, nil

	case config.StorageLocal:
		store, err := securestore.Open(ctx, cfg.Local.Path, cfg.Local.Passphrase)
		if errors.Is(err, securestore.ErrWrongPassphrase) {
			return nil, apperrors.NewWrongPassphraseError(err)
		}
		if err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		return &repositories{
			users:    repository.NewLocalUsers(store),
			history:  repository.NewLocalHistory(store, hub),
			settings: repository.NewLocalSettings(store),
			closer:   store,
		}, nil

	default:
		kv := repository.NewMemoryKV()
		logger.Warn("Using in-memory storage, history is lost on restart")
		return &repositories{
			users:    repository.NewLocalUsers(kv),
			history:  repository.NewLocalHistory(kv, hub),
			settings: repository.NewLocalSettings(kv),
		}, nil
	}
}

func openState(cfg *config.Config) (state.StateManager, func(), error) {
	if cfg.State.Backend != config.StateRedis {
		return state.NewManager(), func() {}, nil
	}
	m, err := state.NewRedisManager(cfg.State.RedisHost, cfg.State.RedisPort)
	if err != nil {
		return nil, nil, err
	}
	return m, func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close Redis client", "error", err)
		}
	}, nil
}

func run() error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWithConfig(cfg.Logger); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	logger.Info("Starting DoseMate bot", "storage", cfg.Storage.Backend, "state", cfg.State.Backend, "timezone", cfg.Dose.Location.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if repos.closer != nil {
		defer repos.closer.Close()
	}
	logger.Info("Storage ready")

	stateManager, closeState, err := openState(cfg)
	if err != nil {
		return fmt.Errorf("failed to init state manager: %w", err)
	}
	defer closeState()

	estimator, err := services.NewFoodEstimator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("failed to init food estimator: %w", err)
	}
	defer estimator.Close()

	settingsService := services.NewSettingsService(repos.settings, cfg.Dose.DefaultCarbRatio)
	deps := handlers.Dependencies{
		UserService:   services.NewUserService(repos.users),
		DoseSvc:       services.NewDoseService(settingsService, repos.history).WithLocation(cfg.Dose.Location),
		SettingsSvc:   settingsService,
		HistoryFeed:   services.NewHistoryFeed(ctx, repos.history),
		FoodEstimator: estimator,
	}
	logger.Info("Services initialized")

	telegramBot, err := bot.NewBot(cfg.TelegramToken, deps, stateManager)
	if err != nil {
		return err
	}

	logger.Info("Bot is running. Press Ctrl+C to stop.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		logger.Error("Fatal error", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
