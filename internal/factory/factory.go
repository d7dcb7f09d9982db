package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/quietfloor/readingroom/internal/dependencies/clock"
	"github.com/quietfloor/readingroom/internal/dependencies/random"
	"github.com/quietfloor/readingroom/internal/services/auth"
	"github.com/quietfloor/readingroom/internal/services/bot"
	"github.com/quietfloor/readingroom/internal/services/forecast"
	"github.com/quietfloor/readingroom/internal/services/room"
	"github.com/quietfloor/readingroom/internal/storage"
	"github.com/quietfloor/readingroom/internal/storage/memory"
	redisstorage "github.com/quietfloor/readingroom/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService     *auth.Service
	RoomController  *room.Controller
	BotService      *bot.Service // nil when no API key is configured
	ForecastService *forecast.Service
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// RoomConfig holds configuration for the room controller (optional)
	RoomConfig room.Config
	// BotConfig holds the AI collaborator settings. An empty APIKey
	// disables the bot; the room runs without a responder.
	BotConfig bot.Config
	// ForecastConfig holds the snow prediction settings (optional)
	ForecastConfig forecast.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	clk := clock.New()
	rnd := random.New()

	authCfg := cfg.AuthConfig
	if authCfg.TokenDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	var botService *bot.Service
	if cfg.BotConfig.APIKey != "" {
		var err error
		botService, err = bot.New(ctx, cfg.BotConfig, logger)
		if err != nil {
			return nil, err
		}
	}

	return newWithDependencies(store, clk, rnd, authCfg, cfg.RoomConfig, cfg.ForecastConfig, botService, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	roomCfg room.Config,
	forecastCfg forecast.Config,
	botService *bot.Service,
	logger *slog.Logger,
) *App {
	authService := auth.New(store, clk, rnd, authCfg, logger)

	// A nil *bot.Service must become a nil interface, not a non-nil
	// interface holding a nil pointer.
	var responder room.Responder
	if botService != nil {
		responder = botService
	}
	roomController := room.NewController(store, clk, rnd, roomCfg, responder, logger)

	var reasoner forecast.Reasoner
	if botService != nil {
		reasoner = botService
	}
	forecastService := forecast.New(forecastCfg, reasoner, logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		AuthService:     authService,
		RoomController:  roomController,
		BotService:      botService,
		ForecastService: forecastService,
	}
}
