package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/echorelay/internal/config"
	"github.com/mcoot/echorelay/internal/dependencies/clock"
	"github.com/mcoot/echorelay/internal/dependencies/random"
	"github.com/mcoot/echorelay/internal/observability"
	"github.com/mcoot/echorelay/internal/relay/gameservers"
	"github.com/mcoot/echorelay/internal/relay/peers"
	"github.com/mcoot/echorelay/internal/services/accounts"
	"github.com/mcoot/echorelay/internal/services/profilesync"
	"github.com/mcoot/echorelay/internal/services/registry"
	"github.com/mcoot/echorelay/internal/services/sessions"
	"github.com/mcoot/echorelay/internal/storage"
	"github.com/mcoot/echorelay/internal/storage/memory"
	redisstorage "github.com/mcoot/echorelay/internal/storage/redis"
	sqlitestorage "github.com/mcoot/echorelay/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.AccountStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	Metrics *observability.Metrics

	// Connection state
	Peers    *peers.Directory
	Registry *registry.Registry

	// Services
	ProfileSync *profilesync.Coordinator
	Accounts    *accounts.Controller
	Sessions    *sessions.Starter

	// Websocket transports
	PeerHandler       *peers.Handler
	GameServerHandler *gameservers.Handler
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// SyncConfig controls profile pushes; zero value means defaults
	SyncConfig profilesync.Config
	// SessionConfig controls session starts; zero value means defaults
	SessionConfig sessions.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	var store storage.AccountStore
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = config.StorageTypeMemory
	}

	switch storageType {
	case config.StorageTypeMemory:
		store = memory.New()
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case config.StorageTypeSQLite:
		sqliteStore, err := sqlitestorage.Open(cfg.SQLitePath, clk)
		if err != nil {
			return nil, err
		}
		store = sqliteStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}

	syncCfg := cfg.SyncConfig
	if syncCfg.PushTimeout == 0 {
		syncCfg.PushTimeout = profilesync.DefaultConfig().PushTimeout
	}
	if syncCfg.Concurrency == 0 {
		syncCfg.Concurrency = profilesync.DefaultConfig().Concurrency
	}
	sessionCfg := cfg.SessionConfig
	if sessionCfg.HandshakeTimeout == 0 {
		sessionCfg = sessions.DefaultConfig()
	}

	return newWithDependencies(store, clk, rnd, syncCfg, sessionCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.AccountStore,
	clk clock.Clock,
	rnd random.Random,
	syncCfg profilesync.Config,
	sessionCfg sessions.Config,
	logger *slog.Logger,
) *App {
	metrics := observability.NewMetrics()

	directory := peers.NewDirectory(logger)
	reg := registry.New(clk, rnd, logger)

	coordinator := profilesync.NewCoordinator(directory, metrics, syncCfg, logger)
	accountController := accounts.NewController(store, coordinator, metrics, logger)
	starter := sessions.NewStarter(reg, clk, metrics, sessionCfg, logger)

	metrics.RegisterGauge("connected_peers", "Peers currently connected to the relay", func() float64 {
		return float64(directory.Count())
	})
	metrics.RegisterGauge("registered_game_servers", "Game servers currently registered", func() float64 {
		return float64(reg.Count())
	})

	return &App{
		Storage:           store,
		Clock:             clk,
		Random:            rnd,
		Metrics:           metrics,
		Peers:             directory,
		Registry:          reg,
		ProfileSync:       coordinator,
		Accounts:          accountController,
		Sessions:          starter,
		PeerHandler:       peers.NewHandler(directory, rnd, clk, logger),
		GameServerHandler: gameservers.NewHandler(reg, rnd, logger),
	}
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
