package relayserver

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"

	"github.com/flatplan/flatplan.go/contrib/relayserver/store"
	"github.com/flatplan/flatplan.go/contrib/relayserver/store/postgres"
	"github.com/flatplan/flatplan.go/pkg/logger"
)

// Store backends selectable with -store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the relay server configuration. It is read from an optional YAML
// file, then the environment, then flags, each overriding the last.
type Config struct {
	Addr        string `yaml:"addr"`
	Store       string `yaml:"store"`
	PostgresDSN string `yaml:"postgres_dsn"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
	// ReadOnly refuses new shares while existing ones stay readable.
	ReadOnly bool `yaml:"read_only"`
}

// DefaultConfig is the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Addr:     ":8787",
		Store:    StoreMemory,
		LogLevel: "info",
	}
}

// App is a configured relay server.
type App struct {
	config   Config
	store    store.Store
	hub      *Hub
	readOnly atomic.Bool

	logData *logger.LogData
	logger  logger.Logger
}

// New opens the store and log file named by config.
func New(config *Config) (*App, error) {
	build := logger.Build().Level(config.LogLevel)
	if config.LogFile != "" {
		build = build.FromPath(config.LogFile)
	} else {
		build = build.FromBuffer(os.Stderr)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log := logData.Logger()

	var shares store.Store
	switch config.Store {
	case "", StoreMemory:
		shares = store.NewMemory()
	case StorePostgres:
		pg, err := postgres.New(config.PostgresDSN)
		if err != nil {
			_ = logData.Close()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		shares = pg
		log.Info("connected to PostgreSQL")
	default:
		_ = logData.Close()
		return nil, fmt.Errorf("unknown store %q", config.Store)
	}

	return NewWithStore(*config, shares, logData, log), nil
}

// NewWithStore builds an App around an already opened store. logData may be
// nil.
func NewWithStore(config Config, shares store.Store, logData *logger.LogData, log logger.Logger) *App {
	a := &App{
		config:  config,
		logData: logData,
		logger:  logger.OrNop(log),
	}
	a.readOnly.Store(config.ReadOnly)
	a.store = store.NewReadOnlyStore(shares, a.IsReadOnly)
	a.hub = NewHub(a.store, a.logger)
	return a
}

// SetReadOnly switches read-only mode at runtime.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.logger.Info("read-only mode changed", "read_only", readOnly)
}

// IsReadOnly reports whether new shares are refused.
func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// Hub is the frame router of the server.
func (a *App) Hub() *Hub {
	return a.hub
}

// Handler routes the HTTP API and the websocket endpoint:
//
//	POST /api/shares       create a share from {"state": ...}
//	GET  /api/shares/{id}  fetch a share
//	GET  /api/health       liveness and mode
//	GET  /ws               websocket relay
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", makeHandler(a.logger, a.handleHealth)).Methods(http.MethodGet)
	api.HandleFunc("/shares", makeHandler(a.logger, a.handleCreateShare)).Methods(http.MethodPost)
	api.HandleFunc("/shares/{id}", makeHandler(a.logger, a.handleGetShare)).Methods(http.MethodGet)

	router.HandleFunc("/ws", a.handleWebSocket).Methods(http.MethodGet)
	return router
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	if a.logData != nil {
		err = multierr.Append(err, a.logData.Close())
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
