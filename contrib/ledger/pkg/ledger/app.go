package ledger

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/bizref/bizref/pkg/idgen"
	"github.com/bizref/bizref/pkg/logger"
	"github.com/bizref/bizref/pkg/models"
	"github.com/bizref/bizref/pkg/store"
	"github.com/bizref/bizref/pkg/store/postgres"
	"github.com/bizref/bizref/refjson"
)

// Config holds application configuration.
type Config struct {
	PostgresDSN string
	// Memory keeps entities in process and ignores PostgresDSN.
	Memory bool
	// ReadOnly rejects every write until toggled off at runtime.
	ReadOnly bool

	// DefaultMode applies to entities no annotation decides for.
	DefaultMode models.ReferenceMode

	LogLevel  zerolog.Level
	LogFile   string
	LogPretty bool

	ServerPort string
}

// App holds the application state.
type App struct {
	store   *store.ReadOnlyStore
	backend store.Store
	config  *Config

	// codec writes responses, body reads request bodies whose root is an
	// entity and therefore always FULL.
	codec *refjson.Codec
	body  *refjson.Codec
	ids   *idgen.Generator

	log      zerolog.Logger
	logData  *logger.LogData
	readOnly atomic.Bool
}

// New creates the application and connects its store.
func New(config *Config) (*App, error) {
	build := logger.New().WithLevel(config.LogLevel)
	if config.LogFile != "" {
		build = build.FromPath(config.LogFile)
	}
	if config.LogPretty {
		build = build.Pretty()
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	var backend store.Store
	if config.Memory {
		backend = store.NewMemory(logData.Logger)
		logData.Logger.Info().Msg("using in-memory store")
	} else {
		backend, err = postgres.New(config.PostgresDSN)
		if err != nil {
			_ = logData.Close()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logData.Logger.Info().Msg("connected to PostgreSQL")
	}

	app := NewWithStore(config, backend, logData.Logger)
	app.logData = logData
	return app, nil
}

// NewWithStore creates the application on top of an existing store.
func NewWithStore(config *Config, backend store.Store, log zerolog.Logger) *App {
	app := &App{
		backend: backend,
		config:  config,
		ids:     idgen.NewGenerator(),
		log:     log,
	}
	app.readOnly.Store(config.ReadOnly)
	app.store = store.NewReadOnlyStore(backend, app.IsReadOnly)

	cfg := refjson.NewConfig()
	cfg.DefaultMode = config.DefaultMode
	cfg.Loader = store.Coalesce(app.store)
	cfg.Logger = log
	app.codec = refjson.New(cfg)
	app.body = app.codec.WithDefaultMode(models.Full)
	return app
}

// Close closes the store and the log file.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logData != nil {
		if cerr := a.logData.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *App) Store() store.Store {
	return a.store
}

// SetReadOnly toggles rejection of writes. Loads are unaffected.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.log.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}
