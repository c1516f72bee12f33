// Package bootstrap wires configuration, logging and the optional backends
// shared by every command.
package bootstrap

import (
	"fmt"

	"github.com/chis/stackcheck/internal/config"
	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/events"
	"github.com/chis/stackcheck/internal/history"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/storage"
)

// ServiceDependencies holds all initialized service dependencies for CLI commands.
// Storage and Docker are nil when unavailable or not requested.
type ServiceDependencies struct {
	Config   *config.Config
	Docker   *docker.Service
	Storage  storage.Storage
	Recorder *history.Recorder
	EventBus *events.Bus
}

// InitOptions configures service initialization behavior.
type InitOptions struct {
	// ConfigPath overrides STACKCHECK_CONFIG when set
	ConfigPath string

	// Verbose forces debug logging
	Verbose bool

	// RequireStorage makes storage initialization failure fatal
	RequireStorage bool

	// UseDocker connects to the Docker daemon
	UseDocker bool

	// RequireDocker makes a Docker connection failure fatal
	RequireDocker bool

	// Factories are replaced in tests
	openStorage func(path string) (storage.Storage, error)
	openDocker  func() (*docker.Service, error)
}

func (o InitOptions) storageOpener() func(string) (storage.Storage, error) {
	if o.openStorage != nil {
		return o.openStorage
	}
	return func(path string) (storage.Storage, error) {
		s, err := storage.NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (o InitOptions) dockerOpener() func() (*docker.Service, error) {
	if o.openDocker != nil {
		return o.openDocker
	}
	return docker.NewService
}

// LoadConfig reads and validates the configuration and applies its logging
// settings. Validation warnings are logged; errors are returned.
func LoadConfig(opts InitOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if opts.Verbose {
		logOpts.Level = "debug"
	}
	logging.Configure(logOpts)

	result := cfg.Validate()
	for _, w := range result.Warnings {
		logging.Component("config").Warn("%s", w)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// InitializeServices initializes all service dependencies with consistent error handling.
// Returns ServiceDependencies and a cleanup function that should be deferred.
func InitializeServices(opts InitOptions) (*ServiceDependencies, func(), error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	return initializeWithConfig(cfg, opts)
}

func initializeWithConfig(cfg *config.Config, opts InitOptions) (*ServiceDependencies, func(), error) {
	log := logging.Component("bootstrap")
	deps := &ServiceDependencies{
		Config:   cfg,
		EventBus: events.NewBus(),
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	cleanups = append(cleanups, deps.EventBus.Close)

	// Storage is optional: history degrades to a no-op unless required
	if cfg.HistoryEnabled() {
		log.Debug("Initializing storage at %s", cfg.DBPath)
		store, err := opts.storageOpener()(cfg.DBPath)
		if err != nil {
			if opts.RequireStorage {
				cleanup()
				return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
			}
			log.Warn("Failed to initialize storage (continuing without history): %v", err)
		} else {
			deps.Storage = store
			cleanups = append(cleanups, func() { store.Close() })
		}
	} else if opts.RequireStorage {
		cleanup()
		return nil, nil, fmt.Errorf("report history is disabled (set DB_PATH or record_history)")
	}

	deps.Recorder = history.NewRecorder(deps.Storage)
	deps.Recorder.SetEventBus(deps.EventBus)

	if opts.UseDocker || opts.RequireDocker {
		log.Debug("Connecting to Docker daemon")
		svc, err := opts.dockerOpener()()
		if err != nil {
			if opts.RequireDocker {
				cleanup()
				return nil, nil, fmt.Errorf("failed to create Docker service: %w", err)
			}
			log.Warn("Docker unavailable (continuing without running projects): %v", err)
		} else {
			deps.Docker = svc
			cleanups = append(cleanups, func() { svc.Close() })
		}
	}

	return deps, cleanup, nil
}
