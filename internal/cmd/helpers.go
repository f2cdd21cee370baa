package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/config"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/queueclient"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/store"
)

// loadConfig reads the config file (from --config or ./sip.toml) and
// resolves the state directory.
func loadConfig() (config.Config, string, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultFileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, "", err
	}
	stateDir, err := cfg.ResolveStateDir()
	if err != nil {
		return cfg, "", err
	}
	return cfg, stateDir, nil
}

// quietLogger routes store and controller warnings to stderr so command
// output on stdout stays parseable.
func quietLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

// workerLogger builds the run loop logger, teeing stdout with the
// configured log file when one is set. The returned func closes the
// file.
func workerLogger(cfg config.Config) (*log.Logger, func(), error) {
	if cfg.Worker.LogFile == "" {
		return log.New(os.Stdout, "", log.LstdFlags), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Worker.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
	return logger, func() { _ = f.Close() }, nil
}

// newQueueClient builds the queue service client, or returns nil when
// the service is not configured.
func newQueueClient(cfg config.Config, stateDir string, logger *log.Logger) (*queueclient.Client, error) {
	if !cfg.QueueConfigured() {
		return nil, nil
	}
	instanceID, err := config.LoadOrCreateInstanceID(stateDir)
	if err != nil {
		return nil, err
	}
	opts := []queueclient.Option{queueclient.WithQueueName(cfg.Queue.Name)}
	if logger != nil {
		opts = append(opts, queueclient.WithLogger(logger))
	}
	return queueclient.New(cfg.Queue.URL, cfg.Queue.APIKey, instanceID, opts...), nil
}

// newStore opens the profile store. A nil client leaves the completer
// interface nil rather than wrapping a typed nil.
func newStore(stateDir string, logger *log.Logger, qc *queueclient.Client) *store.Store {
	var completer store.QueueCompleter
	if qc != nil {
		completer = qc
	}
	return store.New(config.QueueFilePath(stateDir), logger, completer)
}

// newController opens the cooldown controller against the state dir.
func newController(cfg config.Config, stateDir string, logger *log.Logger) *cooldown.Controller {
	return cooldown.New(config.CooldownFilePath(stateDir), cfg.Durations(), cfg.Cooldowns.BackoffMinutes, logger)
}
