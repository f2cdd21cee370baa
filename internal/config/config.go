// Package config loads worker configuration from sip.toml, applies
// environment overrides, and resolves the paths of the files kept under
// the state directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
)

// DefaultFileName is the config file looked up when --config is not given.
const DefaultFileName = "sip.toml"

// Config is the full worker configuration. Zero values for any section
// fall back to Default().
type Config struct {
	StateDir string `toml:"state_dir"`

	Queue     QueueConfig    `toml:"queue"`
	Links     LinksConfig    `toml:"links"`
	Steam     SteamConfig    `toml:"steam"`
	Cooldowns CooldownConfig `toml:"cooldowns"`
	Worker    WorkerConfig   `toml:"worker"`
}

// QueueConfig points at the shared queue service.
type QueueConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	Name   string `toml:"name"`
}

// LinksConfig points at the links API used for existence probes.
type LinksConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// SteamConfig carries the upstream API key and check thresholds.
type SteamConfig struct {
	APIKey     string `toml:"api_key"`
	MinLevel   int    `toml:"min_level"`
	MinFriends int    `toml:"min_friends"`
}

// CooldownConfig tunes the fixed connectivity cooldowns and the 429
// backoff ladder. An empty ladder means the built-in default sequence.
type CooldownConfig struct {
	ConnectionResetMS int64 `toml:"connection_reset_ms"`
	TimeoutMS         int64 `toml:"timeout_ms"`
	DNSFailureMS      int64 `toml:"dns_failure_ms"`
	BackoffMinutes    []int `toml:"backoff_minutes"`
}

// WorkerConfig tunes the run loop.
type WorkerConfig struct {
	PollIntervalSeconds  int    `toml:"poll_interval_seconds"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
	ClaimBatch           int    `toml:"claim_batch"`
	LogFile              string `toml:"log_file"`
}

// Default returns the configuration used when sip.toml is absent.
func Default() Config {
	return Config{
		StateDir: "~/.sip",
		Queue: QueueConfig{
			Name: "validator",
		},
		Steam: SteamConfig{
			MinLevel:   10,
			MinFriends: 5,
		},
		Cooldowns: CooldownConfig{
			ConnectionResetMS: 300000,
			TimeoutMS:         120000,
			DNSFailureMS:      600000,
			BackoffMinutes:    append([]int(nil), cooldown.DefaultBackoffMinutes...),
		},
		Worker: WorkerConfig{
			PollIntervalSeconds:  5,
			SweepIntervalMinutes: 5,
			ClaimBatch:           5,
		},
	}
}

// Load reads the config file at path over the defaults and applies
// environment overrides. An absent file yields the defaults unchanged;
// fields the file does not mention keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv layers environment overrides on top of whatever the file set.
func (c *Config) applyEnv() {
	if v := os.Getenv("SIP_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("QUEUE_API_URL"); v != "" {
		c.Queue.URL = v
	}
	if v := os.Getenv("QUEUE_API_KEY"); v != "" {
		c.Queue.APIKey = v
	}
	if v := os.Getenv("STEAM_API_KEY"); v != "" {
		c.Steam.APIKey = v
	}
	if v := os.Getenv("LINKS_API_URL"); v != "" {
		c.Links.URL = v
	}
	if v := os.Getenv("LINKS_API_KEY"); v != "" {
		c.Links.APIKey = v
	}
}

// QueueConfigured reports whether a queue service client should be built.
func (c Config) QueueConfigured() bool {
	return c.Queue.URL != ""
}

// LinksConfigured reports whether the existence probe should be wired.
func (c Config) LinksConfigured() bool {
	return c.Links.URL != ""
}

// PollInterval returns the run-loop poll interval.
func (c Config) PollInterval() time.Duration {
	if c.Worker.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// SweepInterval returns the deferred-check sweep interval.
func (c Config) SweepInterval() time.Duration {
	if c.Worker.SweepIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Worker.SweepIntervalMinutes) * time.Minute
}

// Durations converts the configured connectivity cooldowns to the
// controller's form.
func (c Config) Durations() cooldown.Durations {
	return cooldown.Durations{
		ConnectionReset: c.Cooldowns.ConnectionResetMS,
		Timeout:         c.Cooldowns.TimeoutMS,
		DNSFailure:      c.Cooldowns.DNSFailureMS,
	}
}

// ResolveStateDir expands a leading ~ in the configured state dir.
func (c Config) ResolveStateDir() (string, error) {
	dir := c.StateDir
	if dir == "" {
		dir = "~/.sip"
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir, nil
}

// QueueFilePath returns where the profile queue document lives.
func QueueFilePath(stateDir string) string {
	return filepath.Join(stateDir, "checks_queue.json")
}

// CooldownFilePath returns where endpoint cooldowns are persisted.
func CooldownFilePath(stateDir string) string {
	return filepath.Join(stateDir, "endpoint_cooldowns.json")
}

// InstanceIDPath returns where the instance identity is persisted.
func InstanceIDPath(stateDir string) string {
	return filepath.Join(stateDir, "instance_id")
}

// LockFilePath returns the single-instance guard path for run.
func LockFilePath(stateDir string) string {
	return filepath.Join(stateDir, "sip.lock")
}

// PIDFilePath returns where run records its process id.
func PIDFilePath(stateDir string) string {
	return filepath.Join(stateDir, "sip.pid")
}

// LoadOrCreateInstanceID returns the persisted instance identity for the
// state dir, generating and saving one on first use. The identity has to
// survive restarts: releasing a crashed worker's orphaned claims on
// startup only works when the new process presents the same id.
func LoadOrCreateInstanceID(stateDir string) (string, error) {
	path := InstanceIDPath(stateDir)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading instance id: %w", err)
	}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("writing instance id: %w", err)
	}
	return id, nil
}
