// Package config provides configuration loading for the ghostedit daemon.
//
// Settings come from three layers, lowest priority first: a config file in
// the XDG config directory (JSON, comments allowed), GHOSTEDIT_* environment
// variables, and command-line flags (applied by the CLI on top of the loaded
// Config).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Busy policies for single-instance contention.
const (
	BusyQueue  = "queue"
	BusyReject = "reject"
)

// Config holds every knob the daemon understands.
type Config struct {
	// Host and Port form the listen address advertised to the browser.
	Host string `json:"host"`
	Port int    `json:"port"`

	// Editor is the command template; %f, %l and %c are substituted with
	// the file path and cursor position. Empty falls back to $EDITOR.
	Editor string `json:"editor"`

	// Multi allows concurrent editor sessions.
	Multi bool `json:"multi"`
	// MaxSessions bounds concurrent sessions in multi mode; 0 = unbounded.
	MaxSessions int `json:"maxSessions"`
	// OnBusy is "queue" or "reject": what happens to a new session while
	// the single slot is taken.
	OnBusy string `json:"onBusy"`

	// IdleTimeout shuts the server down after this long with no sessions;
	// zero disables.
	IdleTimeout Duration `json:"idleTimeout"`

	// Debounce is the file watcher's quiet window.
	Debounce Duration `json:"debounce"`
	// Watch enables filesystem notifications; disabled, edits are only
	// picked up when the editor exits.
	Watch *bool `json:"watch"`

	// EditorsFile points to a YAML table of per-editor cursor flags,
	// merged over the built-in table.
	EditorsFile string `json:"editorsFile"`

	// LogLevel and PrettyLogs control the zerolog output.
	LogLevel   string `json:"logLevel"`
	PrettyLogs bool   `json:"prettyLogs"`
}

// Duration is a time.Duration that unmarshals from JSON strings like
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Bare numbers are taken as milliseconds.
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	watch := true
	return &Config{
		Host:     "127.0.0.1",
		Port:     4001,
		OnBusy:   BusyQueue,
		Debounce: Duration(100 * time.Millisecond),
		Watch:    &watch,
		LogLevel: "INFO",
	}
}

// Load builds a Config from defaults, the config file and the environment.
func Load() (*Config, error) {
	cfg := Default()

	for _, path := range configFiles() {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.Editor == "" {
		cfg.Editor = os.Getenv("EDITOR")
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Editor == "" {
		return fmt.Errorf("no editor configured: set --editor, the editor config key, or $EDITOR")
	}
	if c.OnBusy != BusyQueue && c.OnBusy != BusyReject {
		return fmt.Errorf("onBusy must be %q or %q, got %q", BusyQueue, BusyReject, c.OnBusy)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	return nil
}

// WatchEnabled resolves the tri-state watch setting.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// ConfigDir returns the XDG config directory for ghostedit.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "ghostedit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ghostedit")
}

func configFiles() []string {
	dir := ConfigDir()
	if dir == "" {
		return nil
	}
	return []string{
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.jsonc"),
	}
}

// loadFile merges one config file into cfg. A missing file is fine; a
// malformed one is an error the user should see.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GHOSTEDIT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("GHOSTEDIT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("GHOSTEDIT_EDITOR"); v != "" {
		cfg.Editor = v
	}
	if v := os.Getenv("GHOSTEDIT_ON_BUSY"); v != "" {
		cfg.OnBusy = v
	}
	if v := os.Getenv("GHOSTEDIT_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Debounce = Duration(d)
		}
	}
	if v := os.Getenv("GHOSTEDIT_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleTimeout = Duration(d)
		}
	}
	if v := os.Getenv("GHOSTEDIT_MULTI"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Multi = b
		}
	}
	if v := os.Getenv("GHOSTEDIT_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Watch = &b
		}
	}
	if v := os.Getenv("GHOSTEDIT_EDITORS_FILE"); v != "" {
		cfg.EditorsFile = v
	}
	if v := os.Getenv("GHOSTEDIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
