// Package config loads the daemon's TOML configuration. Built-in
// defaults come from the embedded default.toml; a config file, when
// present, overrides only the keys it sets. Command-line flags and
// MDNSOFFLOAD_LOG are applied on top by the CLI.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-mdnsoffload"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "/etc/mdnsoffload/mdnsoffload.toml"

// Config is the top-level daemon configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Offload OffloadConfig `toml:"offload"`
	Device  DeviceConfig  `toml:"device"`
	Metrics MetricsConfig `toml:"metrics"`
}

// LoggingConfig is the [logging] table.
type LoggingConfig struct {
	// Level is a full log spec such as "info,reconciler=debug".
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
	// Components sets per-component levels on an info base. Ignored
	// when Level is set.
	Components map[string]string `toml:"components" validate:"dive,keys,required,endkeys,oneof=trace debug info warn error"`
}

// ToSpec renders the table as a log spec string.
func (c *LoggingConfig) ToSpec() string {
	if c.Level != "" || len(c.Components) == 0 {
		return c.Level
	}
	spec := "info"
	for _, name := range slices.Sorted(maps.Keys(c.Components)) {
		spec += "," + name + "=" + c.Components[name]
	}
	return spec
}

// OffloadConfig seeds the engine.
type OffloadConfig struct {
	PriorityQNames []string `toml:"priority_qnames" validate:"dive,required,max=255"`
	// Interfaces restricts which links are reported available. Empty
	// means every non-loopback link.
	Interfaces       []string `toml:"interfaces" validate:"dive,required,max=15"`
	AllowedAppIDs    []uint32 `toml:"allowed_app_ids" validate:"dive,lt=100000"`
	StartInteractive bool     `toml:"start_interactive"`
}

// AllowList returns the configured app ids.
func (c *OffloadConfig) AllowList() []mdnsoffload.AppID {
	out := make([]mdnsoffload.AppID, 0, len(c.AllowedAppIDs))
	for _, id := range c.AllowedAppIDs {
		out = append(out, mdnsoffload.AppID(id))
	}
	return out
}

// DeviceConfig locates the companion device service.
type DeviceConfig struct {
	// Address is a unix socket path or host:port. Empty runs without a
	// device until one is configured.
	Address        string   `toml:"address"`
	ConnectTimeout Duration `toml:"connect_timeout"`
}

// MetricsConfig controls counter persistence.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	// Retention bounds how long harvested counters are kept. Zero
	// keeps them forever.
	Retention Duration `toml:"retention"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig decodes the embedded default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default.toml: %v", err))
	}
	return cfg
}

// Load overlays the file at path (DefaultConfigPath when empty) onto
// DefaultConfig. A missing file yields the defaults. Unknown keys and
// values that fail validation are errors.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, &cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return DefaultConfig(), nil
	case err != nil:
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if extra := md.Undecoded(); len(extra) > 0 {
		return cfg, fmt.Errorf("unknown config keys in %s: %v", path, extra)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}
