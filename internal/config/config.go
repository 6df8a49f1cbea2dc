// Package config loads the chromeprov CLI configuration from defaults, an
// optional TOML file, and CHROMEPROV_-prefixed environment variables, in
// that order of precedence (later sources win).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the CLI configuration.
type Config struct {
	Cache struct {
		Root string `koanf:"root"`
	} `koanf:"cache"`

	Version struct {
		// Pin is an exact version string; when set it wins over the
		// dynamic channel lookup.
		Pin      string `koanf:"pin"`
		Endpoint string `koanf:"endpoint"`
		Channel  string `koanf:"channel"`
	} `koanf:"version"`

	Driver struct {
		// Enabled toggles driver provisioning. The driver is optional
		// either way: a failure never aborts the run.
		Enabled bool `koanf:"enabled"`
	} `koanf:"driver"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// Load reads the configuration. An empty configPath falls back to the
// default locations; a missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"version.channel": "Stable",
		"driver.enabled":  true,
		"log.level":       "info",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./chromeprov.toml", "$HOME/.chromeprov.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("CHROMEPROV_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CHROMEPROV_")), "_", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Init writes a sample configuration file.
func Init(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# chromeprov configuration

[cache]
# root = "/var/cache/chromeprov"

[version]
# pin = "140.0.7339.185"
channel = "Stable"
# endpoint = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions.json"

[driver]
enabled = true

[log]
level = "info"
`
	return os.WriteFile(configPath, []byte(sample), 0o644)
}
