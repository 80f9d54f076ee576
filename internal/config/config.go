// Package config loads the proxy's YAML configuration, matching the
// teacher's load-into-package-var shape, adapted to spec §6's schema:
// backends, timeout, balancing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codepr/rlb/internal/balancing"
	"github.com/codepr/rlb/internal/logger"
)

// BackendConfig is one entry in the backends list: an address and an
// optional health-probe path.
type BackendConfig struct {
	Address    string `yaml:"address"`
	HealthPath string `yaml:"health_path,omitempty"`
}

// Config is the already-parsed configuration record the core consumes
// (spec §6).
type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	Backends   []BackendConfig `yaml:"backends"`
	Timeout    int             `yaml:"timeout"`
	Balancing  balancing.Name  `yaml:"balancing"`
}

// DefaultListenAddr is used when a config omits listen_addr.
const DefaultListenAddr = "127.0.0.1:6767"

var current = Config{ListenAddr: DefaultListenAddr, Balancing: balancing.RoundRobin}

// Load reads and unmarshals the YAML file at path into the package-level
// config, exiting the process (via logger.Fatal, spec §7 ConfigError) on
// any failure. This applies to hot reloads too: an invalid file written
// while the proxy runs terminates it.
func Load(path string) {
	buf, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("config.Load", fmt.Sprintf("reading config file %s: %s", path, err))
	}

	cfg := Config{ListenAddr: DefaultListenAddr, Balancing: balancing.RoundRobin}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		logger.Fatal("config.Load", "unmarshaling config file: "+err.Error())
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config.Load", "invalid config: "+err.Error())
	}

	current = cfg
}

// Validate enforces the schema-level invariants from spec §6: at least one
// backend, and a recognized balancing tag.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("config: at least one backend is required")
	}
	if _, err := balancing.New(c.Balancing); err != nil {
		return err
	}
	return nil
}

// Get returns the current configuration.
func Get() Config {
	return current
}
