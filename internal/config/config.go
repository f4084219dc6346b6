// Package config loads the tileworld YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/tileworld/internal/engine"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/world"
)

// AdminKeyEnv names the environment variable holding the API bearer token.
const AdminKeyEnv = "TILEWORLD_ADMIN_KEY"

// Config is the whole runtime configuration.
type Config struct {
	World    world.GenConfig  `yaml:"world"`
	Pathing  pathfind.Options `yaml:"pathing"`
	Session  engine.Config    `yaml:"session"`
	Autotile AutotileConfig   `yaml:"autotile"`
	Server   ServerConfig     `yaml:"server"`
	Storage  StorageConfig    `yaml:"storage"`
}

// AutotileConfig locates the rule table.
type AutotileConfig struct {
	RulesPath string `yaml:"rules_path"`
	Disabled  bool   `yaml:"disabled"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	PathPerMinute int    `yaml:"path_per_minute"` // Rate limit for path previews, per IP
	AdminKey      string `yaml:"-"`               // From the environment only
}

// StorageConfig locates the archive database and snapshot directory.
type StorageConfig struct {
	DBPath      string `yaml:"db_path"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Default returns a complete configuration.
func Default() Config {
	return Config{
		World:    world.DefaultGenConfig(),
		Pathing:  pathfind.DefaultOptions(),
		Session:  engine.DefaultConfig(),
		Autotile: AutotileConfig{RulesPath: "data/rules.json"},
		Server:   ServerConfig{Addr: ":8080", PathPerMinute: 120},
		Storage:  StorageConfig{DBPath: "tileworld.db", SnapshotDir: "snapshots"},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values; lists present in the file replace the default lists.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv reads secrets from the environment.
func (c *Config) ApplyEnv() {
	if key := os.Getenv(AdminKeyEnv); key != "" {
		c.Server.AdminKey = key
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if err := c.World.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("world: %w", err))
	}
	if err := c.Pathing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pathing: %w", err))
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if c.Server.PathPerMinute < 0 {
		errs = append(errs, fmt.Errorf("server: path_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}
