package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one named connection in the profiles file.
type Profile struct {
	// Driver is the database/sql driver name (sqlite, mysql, postgres).
	Driver string `yaml:"driver"`
	// DSN is passed to the driver untouched.
	DSN string `yaml:"dsn"`
}

// Config is the profiles file layout:
//
//	connections:
//	  dev:
//	    driver: sqlite
//	    dsn: file:dev.db
type Config struct {
	Connections map[string]Profile `yaml:"connections"`
}

// LoadConfig reads and parses the profiles file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Connection returns the named profile.
func (c *Config) Connection(name string) (Profile, error) {
	p, ok := c.Connections[name]
	if !ok {
		return Profile{}, fmt.Errorf("no connection %q in profiles file", name)
	}
	if p.Driver == "" || p.DSN == "" {
		return Profile{}, fmt.Errorf("connection %q needs both driver and dsn", name)
	}
	return p, nil
}
