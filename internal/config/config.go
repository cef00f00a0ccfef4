// Package config loads the war server configuration from YAML,
// falling back to defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WarServer holds all configuration for the war server.
type WarServer struct {
	// Database
	Database DatabaseConfig `yaml:"database"`

	// War timing
	WarActivationGrace time.Duration `yaml:"war_activation_grace"`

	// Scheduler
	IncomeInterval  time.Duration `yaml:"income_interval"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultWarServer returns WarServer config with sensible defaults.
func DefaultWarServer() WarServer {
	return WarServer{
		WarActivationGrace: time.Hour,
		IncomeInterval:     15 * time.Minute,
		JanitorInterval:    time.Minute,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "clanforge",
			Password: "clanforge",
			DBName:   "clanforge",
			SSLMode:  "disable",
		},
	}
}

// LoadWarServer loads war server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadWarServer(path string) (WarServer, error) {
	cfg := DefaultWarServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
