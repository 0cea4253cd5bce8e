// Package runconfig loads an optional YAML run-configuration file and
// merges it with CLI flag overrides, following the same
// parse-then-merge shape as the example pack's
// database.ParseGeneratorConfig/MergeGeneratorConfig.
package runconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config carries the table filters and fix levels that can come either
// from a file or from CLI flags, with CLI flags taking precedence.
type Config struct {
	Tables  []string `yaml:"tables"`
	Exclude []string `yaml:"exclude"`
	Fix     []string `yaml:"fix"`

	DBType   string `yaml:"db_type"`
	DBName   string `yaml:"db_name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Load reads and parses a YAML config file. An empty path returns a zero
// Config with no error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("runconfig: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return Config{}, fmt.Errorf("runconfig: parsing %s: %w", path, err)
	}
	return c, nil
}

// Merge layers override on top of base: any non-zero field in override
// wins, mirroring MergeGeneratorConfig's field-by-field precedence rule.
func Merge(base, override Config) Config {
	result := base
	if len(override.Tables) > 0 {
		result.Tables = override.Tables
	}
	if len(override.Exclude) > 0 {
		result.Exclude = override.Exclude
	}
	if len(override.Fix) > 0 {
		result.Fix = override.Fix
	}
	if override.DBType != "" {
		result.DBType = override.DBType
	}
	if override.DBName != "" {
		result.DBName = override.DBName
	}
	if override.Host != "" {
		result.Host = override.Host
	}
	if override.Port != 0 {
		result.Port = override.Port
	}
	if override.User != "" {
		result.User = override.User
	}
	if override.Password != "" {
		result.Password = override.Password
	}
	return result
}
