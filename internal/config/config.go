// Package config loads server configuration from file, environment, and
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Server is the server binary's configuration.
type Server struct {
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	DatasetPath string `mapstructure:"dataset_path" yaml:"dataset_path"`
	HistoryPath string `mapstructure:"history_path" yaml:"history_path"`

	MaxTotalCombinations    int `mapstructure:"max_total_combinations" yaml:"max_total_combinations"`
	PreviewRowLimit         int `mapstructure:"preview_row_limit" yaml:"preview_row_limit"`
	Workers                 int `mapstructure:"workers" yaml:"workers"`
	DefaultFragmentEstimate int `mapstructure:"default_fragment_estimate" yaml:"default_fragment_estimate"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration with precedence env > config file > defaults.
// Environment variables use the COMBISTAT_ prefix.
func Load(cfgFile string) (*Server, error) {
	v := viper.New()
	v.SetEnvPrefix("COMBISTAT")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("dataset_path", "datasets.duckdb")
	v.SetDefault("history_path", "history.db")
	v.SetDefault("max_total_combinations", 100000)
	v.SetDefault("preview_row_limit", 100)
	v.SetDefault("workers", 4)
	v.SetDefault("default_fragment_estimate", 3)
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
		v.SetConfigName("combistat")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Server
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Save writes the configuration to path, or to the default location when
// path is empty.
func Save(c *Server, path string) (string, error) {
	if path == "" {
		dir := defaultConfigDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "combistat.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".combistat")
}
