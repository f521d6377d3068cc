// Package config loads the simulator configuration from YAML and the
// environment.
package config

import "time"

type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	UI       UIConfig        `mapstructure:"ui"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Stations []StationConfig `mapstructure:"stations"`
	Shutdown ShutdownConfig  `mapstructure:"shutdown"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development | production
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// UIConfig configures the control-plane endpoint.
type UIConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr"`
	EnableMetrics bool   `mapstructure:"enable_metrics"`
}

// StorageConfig locates the per-station configuration files.
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// StationConfig provisions stations from one template file.
type StationConfig struct {
	TemplateFile     string `mapstructure:"template_file"`
	NumberOfStations int    `mapstructure:"number_of_stations"`
	AutoStart        bool   `mapstructure:"auto_start"`
}

type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Development reports whether the permissive development profile is active.
func (c *Config) Development() bool {
	return c.App.Environment != "production"
}
