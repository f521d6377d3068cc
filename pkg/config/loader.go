package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads config.yaml (./configs, ., /etc/ocpp-sim) and applies SIM_
// environment overrides. A missing file is fine: defaults plus environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ocpp-sim")

	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common vars accepted without the SIM_ prefix for container deploys.
	v.BindEnv("ui.addr", "UI_ADDR", "SIM_UI_ADDR")
	v.BindEnv("storage.dir", "STORAGE_DIR", "SIM_STORAGE_DIR")
	v.BindEnv("logging.level", "LOG_LEVEL", "SIM_LOGGING_LEVEL")
	v.BindEnv("app.environment", "BUILD", "SIM_APP_ENVIRONMENT")

	v.SetDefault("app.name", "ocpp-sim")
	v.SetDefault("app.environment", "development")
	v.SetDefault("logging.level", "info")
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.addr", ":8080")
	v.SetDefault("ui.enable_metrics", true)
	v.SetDefault("storage.dir", "./data/stations")
	v.SetDefault("cache.size", 256)
	v.SetDefault("shutdown.timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for i, st := range c.Stations {
		if st.TemplateFile == "" {
			return fmt.Errorf("config: stations[%d] needs template_file", i)
		}
		if st.NumberOfStations < 0 {
			return fmt.Errorf("config: stations[%d] has negative number_of_stations", i)
		}
	}
	return nil
}
