package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the waterlink binary.
type Config struct {
	Service Service `yaml:"service" mapstructure:"service"`
	Batch   Batch   `yaml:"batch" mapstructure:"batch"`
	Monitor Monitor `yaml:"monitor" mapstructure:"monitor"`
	Logging Logging `yaml:"logging" mapstructure:"logging"`
}

type Service struct {
	URL            string  `yaml:"url" mapstructure:"url"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CacheSize      int     `yaml:"cache_size" mapstructure:"cache_size"`
}

type Batch struct {
	Parallel           bool `yaml:"parallel" mapstructure:"parallel"`
	MaxConcurrency     int  `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	ItemTimeoutSeconds int  `yaml:"item_timeout_seconds" mapstructure:"item_timeout_seconds"`
}

type Monitor struct {
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

type Logging struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from a YAML file, expanding $ENV_VAR references
// so endpoints and credentials can come from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	setDefaults(v)

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := v.MergeConfigMap(raw); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.timeout_seconds", 30)
	v.SetDefault("service.rate_limit", 5.0)
	v.SetDefault("service.rate_limit_burst", 10)
	v.SetDefault("service.cache_size", 1000)

	v.SetDefault("batch.parallel", true)
	v.SetDefault("batch.max_concurrency", 8)
	v.SetDefault("batch.item_timeout_seconds", 120)

	v.SetDefault("monitor.schedule", "*/10 * * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
