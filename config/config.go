// Package config loads jiraload configuration from file, environment and defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telemat/jiraload/errors"
)

// Config holds the application-level settings. Target-database credentials
// live with each subscription, not here.
type Config struct {
	// StorePath is the path of the local application database holding
	// subscriptions and import statuses.
	StorePath string `mapstructure:"store_path"`

	// HTTPTimeout bounds each remote synchronization call.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// BulkLogEvery controls how often per-row progress is logged during the
	// bulk insert phase (1 = every row).
	BulkLogEvery int `mapstructure:"bulk_log_every"`

	// JSONLogs switches the logger to machine-readable output.
	JSONLogs bool `mapstructure:"json_logs"`
}

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the configuration using Viper, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}
	return &config, nil
}

// GetViper returns the Viper instance for advanced configuration access.
func GetViper() *viper.Viper {
	return initViper()
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("JIRALOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Optional config file next to the store
	v.SetConfigName("jiraload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".jiraload"))
	}
	// Missing file is fine, defaults and env apply
	_ = v.ReadInConfig()

	viperInstance = v
	return v
}

func setDefaults(v *viper.Viper) {
	storePath := "jiraload.db"
	if home, err := os.UserHomeDir(); err == nil {
		storePath = filepath.Join(home, ".jiraload", "jiraload.db")
	}
	v.SetDefault("store_path", storePath)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("bulk_log_every", 100)
	v.SetDefault("json_logs", false)
}
