package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. EVENTQ_QUEUE_BACKEND.
const EnvPrefix = "EVENTQ"

// FlagKeys maps command-line flag names to the configuration keys they override.
var FlagKeys = map[string]string{
	"backend":      "queue.backends",
	"bucket-width": "queue.bucket_width",
	"bucket-count": "queue.bucket_count",
	"max-batch":    "queue.max_batch",
	"workers":      "queue.workers",
	"windows":      "driver.window_count",
	"bulk":         "driver.bulk",
	"format":       "input.format",
	"comma":        "input.comma",
	"runlog":       "runlog.path",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics.textfile",
	"repeat":       "run.repeat",
}

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file, if path is not empty
// 3. Environment variables (EVENTQ_ prefix)
// 4. Command-line flags that were explicitly set
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load configuration file
	if path != "" {
		if err := loadConfigFile(v, path); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 3. Set up environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile reads the TOML configuration file
func loadConfigFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist: %s", path)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
	}
	return nil
}

// SaveExampleConfig writes a configuration file holding every default
func SaveExampleConfig(path string) error {
	v := viper.New()
	setDefaults(v)
	v.Set("input.path", "events.csv.lz4")
	v.Set("runlog.path", "eventq.db")

	v.SetConfigFile(path)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}
