package config

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

const defaultConfigPath = "config.yaml"

// Load reads the config file named by CONFIG_PATH (default config.yaml),
// fills defaults and validates the result.
func Load() (datamodels.PapertraderConfig, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (datamodels.PapertraderConfig, error) {
	var cfg datamodels.PapertraderConfig

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "unmarshal config")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "validate config")
	}

	slog.Info("Config loaded",
		"path", path,
		"assets", len(cfg.Assets),
		"speed", cfg.Simulation.SpeedMultiplier,
		"initial_balance", cfg.Portfolio.InitialBalance)
	return cfg, nil
}
