package datamodels

import (
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

type PapertraderConfig struct {
	Simulation  SimulationConfig     `mapstructure:"simulation"`
	Portfolio   PortfolioConfig      `mapstructure:"portfolio"`
	Strategies  StrategiesConfig     `mapstructure:"strategies"`
	Server      ServerConfig         `mapstructure:"server"`
	Persistence PersistenceConfig    `mapstructure:"persistence"`
	Metrics     *MetricsWriterConfig `mapstructure:"metrics_writer"`
	Assets      []AssetSpec          `mapstructure:"assets"`
}

type SimulationConfig struct {
	BaseVolatility  float64 `mapstructure:"base_volatility"`
	SpeedMultiplier float64 `mapstructure:"speed_multiplier"`
	MaxSeriesLength int     `mapstructure:"max_series_length"`
}

type PortfolioConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	HistoryCap     int     `mapstructure:"history_cap"`
}

type MovingAverageConfig struct {
	ShortPeriod int     `mapstructure:"short_period"`
	LongPeriod  int     `mapstructure:"long_period"`
	Threshold   float64 `mapstructure:"threshold"`
}

type RSIStrategyConfig struct {
	Period         int     `mapstructure:"period"`
	Overbought     float64 `mapstructure:"overbought"`
	Oversold       float64 `mapstructure:"oversold"`
	CooldownPeriod int     `mapstructure:"cooldown_period"`
}

type StrategiesConfig struct {
	MovingAverage MovingAverageConfig `mapstructure:"moving_average"`
	RSI           RSIStrategyConfig   `mapstructure:"rsi"`
}

type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	HealthEndpoint  string `mapstructure:"health_endpoint"`
	StreamEndpoint  string `mapstructure:"stream_endpoint"`
}

type PersistenceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type MetricsWriterConfig struct {
	WsWriter   bool   `mapstructure:"ws_writer"`
	FileWriter bool   `mapstructure:"file_writer"`
	FilePath   string `mapstructure:"file_path"`
}

func (c *PapertraderConfig) Validate() error {
	if len(c.Assets) == 0 {
		return errors.New("assets are required")
	}
	symbols := make([]Symbol, 0, len(c.Assets))
	for _, asset := range c.Assets {
		symbols = append(symbols, asset.Symbol)
	}
	if !general.NoDuplicateItemsInSlice(symbols) {
		return errors.New("asset symbols must be unique")
	}
	for _, asset := range c.Assets {
		if asset.Symbol == "" {
			return errors.New("asset symbol is required")
		}
		if !asset.Category.Valid() {
			return errors.Newf("unknown asset category %q for %s", asset.Category, asset.Symbol)
		}
		if asset.StartPrice <= 0 {
			return errors.Newf("start price must be positive for %s", asset.Symbol)
		}
	}
	if c.Portfolio.InitialBalance <= 0 {
		return errors.New("initial_balance must be greater than 0")
	}
	if c.Simulation.SpeedMultiplier <= 0 {
		return errors.New("speed_multiplier must be greater than 0")
	}
	return nil
}

// ApplyDefaults fills the optional knobs a config file usually omits.
func (c *PapertraderConfig) ApplyDefaults() {
	if c.Simulation.BaseVolatility == 0 {
		c.Simulation.BaseVolatility = 0.01
	}
	if c.Simulation.SpeedMultiplier == 0 {
		c.Simulation.SpeedMultiplier = 1
	}
	if c.Simulation.MaxSeriesLength == 0 {
		c.Simulation.MaxSeriesLength = 100
	}
	if c.Portfolio.HistoryCap == 0 {
		c.Portfolio.HistoryCap = 100
	}
	if c.Strategies.MovingAverage.ShortPeriod == 0 {
		c.Strategies.MovingAverage = MovingAverageConfig{ShortPeriod: 10, LongPeriod: 20, Threshold: 0.002}
	}
	if c.Strategies.RSI.Period == 0 {
		c.Strategies.RSI = RSIStrategyConfig{Period: 14, Overbought: 70, Oversold: 30, CooldownPeriod: 6}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.HealthEndpoint == "" {
		c.Server.HealthEndpoint = "/health"
	}
	if c.Server.StreamEndpoint == "" {
		c.Server.StreamEndpoint = "/ws"
	}
}
