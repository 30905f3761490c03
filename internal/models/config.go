package models

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type Config struct {
	Seed          int64         `mapstructure:"seed"`
	NumNodes      int           `mapstructure:"num_nodes"`
	NumEdges      int           `mapstructure:"num_edges"`
	NumDrivers    int           `mapstructure:"num_drivers"`
	Distribution  string        `mapstructure:"distribution"` // "uniform" or "mixture"
	OrderRateMin  float64       `mapstructure:"order_rate_min"`
	OrderRateMax  float64       `mapstructure:"order_rate_max"`
	MaxPendingObs int           `mapstructure:"max_pending_orders"` // observation padding width
	MaxTicks      int           `mapstructure:"max_ticks"`          // 0 means run until stopped
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	AutoAssign    bool          `mapstructure:"auto_assign"`
	Continuous    bool          `mapstructure:"continuous"`

	KafkaEnabled      bool   `mapstructure:"kafka_enabled"`
	KafkaBrokerList   string `mapstructure:"kafka_broker_list"`
	PostgresEnabled   bool   `mapstructure:"postgres_enabled"`
	OutputFolder      string `mapstructure:"output_folder"`
	OutputDestination string `mapstructure:"output_destination"` // "local" or a cloud provider
	ArchivePath       string `mapstructure:"archive_path"`       // parquet order-history archive, empty disables

	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Default config location
		viper.AddConfigPath("examples")
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	viper.AutomaticEnv() // Read in environment variables that match

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := viper.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (cfg *Config) ApplyDefaults() {
	if cfg.Distribution == "" {
		cfg.Distribution = DistributionUniform
	}
	// the rates default as a pair; a half-configured range is left for
	// Validate to reject rather than silently overwritten
	if cfg.OrderRateMin == 0 && cfg.OrderRateMax == 0 {
		cfg.OrderRateMin = DefaultOrderRateMin
		cfg.OrderRateMax = DefaultOrderRateMax
	}
	if cfg.MaxPendingObs == 0 {
		cfg.MaxPendingObs = DefaultMaxPendingObs
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = DefaultTickInterval
	}
}

// Validate rejects configurations the simulation cannot be built from.
// An edge target below the connectivity minimum is not an error here:
// the synthesizer repairs it.
func (cfg *Config) Validate() error {
	if cfg.NumNodes < 0 {
		return fmt.Errorf("%w: num_nodes must not be negative, got %d", ErrValidation, cfg.NumNodes)
	}
	if cfg.NumDrivers < 0 {
		return fmt.Errorf("%w: num_drivers must not be negative, got %d", ErrValidation, cfg.NumDrivers)
	}
	if cfg.Distribution != DistributionUniform && cfg.Distribution != DistributionMixture {
		return fmt.Errorf("%w: unknown distribution %q", ErrValidation, cfg.Distribution)
	}
	if cfg.OrderRateMin < 0 || cfg.OrderRateMax < cfg.OrderRateMin {
		return fmt.Errorf("%w: order rate range [%v, %v] is invalid", ErrValidation, cfg.OrderRateMin, cfg.OrderRateMax)
	}
	return nil
}
