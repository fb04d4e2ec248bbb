package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings of the canlink command.
type Config struct {
	Device       string        `mapstructure:"device"`
	Transport    string        `mapstructure:"transport"`
	Loopback     bool          `mapstructure:"loopback"`
	Workers      int           `mapstructure:"workers"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFrames    bool          `mapstructure:"log_frames"`
	FilterIDs    []uint32      `mapstructure:"filter_ids"`
	Bitrate      uint32        `mapstructure:"bitrate"`
}

const (
	TransportSocketCAN = "socketcan"
	TransportLoopback  = "loopback"
)

// Load reads path (if non-empty) over the defaults. Any key can be
// overridden through the environment as CANLINK_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("device", "can0")
	v.SetDefault("transport", TransportSocketCAN)
	v.SetDefault("loopback", false)
	v.SetDefault("workers", 2)
	v.SetDefault("start_timeout", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_frames", false)
	v.SetDefault("filter_ids", []uint32{})
	v.SetDefault("bitrate", 0)

	v.SetEnvPrefix("canlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportSocketCAN, TransportLoopback:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Device == "" {
		return fmt.Errorf("device must be set")
	}
	if c.StartTimeout <= 0 {
		return fmt.Errorf("start_timeout must be positive, got %s", c.StartTimeout)
	}
	return nil
}
