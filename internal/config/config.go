// Package config loads settings for the botdeck binaries from flags, the
// environment and an optional botdeck.yaml file, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config carries every tunable shared by the gateway and the console. Each
// binary reads the subset it cares about.
type Config struct {
	// Gateway.
	ListenAddr    string `mapstructure:"listen_addr"`
	RobotURL      string `mapstructure:"robot_url"`
	DatabasePath  string `mapstructure:"database_path"`
	GridStatePath string `mapstructure:"grid_state_path"`

	// Console.
	GatewayURL   string        `mapstructure:"gateway_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	QueueLimit   int           `mapstructure:"queue_limit"`
	Tray         bool          `mapstructure:"tray"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("robot_url", "")
	v.SetDefault("database_path", "botdeck.db")
	v.SetDefault("grid_state_path", "grid_state.json")
	v.SetDefault("gateway_url", "ws://localhost:8080/ws")
	v.SetDefault("poll_interval", 50*time.Millisecond)
	v.SetDefault("queue_limit", 1024)
	v.SetDefault("tray", false)
}

// Load builds the configuration. flags may be nil; when given it must already
// be parsed and its names must match the config keys. A missing config file
// is not an error, a malformed one is.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("botdeck")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/botdeck")

	v.SetEnvPrefix("BOTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
