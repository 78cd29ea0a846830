package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rudransh-shrivastava/fastshare/internal/transfer"
	"github.com/rudransh-shrivastava/fastshare/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DefaultPort     = 8080
	MaxChunkSize    = 64 * 1024 * 1024
	envPrefix       = "FASTSHARE"
	configName      = ".fastshare"
	defaultLogLevel = "info"
)

var (
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidChunkSize = errors.New("chunk size must be between 1 byte and 64 MiB")
	ErrNegativeTimeout  = errors.New("timeouts must not be negative")
	ErrInvalidLogLevel  = errors.New("log level must be one of debug, info, warn, error")
)

// Config holds everything a single send or receive needs.
type Config struct {
	Port      int    `mapstructure:"port"`
	ChunkSize int    `mapstructure:"chunk_size"`
	Output    string `mapstructure:"output"`

	// Timeout bounds each read and write once connected.
	Timeout       time.Duration `mapstructure:"timeout"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	AcceptTimeout time.Duration `mapstructure:"accept_timeout"`

	// History is the SQLite path of the transfer ledger. Empty disables it.
	History  string `mapstructure:"history"`
	LogLevel string `mapstructure:"log_level"`
	Quiet    bool   `mapstructure:"quiet"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Port:      DefaultPort,
		ChunkSize: transfer.DefaultChunkSize,
		Output:    ".",
		LogLevel:  defaultLogLevel,
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if c.ChunkSize < 1 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.Timeout < 0 || c.DialTimeout < 0 || c.AcceptTimeout < 0 {
		return ErrNegativeTimeout
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Level() (logrus.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	}
	return logrus.InfoLevel, fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.LogLevel)
}

func (c *Config) TransferConfig() transfer.Config {
	return transfer.Config{
		ChunkSize: c.ChunkSize,
		IOTimeout: c.Timeout,
	}
}

func (c *Config) TransportConfig() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.DialTimeout = c.DialTimeout
	cfg.AcceptTimeout = c.AcceptTimeout
	return cfg
}

// SetDefaults registers every key on v so env variables and config files
// can override them.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("output", d.Output)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("accept_timeout", d.AcceptTimeout)
	v.SetDefault("history", d.History)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("quiet", d.Quiet)
}

// Load reads configuration from, in increasing priority: defaults, the config
// file, FASTSHARE_* environment variables and any flags already bound on v.
// cfgFile may be empty, in which case $HOME/.fastshare.yaml is used if present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(configName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
