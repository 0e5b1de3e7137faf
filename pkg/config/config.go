// Package config loads settings for the rqgo binaries from defaults, an
// optional config file and RQ_ prefixed environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/synodriver/rqgo/pkg/logging"
	"github.com/synodriver/rqgo/pkg/protocol"
)

const (
	EnvPrefix         = "RQ"
	DefaultServer     = "msfwifi.3g.qq.com:8080"
	DefaultAPIListen  = "127.0.0.1:8090"
	DefaultDBPath     = "rqgo.db"
	DefaultDeviceName = "default"
	DefaultTimeout    = 15 * time.Second
	DefaultPollPeriod = 2 * time.Second
)

var (
	ErrInvalidPassword = errors.New("password_md5 must be 32 hex characters")
	ErrInvalidTimeout  = errors.New("timeout must be positive")
	ErrMissingServer   = errors.New("server address is required")
)

// Config is the root configuration
type Config struct {
	// Account
	Uin         int64  `mapstructure:"uin"`
	PasswordMD5 string `mapstructure:"password_md5"`
	Protocol    int    `mapstructure:"protocol"`

	// Persistence
	DBPath          string `mapstructure:"db_path"`
	DeviceName      string `mapstructure:"device_name"`
	StorePassphrase string `mapstructure:"store_passphrase"`

	// Network
	Server     string        `mapstructure:"server"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PollPeriod time.Duration `mapstructure:"poll_period"`
	APIListen  string        `mapstructure:"api_listen"`

	Log logging.Config `mapstructure:"log"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
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
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("uin", 0)
	v.SetDefault("password_md5", "")
	v.SetDefault("protocol", int(protocol.DefaultProtocol))
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("device_name", DefaultDeviceName)
	v.SetDefault("store_passphrase", "")
	v.SetDefault("server", DefaultServer)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("poll_period", DefaultPollPeriod)
	v.SetDefault("api_listen", DefaultAPIListen)

	log := logging.DefaultConfig()
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.console", log.Console)
}

// Validate checks values that would only fail later at login time
func (c *Config) Validate() error {
	if c.PasswordMD5 != "" {
		if b, err := hex.DecodeString(c.PasswordMD5); err != nil || len(b) != 16 {
			return ErrInvalidPassword
		}
	}
	if c.Timeout <= 0 || c.PollPeriod <= 0 {
		return ErrInvalidTimeout
	}
	if c.Server == "" {
		return ErrMissingServer
	}
	return nil
}

// ClientProtocol returns the configured client variant
func (c *Config) ClientProtocol() protocol.Protocol {
	return protocol.ParseProtocol(c.Protocol)
}

// Password returns the decoded password digest, or nil when unset
func (c *Config) Password() []byte {
	b, err := hex.DecodeString(c.PasswordMD5)
	if err != nil || len(b) != 16 {
		return nil
	}
	return b
}
