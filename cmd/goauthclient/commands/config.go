package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/MrEthical07/goAuthClient/internal/logger"
)

// Config is the CLI configuration.
//
// Precedence, highest first: GOAUTHCLIENT_* environment variables, the config
// file, defaults. Nested keys use underscores in the environment, e.g.
// GOAUTHCLIENT_CLIENT_BASE_URL.
type Config struct {
	Logging  logger.Config  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Client   ClientConfig   `mapstructure:"client"`
	Loadtest LoadtestConfig `mapstructure:"loadtest"`
}

// ServerConfig configures the apitest backend started by serve and loadtest.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required,hostname_port"`
	RedisAddr      string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	AccessTTL      time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	SigningMethod  string        `mapstructure:"signing_method" validate:"oneof=hs256 ed25519"`
	ExpiredStatus  int           `mapstructure:"expired_status" validate:"gte=400,lt=500"`
	ExpiredMessage string        `mapstructure:"expired_message" validate:"required"`
	RefreshDelay   time.Duration `mapstructure:"refresh_delay" validate:"gte=0"`
	Username       string        `mapstructure:"username" validate:"required"`
	Password       string        `mapstructure:"password" validate:"required"`
}

// ClientConfig configures the goAuthClient used by request and loadtest.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout" validate:"gt=0"`
	RefreshPath    string        `mapstructure:"refresh_path" validate:"required,startswith=/"`
	LoginPath      string        `mapstructure:"login_path" validate:"required,startswith=/"`
	MetricsAddr    string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// LoadtestConfig configures the loadtest command.
type LoadtestConfig struct {
	Workers     int           `mapstructure:"workers" validate:"gte=1,lte=10000"`
	Requests    int           `mapstructure:"requests" validate:"gte=1"`
	Rate        float64       `mapstructure:"rate" validate:"gte=0"`
	ExpireEvery time.Duration `mapstructure:"expire_every" validate:"gte=0"`
	Path        string        `mapstructure:"path" validate:"required,startswith=/"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.access_ttl", 15*time.Minute)
	v.SetDefault("server.signing_method", "hs256")
	v.SetDefault("server.expired_status", 400)
	v.SetDefault("server.expired_message", "jwt expired")
	v.SetDefault("server.refresh_delay", 0)
	v.SetDefault("server.username", "demo")
	v.SetDefault("server.password", "demo-password")

	v.SetDefault("client.base_url", "")
	v.SetDefault("client.request_timeout", 30*time.Second)
	v.SetDefault("client.refresh_timeout", 10*time.Second)
	v.SetDefault("client.refresh_path", "/auth/refresh-token")
	v.SetDefault("client.login_path", "/auth/login")
	v.SetDefault("client.metrics_addr", "")

	v.SetDefault("loadtest.workers", 64)
	v.SetDefault("loadtest.requests", 10000)
	v.SetDefault("loadtest.rate", 0)
	v.SetDefault("loadtest.expire_every", 250*time.Millisecond)
	v.SetDefault("loadtest.path", "/user/profile")
}

// LoadConfig reads path (optional), the environment and defaults, then
// validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GOAUTHCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("configuration file not found: %s", path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}
