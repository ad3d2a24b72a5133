package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// DefaultHealthPath is used for routes that do not configure their own
// health endpoint.
const DefaultHealthPath = "/health"

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type RouteConfig struct {
	Prefix     string `mapstructure:"prefix"`
	URL        string `mapstructure:"url"`
	HealthPath string `mapstructure:"health_path"`
}

type RateLimitConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Store    string `mapstructure:"store"`
	RedisURL string `mapstructure:"redis_url"`
	Limit    int    `mapstructure:"limit"`
	Period   string `mapstructure:"period"`
}

type ProxyConfig struct {
	Secret         string `mapstructure:"secret"`
	Mount          string `mapstructure:"mount"`
	RequestTimeout string `mapstructure:"request_timeout"`
	HealthTimeout  string `mapstructure:"health_timeout"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Routes    []RouteConfig   `mapstructure:"routes"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.store", RateLimitStoreMemory)
	viper.SetDefault("rate_limit.limit", 100)
	viper.SetDefault("rate_limit.period", "60s")
	viper.SetDefault("proxy.secret", "dev_secret_key")
	viper.SetDefault("proxy.mount", "/api")
	viper.SetDefault("proxy.request_timeout", "30s")
	viper.SetDefault("proxy.health_timeout", "5s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	for i := range cfg.Routes {
		if cfg.Routes[i].HealthPath == "" {
			cfg.Routes[i].HealthPath = DefaultHealthPath
		}
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Routes,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateRouteConfig)),
		),
		validation.Field(&c.RateLimit,
			validation.By(func(value interface{}) error {
				rl, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				if !rl.Enabled {
					return nil
				}
				return validation.ValidateStruct(&rl,
					validation.Field(&rl.Store,
						validation.Required,
						validation.In(RateLimitStoreMemory, RateLimitStoreRedis),
					),
					validation.Field(&rl.RedisURL,
						validation.Required.When(rl.Store == RateLimitStoreRedis),
					),
					validation.Field(&rl.Limit,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&rl.Period,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Proxy,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Secret, validation.Required),
					validation.Field(&pc.Mount,
						validation.Required,
						validation.By(validateMount),
					),
					validation.Field(&pc.RequestTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&pc.HealthTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateMount(value interface{}) error {
	mount, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(mount, "/") || strings.HasSuffix(mount, "/") {
		return validation.NewError("validation_invalid_mount", "mount must start with a slash and not end with one")
	}

	return nil
}

func validateRouteConfig(value interface{}) error {
	route, ok := value.(RouteConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a RouteConfig")
	}

	if !strings.HasPrefix(route.Prefix, "/") {
		return validation.NewError("validation_invalid_prefix", "route prefix must start with a slash")
	}

	if route.URL == "" {
		return validation.NewError("validation_empty_url", "route backend URL cannot be empty")
	}

	parsedURL, err := url.Parse(route.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if !strings.HasPrefix(route.HealthPath, "/") {
		return validation.NewError("validation_invalid_health_path", "health path must start with a slash")
	}

	return nil
}
