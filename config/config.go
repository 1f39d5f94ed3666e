package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env          string `env:"ENVIRONMENT"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"pushgate.sqlite"`

	VapidPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VapidPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VapidContact    string `env:"VAPID_CONTACT"`

	// Shared secret for POST /send-notification.
	BroadcastKey string `env:"AUTH_KEY"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`

	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"8"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`

	log *zap.Logger
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		log.Sugar().Panic(err)
	}

	if err := cfg.validate(); err != nil {
		if cfg.Env == "development" || cfg.Env == "" {
			cfg.log.Sugar().Infof("%s (broadcast auth will use the default key in development env)", err)
			if cfg.BroadcastKey == "" {
				cfg.BroadcastKey = "dev-key"
			}
		} else {
			cfg.log.Sugar().Panic(err)
		}
	}

	return cfg
}

func (cfg *Config) validate() error {
	if cfg.VapidPublicKey == "" || cfg.VapidPrivateKey == "" {
		return errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY envvars must be populated")
	}
	if cfg.VapidContact == "" {
		return errors.New("VAPID_CONTACT envvar must be populated")
	}
	if cfg.BroadcastKey == "" {
		return errors.New("AUTH_KEY envvar must be populated")
	}
	return nil
}
