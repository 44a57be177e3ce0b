// Package config содержит логику чтения конфигурации сервиса мини-магазина.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса мини-магазина.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	IdentityAddress string `env:"IDENTITY_PROVIDER_ADDRESS"`
	AuthSecret      string `env:"AUTH_SECRET"`
	StrictCoupon    bool   `env:"STRICT_COUPON"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения переменных окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envIdentityAddress := cfg.IdentityAddress
	envAuthSecret := cfg.AuthSecret
	envStrictCoupon := cfg.StrictCoupon

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.IdentityAddress, "i", "", "identity provider address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for auth token signing")
	flag.BoolVar(&cfg.StrictCoupon, "strict-coupon", false, "fail order creation on invalid coupon")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envIdentityAddress != "" {
		cfg.IdentityAddress = envIdentityAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envStrictCoupon {
		cfg.StrictCoupon = true
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "distribution-mini-secret"
	}

	return cfg, nil
}
