package walletgate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by LoadConfig.
const (
	EnvSessionSecretName = "JEF_JWE_SESSION_SECRET_ENV"
	EnvModuleNumber      = "MODULE_NUMBER"
	EnvCookieDomain      = "COOKIE_DOMAIN"
	EnvLoginURL          = "LOGIN_URL"
	EnvLambdaARN         = "LAMBDA_ARN"
	EnvAWSRegion         = "AWS_REGION"
	EnvAWSDefaultRegion  = "AWS_DEFAULT_REGION"
	EnvRateLimitStrategy = "RATE_LIMIT_STRATEGY"
	EnvRateLimitPoints   = "RATE_LIMIT_POINTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvSessionTTL        = "SESSION_TTL"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvAppEnv            = "APP_ENV"
	EnvDevLogin          = "DEV_LOGIN"
	EnvTrustForwarded    = "TRUST_FORWARDED_HEADERS"
)

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (when
// non-empty) and then the process environment.
func LoadConfig(path string) (Config, error) {
	return LoadConfigWith(path, os.LookupEnv)
}

// LoadConfigWith is LoadConfig with an injectable environment lookup.
func LoadConfigWith(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvSessionSecretName, &cfg.Key.SecretName)
	str(EnvModuleNumber, &cfg.Policy.ModuleNumber)
	str(EnvCookieDomain, &cfg.Cookie.Domain)
	str(EnvLoginURL, &cfg.Routes.LoginURL)
	str(EnvLambdaARN, &cfg.Policy.FunctionName)
	str(EnvAWSDefaultRegion, &cfg.Policy.Region)
	str(EnvAWSRegion, &cfg.Policy.Region)
	str(EnvRateLimitStrategy, &cfg.RateLimit.Strategy)
	str(EnvRedisAddr, &cfg.Redis.Addr)

	if v, ok := lookup(EnvRateLimitPoints); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRateLimitPoints, err)
		}
		cfg.RateLimit.Points = n
	}
	for name, dst := range map[string]*time.Duration{
		EnvRateLimitWindow: &cfg.RateLimit.Window,
		EnvSessionTTL:      &cfg.Session.TTL,
	} {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvAppEnv); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "dev", "development", "local":
			cfg.DevMode = true
		case "prod", "production":
			cfg.DevMode = false
		}
	}
	for name, dst := range map[string]*bool{
		EnvDevLogin:       &cfg.DevLogin,
		EnvTrustForwarded: &cfg.Routes.TrustForwardedHeaders,
	} {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		*dst = b
	}
	return nil
}
