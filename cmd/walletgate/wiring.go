package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/keys"
	"github.com/jefoffice/walletgate/policy"
)

const (
	policyLambda = "lambda"
	policyStatic = "static"
)

// newLogger returns the process logger and a function releasing its file.
func newLogger(level, format, file string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level %q", level)
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		w = rotating
		closeFn = func() { _ = rotating.Close() }
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), closeFn, nil
	default:
		closeFn()
		return nil, nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

// awsLoader loads the shared AWS configuration at most once.
type awsLoader struct {
	load func() (aws.Config, error)
}

func newAWSLoader(ctx context.Context, region string) *awsLoader {
	return &awsLoader{load: sync.OnceValues(func() (aws.Config, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load aws config: %w", err)
		}
		return cfg, nil
	})}
}

func newSecretStore(cfg walletgate.Config, loader *awsLoader, logger *slog.Logger) (keys.SecretStore, error) {
	switch cfg.Key.Source {
	case "ssm":
		awsCfg, err := loader.load()
		if err != nil {
			return nil, err
		}
		return keys.NewSSMStore(ssm.NewFromConfig(awsCfg)), nil
	case "env":
		return keys.EnvStore{}, nil
	case "static":
		var key keys.Key
		if _, err := rand.Read(key[:]); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		logger.Warn("using an ephemeral session key; sessions end on restart")
		return keys.StaticStore{cfg.Key.SecretName: key.Encode()}, nil
	default:
		return nil, fmt.Errorf("unsupported key source %q", cfg.Key.Source)
	}
}

func newValidator(cfg walletgate.Config, loader *awsLoader, kind string, grants []string) (policy.Validator, error) {
	switch kind {
	case policyLambda:
		awsCfg, err := loader.load()
		if err != nil {
			return nil, err
		}
		return policy.NewLambdaValidator(lambda.NewFromConfig(awsCfg), cfg.Policy.FunctionName), nil
	case policyStatic:
		return parseGrants(grants)
	default:
		return nil, fmt.Errorf("invalid --policy %q", kind)
	}
}

// parseGrants reads entity:module pairs for the static validator.
func parseGrants(grants []string) (policy.StaticValidator, error) {
	v := policy.StaticValidator{Grants: map[string][]string{}}
	for _, g := range grants {
		entity, module, ok := strings.Cut(g, ":")
		entity, module = strings.TrimSpace(entity), strings.TrimSpace(module)
		if !ok || entity == "" || module == "" {
			return policy.StaticValidator{}, fmt.Errorf("invalid --grant %q, want entity:module", g)
		}
		v.Grants[entity] = append(v.Grants[entity], module)
	}
	return v, nil
}

// newRedis returns a client for the redis rate limit strategy, or nil for the
// in-process strategies. With embedded set, an in-process server replaces
// cfg.Redis.Addr.
func newRedis(cfg *walletgate.Config, embedded bool, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RateLimit.Strategy != "redis" {
		return nil, func() {}, nil
	}

	if embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		cfg.Redis.Addr = mr.Addr()
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		logger.Info("using embedded redis", slog.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	if cfg.Redis.Addr == "" {
		return nil, nil, errors.New("redis rate limit strategy requires redis.addr or --redis-embedded")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return client, func() { _ = client.Close() }, nil
}

// newAuditSink writes audit records as JSON lines to cfg.File, rotated, or to
// the process logger when no file is set.
func newAuditSink(cfg walletgate.AuditConfig, logger *slog.Logger) (walletgate.AuditSink, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	if cfg.File == "" {
		return walletgate.NewSlogSink(logger.With(slog.String("component", "audit"))), func() {}, nil
	}
	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     90,
		Compress:   true,
	}
	return walletgate.NewJSONWriterSink(rotating), func() { _ = rotating.Close() }, nil
}
