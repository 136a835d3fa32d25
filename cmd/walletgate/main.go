// walletgate runs the access-control gateway in front of one upstream
// application.
//
// Every request passes the gate (rate limit, session cookie, module check)
// before it reaches the upstream. The shared session endpoints, the
// access-denied page, /healthz and /metrics are served locally.
//
// Production wiring reads the session key and module number from AWS SSM
// and calls the policy Lambda. Local development uses --policy static with
// key.source env or static in the config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/handlers"
	"github.com/jefoffice/walletgate/metrics/export/prometheus"
	"github.com/jefoffice/walletgate/middleware"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	listen        string
	configPath    string
	logLevel      string
	logFormat     string
	logFile       string
	upstream      string
	policy        string
	grants        []string
	redisEmbedded bool
	otelDebug     bool
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := walletgate.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(opts.logLevel, opts.logFormat, opts.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, closeRedis, err := newRedis(&cfg, opts.redisEmbedded, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	loader := newAWSLoader(ctx, cfg.Policy.Region)
	store, err := newSecretStore(cfg, loader, logger)
	if err != nil {
		return err
	}
	validator, err := newValidator(cfg, loader, opts.policy, opts.grants)
	if err != nil {
		return err
	}
	sink, closeSink, err := newAuditSink(cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	builder := walletgate.New().
		WithConfig(cfg).
		WithSecretStore(store).
		WithPolicyValidator(validator).
		WithLogger(logger).
		WithAuditSink(sink)
	if redisClient != nil {
		builder = builder.WithRedis(redisClient)
	}
	gw, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	upstream, err := newUpstream(opts.upstream, logger)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	handlers.NewSessionHandler(gw).Register(router)
	if cfg.Metrics.Enabled {
		router.Handle("/metrics", prometheus.NewPrometheusExporter(gw).Handler()).Methods(http.MethodGet)
	}
	if opts.otelDebug {
		otelHandler, shutdownOTel, err := newOTelDebug(gw)
		if err != nil {
			return err
		}
		defer shutdownOTel()
		router.Handle(otelDebugPath, otelHandler).Methods(http.MethodGet)
	}
	router.PathPrefix("/").Handler(upstream)
	router.Use(middleware.RequestID, middleware.Logging(logger), middleware.Gate(gw))

	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("walletgate listening",
			slog.String("addr", opts.listen),
			slog.String("rate_limit", cfg.RateLimit.Strategy),
			slog.String("key_source", cfg.Key.Source),
			slog.String("policy", opts.policy),
			slog.Bool("dev_mode", cfg.DevMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = gw.Close(closeCtx)
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("walletgate shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	serveErr := srv.Shutdown(shutdownCtx)
	if err := gw.Close(shutdownCtx); err != nil {
		logger.Warn("audit drain incomplete", slog.String("error", err.Error()))
	}
	return serveErr
}

func parseFlags(args []string) (options, error) {
	opts := options{}
	fs := pflag.NewFlagSet("walletgate", pflag.ContinueOnError)
	fs.StringVar(&opts.listen, "listen", ":8080", "address to listen on")
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (environment overrides apply on top)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "json", "log format: json or text")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file with rotation instead of stderr")
	fs.StringVar(&opts.upstream, "upstream", "", "upstream application URL; empty serves 404 for gated paths")
	fs.StringVar(&opts.policy, "policy", policyLambda, "policy validator: lambda or static")
	fs.StringSliceVar(&opts.grants, "grant", nil, "static policy grant as entity:module (entity * matches everyone)")
	fs.BoolVar(&opts.redisEmbedded, "redis-embedded", false, "run an in-process redis for the redis rate limit strategy")
	fs.BoolVar(&opts.otelDebug, "otel-debug", false, "serve OpenTelemetry metric snapshots on "+otelDebugPath)

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}
