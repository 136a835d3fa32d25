package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jefoffice/walletgate"
	walletgateotel "github.com/jefoffice/walletgate/metrics/export/otel"
	"github.com/jefoffice/walletgate/middleware"
)

const (
	otelDebugPath = "/debug/otel-metrics"
	meterName     = "github.com/jefoffice/walletgate"
)

// newOTelDebug installs a global meter provider backed by a manual reader,
// registers the gateway instruments on it and returns a handler that
// collects and serves the current data as JSON. The returned function
// unregisters the instruments and shuts the provider down.
func newOTelDebug(gw *walletgate.Gateway) (http.Handler, func(), error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	exp, err := walletgateotel.NewOTelExporter(otel.Meter(meterName), gw)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("register otel exporter: %w", err)
	}

	shutdown := func() {
		_ = exp.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(r.Context(), &rm); err != nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Metrics collection failed")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, rm.ScopeMetrics)
	})
	return handler, shutdown, nil
}
