package observe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
)

// Provider owns the meter provider and, when enabled, the HTTP endpoint
// Prometheus scrapes.
type Provider struct {
	metric.MeterProvider

	logger   *zap.Logger
	sdk      *sdkmetric.MeterProvider
	server   *http.Server
	listener net.Listener
}

// NewProvider builds a Prometheus-backed meter provider when metrics are
// enabled and a no-op provider otherwise.
func NewProvider(cfg config.MetricsConfig, logger *zap.Logger) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{MeterProvider: noop.NewMeterProvider(), logger: logger}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Provider{
		MeterProvider: mp,
		logger:        logger,
		sdk:           mp,
		server: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start begins serving the metrics endpoint, if any.
func (p *Provider) Start(_ context.Context) error {
	if p.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", p.server.Addr)
	if err != nil {
		return err
	}
	p.listener = ln

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	p.logger.Info("Metrics endpoint listening", zap.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound metrics address, or "" when not serving.
func (p *Provider) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown stops the endpoint and flushes the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.server != nil && p.listener != nil {
		errs = append(errs, p.server.Shutdown(ctx))
	}
	if p.sdk != nil {
		errs = append(errs, p.sdk.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
