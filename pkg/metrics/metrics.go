// Package metrics exposes the supervisor's pump counters and rule store
// size as Prometheus metrics on a small HTTP endpoint.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the metrics the supervisor updates as it runs.
type Registry struct {
	PumpCount     *prometheus.CounterVec
	PumpDropped   *prometheus.CounterVec
	RuleStoreSize prometheus.Gauge

	registry *prometheus.Registry
}

// New registers and returns a fresh Registry on its own prometheus
// registry, so metrics from multiple Registry instances (as in tests)
// never collide on the default global registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		PumpCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "changer_pump_count_total",
			Help: "Messages accepted by a pump, labeled by pump name.",
		}, []string{"pump"}),
		PumpDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "changer_pump_dropped_total",
			Help: "Messages dropped by a pump for malformed framing, labeled by pump name.",
		}, []string{"pump"}),
		RuleStoreSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "changer_rulestore_size",
			Help: "Number of rules currently installed in the rule store.",
		}),
		registry: reg,
	}
}

// Serve starts an HTTP server exposing /metrics on addr and blocks until
// ctx is canceled. An empty addr disables metrics entirely and Serve
// returns immediately.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
