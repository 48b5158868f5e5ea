// Package metrics exposes sweep progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ipsweep/internal/domain"
)

const (
	namespace       = "ipsweep"
	shutdownTimeout = 5 * time.Second
)

// Collector methods are safe on a nil receiver so callers can run without
// metrics.
type Collector struct {
	registry   *prometheus.Registry
	probes     *prometheus.CounterVec
	batches    prometheus.Counter
	checkpoint prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probe outcomes by status.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_committed_total",
			Help:      "Batches whose checkpoint was committed.",
		}),
		checkpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_address",
			Help:      "Highest committed address as an unsigned integer.",
		}),
	}
	c.registry.MustRegister(c.probes, c.batches, c.checkpoint)
	return c
}

func (c *Collector) ObserveOutcome(outcome domain.ProbeOutcome) {
	if c == nil {
		return
	}
	c.probes.WithLabelValues(outcome.Status.String()).Inc()
}

func (c *Collector) BatchCommitted(highest domain.Addr) {
	if c == nil {
		return
	}
	c.batches.Inc()
	c.checkpoint.Set(float64(highest))
}

// SetCheckpoint records the resume point found at startup.
func (c *Collector) SetCheckpoint(addr domain.Addr) {
	if c == nil {
		return
	}
	c.checkpoint.Set(float64(addr))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics: shutdown", "error", err)
		}
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
