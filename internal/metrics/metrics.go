// Package metrics exposes delivery counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shineum/mailjet-relay/internal/email"
	"github.com/shineum/mailjet-relay/internal/provider"
)

const namespace = "mailrelay"

// outcomeError labels sends that could not be attempted.
const outcomeError = "error"

// Recorder holds the delivery collectors.
type Recorder struct {
	deliveries *prometheus.CounterVec
	accepted   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Total number of send calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		accepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recipients_accepted_total",
				Help:      "Total number of recipients accepted by the provider",
			},
			[]string{"provider"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Send call duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
	}
}

// Observe records one send call.
func (r *Recorder) Observe(providerName string, result *provider.Result, err error, elapsed time.Duration) {
	outcome := outcomeError
	if err == nil && result != nil {
		outcome = result.Outcome.String()
		r.accepted.WithLabelValues(providerName).Add(float64(result.Accepted()))
	}
	r.deliveries.WithLabelValues(providerName, outcome).Inc()
	r.duration.WithLabelValues(providerName).Observe(elapsed.Seconds())
}

// Instrument wraps p so that every Send is recorded.
func Instrument(p provider.Provider, r *Recorder) provider.Provider {
	return &instrumented{Provider: p, recorder: r}
}

type instrumented struct {
	provider.Provider
	recorder *Recorder
}

func (i *instrumented) Send(ctx context.Context, msg *email.Message) (*provider.Result, error) {
	start := time.Now()
	result, err := i.Provider.Send(ctx, msg)
	i.recorder.Observe(i.Provider.Name(), result, err, time.Since(start))
	return result, err
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
