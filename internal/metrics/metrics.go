// Package metrics exposes Prometheus counters for job executions, sequence
// passes and scheduler triggers. All recorder methods are safe on a nil
// *Metrics so components can run without metrics wired in.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/sequencer/internal/logger"
)

const Namespace = "sequencer"

// Trigger results.
const (
	TriggerStarted = "started"
	TriggerSkipped = "skipped"
	TriggerQueued  = "queued"
)

// Pass outcomes.
const (
	PassCompleted = "completed"
	PassCancelled = "cancelled"
)

type Metrics struct {
	gatherer    prometheus.Gatherer
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	passesTotal *prometheus.CounterVec
	triggers    *prometheus.CounterVec
	passRunning prometheus.Gauge
	lastPassEnd prometheus.Gauge
}

// New registers the collectors on reg. A nil reg creates a private registry,
// which is what tests want.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "jobs_total",
				Help:      "Total number of job executions by final status",
			},
			[]string{"job", "status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of job executions",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 900, 1800, 3600},
			},
			[]string{"status"},
		),
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "passes_total",
				Help:      "Total number of finished passes over the job list",
			},
			[]string{"outcome"},
		),
		triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "triggers_total",
				Help:      "Scheduler triggers by what happened to them",
			},
			[]string{"result"},
		),
		passRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "pass_running",
				Help:      "1 while a pass over the job list is in flight",
			},
		),
		lastPassEnd: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_pass_end_timestamp_seconds",
				Help:      "Unix time the last pass finished",
			},
		),
	}

	reg.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.passesTotal,
		m.triggers,
		m.passRunning,
		m.lastPassEnd,
	)

	return m
}

func (m *Metrics) RecordJob(name, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(name, status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordPass(outcome string, end time.Time) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(outcome).Inc()
	m.lastPassEnd.Set(float64(end.Unix()))
}

func (m *Metrics) RecordTrigger(result string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(result).Inc()
}

func (m *Metrics) SetPassRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.passRunning.Set(1)
		return
	}
	m.passRunning.Set(0)
}

// Handler returns the HTTP exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Server serves the metrics endpoint until its context is cancelled.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *logger.Logger
}

// Listen binds the metrics endpoint. Binding happens eagerly so that an
// address conflict is a startup error rather than a background one.
func (m *Metrics) Listen(addr, path string, log *logger.Logger) (*Server, error) {
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: log,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()

	s.logger.Info("metrics endpoint listening", logger.Field{Key: "addr", Value: s.Addr()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
