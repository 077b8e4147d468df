package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "vkinder"

// Metrics holds the bot collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	commandTime  *prometheus.HistogramVec
	apiCalls     *prometheus.CounterVec
	apiTime      *prometheus.HistogramVec
	candidates   prometheus.Histogram
	sentMessages prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched bot commands by command and outcome.",
		}, []string{"command", "outcome"}),
		commandTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a bot command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vk_api_calls_total",
			Help:      "VK API calls by method and outcome.",
		}, []string{"method", "outcome"}),
		apiTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vk_api_call_duration_seconds",
			Help:      "VK API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Candidates left after filtering per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		sentMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Replies handed to the transport.",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandTime,
		m.apiCalls,
		m.apiTime,
		m.candidates,
		m.sentMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCommand records a dispatched command. A nil receiver is a no-op.
func (m *Metrics) ObserveCommand(command string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome(err)).Inc()
	m.commandTime.WithLabelValues(command).Observe(took.Seconds())
}

func (m *Metrics) ObserveAPICall(method string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(method, outcome(err)).Inc()
	m.apiTime.WithLabelValues(method).Observe(took.Seconds())
}

func (m *Metrics) ObserveSearch(candidates int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(candidates))
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.sentMessages.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
