package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flightsaga"

type Metrics struct {
	Stream   StreamMetrics
	Outbox   OutboxMetrics
	Saga     SagaMetrics
	Notifier NotifierMetrics
	API      APIMetrics
	Repo     RepoMetrics
	Go       GoMetrics
}

type StreamMetrics struct {
	// Producer
	ProducerAttemptLatencySeconds *prometheus.HistogramVec
	ProducerOperationsTotal       *prometheus.CounterVec
	ProducerSuccessAttempts       *prometheus.HistogramVec

	// Consumer
	ConsumerMessagesTotal   *prometheus.CounterVec
	ConsumerProcessDuration *prometheus.HistogramVec
	ConsumerInFlight        *prometheus.GaugeVec
	ConsumerRestartsTotal   *prometheus.CounterVec
	ConsumerReclaimedTotal  *prometheus.CounterVec
	ConsumerPending         *prometheus.GaugeVec
}

type OutboxMetrics struct {
	RelayOperationsTotal *prometheus.CounterVec
	RelayBatchSize       prometheus.Histogram
	Entries              *prometheus.GaugeVec
}

type SagaMetrics struct {
	TransitionsTotal *prometheus.CounterVec
}

type NotifierMetrics struct {
	PublishedTotal *prometheus.CounterVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

type RepoMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	DurationSeconds *prometheus.HistogramVec
	InFlight        *prometheus.GaugeVec
}

type GoMetrics struct {
	InternalGoroutines *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Stream: StreamMetrics{
			ProducerAttemptLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "producer_attempt_latency_seconds",
				Help:      "Latency per single publish attempt.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stream", "result"}), // ok|error

			ProducerOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "producer_operations_total",
				Help:      "Total publish operations (one call) by result.",
			}, []string{"stream", "result"}), // success|failed|permanent|canceled

			ProducerSuccessAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "producer_success_attempts",
				Help:      "Attempt number on which publish succeeded.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			}, []string{"stream"}),

			ConsumerMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_messages_total",
				Help:      "Consumed stream entries by group and result.",
			}, []string{"group", "result"}), // processed|duplicate|poison|handler_error|storage_error|dead

			ConsumerProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_process_duration_seconds",
				Help:      "Stream entry processing duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"group"}),

			ConsumerInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_inflight_messages",
				Help:      "Entries currently being processed.",
			}, []string{"group"}),

			ConsumerRestartsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_restarts_total",
				Help:      "Consumer loop restarts after fatal setup errors.",
			}, []string{"group"}),

			ConsumerReclaimedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_reclaimed_total",
				Help:      "Pending entries claimed back for another delivery.",
			}, []string{"group"}),

			ConsumerPending: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "consumer_pending_entries",
				Help:      "Delivered but not acknowledged entries per group.",
			}, []string{"group"}),
		},

		Outbox: OutboxMetrics{
			RelayOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "relay_operations_total",
				Help:      "Outbox relay re-publish attempts by result.",
			}, []string{"result"}), // sent|failed|gave_up

			RelayBatchSize: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "relay_batch_size",
				Help:      "Rows reserved per relay poll.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			}),

			Entries: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "entries",
				Help:      "Outbox rows by status.",
			}, []string{"status"}),
		},

		Saga: SagaMetrics{
			TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "saga",
				Name:      "transitions_total",
				Help:      "Saga reactions by service, event type and outcome.",
			}, []string{"service", "event_type", "outcome"}), // applied|rejected|stale|ignored
		},

		Notifier: NotifierMetrics{
			PublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifier",
				Name:      "published_total",
				Help:      "Booking outcome notifications sent to the exchange.",
			}, []string{"routing_key", "result"}),
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},
		Repo: RepoMetrics{
			RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "requests_total",
				Help:      "Total DB requests by operation, name, result and error kind.",
			}, []string{"op", "name", "result", "error_kind"}),

			DurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "request_duration_seconds",
				Help:      "DB request duration in seconds.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"op", "name", "result"}),

			InFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "inflight",
				Help:      "Number of in-flight DB requests.",
			}, []string{"op", "name"}),
		},
		Go: GoMetrics{
			InternalGoroutines: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "go",
				Name:      "internal_goroutines",
				Help:      "Number of running internal goroutines by name.",
			}, []string{"name"}),
		},
	}
}
