package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service exports. Instances are built
// against an explicit registerer so tests can use a private registry.
type Metrics struct {
	RPCRequestsTotal      *prometheus.CounterVec
	RPCDurationSeconds    *prometheus.HistogramVec
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPDurationSeconds   *prometheus.HistogramVec
	LikesTotal            *prometheus.CounterVec
	MatchesTotal          prometheus.Counter
	NotificationsTotal    *prometheus.CounterVec
	MessagesTotal         *prometheus.CounterVec
	FanoutFailuresTotal   *prometheus.CounterVec
	ChangesPublishedTotal *prometheus.CounterVec
	Subscribers           prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grpc_requests_total",
				Help: "Total number of gRPC requests.",
			},
			[]string{"method", "code"},
		),
		RPCDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grpc_request_duration_seconds",
				Help:    "Duration of unary gRPC requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LikesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "likes_created_total",
				Help: "Total number of new likes, by kind.",
			},
			[]string{"kind"},
		),
		MatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "matches_created_total",
				Help: "Total number of matches derived from mutual likes.",
			},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_created_total",
				Help: "Total number of notifications produced by the fanout.",
			},
			[]string{"type"},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_stored_total",
				Help: "Total number of stored chat messages.",
			},
			[]string{"type"},
		),
		FanoutFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_failures_total",
				Help: "Fanout runs rolled back while the triggering write committed.",
			},
			[]string{"event"},
		),
		ChangesPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "changes_published_total",
				Help: "Change events handed to the event bus, by table.",
			},
			[]string{"table"},
		),
		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "realtime_subscribers",
				Help: "Currently attached change-stream subscribers.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RPCRequestsTotal,
			m.RPCDurationSeconds,
			m.HTTPRequestsTotal,
			m.HTTPDurationSeconds,
			m.LikesTotal,
			m.MatchesTotal,
			m.NotificationsTotal,
			m.MessagesTotal,
			m.FanoutFailuresTotal,
			m.ChangesPublishedTotal,
			m.Subscribers,
		)
	}
	return m
}

// Discard returns collectors that are not registered anywhere.
func Discard() *Metrics { return New(nil) }
