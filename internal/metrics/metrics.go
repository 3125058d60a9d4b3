package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	HTTPRequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"service"},
	)

	UsersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_created_total",
			Help: "Total number of users persisted",
		},
	)

	ValidationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "user_validation_failures_total",
			Help: "Total number of registrations rejected by validation",
		},
	)

	// UserNotificationsTotal counts user.created announcements by outcome
	// ("delivered" or "failed").
	UserNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_notifications_total",
			Help: "Total number of user created notifications by result",
		},
		[]string{"result"},
	)

	BrokerPublishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_publish_attempts_total",
			Help: "Total number of broker publish attempts by result",
		},
		[]string{"result"},
	)

	BrokerReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_reconnects_total",
			Help: "Total number of forced broker reconnects after a failed publish",
		},
	)

	BrokerConnectionsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_connections_opened_total",
			Help: "Total number of broker connections established",
		},
	)

	BrokerConnectionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broker_connection_failures_total",
			Help: "Total number of failed broker connection attempts",
		},
	)
)

func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)
		prometheus.MustRegister(UsersCreatedTotal)
		prometheus.MustRegister(ValidationFailuresTotal)
		prometheus.MustRegister(UserNotificationsTotal)
		prometheus.MustRegister(BrokerPublishAttemptsTotal)
		prometheus.MustRegister(BrokerReconnectsTotal)
		prometheus.MustRegister(BrokerConnectionsOpenedTotal)
		prometheus.MustRegister(BrokerConnectionFailuresTotal)
	})
}
