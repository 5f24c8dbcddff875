package metrics

import (
	"sync"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is an alias so callers outside core can keep importing metrics.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authorization / callback metrics
	AuthorizationsIssuedTotal *prometheus.CounterVec
	CallbacksTotal            *prometheus.CounterVec
	CallbackDuration          *prometheus.HistogramVec
	AccountLinksTotal         *prometheus.CounterVec
	LoginsTotal               *prometheus.CounterVec

	// Token metrics
	TokensRefreshedTotal *prometheus.CounterVec
	TokensRevokedTotal   *prometheus.CounterVec

	// Session metrics
	SessionsActive        prometheus.Gauge
	SessionsRejectedTotal *prometheus.CounterVec
	LogoutsTotal          prometheus.Counter
	SessionDuration       prometheus.Histogram

	// Accounts
	AccountsTotal *prometheus.GaugeVec

	// Mailbox import
	ImportsTotal       *prometheus.CounterVec
	ImportedMessages   prometheus.Counter
	ImportDuration     prometheus.Histogram
	ProviderCallsTotal *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec

	// Cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=false, returns NoopMetrics.
// Prometheus metrics are registered on the default registry only once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		AuthorizationsIssuedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_authorization_requests_total",
				Help: "Total number of provider authorization URLs issued",
			},
			[]string{"flow"}, // login, add_account
		),
		CallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_callbacks_total",
				Help: "Total number of OAuth callbacks by final stage and result",
			},
			[]string{"stage", "result"},
		),
		CallbackDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_callback_duration_seconds",
				Help:    "Time spent processing an OAuth callback",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
		AccountLinksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_account_links_total",
				Help: "Total number of secondary mailbox link attempts",
			},
			[]string{"result"}, // added, exists, error
		),
		LoginsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Total number of successful logins",
			},
			[]string{"user"}, // new, existing
		),

		TokensRefreshedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_refreshed_total",
				Help: "Total number of provider token refresh attempts",
			},
			[]string{"trigger", "result"}, // trigger: manual, proactive, reactive
		),
		TokensRevokedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_revoked_total",
				Help: "Total number of provider token revocation attempts at logout",
			},
			[]string{"result"},
		),

		SessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Current number of active sessions",
			},
		),
		SessionsRejectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_rejected_total",
				Help: "Total number of requests rejected by session resolution",
			},
			[]string{"reason"}, // missing, not_found, invalid, refresh_token_missing, error
		),
		LogoutsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_logouts_total",
				Help: "Total number of logouts",
			},
		),
		SessionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name: "session_duration_seconds",
				Help: "Lifetime of sessions ended by logout",
				Buckets: []float64{
					60,
					600,
					3600,
					14400,
					86400,
					604800,
				}, // 1m, 10m, 1h, 4h, 1d, 7d
			},
		),

		AccountsTotal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accounts_total",
				Help: "Current number of linked mailbox accounts",
			},
			[]string{"kind"}, // primary, secondary
		),

		ImportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbox_imports_total",
				Help: "Total number of initial mailbox imports",
			},
			[]string{"result"}, // success, error, skipped
		),
		ImportedMessages: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbox_imported_messages_total",
				Help: "Total number of messages stored by initial imports",
			},
		),
		ImportDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailbox_import_duration_seconds",
				Help:    "Time spent on an initial mailbox import",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ProviderCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Total number of identity provider calls",
			},
			[]string{"operation", "result"},
		),
		ProviderDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "Identity provider call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.005,
					0.010,
					0.025,
					0.050,
					0.100,
					0.250,
					0.500,
					1.0,
					2.5,
					5.0,
					10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		DatabaseQueryErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"}, // count_active_sessions, count_primary_accounts, ...
		),
	}
}
