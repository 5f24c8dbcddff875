package core

import (
	"context"
	"time"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization requests and callbacks
	RecordAuthorizationIssued(flow string)
	RecordCallback(stage, result string, duration time.Duration)
	RecordAccountLink(result string)
	RecordLogin(isNewUser bool)

	// Token lifecycle
	RecordTokenRefresh(trigger string, success bool)
	RecordTokenRevoke(success bool)

	// Sessions
	RecordLogout(sessionDuration time.Duration)
	RecordSessionRejected(reason string)

	// Side effects
	RecordImport(result string, messages int, duration time.Duration)

	// Provider round trips
	RecordProviderCall(operation string, success bool, duration time.Duration)

	// Cache
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)

	// Gauge Setters (for periodic updates)
	SetActiveSessionsCount(count int)
	SetAccountsCount(kind string, count int)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by the gauge collector.
type MetricsStore interface {
	CountAllActiveSessions(ctx context.Context) (int64, error)
	CountAccountsByKind(ctx context.Context, primary bool) (int64, error)
}
