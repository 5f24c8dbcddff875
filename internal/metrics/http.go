package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		// NoopMetrics or an unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // route pattern, not the raw path
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath returns the route pattern (e.g. "/api/accounts/:id"), or
// "unknown" for unmatched routes
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordAuthorizationIssued records an issued authorization URL
func (m *Metrics) RecordAuthorizationIssued(flow string) {
	m.AuthorizationsIssuedTotal.WithLabelValues(flow).Inc()
}

// RecordCallback records the stage a callback ended in
func (m *Metrics) RecordCallback(stage, res string, duration time.Duration) {
	m.CallbacksTotal.WithLabelValues(stage, res).Inc()
	m.CallbackDuration.WithLabelValues(res).Observe(duration.Seconds())
}

// RecordAccountLink records a secondary mailbox link outcome
func (m *Metrics) RecordAccountLink(res string) {
	m.AccountLinksTotal.WithLabelValues(res).Inc()
}

// RecordLogin records a successful login
func (m *Metrics) RecordLogin(isNewUser bool) {
	user := "existing"
	if isNewUser {
		user = "new"
	}
	m.LoginsTotal.WithLabelValues(user).Inc()
	m.SessionsActive.Inc()
}

// RecordTokenRefresh records token refresh attempt
func (m *Metrics) RecordTokenRefresh(trigger string, success bool) {
	m.TokensRefreshedTotal.WithLabelValues(trigger, result(success)).Inc()
}

// RecordTokenRevoke records a provider revocation attempt
func (m *Metrics) RecordTokenRevoke(success bool) {
	m.TokensRevokedTotal.WithLabelValues(result(success)).Inc()
}

// RecordLogout records logout
func (m *Metrics) RecordLogout(sessionDuration time.Duration) {
	m.LogoutsTotal.Inc()
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(sessionDuration.Seconds())
}

// RecordSessionRejected records a request rejected by session resolution
func (m *Metrics) RecordSessionRejected(reason string) {
	m.SessionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordImport records a mailbox import outcome
func (m *Metrics) RecordImport(res string, messages int, duration time.Duration) {
	m.ImportsTotal.WithLabelValues(res).Inc()
	if messages > 0 {
		m.ImportedMessages.Add(float64(messages))
	}
	if duration > 0 {
		m.ImportDuration.Observe(duration.Seconds())
	}
}

// RecordProviderCall records an identity provider round trip
func (m *Metrics) RecordProviderCall(operation string, success bool, duration time.Duration) {
	m.ProviderCallsTotal.WithLabelValues(operation, result(success)).Inc()
	m.ProviderDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// SetActiveSessionsCount sets the current count of active sessions (for periodic updates)
func (m *Metrics) SetActiveSessionsCount(count int) {
	m.SessionsActive.Set(float64(count))
}

// SetAccountsCount sets the number of linked accounts of one kind (for periodic updates)
func (m *Metrics) SetAccountsCount(kind string, count int) {
	m.AccountsTotal.WithLabelValues(kind).Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
