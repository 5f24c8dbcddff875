package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder, used when
// metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthorizationIssued(flow string)                           {}
func (n *NoopMetrics) RecordCallback(stage, result string, duration time.Duration)     {}
func (n *NoopMetrics) RecordAccountLink(result string)                                 {}
func (n *NoopMetrics) RecordLogin(isNewUser bool)                                      {}
func (n *NoopMetrics) RecordTokenRefresh(trigger string, success bool)                 {}
func (n *NoopMetrics) RecordTokenRevoke(success bool)                                  {}
func (n *NoopMetrics) RecordLogout(sessionDuration time.Duration)                      {}
func (n *NoopMetrics) RecordSessionRejected(reason string)                             {}
func (n *NoopMetrics) RecordImport(result string, messages int, duration time.Duration) {}

func (n *NoopMetrics) RecordProviderCall(
	operation string,
	success bool,
	duration time.Duration,
) {
}

func (n *NoopMetrics) RecordCacheHit(cache string)  {}
func (n *NoopMetrics) RecordCacheMiss(cache string) {}

// Gauge Setters - noop implementations
func (n *NoopMetrics) SetActiveSessionsCount(count int)        {}
func (n *NoopMetrics) SetAccountsCount(kind string, count int) {}

func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
