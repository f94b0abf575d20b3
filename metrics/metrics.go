// Package metrics defines the instrumentation interface for the registry
// and its Prometheus and no-op implementations.
package metrics

import (
	"net/http"
	"time"
)

// Commit result labels.
const (
	ResultCommitted = "committed"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
)

// Metrics defines the instrumentation points the registry reports to.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// Pending set
	SetPendingSize(count int)
	SetPendingSpaces(count int)
	IncTxsStaged()
	IncTxsRejected(reason string)

	// Commits
	IncCommits(result string)
	SetCommitHeight(height int64)
	ObserveCommitDuration(d time.Duration)

	// Proving
	ObserveProvingDuration(backend string, d time.Duration)

	// State
	SetStateVersion(space string, version int64)

	// Handler returns an HTTP handler serving the metrics, or nil if the
	// implementation has nothing to serve.
	Handler() http.Handler
}
