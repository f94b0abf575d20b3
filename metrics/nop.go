package metrics

import (
	"net/http"
	"time"
)

// NopMetrics implements Metrics with no-op operations.
// Used when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new no-op metrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (*NopMetrics) SetPendingSize(int)                           {}
func (*NopMetrics) SetPendingSpaces(int)                         {}
func (*NopMetrics) IncTxsStaged()                                {}
func (*NopMetrics) IncTxsRejected(string)                        {}
func (*NopMetrics) IncCommits(string)                            {}
func (*NopMetrics) SetCommitHeight(int64)                        {}
func (*NopMetrics) ObserveCommitDuration(time.Duration)          {}
func (*NopMetrics) ObserveProvingDuration(string, time.Duration) {}
func (*NopMetrics) SetStateVersion(string, int64)                {}
func (*NopMetrics) Handler() http.Handler                        { return nil }

var _ Metrics = (*NopMetrics)(nil)
