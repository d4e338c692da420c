package metrics

import (
	"sync/atomic"
	"time"
)

const (
	DecisionApproved         = "approved"
	DecisionRejected         = "rejected"
	DecisionCapacityConflict = "capacity_conflict"
	DecisionOverrideGranted  = "override_granted"
	DecisionOverrideDenied   = "override_denied"
)

type Collector struct {
	totalRequests    uint64
	errorRequests    uint64
	rateLimited      uint64
	totalDurationMs  uint64
	approved         uint64
	rejected         uint64
	capacityConflict uint64
	overrideGranted  uint64
	overrideDenied   uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordDecision counts leave approval outcomes. Unknown outcomes are ignored.
func (c *Collector) RecordDecision(outcome string) {
	if c == nil {
		return
	}
	switch outcome {
	case DecisionApproved:
		atomic.AddUint64(&c.approved, 1)
	case DecisionRejected:
		atomic.AddUint64(&c.rejected, 1)
	case DecisionCapacityConflict:
		atomic.AddUint64(&c.capacityConflict, 1)
	case DecisionOverrideGranted:
		atomic.AddUint64(&c.overrideGranted, 1)
	case DecisionOverrideDenied:
		atomic.AddUint64(&c.overrideDenied, 1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"leaveDecisions": map[string]uint64{
			DecisionApproved:         atomic.LoadUint64(&c.approved),
			DecisionRejected:         atomic.LoadUint64(&c.rejected),
			DecisionCapacityConflict: atomic.LoadUint64(&c.capacityConflict),
			DecisionOverrideGranted:  atomic.LoadUint64(&c.overrideGranted),
			DecisionOverrideDenied:   atomic.LoadUint64(&c.overrideDenied),
		},
	}
}
