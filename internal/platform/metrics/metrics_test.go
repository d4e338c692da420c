package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 20*time.Millisecond)

	snap := c.Snapshot()
	if snap["requestsTotal"].(uint64) != 3 {
		t.Fatalf("unexpected total %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"].(uint64) != 1 || snap["rateLimitedTotal"].(uint64) != 1 {
		t.Fatalf("unexpected counters %v", snap)
	}
	if snap["avgDurationMs"].(float64) != 20 {
		t.Fatalf("unexpected avg %v", snap["avgDurationMs"])
	}
}

func TestCollectorDecisionsConcurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordDecision(DecisionApproved)
			c.RecordDecision(DecisionCapacityConflict)
			c.RecordDecision("unknown")
		}()
	}
	wg.Wait()

	decisions := c.Snapshot()["leaveDecisions"].(map[string]uint64)
	if decisions[DecisionApproved] != 50 || decisions[DecisionCapacityConflict] != 50 {
		t.Fatalf("unexpected decisions %v", decisions)
	}
	if decisions[DecisionOverrideDenied] != 0 {
		t.Fatalf("unexpected override denials %v", decisions)
	}

	var nilCollector *Collector
	nilCollector.Record(200, time.Millisecond)
	nilCollector.RecordDecision(DecisionApproved)
}
