package metrics

import (
	"testing"
	"time"
)

func TestMemoryEmitterCounts(t *testing.T) {
	em := NewMemoryEmitter()
	em.Count(ScopeRedirects, map[string]string{"reason": "hostile"})
	em.Count(ScopeRedirects, map[string]string{"reason": "hostile"})
	em.Count(ScopeRedirects, map[string]string{"reason": "smalltalk_greeting"})
	em.Count(PipelineFallbacks, nil)

	if got := em.CountOf(ScopeRedirects, map[string]string{"reason": "hostile"}); got != 2 {
		t.Errorf("CountOf(hostile) = %d, want 2", got)
	}
	if got := em.TotalCount(ScopeRedirects); got != 3 {
		t.Errorf("TotalCount() = %d, want 3", got)
	}
	if got := em.CountOf(PipelineFallbacks, nil); got != 1 {
		t.Errorf("CountOf(untagged) = %d, want 1", got)
	}
}

func TestMemoryEmitterTagOrderIsStable(t *testing.T) {
	em := NewMemoryEmitter()
	em.Count(MessagesResolved, map[string]string{"intent": "orders", "resolved_by": "llm"})
	em.Count(MessagesResolved, map[string]string{"resolved_by": "llm", "intent": "orders"})

	if got := em.CountOf(MessagesResolved, map[string]string{"intent": "orders", "resolved_by": "llm"}); got != 2 {
		t.Errorf("CountOf() = %d, want 2 (tag order must not matter)", got)
	}
}

func TestMemoryEmitterDurations(t *testing.T) {
	em := NewMemoryEmitter()
	em.Duration(ResponseLatency, 120*time.Millisecond, map[string]string{"resolved_by": "orders"})
	em.Duration(ResponseLatency, 80*time.Millisecond, map[string]string{"resolved_by": "orders"})

	ds := em.DurationsOf(ResponseLatency, map[string]string{"resolved_by": "orders"})
	if len(ds) != 2 || ds[0] != 120*time.Millisecond {
		t.Errorf("DurationsOf() = %v", ds)
	}
}
