// Package metrics provides fire-and-forget counters and duration metrics.
//
// Emission never blocks or fails the turn: implementations log, aggregate in
// memory, or drop on the floor. Metric names are centralized here so the
// pipeline and flows agree on them.
package metrics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric names emitted by the orchestrator.
const (
	MessagesResolved        = "messages_resolved_total"
	ResponseLatency         = "response_latency"
	ScopeRedirects          = "scope_redirects_total"
	DisambiguationTriggered = "disambiguation_triggered_total"
	DisambiguationResolved  = "disambiguation_resolved_total"
	OrderLookupOutcomes     = "order_lookup_outcomes_total"
	OrderLookupDegraded     = "order_lookup_degraded_total"
	PolicyQuestions         = "policy_questions_total"
	OrdersDataConflicts     = "orders_data_conflicts_total"
	OrdersListUnavailable   = "orders_list_unavailable_total"
	PipelineFallbacks       = "pipeline_fallbacks_total"
	LLMGuidedRetries        = "llm_guided_retries_total"
	DuplicateDeliveries     = "duplicate_deliveries_total"
)

// Emitter is the fire-and-forget metrics abstraction.
type Emitter interface {
	// Count increments a counter by one.
	Count(name string, tags map[string]string)
	// Duration records an observed duration.
	Duration(name string, d time.Duration, tags map[string]string)
}

// SlogEmitter writes metrics as structured debug logs. It is the default
// production emitter; a real metrics backend slots in behind Emitter.
type SlogEmitter struct{}

func NewSlogEmitter() *SlogEmitter { return &SlogEmitter{} }

func (e *SlogEmitter) Count(name string, tags map[string]string) {
	slog.Debug("metric count", "name", name, "tags", formatTags(tags))
}

func (e *SlogEmitter) Duration(name string, d time.Duration, tags map[string]string) {
	slog.Debug("metric duration", "name", name, "ms", d.Milliseconds(), "tags", formatTags(tags))
}

// MemoryEmitter aggregates metrics in memory. Used by tests to assert on
// emitted counters.
type MemoryEmitter struct {
	mu        sync.Mutex
	counts    map[string]int
	durations map[string][]time.Duration
}

func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{
		counts:    make(map[string]int),
		durations: make(map[string][]time.Duration),
	}
}

func (e *MemoryEmitter) Count(name string, tags map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[metricKey(name, tags)]++
}

func (e *MemoryEmitter) Duration(name string, d time.Duration, tags map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := metricKey(name, tags)
	e.durations[key] = append(e.durations[key], d)
}

// CountOf returns the aggregated count for a name+tags combination.
func (e *MemoryEmitter) CountOf(name string, tags map[string]string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[metricKey(name, tags)]
}

// TotalCount sums all counters recorded under name regardless of tags.
func (e *MemoryEmitter) TotalCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0
	for key, n := range e.counts {
		if key == name || strings.HasPrefix(key, name+"{") {
			total += n
		}
	}
	return total
}

// DurationsOf returns the recorded durations for a name+tags combination.
func (e *MemoryEmitter) DurationsOf(name string, tags map[string]string) []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration(nil), e.durations[metricKey(name, tags)]...)
}

func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	return name + "{" + formatTags(tags) + "}"
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}
