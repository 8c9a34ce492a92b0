package metrics

import (
	"bytes"
	"maps"
	"sort"
	"sync"
	"time"

	m "github.com/cschleiden/go-workflow-tasks/metrics"
)

type store struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
	timings  map[string][]time.Duration
}

// MemoryMetricsClient keeps all reported values in memory. Metrics are keyed by name and sorted tags,
// e.g. `tasks.task.assigned[assignment:role,backend:sqlite]`.
type MemoryMetricsClient struct {
	tags m.Tags
	s    *store
}

var _ m.Client = (*MemoryMetricsClient)(nil)

func NewMemoryMetricsClient() *MemoryMetricsClient {
	return &MemoryMetricsClient{
		tags: make(m.Tags),
		s: &store{
			counters: make(map[string]int64),
			gauges:   make(map[string]int64),
			timings:  make(map[string][]time.Duration),
		},
	}
}

// Counter implements metrics.Client
func (mc *MemoryMetricsClient) Counter(name string, tags m.Tags, value int64) {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	mc.s.counters[Key(name, mc.tags.Merge(tags))] += value
}

// Distribution implements metrics.Client
func (mc *MemoryMetricsClient) Distribution(name string, tags m.Tags, value float64) {
}

// Gauge implements metrics.Client
func (mc *MemoryMetricsClient) Gauge(name string, tags m.Tags, value int64) {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	mc.s.gauges[Key(name, mc.tags.Merge(tags))] = value
}

// Timing implements metrics.Client
func (mc *MemoryMetricsClient) Timing(name string, tags m.Tags, duration time.Duration) {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	k := Key(name, mc.tags.Merge(tags))
	mc.s.timings[k] = append(mc.s.timings[k], duration)
}

// WithTags implements metrics.Client
func (mc *MemoryMetricsClient) WithTags(tags m.Tags) m.Client {
	return &MemoryMetricsClient{
		s:    mc.s,
		tags: mc.tags.Merge(tags),
	}
}

func (mc *MemoryMetricsClient) Counters() map[string]int64 {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	return maps.Clone(mc.s.counters)
}

func (mc *MemoryMetricsClient) Gauges() map[string]int64 {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	return maps.Clone(mc.s.gauges)
}

func (mc *MemoryMetricsClient) Timings(key string) []time.Duration {
	mc.s.mu.Lock()
	defer mc.s.mu.Unlock()

	return append([]time.Duration(nil), mc.s.timings[key]...)
}

// Key builds the key under which a metric with the given tags is stored.
func Key(name string, tags m.Tags) string {
	t := make([]struct{ Key, Value string }, 0, len(tags))
	for k, v := range tags {
		t = append(t, struct{ Key, Value string }{k, v})
	}

	sort.Slice(t, func(i, j int) bool {
		return t[i].Key < t[j].Key
	})

	var buf bytes.Buffer

	buf.WriteString(name)
	buf.WriteString("[")

	for i, tag := range t {
		if i > 0 {
			buf.WriteString(",")
		}

		buf.WriteString(tag.Key)
		buf.WriteString(":")
		buf.WriteString(tag.Value)
	}

	buf.WriteString("]")

	return buf.String()
}
