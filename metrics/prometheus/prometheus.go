// Package prometheus reports metrics.Client measurements to a Prometheus registry.
package prometheus

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cschleiden/go-workflow-tasks/metrics"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// Client implements metrics.Client on top of Prometheus collectors. Collectors are created on first
// use. The label names of a metric are fixed by its first measurement; tags not among them are
// dropped, missing ones are reported as empty.
type Client struct {
	s    *state
	tags metrics.Tags
}

type state struct {
	mu         sync.Mutex
	reg        promclient.Registerer
	counters   map[string]*promclient.CounterVec
	gauges     map[string]*promclient.GaugeVec
	histograms map[string]*promclient.HistogramVec
	labels     map[string][]string
}

var _ metrics.Client = (*Client)(nil)

// New creates a client registering its collectors with reg. A nil reg uses the default registerer.
func New(reg promclient.Registerer) *Client {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	return &Client{
		s: &state{
			reg:        reg,
			counters:   map[string]*promclient.CounterVec{},
			gauges:     map[string]*promclient.GaugeVec{},
			histograms: map[string]*promclient.HistogramVec{},
			labels:     map[string][]string{},
		},
		tags: metrics.Tags{},
	}
}

func (c *Client) Counter(name string, tags metrics.Tags, value int64) {
	name = metricName(name) + "_total"

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	vec, ok := c.s.counters[name]
	if !ok {
		labels := labelNames(c.merge(tags))

		vec = promclient.NewCounterVec(promclient.CounterOpts{
			Name: name,
			Help: "Counter " + name,
		}, labels)

		vec = register(c.s.reg, vec)
		c.s.counters[name] = vec
		c.s.labels[name] = labels
	}

	vec.With(c.values(name, tags)).Add(float64(value))
}

func (c *Client) Distribution(name string, tags metrics.Tags, value float64) {
	c.observe(metricName(name), tags, value)
}

func (c *Client) Gauge(name string, tags metrics.Tags, value int64) {
	name = metricName(name)

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	vec, ok := c.s.gauges[name]
	if !ok {
		labels := labelNames(c.merge(tags))

		vec = promclient.NewGaugeVec(promclient.GaugeOpts{
			Name: name,
			Help: "Gauge " + name,
		}, labels)

		vec = register(c.s.reg, vec)
		c.s.gauges[name] = vec
		c.s.labels[name] = labels
	}

	vec.With(c.values(name, tags)).Set(float64(value))
}

func (c *Client) Timing(name string, tags metrics.Tags, duration time.Duration) {
	c.observe(metricName(name)+"_seconds", tags, duration.Seconds())
}

func (c *Client) WithTags(tags metrics.Tags) metrics.Client {
	return &Client{
		s:    c.s,
		tags: c.merge(tags),
	}
}

func (c *Client) observe(name string, tags metrics.Tags, value float64) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	vec, ok := c.s.histograms[name]
	if !ok {
		labels := labelNames(c.merge(tags))

		vec = promclient.NewHistogramVec(promclient.HistogramOpts{
			Name:    name,
			Help:    "Histogram " + name,
			Buckets: promclient.DefBuckets,
		}, labels)

		vec = register(c.s.reg, vec)
		c.s.histograms[name] = vec
		c.s.labels[name] = labels
	}

	vec.With(c.values(name, tags)).Observe(value)
}

func (c *Client) merge(tags metrics.Tags) metrics.Tags {
	return c.tags.Merge(tags)
}

// values maps the merged tags onto the label names fixed for the metric.
func (c *Client) values(name string, tags metrics.Tags) promclient.Labels {
	merged := c.merge(tags)

	labels := promclient.Labels{}
	for _, l := range c.s.labels[name] {
		labels[l] = merged[l]
	}

	return labels
}

// register registers the collector, reusing an identical collector registered before.
func register[T promclient.Collector](reg promclient.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}

		panic(fmt.Errorf("registering collector: %w", err))
	}

	return c
}

func labelNames(tags metrics.Tags) []string {
	return slices.Sorted(maps.Keys(tags))
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
