// Package metrics is the measurement surface of the task manager, the backends and the role cache.
// Metric names share the "tasks." prefix; measurements taken on a backend carry its name in the
// "backend" tag.
package metrics

import (
	"maps"
	"time"
)

// Tags are the dimensions of a measurement, for example the backend or the manager operation.
type Tags map[string]string

// Merge returns the union of t and other. Values in other win.
func (t Tags) Merge(other Tags) Tags {
	r := make(Tags, len(t)+len(other))
	maps.Copy(r, t)
	maps.Copy(r, other)

	return r
}

// Client receives session, operation and role cache measurements. Implementations are safe for
// concurrent use.
type Client interface {
	Counter(name string, tags Tags, value int64)

	Distribution(name string, tags Tags, value float64)

	Gauge(name string, tags Tags, value int64)

	Timing(name string, tags Tags, duration time.Duration)

	// WithTags returns a client adding tags to every measurement. Backends use it to tag what they
	// report with their name.
	WithTags(tags Tags) Client
}

// Discard drops every measurement. It is the default when no client is configured.
var Discard Client = discard{}

type discard struct{}

func (discard) Counter(string, Tags, int64)        {}
func (discard) Distribution(string, Tags, float64) {}
func (discard) Gauge(string, Tags, int64)          {}
func (discard) Timing(string, Tags, time.Duration) {}
func (d discard) WithTags(Tags) Client             { return d }
