package metrics

import (
	"time"

	"github.com/benbjohnson/clock"
)

type Timer struct {
	client Client
	clock  clock.Clock
	start  time.Time
	name   string
	tags   Tags
}

// NewTimer starts a timer that reports to the given client once stopped.
func NewTimer(client Client, clock clock.Clock, name string, tags Tags) *Timer {
	return &Timer{
		client: client,
		clock:  clock,
		start:  clock.Now(),
		name:   name,
		tags:   tags,
	}
}

// Stop the timer and send the elapsed time as a timing metric
func (t *Timer) Stop() {
	t.client.Timing(t.name, t.tags, t.clock.Since(t.start))
}
