// Copyright © 2026 The ELPS authors

package debugger

import (
	"io"
	"time"

	"github.com/luthersystems/v8bridge/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultRequestTimeout bounds how long a request may stay pending.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultRemoveAttempts bounds clearbreakpoint retries on timeout.
	DefaultRemoveAttempts = 3
)

type config struct {
	log            logrus.FieldLogger
	sink           telemetry.Sink
	timeout        time.Duration
	onEvent        EventCallback
	paths          *PathMapper
	removeAttempts int
}

func newConfig(opts ...Option) *config {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	c := &config{
		log:            silent,
		sink:           telemetry.Nop(),
		timeout:        DefaultRequestTimeout,
		removeAttempts: DefaultRemoveAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.paths == nil {
		c.paths = NewPathMapper()
	}
	return c
}

// Option configures a Session.
type Option func(*config)

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithTelemetry sets the sink that receives request spans and events.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(c *config) {
		c.sink = sink
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEventCallback sets the function notified of state changes.
func WithEventCallback(cb EventCallback) Option {
	return func(c *config) {
		c.onEvent = cb
	}
}

// WithPathMapper sets the mapper used to match debuggee script names to
// local files.
func WithPathMapper(m *PathMapper) Option {
	return func(c *config) {
		c.paths = m
	}
}

// WithRemoveAttempts overrides DefaultRemoveAttempts.
func WithRemoveAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.removeAttempts = n
		}
	}
}
