// Package services implements registration, search, matching and chat on top
// of the store, blob and Redis layers.
package services

import (
	"log/slog"
	"time"

	"github.com/AnshRaj112/spokies-backend/internal/logger"
	"github.com/AnshRaj112/spokies-backend/internal/metrics"
)

// Option configures a service.
type Option func(*options)

type options struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the time source; timestamps are stored in UTC.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		log: logger.L(),
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
