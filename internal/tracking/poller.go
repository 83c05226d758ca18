package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joshua-takyi/gigbay/internal/geo"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxFailures  = 3
)

type Fix struct {
	Point    geo.Point `json:"point"`
	Accuracy *float64  `json:"accuracy,omitempty"`
	At       time.Time `json:"at"`
}

type LocationSource interface {
	CurrentLocation(ctx context.Context) (Fix, error)
}

type Sink func(ctx context.Context, fix Fix) error

// Poller reads the device location on an interval and hands it to a sink.
// After MaxFailures consecutive sink errors it suspends itself until Resume
// is called, so a lost connection is visible instead of silently retried.
type Poller struct {
	source      LocationSource
	sink        Sink
	interval    time.Duration
	maxFailures int
	logger      *slog.Logger

	mu        sync.Mutex
	suspended bool
	failures  int
	resume    chan struct{}
}

type PollerOption func(*Poller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithMaxFailures(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxFailures = n
		}
	}
}

func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = l
	}
}

func NewPoller(source LocationSource, sink Sink, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		sink:        sink,
		interval:    DefaultPollInterval,
		maxFailures: DefaultMaxFailures,
		logger:      slog.Default(),
		resume:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is done. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		case <-p.resume:
			p.poll(ctx)
		}
	}
}

func (p *Poller) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = true
}

// Resume clears the failure count and triggers an immediate poll.
func (p *Poller) Resume() {
	p.mu.Lock()
	p.suspended = false
	p.failures = 0
	p.mu.Unlock()

	select {
	case p.resume <- struct{}{}:
	default:
	}
}

func (p *Poller) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

func (p *Poller) poll(ctx context.Context) {
	if p.Suspended() {
		return
	}

	fix, err := p.source.CurrentLocation(ctx)
	if err != nil {
		p.logger.Warn("location unavailable", "error", err)
		return
	}
	if err := fix.Point.Validate(); err != nil {
		p.logger.Warn("discarding invalid fix", "error", err)
		return
	}

	if err := p.sink(ctx, fix); err != nil {
		p.mu.Lock()
		p.failures++
		failures := p.failures
		if failures >= p.maxFailures {
			p.suspended = true
		}
		p.mu.Unlock()

		if failures >= p.maxFailures {
			p.logger.Error("location updates suspended", "failures", failures, "error", err)
		} else {
			p.logger.Warn("failed to send location", "attempt", failures, "error", err)
		}
		return
	}

	p.mu.Lock()
	p.failures = 0
	p.mu.Unlock()
}
