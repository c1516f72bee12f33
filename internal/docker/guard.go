package docker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chis/stackcheck/internal/logging"
)

// CircuitState represents the state of the daemon circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state - requests pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the daemon failed repeatedly - requests fail fast.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Guard defaults
const (
	DefaultFailureThreshold = 3
	DefaultResetTimeout     = 30 * time.Second
	DefaultCacheTTL         = 5 * time.Second
)

// ErrDaemonUnavailable is returned while the circuit is open.
var ErrDaemonUnavailable = errors.New("docker daemon temporarily unavailable")

// ProjectSource lists compose projects; *Service implements it.
type ProjectSource interface {
	ComposeProjects(ctx context.Context) ([]ComposeProject, error)
}

// GuardOptions configures a GuardedLister. Zero values use the defaults;
// a negative CacheTTL disables caching.
type GuardOptions struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	CacheTTL         time.Duration
}

// GuardedLister wraps a ProjectSource with a circuit breaker and a short
// result cache, so a dead daemon fails fast and polling clients do not
// hammer a live one.
type GuardedLister struct {
	src ProjectSource
	log *logging.Logger
	now func() time.Time

	threshold int
	reset     time.Duration
	ttl       time.Duration

	mu       sync.Mutex
	state    CircuitState
	failures int
	changed  time.Time
	cached   []ComposeProject
	cachedAt time.Time
}

// NewGuardedLister creates a guard around src.
func NewGuardedLister(src ProjectSource, opts GuardOptions) *GuardedLister {
	return newGuardedLister(src, opts, time.Now)
}

func newGuardedLister(src ProjectSource, opts GuardOptions, now func() time.Time) *GuardedLister {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = DefaultResetTimeout
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &GuardedLister{
		src:       src,
		log:       logging.Component("docker"),
		now:       now,
		threshold: opts.FailureThreshold,
		reset:     opts.ResetTimeout,
		ttl:       opts.CacheTTL,
		state:     CircuitClosed,
		changed:   now(),
	}
}

// ComposeProjects returns cached projects when fresh, otherwise asks the
// daemon unless the circuit is open.
func (g *GuardedLister) ComposeProjects(ctx context.Context) ([]ComposeProject, error) {
	if projects, ok := g.fromCache(); ok {
		return projects, nil
	}
	if !g.allow() {
		return nil, ErrDaemonUnavailable
	}

	projects, err := g.src.ComposeProjects(ctx)
	if err != nil {
		// A caller that went away says nothing about the daemon
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			g.release()
			return nil, err
		}
		g.recordFailure(err)
		return nil, err
	}

	g.recordSuccess(projects)
	return cloneProjects(projects), nil
}

// State returns the current circuit state.
func (g *GuardedLister) State() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == CircuitOpen && g.now().Sub(g.changed) >= g.reset {
		return CircuitHalfOpen
	}
	return g.state
}

// Invalidate drops the cached result.
func (g *GuardedLister) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cached = nil
	g.cachedAt = time.Time{}
}

func (g *GuardedLister) fromCache() ([]ComposeProject, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ttl < 0 || g.cached == nil || g.now().Sub(g.cachedAt) >= g.ttl {
		return nil, false
	}
	return cloneProjects(g.cached), true
}

// allow reports whether a daemon call may proceed. An open circuit lets a
// single probe through once the reset timeout has passed.
func (g *GuardedLister) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case CircuitOpen:
		if g.now().Sub(g.changed) >= g.reset {
			g.setState(CircuitHalfOpen)
			return true
		}
		return false
	case CircuitHalfOpen:
		// Probe in flight
		return false
	default:
		return true
	}
}

// release returns a half-open probe slot without judging the daemon.
func (g *GuardedLister) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == CircuitHalfOpen {
		g.setState(CircuitOpen)
		g.changed = g.changed.Add(-g.reset)
	}
}

func (g *GuardedLister) recordSuccess(projects []ComposeProject) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures = 0
	if g.state != CircuitClosed {
		g.log.Info("Docker daemon reachable again, closing circuit")
		g.setState(CircuitClosed)
	}
	g.cached = cloneProjects(projects)
	g.cachedAt = g.now()
}

func (g *GuardedLister) recordFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures++
	switch g.state {
	case CircuitClosed:
		if g.failures >= g.threshold {
			g.log.Warn("Docker daemon failed %d times, opening circuit for %s: %v", g.failures, g.reset, err)
			g.setState(CircuitOpen)
		}
	case CircuitHalfOpen:
		g.log.Warn("Docker daemon probe failed, reopening circuit: %v", err)
		g.setState(CircuitOpen)
	}
}

// setState must be called with mu held.
func (g *GuardedLister) setState(s CircuitState) {
	g.state = s
	g.changed = g.now()
}

func cloneProjects(in []ComposeProject) []ComposeProject {
	out := make([]ComposeProject, len(in))
	for i, p := range in {
		p.ConfigFiles = append([]string(nil), p.ConfigFiles...)
		p.Services = append([]string(nil), p.Services...)
		out[i] = p
	}
	return out
}
