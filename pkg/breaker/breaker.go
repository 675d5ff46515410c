package breaker

import (
	"sync"
	"time"

	"flatnas/pkg/logger"

	"github.com/sony/gobreaker"
)

// Config allows custom settings for specific breakers
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests is the sample size needed before the failure ratio can trip.
	MinRequests uint32
}

// New creates a new CircuitBreaker with sensible defaults
func New(cfg Config) *gobreaker.CircuitBreaker {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker changed state")
		},
	}

	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// Group hands out one breaker per upstream name, created on first use.
type Group struct {
	mu       sync.Mutex
	base     Config
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewGroup(base Config) *Group {
	return &Group{
		base:     base,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for name.
func (g *Group) Get(name string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cfg := g.base
	cfg.Name = name
	cb := New(cfg)
	g.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker.
func (g *Group) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	return g.Get(name).Execute(fn)
}

// States snapshots the state of every breaker created so far.
func (g *Group) States() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]string, len(g.breakers))
	for name, cb := range g.breakers {
		out[name] = cb.State().String()
	}
	return out
}
