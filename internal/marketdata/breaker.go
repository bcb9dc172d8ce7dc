package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // Normal operation, fetches pass through
	StateOpen     State = 1 // Tripped, fetches rejected immediately
	StateHalfOpen State = 2 // One probe fetch allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a pair's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after maxFailures consecutive failures and rejects
// calls for resetTimeout. After the timeout it lets one probe through: a
// success closes it, a failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// OnStateChange is called on transitions, under the breaker lock.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// Breaker wraps a source with one circuit breaker per pair, so a symbol the
// exchange keeps rejecting does not slow down the rest of the matrix.
type Breaker struct {
	source       model.MarketData
	maxFailures  int
	resetTimeout time.Duration
	onChange     func(pair model.Pair, from, to State)

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreaker creates a per-pair breaker decorator. onChange may be nil.
func NewBreaker(source model.MarketData, maxFailures int, resetTimeout time.Duration, onChange func(pair model.Pair, from, to State)) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		source:       source,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		onChange:     onChange,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

func (b *Breaker) get(pair model.Pair) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[pair.Key()]
	if !ok {
		cb = NewCircuitBreaker(b.maxFailures, b.resetTimeout)
		if b.onChange != nil {
			cb.OnStateChange = func(from, to State) { b.onChange(pair, from, to) }
		}
		b.breakers[pair.Key()] = cb
	}
	return cb
}

// State returns the breaker state for pair.
func (b *Breaker) State(pair model.Pair) State {
	return b.get(pair).CurrentState()
}

func (b *Breaker) FetchWindow(ctx context.Context, pair model.Pair, limit int) ([]model.Candle, error) {
	var (
		candles  []model.Candle
		fetchErr error
	)
	err := b.get(pair).Execute(func() error {
		candles, fetchErr = b.source.FetchWindow(ctx, pair, limit)
		// Shutdown cancellation is not the exchange's fault.
		if errors.Is(fetchErr, context.Canceled) {
			return nil
		}
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return candles, fetchErr
}

func (b *Breaker) Ping(ctx context.Context) error {
	return b.source.Ping(ctx)
}
