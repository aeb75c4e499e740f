package live

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/live/protocol"
)

const (
	defaultReconnectBaseDelay   = 1 * time.Second
	defaultMaxReconnectAttempts = 5
)

// ConnState is the connection lifecycle state owned by the Reconnector.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	// StateFailed is terminal: the attempt ceiling was exhausted and no
	// further automatic attempts will occur.
	StateFailed
)

// String returns a human-readable connection state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReconnectConfig configures the reconnect policy.
type ReconnectConfig struct {
	// BaseDelay is multiplied by the attempt number for linear backoff.
	// Default: 1s.
	BaseDelay time.Duration

	// MaxAttempts is the reconnect ceiling. Default: 5.
	MaxAttempts int

	Logger *slog.Logger
}

// Reconnector wraps a Transport and retries the connection on unexpected
// closes with linear backoff, up to a bounded attempt count. A deliberate
// Close never triggers a reconnect.
type Reconnector struct {
	tr          Transport
	baseDelay   time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu       sync.Mutex
	state    ConnState
	attempts int
	closed   bool
	timer    *time.Timer

	cbMu     sync.Mutex
	nextID   int
	stateCbs map[int]func(ConnState)

	unsubs []func()
}

// NewReconnector wraps the transport. The reconnector owns the transport's
// connection lifecycle from this point on; callers use the reconnector's
// Connect/Close/Send and subscribe through it.
func NewReconnector(tr Transport, cfg ReconnectConfig) *Reconnector {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultReconnectBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxReconnectAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Reconnector{
		tr:          tr,
		baseDelay:   cfg.BaseDelay,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		state:       StateDisconnected,
		stateCbs:    make(map[int]func(ConnState)),
	}
	r.unsubs = append(r.unsubs,
		tr.OnConnected(r.handleConnected),
		tr.OnDisconnected(r.handleDisconnected),
	)
	return r
}

// Connect starts the initial connection attempt.
func (r *Reconnector) Connect() {
	r.mu.Lock()
	if r.closed || r.state == StateFailed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.setState(StateConnecting)
	r.tr.Connect()
}

// Close deliberately shuts the connection down and suppresses any further
// reconnect attempts. Idempotent.
func (r *Reconnector) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	r.tr.Disconnect()
	r.setState(StateDisconnected)
}

// Send delegates to the transport.
func (r *Reconnector) Send(msg protocol.ClientMessage) error {
	return r.tr.Send(msg)
}

// State returns the current connection state.
func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnStateChange registers a connection state listener and returns an
// unsubscribe handle.
func (r *Reconnector) OnStateChange(fn func(ConnState)) func() {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	id := r.nextID
	r.nextID++
	r.stateCbs[id] = fn
	return func() {
		r.cbMu.Lock()
		defer r.cbMu.Unlock()
		delete(r.stateCbs, id)
	}
}

// OnMessage subscribes to inbound frames on the wrapped transport.
func (r *Reconnector) OnMessage(fn func(protocol.ServerMessage)) func() {
	return r.tr.OnMessage(fn)
}

// OnError subscribes to transport errors on the wrapped transport.
func (r *Reconnector) OnError(fn func(error)) func() {
	return r.tr.OnError(fn)
}

func (r *Reconnector) handleConnected() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.attempts = 0
	r.mu.Unlock()

	r.setState(StateConnected)
}

func (r *Reconnector) handleDisconnected() {
	r.mu.Lock()
	if r.closed || r.state == StateFailed {
		r.mu.Unlock()
		return
	}

	if r.attempts >= r.maxAttempts {
		r.mu.Unlock()
		r.logger.Warn("reconnect attempts exhausted", "attempts", r.maxAttempts)
		r.setState(StateFailed)
		return
	}

	r.attempts++
	attempt := r.attempts
	delay := time.Duration(attempt) * r.baseDelay
	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
		r.tr.Connect()
	})
	r.mu.Unlock()

	r.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)
	r.setState(StateConnecting)
}

func (r *Reconnector) setState(st ConnState) {
	r.mu.Lock()
	if r.state == st {
		r.mu.Unlock()
		return
	}
	r.state = st
	r.mu.Unlock()

	r.cbMu.Lock()
	ids := make([]int, 0, len(r.stateCbs))
	for id := range r.stateCbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(ConnState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.stateCbs[id])
	}
	r.cbMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
