package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrchandrayee/interview-practice/pkg/core"
	"github.com/mrchandrayee/interview-practice/pkg/live/protocol"
)

const defaultDialTimeout = 15 * time.Second

// Transport is a persistent duplex connection to one session endpoint.
//
// Subscriptions are named and typed; each On* call returns an unsubscribe
// handle. Events fire from a single dispatch goroutine in wire order.
type Transport interface {
	// Connect opens the connection. It is idempotent: calls while connected
	// or while a dial is in flight are no-ops. The outcome is reported
	// through OnConnected or OnError/OnDisconnected.
	Connect()

	// Send transmits one outbound frame if the connection is open. When it
	// is not, Send returns a connection error and transmits nothing.
	Send(msg protocol.ClientMessage) error

	// Disconnect closes the connection. It is idempotent and guarantees no
	// events fire after it returns.
	Disconnect()

	// IsConnected reports whether the connection is currently open.
	IsConnected() bool

	OnConnected(fn func()) (unsubscribe func())
	OnDisconnected(fn func()) (unsubscribe func())
	OnMessage(fn func(protocol.ServerMessage)) (unsubscribe func())
	OnError(fn func(error)) (unsubscribe func())
}

// WebsocketTransport implements Transport over a gorilla websocket.
type WebsocketTransport struct {
	url         string
	header      http.Header
	dialer      *websocket.Dialer
	dialTimeout time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	suppressed bool
	readerDone chan struct{}

	writeMu sync.Mutex

	cbMu            sync.Mutex
	nextCallbackID  int
	connectedCbs    map[int]func()
	disconnectedCbs map[int]func()
	messageCbs      map[int]func(protocol.ServerMessage)
	errorCbs        map[int]func(error)
}

// TransportOption configures a WebsocketTransport.
type TransportOption func(*WebsocketTransport)

// WithHeader sets headers sent on the websocket handshake.
func WithHeader(header http.Header) TransportOption {
	return func(t *WebsocketTransport) {
		t.header = header
	}
}

// WithDialTimeout bounds how long one connection attempt may take.
func WithDialTimeout(d time.Duration) TransportOption {
	return func(t *WebsocketTransport) {
		if d > 0 {
			t.dialTimeout = d
		}
	}
}

// WithTransportLogger sets the logger used for dropped-frame warnings.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *WebsocketTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewWebsocketTransport creates a transport for the given session endpoint.
func NewWebsocketTransport(url string, opts ...TransportOption) *WebsocketTransport {
	t := &WebsocketTransport{
		url:             url,
		dialer:          websocket.DefaultDialer,
		dialTimeout:     defaultDialTimeout,
		logger:          slog.Default(),
		connectedCbs:    make(map[int]func()),
		disconnectedCbs: make(map[int]func()),
		messageCbs:      make(map[int]func(protocol.ServerMessage)),
		errorCbs:        make(map[int]func(error)),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialer == nil {
		t.dialer = &websocket.Dialer{}
	}
	return t
}

// Connect implements Transport.
func (t *WebsocketTransport) Connect() {
	t.mu.Lock()
	if t.connecting || t.conn != nil {
		t.mu.Unlock()
		return
	}
	t.connecting = true
	t.suppressed = false
	t.mu.Unlock()

	go t.dialAndRead()
}

func (t *WebsocketTransport) dialAndRead() {
	ctx, cancel := context.WithTimeout(context.Background(), t.dialTimeout)
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	cancel()

	if err != nil {
		t.mu.Lock()
		t.connecting = false
		suppressed := t.suppressed
		t.mu.Unlock()
		if !suppressed {
			t.emitError(core.NewConnectionError(fmt.Sprintf("dial %s: %v", t.url, err)))
			t.emitDisconnected()
		}
		return
	}

	t.mu.Lock()
	if t.suppressed {
		t.connecting = false
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.connecting = false
	done := make(chan struct{})
	t.readerDone = done
	t.mu.Unlock()

	t.emitConnected()
	t.readLoop(conn, done)
}

func (t *WebsocketTransport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			suppressed := t.suppressed
			t.mu.Unlock()

			if suppressed {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emitError(core.NewConnectionError(fmt.Sprintf("read frame: %v", err)))
			}
			t.emitDisconnected()
			return
		}

		switch messageType {
		case websocket.TextMessage:
			msg, decodeErr := protocol.DecodeServerMessage(data)
			if decodeErr != nil {
				// Malformed frames never stall the pipeline.
				t.logger.Warn("dropping malformed frame", "error", core.NewProtocolError(decodeErr.Error()))
				continue
			}
			t.emitMessage(msg)
		case websocket.BinaryMessage:
			t.emitMessage(protocol.DecodeBinaryFrame(data))
		default:
			continue
		}
	}
}

// Send implements Transport.
func (t *WebsocketTransport) Send(msg protocol.ClientMessage) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return core.NewConnectionError("socket is not connected")
	}

	data, err := protocol.EncodeClientMessage(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return core.NewConnectionError(fmt.Sprintf("write frame: %v", err))
	}
	return nil
}

// Disconnect implements Transport.
func (t *WebsocketTransport) Disconnect() {
	t.mu.Lock()
	t.suppressed = true
	conn := t.conn
	t.conn = nil
	done := t.readerDone
	t.readerDone = nil
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		t.writeMu.Unlock()
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// IsConnected implements Transport.
func (t *WebsocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// OnConnected implements Transport.
func (t *WebsocketTransport) OnConnected(fn func()) func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	id := t.nextCallbackID
	t.nextCallbackID++
	t.connectedCbs[id] = fn
	return func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()
		delete(t.connectedCbs, id)
	}
}

// OnDisconnected implements Transport.
func (t *WebsocketTransport) OnDisconnected(fn func()) func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	id := t.nextCallbackID
	t.nextCallbackID++
	t.disconnectedCbs[id] = fn
	return func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()
		delete(t.disconnectedCbs, id)
	}
}

// OnMessage implements Transport.
func (t *WebsocketTransport) OnMessage(fn func(protocol.ServerMessage)) func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	id := t.nextCallbackID
	t.nextCallbackID++
	t.messageCbs[id] = fn
	return func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()
		delete(t.messageCbs, id)
	}
}

// OnError implements Transport.
func (t *WebsocketTransport) OnError(fn func(error)) func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	id := t.nextCallbackID
	t.nextCallbackID++
	t.errorCbs[id] = fn
	return func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()
		delete(t.errorCbs, id)
	}
}

func (t *WebsocketTransport) emitConnected() {
	for _, fn := range t.snapshotPlain(t.connectedCbs) {
		fn()
	}
}

func (t *WebsocketTransport) emitDisconnected() {
	for _, fn := range t.snapshotPlain(t.disconnectedCbs) {
		fn()
	}
}

func (t *WebsocketTransport) emitMessage(msg protocol.ServerMessage) {
	t.cbMu.Lock()
	ids := make([]int, 0, len(t.messageCbs))
	for id := range t.messageCbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(protocol.ServerMessage), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.messageCbs[id])
	}
	t.cbMu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}

func (t *WebsocketTransport) emitError(err error) {
	t.cbMu.Lock()
	ids := make([]int, 0, len(t.errorCbs))
	for id := range t.errorCbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(error), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.errorCbs[id])
	}
	t.cbMu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

func (t *WebsocketTransport) snapshotPlain(cbs map[int]func()) []func() {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	ids := make([]int, 0, len(cbs))
	for id := range cbs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, cbs[id])
	}
	return fns
}
