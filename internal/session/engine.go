// Package session maintains the websocket connection of one station to its
// CSMS: call correlation, timeouts, reconnection and the offline buffer.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

var (
	// ErrOffline is returned when a call cannot be sent nor buffered.
	ErrOffline = errors.New("session: not connected")
	// ErrQueued is returned when a call was buffered for later delivery.
	ErrQueued = errors.New("session: call queued for delivery")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: closed")
	// ErrTimeout is returned when the CSMS does not answer in time.
	ErrTimeout = errors.New("session: call timed out")
)

// Handler processes an inbound call from the CSMS. A non-nil *ocpp.Error
// turns into a CALLERROR frame; otherwise the returned payload is sent as
// the CALLRESULT.
type Handler func(ctx context.Context, action string, payload json.RawMessage) (any, *ocpp.Error)

// Config parametrizes one station connection.
type Config struct {
	URL         string // base supervision URL, station name is appended
	StationName string
	Username    string
	Password    string
	Version     ocpp.Version

	CallTimeout  time.Duration // per-call response timeout, default 30s
	PingInterval time.Duration // 0 disables websocket pings

	// MaxRetries bounds reconnection attempts; negative means unlimited.
	MaxRetries         int
	ExponentialBackoff bool

	// AllowOffline buffers calls while disconnected instead of failing them.
	AllowOffline bool
	QueueLimit   int // max buffered calls, default 128
}

type pendingCall struct {
	action string
	result chan callOutcome
}

type callOutcome struct {
	payload json.RawMessage
	err     error
}

type queuedCall struct {
	action  string
	payload []byte
}

// Engine owns the websocket and the correlation state of one station.
type Engine struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	online  bool
	closed  bool
	pending map[string]*pendingCall
	queue   []queuedCall

	writeMu sync.Mutex

	handler       Handler
	onConnect     func()
	onDisconnect  func(err error)
	onDrained     func()
	onQueueResult func(action string, request, response json.RawMessage, err error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = 128
	}
	return &Engine{
		cfg:     cfg,
		log:     log.With(zap.String("station", cfg.StationName)),
		pending: make(map[string]*pendingCall),
	}
}

// SetHandler registers the inbound call handler. Must be set before Connect.
func (e *Engine) SetHandler(h Handler) { e.handler = h }

// SetHooks registers connection lifecycle callbacks. onDrained fires after a
// reconnect once the offline buffer is empty again.
func (e *Engine) SetHooks(onConnect func(), onDisconnect func(err error), onDrained func()) {
	e.onConnect = onConnect
	e.onDisconnect = onDisconnect
	e.onDrained = onDrained
}

// SetQueueResultHook registers a callback fired for every buffered call whose
// replay produced an outcome. Buffered calls report ErrQueued to their caller,
// so this is the only channel carrying their eventual responses.
func (e *Engine) SetQueueResultHook(fn func(action string, request, response json.RawMessage, err error)) {
	e.onQueueResult = fn
}

// Online reports whether the websocket is currently established.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// QueueLen reports the number of buffered offline calls.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// PendingLen reports the number of in-flight calls awaiting a response.
func (e *Engine) PendingLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Connect dials the CSMS, retrying per the backoff policy, and starts the
// read loop. It returns once the first connection is established or the
// retry budget is exhausted.
func (e *Engine) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return ErrClosed
	}
	e.cancel = cancel
	e.mu.Unlock()

	if err := e.dialWithRetry(ctx); err != nil {
		cancel()
		return err
	}
	e.wg.Add(1)
	go e.run(runCtx)
	return nil
}

// Close tears the session down and fails every in-flight call.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.cancel
	conn := e.conn
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	e.wg.Wait()
	e.failPending(ErrClosed)
}

// Reconnect drops the current connection without closing the session; the
// run loop redials and the next handshake uses the station's current
// credentials.
func (e *Engine) Reconnect() {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (e *Engine) endpoint() string {
	return fmt.Sprintf("%s/%s", e.cfg.URL, e.cfg.StationName)
}

func (e *Engine) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		Subprotocols:     []string{e.cfg.Version.Subprotocol()},
		HandshakeTimeout: 10 * time.Second,
	}
	header := http.Header{}
	if e.cfg.Username != "" {
		cred := base64.StdEncoding.EncodeToString(
			[]byte(e.cfg.Username + ":" + e.cfg.Password))
		header.Set("Authorization", "Basic "+cred)
	}

	conn, resp, err := dialer.DialContext(ctx, e.endpoint(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (http %d)", e.endpoint(), err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", e.endpoint(), err)
	}
	if got := conn.Subprotocol(); got != e.cfg.Version.Subprotocol() {
		conn.Close()
		return fmt.Errorf("dial %s: server negotiated subprotocol %q, want %q",
			e.endpoint(), got, e.cfg.Version.Subprotocol())
	}

	e.mu.Lock()
	e.conn = conn
	e.online = true
	e.mu.Unlock()

	e.log.Info("connected to csms",
		zap.String("url", e.endpoint()),
		zap.String("subprotocol", conn.Subprotocol()),
	)
	return nil
}

func (e *Engine) backoffPolicy() backoff.BackOff {
	var b backoff.BackOff
	if e.cfg.ExponentialBackoff {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = time.Second
		eb.MaxInterval = 2 * time.Minute
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(5 * time.Second)
	}
	if e.cfg.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries))
	}
	return b
}

func (e *Engine) dialWithRetry(ctx context.Context) error {
	policy := backoff.WithContext(e.backoffPolicy(), ctx)
	return backoff.Retry(func() error {
		if err := e.dial(ctx); err != nil {
			e.log.Warn("dial failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}, policy)
}

// run owns the connection lifecycle: read until failure, then reconnect.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		pingStop := e.startPing(ctx)
		err := e.readLoop(ctx)
		pingStop()

		e.mu.Lock()
		e.online = false
		if e.conn != nil {
			e.conn.Close()
			e.conn = nil
		}
		closed := e.closed
		e.mu.Unlock()

		e.failPending(ErrOffline)

		if closed || ctx.Err() != nil {
			return
		}

		e.log.Warn("connection lost", zap.Error(err))
		if e.onDisconnect != nil {
			e.onDisconnect(err)
		}

		if err := e.dialWithRetry(ctx); err != nil {
			e.log.Error("reconnect attempts exhausted", zap.Error(err))
			return
		}
		if e.onConnect != nil {
			e.onConnect()
		}
		e.drainQueue(ctx)
	}
}

func (e *Engine) startPing(ctx context.Context) func() {
	if e.cfg.PingInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(e.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.mu.Lock()
				conn := e.conn
				e.mu.Unlock()
				if conn == nil {
					return
				}
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()
	return func() { close(done) }
}

func (e *Engine) readLoop(ctx context.Context) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return ErrOffline
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		e.dispatch(ctx, data)
	}
}

func (e *Engine) dispatch(ctx context.Context, data []byte) {
	frame, err := ocpp.Unmarshal(data)
	if err != nil {
		// Malformed frames without a recoverable id cannot be answered.
		e.log.Warn("discarding malformed frame", zap.Error(err))
		return
	}

	switch frame.Type {
	case ocpp.Call:
		go e.handleCall(ctx, frame)
	case ocpp.CallResult:
		e.resolve(frame.ID, callOutcome{payload: frame.Payload})
	case ocpp.CallError:
		e.resolve(frame.ID, callOutcome{err: &ocpp.Error{
			Code:        frame.ErrorCode,
			Description: frame.ErrorDescription,
			Details:     frame.ErrorDetails,
		}})
	}
}

func (e *Engine) resolve(id string, out callOutcome) {
	e.mu.Lock()
	pc, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	if !ok {
		e.log.Warn("response for unknown message id", zap.String("messageId", id))
		return
	}
	pc.result <- out
}

func (e *Engine) handleCall(ctx context.Context, frame *ocpp.Frame) {
	if e.handler == nil {
		e.writeError(frame.ID, ocpp.NewError(ocpp.ErrorNotImplemented, frame.Action))
		return
	}
	result, ocppErr := e.handler(ctx, frame.Action, frame.Payload)
	if ocppErr != nil {
		e.writeError(frame.ID, ocppErr)
		return
	}
	data, err := ocpp.MarshalResult(frame.ID, result)
	if err != nil {
		e.log.Error("marshal call result", zap.String("action", frame.Action), zap.Error(err))
		e.writeError(frame.ID, ocpp.NewError(ocpp.ErrorInternal, err.Error()))
		return
	}
	e.write(data)
}

func (e *Engine) writeError(id string, ocppErr *ocpp.Error) {
	data, err := ocpp.MarshalError(id, ocppErr)
	if err != nil {
		e.log.Error("marshal call error", zap.Error(err))
		return
	}
	e.write(data)
}

func (e *Engine) write(data []byte) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return ErrOffline
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Call sends a request and blocks for its response. While offline, calls
// are buffered FIFO when the configuration allows it; buffered calls report
// ErrQueued and their eventual responses surface through the queue result
// hook.
func (e *Engine) Call(ctx context.Context, action string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", action, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if !e.online {
		err := e.enqueueLocked(action, body)
		e.mu.Unlock()
		return nil, err
	}
	if len(e.queue) > 0 && e.cfg.AllowOffline && action != "BootNotification" {
		// A drain is in flight; fresh calls line up behind the buffered ones
		// so the replay order holds.
		err := e.enqueueLocked(action, body)
		e.mu.Unlock()
		return nil, err
	}

	id := uuid.NewString()
	pc := &pendingCall{action: action, result: make(chan callOutcome, 1)}
	e.pending[id] = pc
	e.mu.Unlock()

	data, err := ocpp.MarshalCall(id, action, json.RawMessage(body))
	if err != nil {
		e.dropPending(id)
		return nil, err
	}
	if err := e.write(data); err != nil {
		e.dropPending(id)
		return nil, err
	}

	timer := time.NewTimer(e.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case out := <-pc.result:
		return out.payload, out.err
	case <-timer.C:
		e.dropPending(id)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, action, e.cfg.CallTimeout)
	case <-ctx.Done():
		e.dropPending(id)
		return nil, ctx.Err()
	}
}

func (e *Engine) dropPending(id string) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *Engine) failPending(err error) {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[string]*pendingCall)
	e.mu.Unlock()
	for _, pc := range pending {
		pc.result <- callOutcome{err: err}
	}
}

// enqueueLocked buffers a call while offline. BootNotification is never
// buffered: a fresh one is issued on reconnect anyway. Duplicate payloads
// already in the buffer are dropped.
func (e *Engine) enqueueLocked(action string, body []byte) error {
	if !e.cfg.AllowOffline {
		return ErrOffline
	}
	if action == "BootNotification" {
		return ErrOffline
	}
	for _, q := range e.queue {
		if q.action == action && bytes.Equal(q.payload, body) {
			return ErrQueued
		}
	}
	if len(e.queue) >= e.cfg.QueueLimit {
		// Oldest entry gives way; the buffer is a bounded FIFO.
		e.queue = e.queue[1:]
	}
	e.queue = append(e.queue, queuedCall{action: action, payload: body})
	return ErrQueued
}

// drainQueue replays buffered calls in order after a reconnect. Responses
// are awaited one at a time so ordering holds and are handed to the queue
// result hook; write failures stop the drain and leave the remainder
// buffered.
func (e *Engine) drainQueue(ctx context.Context) {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 || !e.online {
			e.mu.Unlock()
			break
		}
		q := e.queue[0]
		e.queue = e.queue[1:]
		id := uuid.NewString()
		pc := &pendingCall{action: q.action, result: make(chan callOutcome, 1)}
		e.pending[id] = pc
		e.mu.Unlock()

		data, err := ocpp.MarshalCall(id, q.action, json.RawMessage(q.payload))
		if err != nil {
			e.dropPending(id)
			e.log.Error("marshal queued call", zap.String("action", q.action), zap.Error(err))
			continue
		}
		if err := e.write(data); err != nil {
			e.dropPending(id)
			e.mu.Lock()
			e.queue = append([]queuedCall{q}, e.queue...)
			e.mu.Unlock()
			return
		}

		timer := time.NewTimer(e.cfg.CallTimeout)
		select {
		case out := <-pc.result:
			timer.Stop()
			if out.err != nil {
				e.log.Warn("queued call rejected",
					zap.String("action", q.action), zap.Error(out.err))
			}
			if e.onQueueResult != nil {
				e.onQueueResult(q.action, q.payload, out.payload, out.err)
			}
		case <-timer.C:
			e.dropPending(id)
			e.log.Warn("queued call timed out", zap.String("action", q.action))
		case <-ctx.Done():
			timer.Stop()
			e.dropPending(id)
			return
		}
	}

	if e.onDrained != nil {
		e.onDrained()
	}
}
