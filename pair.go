// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc is a transport-agnostic, promise-oriented RPC library. Two
// peers form a Pair over any full-duplex message channel; each side can
// expose methods, call the other's methods, emit events, and host or
// address actors (see actor.go). See doc.go for an overview and pipe.go,
// frametransport.go, streamtransport.go, grpctransport.go, httptransport.go
// for the bundled Transport implementations.
package rpc

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	defaultCallTimeout = 500 * time.Millisecond
	defaultEmitTimeout = 500 * time.Millisecond
)

// SendFunc is the outbound half of a Transport, installed via SetSend.
type SendFunc func(Message) error

// PairOptions configures NewPair. Name and ErrorSink are required; every
// other field has a spec-mandated default.
type PairOptions struct {
	// Name prefixes every outbound id and tags log lines. Required.
	Name string

	// Timeout is the default Call deadline. Defaults to 500ms.
	Timeout time.Duration

	// EmitTimeout is the default Emit acknowledgement deadline. Defaults
	// to 500ms.
	EmitTimeout time.Duration

	// ErrorSink receives protocol-level anomalies that are not any single
	// caller's to reject: unknown message types, invalid result frames,
	// and synchronous send failures for replies/acks. Required.
	ErrorSink func(error)

	// WrapEffects wraps the closure that delivers one inbound notify to
	// local listeners. Defaults to identity (f()). Hosts that need a
	// change-detection hook (e.g. a UI framework) can observe every
	// inbound notification through this seam.
	WrapEffects func(f func())

	// Logger receives ambient log lines. Defaults to a log.Logger over
	// os.Stderr prefixed with the pair's name.
	Logger *log.Logger

	// Meter, if set, records call/emit/actor-call counters via otel.
	Meter metric.Meter
}

// Pair is one endpoint of an RPC connection; symmetric in role. See doc.go.
type Pair struct {
	name        string
	timeout     time.Duration
	emitTimeout time.Duration
	errorSink   func(error)
	wrapEffects func(func())
	logger      *log.Logger
	debug       bool
	metrics     *pairMetrics

	mu      sync.Mutex
	sendFn  SendFunc
	methods map[string]Handler

	notifyEmitter *emitter // public On/Once/Off surface

	waitersMu sync.Mutex
	waiters   map[string]chan *Message

	registryMu sync.Mutex
	registry   *ActorRegistry
}

// NewPair constructs a Pair. It fails with ErrMissingName if Name is empty
// and ErrMissingErrorHandler if ErrorSink is nil.
func NewPair(opts PairOptions) (*Pair, error) {
	if opts.Name == "" {
		return nil, ErrMissingName
	}
	if opts.ErrorSink == nil {
		return nil, ErrMissingErrorHandler
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	emitTimeout := opts.EmitTimeout
	if emitTimeout <= 0 {
		emitTimeout = defaultEmitTimeout
	}
	wrapEffects := opts.WrapEffects
	if wrapEffects == nil {
		wrapEffects = func(f func()) { f() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[rpc "+opts.Name+"] ", log.LstdFlags)
	}

	p := &Pair{
		name:          opts.Name,
		timeout:       timeout,
		emitTimeout:   emitTimeout,
		errorSink:     opts.ErrorSink,
		wrapEffects:   wrapEffects,
		logger:        logger,
		debug:         os.Getenv("DEBUG") != "",
		metrics:       newPairMetrics(opts.Meter),
		methods:       make(map[string]Handler),
		notifyEmitter: newEmitter(),
		waiters:       make(map[string]chan *Message),
	}
	return p, nil
}

// Name returns the pair's configured name.
func (p *Pair) Name() string { return p.name }

// Expose registers a single method handler, overwriting any existing
// registration for name. See ExposeMap to register several at once.
func (p *Pair) Expose(name string, fn Handler) {
	p.mu.Lock()
	registerOne(p.methods, name, fn)
	p.mu.Unlock()
}

// ExposeMap registers every entry of methods, each via Expose.
func (p *Pair) ExposeMap(methods map[string]Handler) {
	for name, fn := range methods {
		p.Expose(name, fn)
	}
}

// SetSend installs (or replaces) the outbound send function. Replacing it
// does not cancel in-flight waiters created under the old function — a
// reconnect is best-effort.
func (p *Pair) SetSend(fn SendFunc) {
	p.mu.Lock()
	p.sendFn = fn
	p.mu.Unlock()
}

func (p *Pair) currentSend() SendFunc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendFn
}

// Call sends a "call" frame and waits for the correlated "result". It
// rejects with a *TimeoutError if none arrives within the timeout (pair
// default, or WithCallTimeout override), or with a *RemoteError carrying
// the peer's rejection — including the peer's NoSuchMethod reply when it
// has no such method.
func (p *Pair) Call(ctx context.Context, method string, params []any, opts ...CallOption) (any, error) {
	o := callOptions{timeout: p.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	id := nextID(p.name)
	msg := Message{ID: id, Type: TypeCall, Method: method, Params: params}

	res, err := p.sendAndAwaitResult(ctx, msg, o.timeout, "call")
	p.metrics.recordCall(ctx, method, err)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, reinflateError(res.Error)
	}
	return res.Result, nil
}

// Emit sends a "notify" frame and waits for the peer's empty-result
// acknowledgement, confirming the peer received it. The ack timeout
// defaults to the pair's EmitTimeout, overridable via WithEmitTimeout.
func (p *Pair) Emit(ctx context.Context, event string, data []any, opts ...EmitOption) error {
	o := emitOptions{timeout: p.emitTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	id := nextID(p.name)
	msg := Message{ID: id, Type: TypeNotify, Event: event, Data: data}

	_, err := p.sendAndAwaitResult(ctx, msg, o.timeout, "emit")
	p.metrics.recordEmit(ctx, event)
	return err
}

// sendAndAwaitResult is the single reusable send/correlate/timeout
// primitive behind both Call and Emit.
func (p *Pair) sendAndAwaitResult(ctx context.Context, msg Message, timeout time.Duration, kind string) (*Message, error) {
	send := p.currentSend()
	if send == nil {
		return nil, ErrMissingSendFunction
	}

	ch := make(chan *Message, 1)
	p.waitersMu.Lock()
	p.waiters[msg.ID] = ch
	p.waitersMu.Unlock()
	defer func() {
		p.waitersMu.Lock()
		delete(p.waiters, msg.ID)
		p.waitersMu.Unlock()
	}()

	if err := send(msg); err != nil {
		// Synchronous transport failure on a caller-initiated send
		// rejects the caller directly.
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &TimeoutError{Kind: kind, ID: msg.ID, Duration: timeout.String()}
	case res := <-ch:
		return res, nil
	}
}

// On subscribes fn to events the peer delivers by name. Returns an id for
// Off/RemoveListener.
func (p *Pair) On(event string, fn ListenerFunc) ListenerID {
	return p.notifyEmitter.on(event, fn)
}

// Once subscribes fn to fire at most once for event.
func (p *Pair) Once(event string, fn ListenerFunc) ListenerID {
	return p.notifyEmitter.once(event, fn)
}

// Off unsubscribes the listener identified by id from event.
func (p *Pair) Off(event string, id ListenerID) {
	p.notifyEmitter.off(event, id)
}

// RemoveListener is an alias for Off, kept for parity with the
// on/once/off/removeListener surface callers expect.
func (p *Pair) RemoveListener(event string, id ListenerID) {
	p.Off(event, id)
}

// Incoming is the transport entry point: it dispatches msg by Type. Call
// handlers run on their own goroutine; a notify is acknowledged and then
// delivered to local listeners synchronously, on the calling goroutine.
func (p *Pair) Incoming(msg Message) {
	p.logDebug("incoming %s %s", msg.Type, msg.ID)
	switch msg.Type {
	case TypeCall:
		p.handleIncomingCall(msg)
	case TypeNotify:
		p.handleIncomingNotify(msg)
	case TypeResult:
		p.handleIncomingResult(msg)
	default:
		p.errorSink(fmt.Errorf("unknown message type: %q", msg.Type))
	}
}

func (p *Pair) handleIncomingCall(msg Message) {
	p.mu.Lock()
	h, ok := p.methods[msg.Method]
	p.mu.Unlock()
	if !ok {
		p.sendResult(msg.ID, nil, &NoSuchMethodError{Method: msg.Method, Params: msg.Params})
		return
	}
	// Handler execution may suspend (the Go reading of "may return a
	// thenable"); run it off the dispatching goroutine so Incoming itself
	// never blocks.
	go func() {
		result, err := p.runEnsuringResult(msg, h)
		if err != nil {
			p.sendResult(msg.ID, nil, err)
		} else {
			p.sendResult(msg.ID, result, nil)
		}
	}()
}

// runEnsuringResult converts a possibly-panicking handler invocation into
// a (result, error) pair, so a handler's synchronous panic becomes an
// ordinary rejection instead of taking down the dispatching goroutine.
func (p *Pair) runEnsuringResult(msg Message, h Handler) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return h(context.Background(), msg.Params)
}

func (p *Pair) handleIncomingNotify(msg Message) {
	// The acknowledgement is sent before local delivery so ack latency
	// reflects transport cost, not listener cost.
	p.sendResult(msg.ID, nil, nil)
	p.wrapEffects(func() {
		p.notifyEmitter.emit(msg.Event, msg.Data)
	})
}

func (p *Pair) handleIncomingResult(msg Message) {
	if !msg.HasResult && msg.Error == nil {
		p.errorSink(fmt.Errorf("rpc: invalid result for id %q: neither result nor error present", msg.ID))
		return
	}
	p.waitersMu.Lock()
	ch, ok := p.waiters[msg.ID]
	p.waitersMu.Unlock()
	if !ok {
		// No waiter: either already resolved, or the caller stopped
		// waiting (timeout or context cancellation).
		return
	}
	m := msg
	select {
	case ch <- &m:
	default:
		// A result for this id already arrived; the first one wins.
	}
}

// sendResult writes a "result" frame for id, wrapping err via
// normalizeError when present. Synchronous send failures here are
// fire-and-forget (a reply or ack, not a caller's own send) and are
// routed to the error sink rather than rejecting anyone.
func (p *Pair) sendResult(id string, result any, err error) {
	msg := Message{ID: id, Type: TypeResult}
	if err != nil {
		msg.Error = normalizeError(err)
	} else {
		msg.HasResult = true
		msg.Result = result
	}
	send := p.currentSend()
	if send == nil {
		p.errorSink(ErrMissingSendFunction)
		return
	}
	if sendErr := send(msg); sendErr != nil {
		p.errorSink(sendErr)
	}
}

func (p *Pair) logDebug(format string, args ...any) {
	if p.debug {
		p.logger.Printf("[rpc-debug] "+format, args...)
	}
}
