// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ActorRegistrationTimeout bounds how long callActor/-getActorProperty-
// wait for an actor to be exposed before failing.
const ActorRegistrationTimeout = 500 * time.Millisecond

// ActorCallTimeout bounds a single actor method invocation.
const ActorCallTimeout = 500 * time.Millisecond

// ActorMethod is one callable method of a local actor.
type ActorMethod func(ctx context.Context, args []any) (any, error)

// MethodProvider lets an actor optionally expose arbitrary methods: an
// actor implements this to be callable via RemoteActor.Call / the
// "callActor" wire method.
type MethodProvider interface {
	ActorMethods() map[string]ActorMethod
}

// PropertyProvider is the Go-native reading of "optionally exposes
// enumerable properties": an actor implements this to answer
// RemoteActor.Get / the "-getActorProperty-" wire method.
type PropertyProvider interface {
	ActorProperties() map[string]any
}

// EventPublisher is the Go-native reading of "optionally exposes an
// event-emitter capability". Subscribe registers a tap invoked on every
// Publish call; it returns an unsubscribe func that ExposeActor never
// calls (see the "stored flag, not swap back" note in DESIGN.md) so other
// concurrent subscribers on the actor are unaffected by actor expiry.
type EventPublisher interface {
	Subscribe(tap func(event string, args []any)) (unsubscribe func())
	Publish(event string, args ...any)
}

// expiredActor is the EXPIRED sentinel written into a registry slot by
// ExpireActor.
type expiredActor struct{}

// ActorRegistry is an overlay attachable to at most one Pair: a per-id
// actor table, registration waiters, and event proxying.
type ActorRegistry struct {
	mu              sync.Mutex
	actors          map[string]any             // id -> actor, or expiredActor{}
	active          map[string]*atomic.Bool    // id -> active flag, EventPublisher actors only
	registerWaiters map[string][]chan struct{} // id -> pending waitForActor wakeups

	internal *emitter // deregister:<id>, actorEvents
	pair     *Pair
}

// NewActorRegistry constructs an unattached registry.
func NewActorRegistry() *ActorRegistry {
	return &ActorRegistry{
		actors:          make(map[string]any),
		active:          make(map[string]*atomic.Bool),
		registerWaiters: make(map[string][]chan struct{}),
		internal:        newEmitter(),
	}
}

// Attach installs the registry's two reserved methods ("callActor",
// "-getActorProperty-") on pair and wires actor-event proxying. Attaching
// a second registry to the same Pair fails with ErrDuplicateRegistry.
func (r *ActorRegistry) Attach(p *Pair) error {
	p.registryMu.Lock()
	if p.registry != nil {
		p.registryMu.Unlock()
		return ErrDuplicateRegistry
	}
	p.registry = r
	p.registryMu.Unlock()

	r.mu.Lock()
	r.pair = p
	r.mu.Unlock()

	p.Expose("callActor", r.handleCallActor)
	p.Expose("-getActorProperty-", r.handleGetActorProperty)

	r.internal.on("actorEvents", func(data []any) {
		id, _ := data[0].(string)
		event, _ := data[1].(string)
		args, _ := data[2].([]any)
		scoped := "remote:" + id + ":" + event
		// An actor publish has no caller to reject, so a failed/timed-out
		// ack is routed to the error sink rather than returned anywhere
		// (mirrors sendResult's fire-and-forget discipline).
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), p.emitTimeout)
			defer cancel()
			if err := p.Emit(ctx, scoped, args); err != nil {
				p.errorSink(err)
			}
		}()
	})
	return nil
}

// ExposeActor registers actor under id. Re-registering an id — including
// one that has since been expired — fails with *DuplicateActorIDError.
func (r *ActorRegistry) ExposeActor(id string, actor any) error {
	if actor == nil {
		return fmt.Errorf("rpc: actor must not be nil")
	}
	r.mu.Lock()
	if _, exists := r.actors[id]; exists {
		r.mu.Unlock()
		return &DuplicateActorIDError{ActorID: id}
	}
	r.actors[id] = actor

	if ep, ok := actor.(EventPublisher); ok {
		active := &atomic.Bool{}
		active.Store(true)
		ep.Subscribe(func(event string, args []any) {
			if active.Load() {
				r.internal.emit("actorEvents", []any{id, event, args})
			}
		})
		r.active[id] = active
	}

	// Take the waitForActor callers already parked on this id while still
	// holding r.mu, so a waiter's existence-check and its subscription to
	// this wakeup can never straddle this write; they are woken once the
	// lock is released.
	waiters := r.registerWaiters[id]
	delete(r.registerWaiters, id)
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	return nil
}

// ExpireActor writes the EXPIRED sentinel into id's slot and stops
// proxying its events, by flipping the stored active flag rather than
// calling the actor's own unsubscribe (DESIGN.md).
func (r *ActorRegistry) ExpireActor(id string) {
	r.mu.Lock()
	r.actors[id] = expiredActor{}
	if active, ok := r.active[id]; ok {
		active.Store(false)
	}
	r.mu.Unlock()

	r.internal.emit("deregister:"+id, nil)
}

// GetLocalActor returns the actor bound to id, or ok=false if unbound or
// expired.
func (r *ActorRegistry) GetLocalActor(id string) (actor any, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, exists := r.actors[id]
	if !exists {
		return nil, false
	}
	if _, expired := a.(expiredActor); expired {
		return nil, false
	}
	return a, true
}

// waitForActor resolves id immediately if already bound, else blocks for
// up to timeout for it to be exposed. The existence check and the
// registration of this call's wakeup channel happen under one r.mu
// critical section, so an ExposeActor that runs between them cannot
// deliver its wakeup before this call is listening for it.
func (r *ActorRegistry) waitForActor(ctx context.Context, id string, timeout time.Duration) (any, error) {
	r.mu.Lock()
	a, exists := r.actors[id]
	if exists {
		r.mu.Unlock()
		if _, expired := a.(expiredActor); expired {
			return nil, &ActorExpiredError{ActorID: id}
		}
		return a, nil
	}
	wake := make(chan struct{})
	r.registerWaiters[id] = append(r.registerWaiters[id], wake)
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &ActorRegistrationTimeoutError{ActorID: id}
	case <-wake:
	}

	r.mu.Lock()
	a, exists = r.actors[id]
	r.mu.Unlock()
	if !exists {
		return nil, &ActorRegistrationTimeoutError{ActorID: id}
	}
	if _, expired := a.(expiredActor); expired {
		return nil, &ActorExpiredError{ActorID: id}
	}
	return a, nil
}

// handleCallActor implements the wire "callActor" method: params is
// (id, method, ...args).
func (r *ActorRegistry) handleCallActor(ctx context.Context, params []any) (any, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("rpc: callActor expects (id, method, ...args)")
	}
	id, _ := params[0].(string)
	method, _ := params[1].(string)
	args := params[2:]

	actor, err := r.waitForActor(ctx, id, ActorRegistrationTimeout)
	if err != nil {
		return nil, err
	}

	mp, ok := actor.(MethodProvider)
	var methods map[string]ActorMethod
	if ok {
		methods = mp.ActorMethods()
	}
	fn, ok := methods[method]
	if !ok {
		available := make([]string, 0, len(methods))
		for name := range methods {
			available = append(available, name)
		}
		return nil, &ActorNoSuchMethodError{ActorID: id, Method: method, Available: available}
	}

	callCtx, cancel := context.WithTimeout(ctx, ActorCallTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{nil, fmt.Errorf("%v", rec)}
			}
		}()
		res, err := fn(callCtx, args)
		done <- outcome{res, err}
	}()

	select {
	case <-callCtx.Done():
		return nil, &ActorCallTimeoutError{ActorID: id, Method: method}
	case o := <-done:
		r.pair.metrics.recordActorCall(ctx, id, method)
		return o.result, o.err
	}
}

// handleGetActorProperty implements the wire "-getActorProperty-" method:
// params is (id, name).
func (r *ActorRegistry) handleGetActorProperty(ctx context.Context, params []any) (any, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("rpc: -getActorProperty- expects (id, name)")
	}
	id, _ := params[0].(string)
	name, _ := params[1].(string)

	actor, err := r.waitForActor(ctx, id, ActorRegistrationTimeout)
	if err != nil {
		return nil, err
	}
	pp, ok := actor.(PropertyProvider)
	if !ok {
		return nil, nil
	}
	return pp.ActorProperties()[name], nil
}

// ExposeActor is a Pair extension installed once a registry is attached.
func (p *Pair) ExposeActor(id string, actor any) error {
	r := p.attachedRegistry()
	if r == nil {
		return fmt.Errorf("rpc: no actor registry attached")
	}
	return r.ExposeActor(id, actor)
}

// GetLocalActor is a Pair extension installed once a registry is attached.
func (p *Pair) GetLocalActor(id string) (any, bool) {
	r := p.attachedRegistry()
	if r == nil {
		return nil, false
	}
	return r.GetLocalActor(id)
}

// ExpireActor is a Pair extension installed once a registry is attached.
func (p *Pair) ExpireActor(id string) {
	if r := p.attachedRegistry(); r != nil {
		r.ExpireActor(id)
	}
}

// GetActor returns a client-side handle bound to (p, id). It never
// contacts the peer; every operation on the returned handle is a Pair call
// or subscription.
func (p *Pair) GetActor(id string) *RemoteActor {
	return &RemoteActor{pair: p, id: id}
}

func (p *Pair) attachedRegistry() *ActorRegistry {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()
	return p.registry
}
