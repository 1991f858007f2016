// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "sync"

// ListenerID identifies a subscription returned by emitter.on/once, so it
// can later be removed with emitter.off without requiring listener
// functions to be comparable.
type ListenerID uint64

// ListenerFunc receives the data array carried by a notify/event frame.
type ListenerFunc func(data []any)

type listenerEntry struct {
	fn   ListenerFunc
	once bool
}

// emitter is the local pub-sub primitive behind Pair.On/Once/Off (remote
// notify delivery) and the actor registry's deregister:<id>/actorEvents
// channels.
type emitter struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[string]map[ListenerID]listenerEntry
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[string]map[ListenerID]listenerEntry)}
}

func (e *emitter) on(event string, fn ListenerFunc) ListenerID {
	return e.add(event, fn, false)
}

func (e *emitter) once(event string, fn ListenerFunc) ListenerID {
	return e.add(event, fn, true)
}

func (e *emitter) add(event string, fn ListenerFunc, once bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := ListenerID(e.seq)
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[ListenerID]listenerEntry)
	}
	e.listeners[event][id] = listenerEntry{fn: fn, once: once}
	return id
}

func (e *emitter) off(event string, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[event], id)
}

// emit invokes every listener currently subscribed to event, synchronously,
// in the goroutine of the caller. Listeners are snapshotted before
// invocation so a listener that subscribes/unsubscribes during emit cannot
// corrupt iteration.
func (e *emitter) emit(event string, data []any) {
	e.mu.Lock()
	byID := e.listeners[event]
	snapshot := make([]struct {
		id ListenerID
		en listenerEntry
	}, 0, len(byID))
	for id, en := range byID {
		snapshot = append(snapshot, struct {
			id ListenerID
			en listenerEntry
		}{id, en})
	}
	e.mu.Unlock()

	for _, item := range snapshot {
		item.en.fn(data)
		if item.en.once {
			e.off(event, item.id)
		}
	}
}
