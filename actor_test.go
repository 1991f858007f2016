// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// incrementer is a minimal stateful actor: a counter exposed via
// MethodProvider, PropertyProvider, and EventPublisher.
type incrementer struct {
	mu    sync.Mutex
	count int

	subMu sync.Mutex
	taps  []func(event string, args []any)
}

func newIncrementer() *incrementer { return &incrementer{} }

func (inc *incrementer) ActorMethods() map[string]ActorMethod {
	return map[string]ActorMethod{
		"increment": func(ctx context.Context, args []any) (any, error) {
			inc.mu.Lock()
			inc.count++
			n := inc.count
			inc.mu.Unlock()
			inc.Publish("changed", n)
			return float64(n), nil
		},
	}
}

func (inc *incrementer) ActorProperties() map[string]any {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return map[string]any{"name": "incrementer-1", "count": inc.count}
}

func (inc *incrementer) Subscribe(tap func(event string, args []any)) func() {
	inc.subMu.Lock()
	idx := len(inc.taps)
	inc.taps = append(inc.taps, tap)
	inc.subMu.Unlock()
	return func() {
		inc.subMu.Lock()
		inc.taps[idx] = nil
		inc.subMu.Unlock()
	}
}

func (inc *incrementer) Publish(event string, args ...any) {
	inc.subMu.Lock()
	taps := append([]func(event string, args []any){}, inc.taps...)
	inc.subMu.Unlock()
	for _, tap := range taps {
		if tap != nil {
			tap(event, args)
		}
	}
}

func newActorPairs(t *testing.T) (a, b *Pair, registryB *ActorRegistry, disconnect func()) {
	t.Helper()
	a, _ = newConnectedPair(t, "actor-a", nil)
	b, _ = newConnectedPair(t, "actor-b", nil)
	registryB = NewActorRegistry()
	if err := registryB.Attach(b); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	connA, connB := NewPipe()
	disA := Attach(a, connA)
	disB := Attach(b, connB)
	return a, b, registryB, func() { disA(); disB() }
}

func TestActorCallAndGet(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	inc := newIncrementer()
	if err := registryB.ExposeActor("incrementer-1", inc); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}

	remote := a.GetActor("incrementer-1")
	result, err := remote.Call(ctx, "increment")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.(float64) != 1 {
		t.Errorf("got %v, want 1", result)
	}

	name, err := remote.Get(ctx, "name")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if name != "incrementer-1" {
		t.Errorf("got %v, want incrementer-1", name)
	}
}

func TestActorNoSuchMethod(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	if err := registryB.ExposeActor("incrementer-1", newIncrementer()); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}

	remote := a.GetActor("incrementer-1")
	_, err := remote.Call(ctx, "blah")
	if err == nil {
		t.Fatal("expected ActorNoSuchMethodError")
	}
	// Reinflated from the wire as a *RemoteError, same as any other
	// peer-side rejection (see TestCallNoSuchMethod).
	if !strings.Contains(err.Error(), "ActorNoSuchMethod") {
		t.Errorf("error %q does not match /ActorNoSuchMethod/", err.Error())
	}
}

func TestActorLateBinding(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	remote := a.GetActor("incrementer-1")

	callDone := make(chan struct {
		result any
		err    error
	}, 1)
	go func() {
		result, err := remote.Call(ctx, "increment")
		callDone <- struct {
			result any
			err    error
		}{result, err}
	}()

	// Expose the actor well within ActorRegistrationTimeout; the in-flight call
	// must resolve against it rather than timing out.
	time.Sleep(20 * time.Millisecond)
	if err := registryB.ExposeActor("incrementer-1", newIncrementer()); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}

	select {
	case outcome := <-callDone:
		if outcome.err != nil {
			t.Fatalf("Call: %v", outcome.err)
		}
		if outcome.result.(float64) != 1 {
			t.Errorf("got %v, want 1", outcome.result)
		}
	case <-ctx.Done():
		t.Fatal("call never resolved against the late-bound actor")
	}
}

func TestActorRegistrationTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, _, disconnect := newActorPairs(t)
	defer disconnect()

	remote := a.GetActor("never-exposed")
	_, err := remote.Call(ctx, "increment")
	if err == nil {
		t.Fatal("expected registration timeout")
	}
	if !strings.Contains(err.Error(), "Timeout") {
		t.Errorf("error %q does not match /Timeout/", err.Error())
	}
}

func TestActorExpiry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	if err := registryB.ExposeActor("incrementer-1", newIncrementer()); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}
	registryB.ExpireActor("incrementer-1")

	remote := a.GetActor("incrementer-1")
	_, err := remote.Call(ctx, "increment")
	if err == nil {
		t.Fatal("expected expired error")
	}
	if !strings.Contains(err.Error(), "Expired") {
		t.Errorf("error %q does not match /Expired/", err.Error())
	}
}

func TestDuplicateActorID(t *testing.T) {
	_, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	if err := registryB.ExposeActor("incrementer-1", newIncrementer()); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}
	err := registryB.ExposeActor("incrementer-1", newIncrementer())
	if err == nil {
		t.Fatal("expected DuplicateActorIDError")
	}
	if _, ok := err.(*DuplicateActorIDError); !ok {
		t.Errorf("got %T, want *DuplicateActorIDError", err)
	}

	// Re-registering an expired id is still a duplicate.
	registryB.ExpireActor("incrementer-1")
	err = registryB.ExposeActor("incrementer-1", newIncrementer())
	if _, ok := err.(*DuplicateActorIDError); !ok {
		t.Errorf("got %T, want *DuplicateActorIDError for re-registering expired id", err)
	}
}

func TestActorEventScoping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, _, registryB, disconnect := newActorPairs(t)
	defer disconnect()

	inc := newIncrementer()
	if err := registryB.ExposeActor("incrementer-1", inc); err != nil {
		t.Fatalf("ExposeActor: %v", err)
	}

	scoped := make(chan []any, 1)
	a.GetActor("incrementer-1").On("changed", func(data []any) { scoped <- data })

	plain := make(chan []any, 1)
	a.On("changed", func(data []any) { plain <- data })

	if _, err := a.GetActor("incrementer-1").Call(ctx, "increment"); err != nil {
		t.Fatalf("Call: %v", err)
	}

	select {
	case <-scoped:
	case <-ctx.Done():
		t.Fatal("scoped listener never fired")
	}
	select {
	case <-plain:
		t.Fatal("plain \"changed\" listener fired for a remote actor event; scoping leaked")
	case <-time.After(50 * time.Millisecond):
	}
}
