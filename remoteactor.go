// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "context"

// RemoteActor is a client-side view bound to (pair, id). It holds no state
// of its own: every operation reduces to a Pair call or a subscription to
// a scoped event name on the pair's local emitter.
type RemoteActor struct {
	pair *Pair
	id   string
}

// ID returns the bound actor id.
func (r *RemoteActor) ID() string { return r.id }

// Call invokes method on the remote actor via the "callActor" wire method.
func (r *RemoteActor) Call(ctx context.Context, method string, args ...any) (any, error) {
	params := make([]any, 0, len(args)+2)
	params = append(params, r.id, method)
	params = append(params, args...)
	return r.pair.Call(ctx, "callActor", params)
}

// Get fetches a single property from the remote actor via the
// "-getActorProperty-" wire method.
func (r *RemoteActor) Get(ctx context.Context, name string) (any, error) {
	return r.pair.Call(ctx, "-getActorProperty-", []any{r.id, name})
}

// On subscribes to an actor event using the scoped wire name
// "remote:<id>:<event>".
func (r *RemoteActor) On(event string, fn ListenerFunc) ListenerID {
	return r.pair.On(r.scoped(event), fn)
}

// Once subscribes to fire at most once.
func (r *RemoteActor) Once(event string, fn ListenerFunc) ListenerID {
	return r.pair.Once(r.scoped(event), fn)
}

// Off unsubscribes a listener previously registered with On/Once.
func (r *RemoteActor) Off(event string, id ListenerID) {
	r.pair.Off(r.scoped(event), id)
}

// RemoveListener is an alias for Off.
func (r *RemoteActor) RemoveListener(event string, id ListenerID) {
	r.Off(event, id)
}

func (r *RemoteActor) scoped(event string) string {
	return "remote:" + r.id + ":" + event
}
