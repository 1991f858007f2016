// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"time"
)

// Handler is a registered method implementation. Returning an error rejects
// the caller; panicking inside a Handler is recovered and surfaces as a
// rejection carrying the panic value's message.
type Handler func(ctx context.Context, params []any) (any, error)

// registerOne is the shared routine behind Expose/ExposeMap, so both share
// one registration path instead of duplicating the map write.
func registerOne(table map[string]Handler, name string, fn Handler) {
	table[name] = fn
}

// CallOption configures a single Call invocation via a trailing variadic
// option slice, so a per-call timeout override never needs its own
// overload of Call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithCallTimeout overrides the Pair's default call timeout for one Call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// EmitOption configures a single Emit invocation.
type EmitOption func(*emitOptions)

type emitOptions struct {
	timeout time.Duration
}

// WithEmitTimeout overrides the Pair's default ack timeout for one Emit.
func WithEmitTimeout(d time.Duration) EmitOption {
	return func(o *emitOptions) { o.timeout = d }
}
