// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "sync"

// MessageConn is the transport contract: a full-duplex channel that
// moves already-framed Messages. A Transport implementation
// wraps bytes-on-a-wire (a TCP stream, an IPC channel, a WebSocket) behind
// this interface; the protocol in pair.go never touches bytes directly.
type MessageConn interface {
	// Send writes one message. Implementations must serialize concurrent
	// callers internally if their underlying channel requires it.
	Send(Message) error

	// Recv blocks for the next inbound message. It returns an error (often
	// io.EOF) when the channel is exhausted or closed.
	Recv() (Message, error)

	// Close releases the underlying channel. Recv must return promptly
	// with an error after Close.
	Close() error
}

// Attach wires conn into pair: it installs conn.Send as the pair's send
// function and runs a read loop delivering every conn.Recv() message to
// pair.Incoming, until Recv returns an error. It returns a disconnect
// function that stops the read loop, replaces the pair's send function
// with a no-op, and closes conn.
func Attach(pair *Pair, conn MessageConn) (disconnect func()) {
	pair.SetSend(conn.Send)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := conn.Recv()
			if err != nil {
				return
			}
			pair.Incoming(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			pair.SetSend(func(Message) error { return nil })
			conn.Close()
			<-done
		})
	}
}

// transportKind names a wire implementation registered with
// registerTransportKind — a small extensibility registry recording which
// MessageConn constructors this build bundles.
type transportKind string

const (
	TransportPipe   transportKind = "pipe"
	TransportStream transportKind = "stream"
	TransportFrame  transportKind = "frame"
	TransportGRPC   transportKind = "grpc" // requires -tags grpc
	TransportHTTP   transportKind = "http"
)

var (
	transportKindsMu sync.RWMutex
	transportKinds   = map[transportKind]bool{
		TransportPipe:   true,
		TransportStream: true,
		TransportFrame:  true,
		TransportHTTP:   true,
	}
)

// registerTransportKind records that kind is available in this build (used
// by grpctransport.go's build-tag-gated init).
func registerTransportKind(kind transportKind) {
	transportKindsMu.Lock()
	defer transportKindsMu.Unlock()
	transportKinds[kind] = true
}

// HasTransportKind reports whether kind is available in this build (the
// grpc kind is only present when built with -tags grpc).
func HasTransportKind(kind string) bool {
	transportKindsMu.RLock()
	defer transportKindsMu.RUnlock()
	return transportKinds[transportKind(kind)]
}

// AvailableTransportKinds lists the wire implementations bundled in this
// build.
func AvailableTransportKinds() []string {
	transportKindsMu.RLock()
	defer transportKindsMu.RUnlock()
	out := make([]string, 0, len(transportKinds))
	for k := range transportKinds {
		out = append(out, string(k))
	}
	return out
}
