// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to a Listen-ed address and returns a Pair wired to it over
// the length-prefixed FrameConn transport, the default wire format. Use
// DialGRPC or construct a StreamConn/HTTPPollConn directly for the other
// bundled transports.
func Dial(ctx context.Context, addr string, opts PairOptions) (pair *Pair, disconnect func(), err error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: dial: %w", err)
	}
	pair, err = NewPair(opts)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	disconnect = Attach(pair, NewFrameConn(conn))
	return pair, disconnect, nil
}

// Listener accepts incoming FrameConn connections, handing each one back
// as a freshly attached Pair.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener for incoming Pairs.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen: %w", err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept blocks for the next incoming connection, constructs a Pair from
// optsFor (given the remote address, so callers can name the pair after
// its peer), attaches it over FrameConn, and returns both the Pair and its
// disconnect function.
func (l *Listener) Accept(optsFor func(remoteAddr string) PairOptions) (pair *Pair, disconnect func(), err error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, nil, err
	}
	pair, err = NewPair(optsFor(conn.RemoteAddr().String()))
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	disconnect = Attach(pair, NewFrameConn(conn))
	return pair, disconnect, nil
}
