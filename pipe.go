// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"errors"
	"sync"
)

// ErrPipeClosed is returned by PipeConn.Send/Recv after Close.
var ErrPipeClosed = errors.New("rpc: pipe closed")

// PipeConn is an in-memory MessageConn, used to connect two same-process
// Pairs (and in tests) without a byte-level transport.
type PipeConn struct {
	out    chan<- Message
	in     <-chan Message
	closed chan struct{}
	once   sync.Once
}

// NewPipe returns two PipeConns wired to each other: messages sent on one
// are received on the other.
func NewPipe() (a, b *PipeConn) {
	ab := make(chan Message, 16)
	ba := make(chan Message, 16)
	closedA := make(chan struct{})
	closedB := make(chan struct{})
	a = &PipeConn{out: ab, in: ba, closed: closedA}
	b = &PipeConn{out: ba, in: ab, closed: closedB}
	return a, b
}

func (c *PipeConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return ErrPipeClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	case <-c.closed:
		return ErrPipeClosed
	}
}

func (c *PipeConn) Recv() (Message, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return Message{}, ErrPipeClosed
		}
		return msg, nil
	case <-c.closed:
		return Message{}, ErrPipeClosed
	}
}

func (c *PipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
