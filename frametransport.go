// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// maxFrameSize bounds a single inbound frame body at 64MB, guarding against
// a corrupt or hostile length prefix.
const maxFrameSize = 64 * 1024 * 1024

var (
	// ErrFrameClosed is returned by FrameConn.Send/Recv after Close.
	ErrFrameClosed = errors.New("rpc: frame connection closed")
	// ErrFrameInvalid is returned when a frame's length prefix is zero or
	// exceeds maxFrameSize.
	ErrFrameInvalid = errors.New("rpc: invalid frame length")
)

// FrameConn is a length-prefixed binary MessageConn: each frame is a
// 4-byte big-endian length followed by a JSON-encoded Message, with a
// single-writer lock serializing concurrent Send calls over one net.Conn.
type FrameConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewFrameConn wraps an established net.Conn.
func NewFrameConn(conn net.Conn) *FrameConn {
	return &FrameConn{conn: conn}
}

func (c *FrameConn) Send(msg Message) error {
	if c.closed.Load() {
		return ErrFrameClosed
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(body)))
	copy(buf[4:], body)

	c.writeMu.Lock()
	_, err = c.conn.Write(buf)
	c.writeMu.Unlock()
	return err
}

func (c *FrameConn) Recv() (Message, error) {
	if c.closed.Load() {
		return Message{}, ErrFrameClosed
	}
	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		if c.closed.Load() {
			return Message{}, ErrFrameClosed
		}
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(header)
	if n == 0 || n > maxFrameSize {
		return Message{}, ErrFrameInvalid
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *FrameConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}
