// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"testing"
	"time"
)

func TestPipeConnRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, b := NewPipe()

	go func() {
		msg, err := b.Recv()
		if err != nil {
			return
		}
		msg.Type = TypeResult
		msg.HasResult = true
		msg.Result = "pong"
		b.Send(msg)
	}()

	if err := a.Send(Message{ID: "1", Type: TypeCall, Method: "ping"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply, err := a.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if reply.Result != "pong" {
		t.Errorf("got %v, want pong", reply.Result)
	}
	_ = ctx
}

func TestPipeConnCloseUnblocksRecv(t *testing.T) {
	a, b := NewPipe()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		_, err := a.Recv()
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Close()

	select {
	case err := <-done:
		if err != ErrPipeClosed {
			t.Errorf("got %v, want ErrPipeClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv never unblocked after Close")
	}

	if err := a.Send(Message{ID: "x", Type: TypeNotify}); err != ErrPipeClosed {
		t.Errorf("Send after close: got %v, want ErrPipeClosed", err)
	}
}
