// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestFrameConnRoundTrip(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	client := NewFrameConn(clientSide)
	server := NewFrameConn(serverSide)

	go func() {
		msg, err := server.Recv()
		if err != nil {
			return
		}
		msg.Type = TypeResult
		msg.HasResult = true
		msg.Result = "pong"
		server.Send(msg)
	}()

	if err := client.Send(Message{ID: "1", Type: TypeCall, Method: "ping", Params: []any{"hello"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if reply.Result != "pong" {
		t.Errorf("got %v, want pong", reply.Result)
	}
}

func TestFrameConnRoundTripsNullResult(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	client := NewFrameConn(clientSide)
	server := NewFrameConn(serverSide)

	go func() {
		msg, err := server.Recv()
		if err != nil {
			return
		}
		// A legitimate null result: HasResult true, Result nil. Over the
		// wire this must still carry a "result" key, or the receiver
		// reads it back as an absent result (handleIncomingResult's
		// invalid-result check would then misclassify it).
		server.Send(Message{ID: msg.ID, Type: TypeResult, HasResult: true, Result: nil})
	}()

	if err := client.Send(Message{ID: "1", Type: TypeCall, Method: "ping"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply, err := client.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !reply.HasResult {
		t.Errorf("got HasResult=false, want true for a round-tripped null result")
	}
	if reply.Result != nil {
		t.Errorf("got Result=%v, want nil", reply.Result)
	}
	if reply.Error != nil {
		t.Errorf("got Error=%v, want nil", reply.Error)
	}
}

func TestFrameConnCloseRejectsSend(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	client := NewFrameConn(clientSide)
	client.Close()

	if err := client.Send(Message{ID: "1", Type: TypeNotify}); err != ErrFrameClosed {
		t.Errorf("got %v, want ErrFrameClosed", err)
	}
}

func TestFullPairOverFrameConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client, _ := newConnectedPair(t, "frame-client", nil)
	server, _ := newConnectedPair(t, "frame-server", nil)

	server.Expose("add", func(ctx context.Context, params []any) (any, error) {
		return params[0].(float64) + params[1].(float64), nil
	})

	disClient := Attach(client, NewFrameConn(clientConn))
	disServer := Attach(server, NewFrameConn(serverConn))
	defer disClient()
	defer disServer()

	result, err := client.Call(ctx, "add", []any{float64(4), float64(6)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.(float64) != 10 {
		t.Errorf("got %v, want 10", result)
	}
}
