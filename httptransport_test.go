// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPPollTransportRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, err := NewPair(PairOptions{Name: "http-server", ErrorSink: func(err error) { t.Logf("server: %v", err) }})
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	server.Expose("add", func(ctx context.Context, params []any) (any, error) {
		return params[0].(float64) + params[1].(float64), nil
	})
	pollServer := NewHTTPPollServer(server)

	httpServer := httptest.NewServer(pollServer)
	defer httpServer.Close()

	client, err := NewPair(PairOptions{Name: "http-client", ErrorSink: func(err error) { t.Logf("client: %v", err) }})
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	conn := NewHTTPPollConn(ctx, httpServer.URL)
	disconnect := Attach(client, conn)
	defer disconnect()

	result, err := client.Call(ctx, "add", []any{float64(1), float64(2)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.(float64) != 3 {
		t.Errorf("got %v, want 3", result)
	}
}
