// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc is a transport-agnostic, promise-oriented RPC library. Two
// peers form a symmetric Pair over any full-duplex message channel; each
// side can expose methods for the other to call, call the other's methods,
// emit acknowledged events, and host or address actors — identified,
// event-emitting objects reachable by a string id.
//
// # Quick start
//
// Construct a Pair on each side, attach them over a Transport, and expose
// or call methods:
//
//	sink := func(err error) { log.Println("rpc:", err) }
//	client, err := rpc.NewPair(rpc.PairOptions{Name: "client", ErrorSink: sink})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	server, err := rpc.NewPair(rpc.PairOptions{Name: "server", ErrorSink: sink})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a, b := rpc.NewPipe()
//	defer rpc.Attach(client, a)()
//	defer rpc.Attach(server, b)()
//
//	server.Expose("add", func(ctx context.Context, args []any) (any, error) {
//	    return args[0].(float64) + args[1].(float64), nil
//	})
//
//	result, err := client.Call(ctx, "add", []any{10.0, 5.0}) // result == 15.0
//
// # Transports
//
// pair.go/actor.go implement the protocol against the MessageConn contract
// (transport.go); bytes-on-a-wire live in the Transport implementations:
//
//	pipe.go:             in-memory, same-process pairs and tests
//	streamtransport.go:  newline-delimited JSON over any io.ReadWriteCloser
//	frametransport.go:   length-prefixed binary framing over net.Conn
//	grpctransport.go:    bidirectional grpc streaming (requires -tags grpc)
//	httptransport.go:    HTTP long-poll, for environments without a
//	                     persistent socket
//
// Dial/Listen (dial.go) wire up the default frametransport.go transport
// over TCP; the other transports are constructed directly and passed to
// Attach.
//
// # Actors
//
// actor.go layers a per-id actor registry on top of a Pair: ActorRegistry
// reserves the "callActor" and "-getActorProperty-" method names and
// proxies actor-published events to pair subscribers under the scoped name
// "remote:<id>:<event>". remoteactor.go is the thin client-side handle a
// caller uses to address an actor by id without knowing where it lives.
package rpc
