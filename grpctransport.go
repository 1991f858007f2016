//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

func init() {
	encoding.RegisterCodec(rpcJSONCodec{})
	registerTransportKind(TransportGRPC)
}

// rpcJSONCodec lets grpc carry a Message envelope without generated proto
// types, registered under a raw content subtype instead of proto.Message
// values.
type rpcJSONCodec struct{}

func (rpcJSONCodec) Name() string { return "rpcjson" }

func (rpcJSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (rpcJSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

const grpcServiceName = "pairwire.rpc.Pair"
const grpcStreamMethod = "Exchange"
const grpcFullMethod = "/" + grpcServiceName + "/" + grpcStreamMethod

// grpcStreamDesc describes the single bidirectional-streaming RPC this
// package tunnels Messages over.
var grpcStreamDesc = grpc.StreamDesc{
	StreamName:    grpcStreamMethod,
	ServerStreams: true,
	ClientStreams: true,
}

// GRPCConn is a MessageConn over a single grpc bidirectional stream.
type GRPCConn struct {
	stream grpc.ClientStream
	srv    grpc.ServerStream
	closer func() error
}

func (c *GRPCConn) Send(msg Message) error {
	if c.stream != nil {
		return c.stream.SendMsg(&msg)
	}
	return c.srv.SendMsg(&msg)
}

func (c *GRPCConn) Recv() (Message, error) {
	var msg Message
	var err error
	if c.stream != nil {
		err = c.stream.RecvMsg(&msg)
	} else {
		err = c.srv.RecvMsg(&msg)
	}
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *GRPCConn) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// DialGRPC connects to a GRPCServer listener and returns a Pair attached
// over the bidirectional stream.
func DialGRPC(ctx context.Context, addr string, opts PairOptions) (pair *Pair, disconnect func(), err error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcJSONCodec{}.Name())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: grpc dial: %w", err)
	}
	stream, err := cc.NewStream(ctx, &grpcStreamDesc, grpcFullMethod)
	if err != nil {
		cc.Close()
		return nil, nil, fmt.Errorf("rpc: grpc new stream: %w", err)
	}
	pair, err = NewPair(opts)
	if err != nil {
		cc.Close()
		return nil, nil, err
	}
	conn := &GRPCConn{stream: stream, closer: cc.Close}
	disconnect = Attach(pair, conn)
	return pair, disconnect, nil
}

// GRPCServer accepts incoming Exchange streams, constructing and attaching
// one Pair per stream.
type GRPCServer struct {
	server    *grpc.Server
	optsFor   func(ctx context.Context) PairOptions
	onConnect func(*Pair)
}

// NewGRPCServer constructs a GRPCServer. optsFor builds the PairOptions
// for each accepted stream (e.g. to name the pair after peer metadata).
// onConnect, if non-nil, runs once per accepted stream after the Pair is
// constructed but before it is attached to the stream — the place to
// Expose methods or attach an ActorRegistry.
func NewGRPCServer(optsFor func(ctx context.Context) PairOptions, onConnect func(*Pair)) *GRPCServer {
	s := &GRPCServer{optsFor: optsFor, onConnect: onConnect}
	s.server = grpc.NewServer()
	s.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: grpcServiceName,
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    grpcStreamMethod,
			Handler:       s.handle,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, nil)
	return s
}

func (s *GRPCServer) handle(_ any, stream grpc.ServerStream) error {
	pair, err := NewPair(s.optsFor(stream.Context()))
	if err != nil {
		return err
	}
	if s.onConnect != nil {
		s.onConnect(pair)
	}
	conn := &GRPCConn{srv: stream}
	disconnect := Attach(pair, conn)
	defer disconnect()

	// Block until the stream's context ends (the RPC finishes or the client
	// cancels); Attach's read loop drives pair.Incoming in the background.
	<-stream.Context().Done()
	return nil
}

// Serve runs the grpc server on lis until it is closed or Stop is called.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Stop gracefully stops the grpc server.
func (s *GRPCServer) Stop() { s.server.GracefulStop() }

var _ io.Closer = (*GRPCConn)(nil)
