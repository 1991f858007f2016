// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "fmt"

// ErrMissingName is returned by NewPair when Name is empty.
var ErrMissingName = fmt.Errorf("rpc: MissingName")

// ErrMissingErrorHandler is returned by NewPair when ErrorSink is nil.
var ErrMissingErrorHandler = fmt.Errorf("rpc: MissingErrorHandler")

// ErrMissingSendFunction is returned (or used to reject a pending call) when
// an outbound message is attempted before SetSend has installed a sender.
var ErrMissingSendFunction = fmt.Errorf("rpc: MissingSendFunction")

// ErrDuplicateRegistry is returned by ActorRegistry.Attach when a Pair
// already has a registry attached.
var ErrDuplicateRegistry = fmt.Errorf("rpc: can't expose two registries on node")

// TimeoutError is returned when a call or emit-ack does not complete before
// its deadline. Actor registration waits and actor calls use
// ActorRegistrationTimeoutError and ActorCallTimeoutError instead.
type TimeoutError struct {
	Kind     string // "call" or "emit"
	ID       string
	Duration string
}

func (e *TimeoutError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("TimeoutWaitingForWriteAck<%s,%s,duration:%s>", e.ID, e.Kind, e.Duration)
	}
	return fmt.Sprintf("Timeout<%s,duration:%s>", e.Kind, e.Duration)
}

// NoSuchMethodError is the rejection a Pair sends back when the peer calls a
// method that has no registered handler. The caller's Call receives it
// reinflated as a *RemoteError whose message contains "NoSuchMethod".
type NoSuchMethodError struct {
	Method string
	Params []any
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("NoSuchMethod: %s", e.Method)
}

// ActorNoSuchMethodError is returned by a remote actor call when the target
// actor has no such method.
type ActorNoSuchMethodError struct {
	ActorID   string
	Method    string
	Available []string
}

func (e *ActorNoSuchMethodError) Error() string {
	return fmt.Sprintf("ActorNoSuchMethod: actor %q has no method %q (available: %v)", e.ActorID, e.Method, e.Available)
}

// ActorRegistrationTimeoutError is returned when callActor/getActorProperty
// wait longer than ActorRegistrationTimeout for an actor to be exposed.
type ActorRegistrationTimeoutError struct {
	ActorID string
}

func (e *ActorRegistrationTimeoutError) Error() string {
	return fmt.Sprintf("ActorRegistrationTimeout: %s", e.ActorID)
}

// ActorCallTimeoutError is returned when an actor method invocation does not
// settle within the per-call timeout.
type ActorCallTimeoutError struct {
	ActorID string
	Method  string
}

func (e *ActorCallTimeoutError) Error() string {
	return fmt.Sprintf("ActorCallTimeout: %s.%s", e.ActorID, e.Method)
}

// ActorExpiredError is returned for any operation addressing an id that has
// been passed to ActorRegistry.ExpireActor.
type ActorExpiredError struct {
	ActorID string
}

func (e *ActorExpiredError) Error() string {
	return fmt.Sprintf("ActorExpired: %s", e.ActorID)
}

// DuplicateActorIDError is returned by ExposeActor when an id is already
// bound (including a previously-expired id).
type DuplicateActorIDError struct {
	ActorID string
}

func (e *DuplicateActorIDError) Error() string {
	return fmt.Sprintf("duplicate actor id: %s", e.ActorID)
}

// ParseError is reported on a stream transport (not the Pair's error sink)
// when a line fails to decode as JSON.
type ParseError struct {
	Line     string
	Original error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("RpcStreamTransportJsonParseError: %v", e.Original)
}

func (e *ParseError) Unwrap() error { return e.Original }

// RemoteError is a reconstituted error received from the peer. Remote is
// always true; consumers use it to distinguish local from remote failures.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
	Fields  map[string]any
	Remote  bool
}

func (e *RemoteError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return e.Message
}

// rejectedWithNonErrorMessage is used when a peer's rejection value was not
// error-shaped.
const rejectedWithNonErrorMessage = "RejectedWithNonError"
