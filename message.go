// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import "encoding/json"

// MessageType discriminates the three frame shapes exchanged between a
// pair's peers.
type MessageType string

const (
	TypeCall   MessageType = "call"
	TypeNotify MessageType = "notify"
	TypeResult MessageType = "result"
)

// Message is the canonical wire shape for every frame a Transport carries.
// Exactly one of Result/Error is populated on a "result" message; a nil
// Result with HasResult true is a legitimate ("null") result.
type Message struct {
	ID     string      `json:"id"`
	Type   MessageType `json:"type"`
	Method string      `json:"method,omitempty"`
	Params []any       `json:"params,omitempty"`
	Event  string      `json:"event,omitempty"`
	Data   []any       `json:"data,omitempty"`

	Result    any        `json:"result,omitempty"`
	HasResult bool       `json:"-"`
	Error     *wireError `json:"error,omitempty"`
}

// wireError is the on-the-wire shape of a NormalizedError: name, message,
// stack, plus any additional enumerable fields flattened to the top level.
type wireError struct {
	Name    string
	Message string
	Stack   string
	Fields  map[string]any
}

func (w *wireError) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(w.Fields)+3)
	for k, v := range w.Fields {
		m[k] = v
	}
	if w.Name != "" {
		m["name"] = w.Name
	}
	if w.Message != "" {
		m["message"] = w.Message
	}
	if w.Stack != "" {
		m["stack"] = w.Stack
	}
	return json.Marshal(m)
}

func (w *wireError) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		// Not a JSON object: a bare number/string/bool/null rejection
		// value, i.e. the "falsy or not error-shaped" case. Normalize it
		// rather than propagating the decode error up through Message's
		// own UnmarshalJSON and tearing down the connection over it.
		w.Message = rejectedWithNonErrorMessage
		return nil
	}
	w.Fields = make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				w.Name = s
				continue
			}
		case "message":
			if s, ok := v.(string); ok {
				w.Message = s
				continue
			}
		case "stack":
			if s, ok := v.(string); ok {
				w.Stack = s
				continue
			}
		}
		w.Fields[k] = v
	}
	if w.Name == "" && w.Message == "" {
		w.Message = rejectedWithNonErrorMessage
	}
	return nil
}

// normalizeError renders err as the wire error shape, copying
// Name/Message/Stack and any *RemoteError.Fields onto the frame.
func normalizeError(err error) *wireError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RemoteError); ok {
		return &wireError{Name: re.Name, Message: re.Message, Stack: re.Stack, Fields: re.Fields}
	}
	return &wireError{Name: errorName(err), Message: err.Error()}
}

// errorName returns a stable name for the wire "name" field for the error
// kinds this package defines; it falls back to "Error" for anything else.
func errorName(err error) string {
	switch err.(type) {
	case *TimeoutError:
		return "TimeoutError"
	case *NoSuchMethodError:
		return "NoSuchMethodError"
	case *ActorNoSuchMethodError:
		return "ActorNoSuchMethodError"
	case *ActorRegistrationTimeoutError:
		return "ActorRegistrationTimeoutError"
	case *ActorCallTimeoutError:
		return "ActorCallTimeoutError"
	case *ActorExpiredError:
		return "ActorExpiredError"
	case *DuplicateActorIDError:
		return "Error"
	default:
		return "Error"
	}
}

// reinflateError turns a received wireError back into a native error
// tagged remote=true.
func reinflateError(w *wireError) error {
	if w == nil {
		return nil
	}
	return &RemoteError{Name: w.Name, Message: w.Message, Stack: w.Stack, Fields: w.Fields, Remote: true}
}

// MarshalJSON implements a custom encoding so that a "null" Result is
// distinguished from an absent one via HasResult, and Error is omitted
// unless present. The result key is emitted whenever HasResult is set,
// even when Result is nil — an omitempty tag on an `any` field would drop
// a legitimate null result exactly the way "no result" does.
func (m Message) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":   m.ID,
		"type": m.Type,
	}
	if m.Method != "" {
		out["method"] = m.Method
	}
	if len(m.Params) > 0 {
		out["params"] = m.Params
	}
	if m.Event != "" {
		out["event"] = m.Event
	}
	if len(m.Data) > 0 {
		out["data"] = m.Data
	}
	if m.HasResult {
		out["result"] = m.Result
	}
	if m.Error != nil {
		out["error"] = m.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON tracks whether a "result" key was present at all, so a
// legitimate nil/null result is distinguishable from "no result field".
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID     string          `json:"id"`
		Type   MessageType     `json:"type"`
		Method string          `json:"method,omitempty"`
		Params []any           `json:"params,omitempty"`
		Event  string          `json:"event,omitempty"`
		Data   []any           `json:"data,omitempty"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  *wireError      `json:"error,omitempty"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.ID, m.Type, m.Method, m.Params, m.Event, m.Data, m.Error = a.ID, a.Type, a.Method, a.Params, a.Event, a.Data, a.Error
	if len(a.Result) > 0 {
		m.HasResult = true
		if err := json.Unmarshal(a.Result, &m.Result); err != nil {
			return err
		}
	}
	return nil
}
