// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessageMarshalKeepsNullResultKey(t *testing.T) {
	data, err := json.Marshal(Message{ID: "1", Type: TypeResult, HasResult: true, Result: nil})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"result":null`) {
		t.Errorf("got %s, want a \"result\":null key for a legitimate null result", data)
	}
}

func TestMessageMarshalOmitsAbsentResult(t *testing.T) {
	data, err := json.Marshal(Message{ID: "1", Type: TypeCall, Method: "ping"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), `"result"`) {
		t.Errorf("got %s, want no result key when HasResult is false", data)
	}
}

func TestWireErrorUnmarshalNonObjectPayload(t *testing.T) {
	for _, raw := range []string{`"boom"`, `42`, `false`, `null`} {
		var w wireError
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			t.Fatalf("Unmarshal(%s): unexpected error %v", raw, err)
		}
		if w.Message != rejectedWithNonErrorMessage {
			t.Errorf("Unmarshal(%s): got Message %q, want %q", raw, w.Message, rejectedWithNonErrorMessage)
		}
	}
}

func TestWireErrorUnmarshalObjectPayload(t *testing.T) {
	var w wireError
	if err := json.Unmarshal([]byte(`{"name":"Boom","message":"bad"}`), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if w.Name != "Boom" || w.Message != "bad" {
		t.Errorf("got %+v, want Name=Boom Message=bad", w)
	}
}
