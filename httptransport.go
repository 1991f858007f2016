// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json2 "github.com/gorilla/rpc/v2/json2"
)

const (
	httpMaxRetries    = 3
	httpRetryBaseWait = 500 * time.Millisecond
	httpPollPath      = "/rpc/poll"
	httpNotifyPath    = "/rpc/notify"
	httpCallPath      = "/rpc/call"
)

// newHTTPClient creates a fresh http.Client with connection reuse disabled,
// avoiding the spurious EOFs connection pooling can produce across process
// hierarchies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// cleanlyCloseBody drains and closes body to avoid HTTP/2 GOAWAY errors from
// closing a body with unread data (see golang/go#46071).
func cleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

func isRetryableHTTPError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if errors.Is(err, io.EOF) || strings.Contains(s, "EOF") {
		return true
	}
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "broken pipe")
}

// postWithRetry posts body to url up to httpMaxRetries times, with
// exponential backoff between attempts (500ms, then 1s), and returns the
// response body bytes.
func postWithRetry(ctx context.Context, client *http.Client, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < httpMaxRetries; attempt++ {
		if attempt > 0 {
			wait := httpRetryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("rpc: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if isRetryableHTTPError(err) {
				continue
			}
			return nil, fmt.Errorf("rpc: http post: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			cleanlyCloseBody(resp.Body)
			return nil, fmt.Errorf("rpc: http post: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		cleanlyCloseBody(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc: read response: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("rpc: http post failed after %d attempts: %w", httpMaxRetries, lastErr)
}

// HTTPPollConn is a MessageConn over plain HTTP: outbound "call" frames
// ride gorilla's json2.EncodeClientRequest/DecodeClientResponse, since a
// call is precisely the request/response shape json2 models; outbound
// "notify"/"result" frames are POSTed as plain JSON to httpNotifyPath, and
// all server-initiated traffic arrives over a plain-JSON long-poll GET,
// since json2's envelope has no ack/event shape to reuse.
type HTTPPollConn struct {
	baseURL string
	client  *http.Client

	inbound chan Message
	closed  chan struct{}
	once    sync.Once
	cancel  context.CancelFunc
}

// NewHTTPPollConn starts a background long-poll loop against baseURL and
// returns a connected MessageConn.
func NewHTTPPollConn(ctx context.Context, baseURL string) *HTTPPollConn {
	pctx, cancel := context.WithCancel(ctx)
	c := &HTTPPollConn{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
		inbound: make(chan Message, 16),
		closed:  make(chan struct{}),
		cancel:  cancel,
	}
	go c.pollLoop(pctx)
	return c
}

func (c *HTTPPollConn) Send(msg Message) error {
	switch msg.Type {
	case TypeCall:
		return c.sendCall(msg)
	default:
		return c.sendEnvelope(httpNotifyPath, msg)
	}
}

func (c *HTTPPollConn) sendCall(msg Message) error {
	reqBody, err := json2.EncodeClientRequest(msg.Method, msg.Params)
	if err != nil {
		return fmt.Errorf("rpc: encode client request: %w", err)
	}
	data, err := postWithRetry(context.Background(), c.client, c.baseURL+httpCallPath, reqBody)
	if err != nil {
		return err
	}
	var reply any
	decodeErr := json2.DecodeClientResponse(bytes.NewReader(data), &reply)
	result := Message{ID: msg.ID, Type: TypeResult}
	if decodeErr != nil {
		result.Error = &wireError{Message: decodeErr.Error()}
	} else {
		result.HasResult = true
		result.Result = reply
	}
	select {
	case c.inbound <- result:
	case <-c.closed:
		return ErrPipeClosed
	}
	return nil
}

func (c *HTTPPollConn) sendEnvelope(path string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data, err := postWithRetry(context.Background(), c.client, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var ack Message
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil
	}
	select {
	case c.inbound <- ack:
	case <-c.closed:
		return ErrPipeClosed
	}
	return nil
}

func (c *HTTPPollConn) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+httpPollPath, nil)
		if err != nil {
			return
		}
		resp, err := c.client.Do(req)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(httpRetryBaseWait):
			}
			continue
		}
		var msg Message
		decodeErr := json.NewDecoder(resp.Body).Decode(&msg)
		cleanlyCloseBody(resp.Body)
		if decodeErr != nil {
			continue
		}
		select {
		case c.inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *HTTPPollConn) Recv() (Message, error) {
	select {
	case msg, ok := <-c.inbound:
		if !ok {
			return Message{}, io.EOF
		}
		return msg, nil
	case <-c.closed:
		return Message{}, io.EOF
	}
}

func (c *HTTPPollConn) Close() error {
	c.once.Do(func() {
		c.cancel()
		close(c.closed)
	})
	return nil
}

// HTTPPollServer is the server side of the long-poll transport: it installs
// itself as a Pair's send function and serves the three routes an
// HTTPPollConn client speaks.
type HTTPPollServer struct {
	pair *Pair

	mu          sync.Mutex
	pendingCall map[string]chan Message
	queue       chan Message
}

// NewHTTPPollServer attaches server-side HTTP handling to pair.
func NewHTTPPollServer(pair *Pair) *HTTPPollServer {
	s := &HTTPPollServer{pair: pair, pendingCall: make(map[string]chan Message), queue: make(chan Message, 64)}
	pair.SetSend(s.send)
	return s
}

func (s *HTTPPollServer) send(msg Message) error {
	if msg.Type == TypeResult {
		s.mu.Lock()
		ch, ok := s.pendingCall[msg.ID]
		if ok {
			delete(s.pendingCall, msg.ID)
		}
		s.mu.Unlock()
		if ok {
			ch <- msg
			return nil
		}
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		return fmt.Errorf("rpc: http poll server queue full")
	}
}

// ServeHTTP implements http.Handler across the three routes an
// HTTPPollConn client uses: POST httpCallPath (json2 call/response),
// POST httpNotifyPath (plain JSON notify/ack), GET httpPollPath
// (long-poll for server-initiated traffic).
func (s *HTTPPollServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, httpCallPath):
		s.serveCall(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, httpNotifyPath):
		s.serveEnvelope(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, httpPollPath):
		s.servePoll(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *HTTPPollServer) serveCall(w http.ResponseWriter, r *http.Request) {
	var wire struct {
		Method string `json:"method"`
		Params []any  `json:"params"`
		ID     any    `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := nextID(s.pair.name + ":http")
	ch := make(chan Message, 1)
	s.mu.Lock()
	s.pendingCall[id] = ch
	s.mu.Unlock()

	s.pair.Incoming(Message{ID: id, Type: TypeCall, Method: wire.Method, Params: wire.Params})

	select {
	case result := <-ch:
		w.Header().Set("Content-Type", "application/json")
		if result.Error != nil {
			json.NewEncoder(w).Encode(map[string]any{"id": wire.ID, "error": result.Error})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": wire.ID, "result": result.Result})
	case <-r.Context().Done():
		s.mu.Lock()
		delete(s.pendingCall, id)
		s.mu.Unlock()
	}
}

func (s *HTTPPollServer) serveEnvelope(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.Type == TypeNotify {
		ch := make(chan Message, 1)
		s.mu.Lock()
		s.pendingCall[msg.ID] = ch
		s.mu.Unlock()
		s.pair.Incoming(msg)
		select {
		case ack := <-ch:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ack)
		case <-r.Context().Done():
		}
		return
	}
	s.pair.Incoming(msg)
}

func (s *HTTPPollServer) servePoll(w http.ResponseWriter, r *http.Request) {
	select {
	case msg := <-s.queue:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msg)
	case <-r.Context().Done():
	case <-time.After(30 * time.Second):
		w.WriteHeader(http.StatusNoContent)
	}
}
