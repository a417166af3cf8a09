package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// SSE serves the MCP HTTP+SSE transport.
//
// A client opens an event stream with GET on the stream endpoint and
// receives an "endpoint" event with the URL to post its requests to. Each
// POSTed request is acknowledged with 202 Accepted and its response is
// delivered as a "message" event on the stream.
type SSE struct {
	server       *Server
	messagesPath string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctx    context.Context
	events chan []byte
}

// NewSSE returns an SSE transport whose clients post to messagesPath.
func (s *Server) NewSSE(messagesPath string) *SSE {
	return &SSE{
		server:       s,
		messagesPath: messagesPath,
		sessions:     make(map[string]*session),
	}
}

// Sessions returns the number of open event streams.
func (t *SSE) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Stream handles GET requests opening an event stream. It blocks until the
// client goes away.
func (t *SSE) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	sess := &session{
		ctx:    r.Context(),
		events: make(chan []byte, 16),
	}

	t.mu.Lock()
	t.sessions[id] = sess
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.sessions, id)
		t.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: %s?session_id=%s\n\n", t.messagesPath, id)
	flusher.Flush()

	t.server.logger.Debug("sse session opened", "session", id)

	for {
		select {
		case <-r.Context().Done():
			t.server.logger.Debug("sse session closed", "session", id)
			return
		case msg := <-sess.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Messages handles POSTed JSON-RPC requests for a session.
func (t *SSE) Messages(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")

	t.mu.Lock()
	sess, ok := t.sessions[id]
	t.mu.Unlock()

	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		http.Error(w, "unable to read request body", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	// Searches outlive this POST; they run until done or the stream closes.
	go func() {
		resp := t.server.Handle(sess.ctx, body)
		if resp == nil {
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			t.server.logger.Error("unable to encode response", "err", err)
			return
		}

		select {
		case sess.events <- data:
		case <-sess.ctx.Done():
		}
	}()
}
