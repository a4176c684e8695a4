package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/pipeline"
)

// SSEWriter writes Server-Sent Events. It implements pipeline.Emitter.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	err     error
}

// NewSSEWriter sets the stream headers. CORS headers are left to the CORS
// middleware so the allow-list applies to streams too.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event. After the first write error every later
// call returns that error without writing.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}

// Emit writes a pipeline event. A write failure means the client is gone;
// the request context cancels the run, so the error is only logged.
func (s *SSEWriter) Emit(e pipeline.Event) {
	if err := s.WriteEvent(e.EventName(), e); err != nil {
		logx.Debug().Err(err).Str("event", e.EventName()).Msg("sse write failed")
	}
}

// Err returns the first write error, if any.
func (s *SSEWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
