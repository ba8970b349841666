package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

const eventStreamType = "text/event-stream"

var errStreamFinished = errors.New("event stream already finished")

// sseWriter frames server-sent events. Writes are serialized because progress
// and the final result come from different goroutines. After finish no write
// reaches the ResponseWriter, since the handler may have returned.
type sseWriter struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	finished bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, flusher: f}, true
}

func (s *sseWriter) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.w.Header()
	h.Set("Content-Type", eventStreamType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

func (s *sseWriter) event(name string, payload any) error {
	return s.write(name, payload, false)
}

// finish writes the last event and closes the stream to later writers.
func (s *sseWriter) finish(name string, payload any) error {
	return s.write(name, payload, true)
}

func (s *sseWriter) write(name string, payload any, last bool) error {
	data, err := json.Marshal(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return fmt.Errorf("write %s event: %w", name, errStreamFinished)
	}
	if last {
		s.finished = true
	}
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write %s event: %w", name, err)
	}
	s.flusher.Flush()
	return nil
}

func wantsEventStream(r *http.Request) bool {
	for _, accept := range r.Header.Values("Accept") {
		for _, part := range strings.Split(accept, ",") {
			mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(strings.TrimSpace(mediaType), eventStreamType) {
				return true
			}
		}
	}
	return false
}
