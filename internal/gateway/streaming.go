package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/smiling-critters/critter-gateway/internal/httputil"
)

// SSE event names of a chat turn. Token frames carry no event name.
const (
	eventSafety   = "safety"
	eventWellness = "wellness"
	eventPause    = "pause"
	eventReplace  = "replace"
	eventDone     = "done"
)

// sseWriter writes server-sent events. After the first write error every
// further write is a no-op returning that error.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	err     error
}

// startSSE sends the event-stream headers. It reports false, after writing
// a JSON error, when w cannot stream.
func startSSE(w http.ResponseWriter, reqID string) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(httputil.HeaderRequestID, reqID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, true
}

// Event writes a named event with a JSON payload.
func (s *sseWriter) Event(name string, v any) error {
	return s.write(name, v)
}

// Data writes an unnamed event with a JSON payload.
func (s *sseWriter) Data(v any) error {
	return s.write("", v)
}

func (s *sseWriter) write(name string, v any) error {
	if s.err != nil {
		return s.err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			s.err = err
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.err = err
		return err
	}
	s.flusher.Flush()
	return nil
}
