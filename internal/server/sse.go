package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// eventWriter writes server-sent events. Headers are sent with the first
// event so a turn that fails before streaming can still answer with a status code.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventWriter(w http.ResponseWriter) *eventWriter {
	f, _ := w.(http.Flusher)
	return &eventWriter{w: w, flusher: f}
}

func (e *eventWriter) start() {
	if e.started {
		return
	}
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.started = true
}

func (e *eventWriter) send(event string, v interface{}) {
	e.start()
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data)
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
