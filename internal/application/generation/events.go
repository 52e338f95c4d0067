package generation

import (
	"bufio"
	"encoding/json"
	"fmt"
)

type TokenEvent struct {
	Token string `json:"token"`
}

type CompletedEvent struct {
	ID      string `json:"id"`
	Preview string `json:"preview"`
}

type ErrorEvent struct {
	Error string `json:"error"`
}

// Sink receives pipeline events in order. A Send error means the caller is
// gone and the generation should stop.
type Sink interface {
	Send(event interface{}) error
}

// SSEWriter writes each event as one "data: <json>" server-sent event and
// flushes immediately.
type SSEWriter struct {
	W *bufio.Writer
}

func (s *SSEWriter) Send(event interface{}) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.W, "data: %s\n\n", b); err != nil {
		return err
	}
	return s.W.Flush()
}
