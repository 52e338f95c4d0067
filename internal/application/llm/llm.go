// Package llm streams completions from a language model as a channel of tokens.
package llm

import "context"

// Chunk is one streamed token, or the error that ended the stream.
// A stream that closes without an error chunk completed normally.
type Chunk struct {
	Token string
	Err   error
}

// Model starts a streamed generation for prompt. The returned channel is
// closed when generation ends; cancelling ctx aborts the request.
type Model interface {
	Stream(ctx context.Context, prompt string) (<-chan Chunk, error)
	Name() string
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, out chan<- Chunk, c Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
