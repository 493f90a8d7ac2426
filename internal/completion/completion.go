// Package completion defines the text-completion interface used to ask a
// language model for the next moves.
package completion

import "context"

// Request is a single completion request.
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer continues a prompt. Implementations return the text of the
// first choice only.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to a Completer.
type Func func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
