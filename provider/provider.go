// Package provider abstracts text-generation backends behind a single
// capability interface so a backend can be swapped without touching
// the scan pipeline. The scanner itself has no dependency on it; only
// optional report summarization goes through here.
package provider

import (
	"context"
	"fmt"
)

// Request carries a prompt plus optional attached context.
type Request struct {
	Prompt      string
	Attachments []string
}

type Response struct {
	Text string
}

// ProviderError wraps a backend failure with the provider's name so
// callers can present a useful message without unwrapping SDK errors.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Generator is the single capability the rest of the system consumes.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
