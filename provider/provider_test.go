package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	lastReq Request
	resp    Response
	err     error
}

func (s *stubGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	s.lastReq = req
	return s.resp, s.err
}

func TestGeneratorContract(t *testing.T) {
	stub := &stubGenerator{resp: Response{Text: "summary"}}
	var gen Generator = stub

	resp, err := gen.Generate(context.Background(), Request{Prompt: "p", Attachments: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "summary", resp.Text)
	assert.Equal(t, "p", stub.lastReq.Prompt)
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ProviderError{Provider: "ollama", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ollama")
	assert.Contains(t, err.Error(), "connection refused")
}
