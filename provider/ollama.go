package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// OllamaConfig configures the local-model backend.
type OllamaConfig struct {
	Model     string
	ServerURL string
	System    string
}

type ollamaGenerator struct {
	cfg OllamaConfig
	llm llms.Model
}

// NewOllama builds a Generator backed by a local Ollama server.
func NewOllama(cfg OllamaConfig) (Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "mistral"
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:11434"
	}
	if cfg.System == "" {
		cfg.System = "You are a security analyst. Summarize document scan findings for a non-technical reader. Be concise and factual; never downplay High-severity findings."
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.ServerURL))
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: err}
	}
	return &ollamaGenerator{cfg: cfg, llm: llm}, nil
}

func (g *ollamaGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, g.cfg.System),
		llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
	}
	for _, att := range req.Attachments {
		content = append(content, llms.TextParts(schema.ChatMessageTypeHuman, att))
	}

	resp, err := g.llm.GenerateContent(ctx, content)
	if err != nil {
		return Response{}, &ProviderError{Provider: "ollama", Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, &ProviderError{Provider: "ollama", Err: errors.New("empty response")}
	}
	var b strings.Builder
	for _, choice := range resp.Choices {
		b.WriteString(choice.Content)
	}
	return Response{Text: b.String()}, nil
}
