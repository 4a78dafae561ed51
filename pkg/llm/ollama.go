package llm

import (
	"context"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434/v1"

type OllamaProvider struct {
	openai *OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfgCopy := cfg
	if strings.TrimSpace(cfgCopy.APIURL) == "" {
		cfgCopy.APIURL = defaultOllamaURL
	}
	return &OllamaProvider{
		openai: NewOpenAIProvider(cfgCopy),
	}
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, tools []Tool, opts ...CallOption) (Stream, error) {
	return p.openai.Complete(ctx, messages, tools, opts...)
}
