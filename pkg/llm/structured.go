package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"frameworks/pkg/clients"
	"frameworks/pkg/logging"
)

var (
	// ErrUnavailable means no answer could be obtained: the provider is not
	// configured, the call failed, or the breaker is open.
	ErrUnavailable = errors.New("llm: model unavailable")
	// ErrInvalidResponse means the model answered but not with a JSON object.
	ErrInvalidResponse = errors.New("llm: invalid structured response")
)

// Schema names a versioned JSON schema the model must answer with.
type Schema struct {
	Name    string
	Version string
	JSON    map[string]interface{}
}

// ID is the identifier used for the forced tool and for metrics labels.
func (s Schema) ID() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "_" + s.Version
}

type StructuredRequest struct {
	SystemInstruction string
	Prompt            string
	Schema            Schema
	Temperature       *float64
}

// StructuredCompleter returns a raw JSON object conforming to the request schema.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)
}

// ProviderCompleter implements StructuredCompleter over a streaming Provider by
// forcing a single tool whose parameters are the schema.
type ProviderCompleter struct {
	provider Provider
	breaker  *clients.CircuitBreaker
	logger   logging.Logger
}

func NewStructuredCompleter(provider Provider, logger logging.Logger) *ProviderCompleter {
	return &ProviderCompleter{
		provider: provider,
		logger:   logger,
		breaker: clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			Name:         "llm-structured",
			MinRequests:  5,
			FailureRatio: 0.6,
			Logger:       logger,
		}),
	}
}

type collected struct {
	content   string
	arguments map[string]string
}

func (c *ProviderCompleter) CompleteStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if c == nil || c.provider == nil {
		return nil, ErrUnavailable
	}
	toolName := req.Schema.ID()
	messages := make([]Message, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	params := req.Schema.JSON
	if params == nil {
		params = map[string]interface{}{"type": "object"}
	}
	tools := []Tool{{
		Name:        toolName,
		Description: "Return the answer as structured data.",
		Parameters:  params,
	}}
	opts := []CallOption{WithToolChoice(toolName)}
	if req.Temperature != nil {
		opts = append(opts, WithTemperature(*req.Temperature))
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.collect(ctx, messages, tools, opts)
	})
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("schema", toolName).Warn("Structured completion failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	out := res.(collected)

	if args := strings.TrimSpace(out.arguments[toolName]); args != "" {
		return asObject(args)
	}
	for _, args := range out.arguments {
		if strings.TrimSpace(args) != "" {
			return asObject(args)
		}
	}
	return asObject(extractJSONObject(out.content))
}

func (c *ProviderCompleter) collect(ctx context.Context, messages []Message, tools []Tool, opts []CallOption) (collected, error) {
	stream, err := c.provider.Complete(ctx, messages, tools, opts...)
	if err != nil {
		return collected{}, err
	}
	defer stream.Close()

	var content strings.Builder
	args := make(map[string]string)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return collected{}, recvErr
		}
		content.WriteString(chunk.Content)
		for _, call := range chunk.ToolCalls {
			// Arguments are cumulative; the latest value wins.
			args[call.Name] = call.Arguments
		}
	}
	return collected{content: content.String(), arguments: args}, nil
}

func asObject(raw string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(trimmed), nil
}

// extractJSONObject pulls the outermost {...} out of free text, tolerating
// markdown code fences around it.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// DecodeStructured decodes a structured answer into T. Anything other than a
// JSON object is rejected with ErrInvalidResponse.
func DecodeStructured[T any](raw json.RawMessage) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out, ErrInvalidResponse
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return out, nil
}
