// Package openai adapts an OpenAI-compatible endpoint, by default a
// local Ollama daemon, to the embedding, completion, and tool-loop
// interfaces the services consume. Nothing here talks to any host the
// operator did not configure.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/burrowlabs/burrow/internal/domain"
)

const (
	// DefaultBaseURL is the OpenAI-compatible endpoint of a local Ollama daemon
	DefaultBaseURL = "http://127.0.0.1:11434/v1"
	// DefaultEmbeddingModel is the local model used for embeddings
	DefaultEmbeddingModel = "nomic-embed-text"
	// DefaultEmbeddingDimensions is the dimensionality of nomic-embed-text vectors
	DefaultEmbeddingDimensions = 768
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoModels is returned when no completion model is configured
	ErrNoModels = errors.New("at least one completion model must be configured")
)

// API is the OpenAI-compatible surface the client consumes. It is
// satisfied by *openai.Client.
type API interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds the connection and model settings for the client.
type Config struct {
	BaseURL             string
	APIKey              string
	Models              []string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Client wraps an OpenAI-compatible API with model fallback: the
// configured completion models are tried in order until one answers.
type Client struct {
	api        API
	models     []string
	embedModel string
	dimensions int
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Models) == 0 {
		return nil, ErrNoModels
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	} else {
		clientCfg.BaseURL = DefaultBaseURL
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}

	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		models:     cfg.Models,
		embedModel: embedModel,
		dimensions: dimensions,
	}, nil
}

// GenerateEmbedding embeds a single text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddings embeds a batch of texts, preserving input order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			fmt.Sprintf("failed to create embeddings: %v", err), domain.ErrEmbeddingService)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), domain.ErrEmbeddingService)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
				fmt.Sprintf("embedding index %d out of range", item.Index), domain.ErrEmbeddingService)
		}
		if len(item.Embedding) != c.dimensions {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
				fmt.Sprintf("expected %d dimensions, got %d", c.dimensions, len(item.Embedding)), domain.ErrWrongDimensions)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Complete renders one chat completion for an already-built prompt.
// Models are tried in order; a deadline stops the fallback chain since
// retrying a slower model cannot beat an expired budget.
func (c *Client) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	var lastErr error
	for _, model := range c.models {
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.1,
		})
		if err != nil {
			if ctx.Err() != nil {
				return domain.Completion{}, err
			}
			log.Printf("openai: completion failed model=%s err=%v", model, err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s returned no choices", model)
			continue
		}
		return domain.Completion{
			Text:    resp.Choices[0].Message.Content,
			Model:   model,
			Latency: time.Since(start),
		}, nil
	}
	return domain.Completion{}, fmt.Errorf("all completion models failed: %w", lastErr)
}

// NextAction asks the model for its next agent step: a final answer or
// one tool call. Unknown tool names and malformed arguments are passed
// through as-is so the agent loop can reject them explicitly.
func (c *Client) NextAction(ctx context.Context, conversation []domain.AgentMessage, tools []domain.ToolSpec) (domain.ModelAction, error) {
	messages := toChatMessages(conversation)
	chatTools := toChatTools(tools)

	var lastErr error
	for _, model := range c.models {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Tools:       chatTools,
			Temperature: 0.1,
		})
		if err != nil {
			if ctx.Err() != nil {
				return domain.ModelAction{}, err
			}
			log.Printf("openai: agent step failed model=%s err=%v", model, err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s returned no choices", model)
			continue
		}
		return parseAction(resp.Choices[0].Message, model), nil
	}
	return domain.ModelAction{}, fmt.Errorf("all completion models failed: %w", lastErr)
}

func parseAction(msg openai.ChatCompletionMessage, model string) domain.ModelAction {
	if len(msg.ToolCalls) == 0 {
		return domain.ModelAction{Final: msg.Content, Model: model}
	}

	// One call per step; anything past the first is dropped.
	tc := msg.ToolCalls[0]
	call := &domain.ToolCall{Name: domain.ToolName(tc.Function.Name)}
	switch call.Name {
	case domain.ToolCalculator:
		var args domain.CalculatorArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
			call.Calculator = &args
		}
	case domain.ToolDocAnalyzer:
		var args domain.AnalyzerArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
			call.Analyzer = &args
		}
	}
	return domain.ModelAction{ToolCall: call, CallID: tc.ID, Model: model}
}

func toChatMessages(conversation []domain.AgentMessage) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, m := range conversation {
		switch m.Role {
		case domain.AgentRoleSystem:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		case domain.AgentRoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case domain.AgentRoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			if m.ToolCall != nil {
				msg.ToolCalls = []openai.ToolCall{{
					ID:   m.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      string(m.ToolCall.Name),
						Arguments: marshalCallArguments(m.ToolCall),
					},
				}}
			}
			messages = append(messages, msg)
		case domain.AgentRoleTool:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				Name:       string(m.ToolName),
				ToolCallID: m.CallID,
			})
		}
	}
	return messages
}

func marshalCallArguments(call *domain.ToolCall) string {
	var args any
	switch {
	case call.Calculator != nil:
		args = call.Calculator
	case call.Analyzer != nil:
		args = call.Analyzer
	default:
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func toChatTools(tools []domain.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, spec := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(spec.Name),
				Description: spec.Description,
				Parameters:  toolParameters(spec.Name),
			},
		})
	}
	return out
}

func toolParameters(name domain.ToolName) *jsonschema.Definition {
	switch name {
	case domain.ToolCalculator:
		return &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"expression": {
					Type:        jsonschema.String,
					Description: "Arithmetic expression using numbers, + - * / ^, and parentheses.",
				},
			},
			Required: []string{"expression"},
		}
	case domain.ToolDocAnalyzer:
		return &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"question": {
					Type:        jsonschema.String,
					Description: "Question about the ingested document inventory.",
				},
			},
			Required: []string{"question"},
		}
	default:
		return &jsonschema.Definition{Type: jsonschema.Object}
	}
}
