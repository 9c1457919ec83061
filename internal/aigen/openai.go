package aigen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"knowledge_graph_backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a curriculum designer building a knowledge graph for a learning platform.
Return concepts (atomic units of knowledge), directed relationships between them referenced by concept name,
and, when a course is given, how deeply the course teaches each concept.
Prerequisite edges point from the concept that must be learned first to the concept that needs it.
Strength and weight are numbers between 0 and 1. Use estimated_hours = null when unsure.`

// OpenAIGenerator 通过 OpenAI 兼容接口 (OpenAI / Ollama) 直接生成
type OpenAIGenerator struct {
	client   *openai.Client
	model    string
	provider string
}

func NewOpenAIGenerator(cfg config.AIConfig) *OpenAIGenerator {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama 不校验 key
		apiKey = "ollama"
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		provider: provider,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	schema, err := json.Marshal(suggestionSchema(true))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai responded %d: %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrInvalidPayload)
	}

	data, err := ValidateData(json.RawMessage(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return &Result{
		Success: true,
		Data:    *data,
		Metadata: Metadata{
			Model:              model,
			Provider:           g.provider,
			GenerationTimeMS:   time.Since(start).Milliseconds(),
			ConceptsCount:      len(data.Concepts),
			RelationshipsCount: len(data.Relationships),
		},
	}, nil
}

func userPrompt(req Request) string {
	var b strings.Builder
	if req.CourseID != "" {
		fmt.Fprintf(&b, "Suggest the concepts taught by course %s, the relationships between them and course mappings.", req.CourseID)
	} else {
		fmt.Fprintf(&b, "Suggest concepts related to %q and the relationships between them. Leave course_mappings empty.", req.ConceptName)
	}
	if req.Context != "" {
		b.WriteString("\n\nAdditional context:\n")
		b.WriteString(req.Context)
	}
	return b.String()
}
