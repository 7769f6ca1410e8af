package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/infra/ai/prompt"
)

const maxTokens = 2048

const defaultModel = "gpt-4o-mini"

// Client extracts property details with an OpenAI-compatible chat API.
// The API returns no grounding metadata, so results always carry the fallback source.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model, baseURL string, httpClient *http.Client) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

func (c *Client) Analyze(ctx context.Context, url string) (property.Details, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "property_details",
				Schema: Schema(),
				Strict: true,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.Instruction(url)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return property.Details{}, classify(fmt.Errorf("failed to create chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return property.Details{}, property.NewExtractionError(property.KindGeneric, errors.New("no choices in completion"))
	}
	return property.Build([]byte(resp.Choices[0].Message.Content), url, nil)
}

// Schema renders prompt.Fields as a strict JSON schema.
func Schema() *jsonschema.Definition {
	d := objectDef(prompt.Fields)
	return &d
}

func objectDef(fs []prompt.Field) jsonschema.Definition {
	d := jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           make(map[string]jsonschema.Definition, len(fs)),
		Required:             prompt.Names(fs),
		AdditionalProperties: false,
	}
	for _, f := range fs {
		d.Properties[f.Name] = fieldDef(f)
	}
	return d
}

func fieldDef(f prompt.Field) jsonschema.Definition {
	switch f.Kind {
	case prompt.Object:
		return objectDef(f.Children)
	case prompt.StringList:
		return jsonschema.Definition{Type: jsonschema.Array, Description: f.Description, Items: &jsonschema.Definition{Type: jsonschema.String}}
	case prompt.Number:
		return jsonschema.Definition{Type: jsonschema.Number, Description: f.Description}
	default:
		return jsonschema.Definition{Type: jsonschema.String, Description: f.Description}
	}
}

func classify(err error) *property.ExtractionError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return property.NewExtractionError(property.KindRateLimited, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return property.NewExtractionError(property.KindRateLimited, err)
	}
	if apiErr == nil && reqErr == nil && property.LooksLikeQuota(err.Error()) {
		return property.NewExtractionError(property.KindRateLimited, err)
	}
	return property.NewExtractionError(property.KindGeneric, err)
}
