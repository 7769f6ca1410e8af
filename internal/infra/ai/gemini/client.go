package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/infra/ai/prompt"
)

const defaultModel = "gemini-3-flash-preview"

// generator is the slice of *genai.Models the adapter uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client extracts property details with Gemini and Google Search grounding.
type Client struct {
	models generator
	Model  string
}

// Options configures NewClient. Empty values fall back to the SDK defaults.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{models: gc.Models, Model: opts.Model}, nil
}

// Analyze makes exactly one GenerateContent call for url.
func (c *Client) Analyze(ctx context.Context, url string) (property.Details, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	config := &genai.GenerateContentConfig{
		Tools:            []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   Schema(),
	}

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(prompt.Instruction(url)), config)
	if err != nil {
		return property.Details{}, classify(err)
	}
	if resp == nil {
		return property.Details{}, property.NewExtractionError(property.KindGeneric, errors.New("nil response"))
	}
	return property.Build([]byte(resp.Text()), url, citations(resp))
}

// Schema renders prompt.Fields as a Gemini response schema.
func Schema() *genai.Schema {
	return objectSchema(prompt.Fields)
}

func objectSchema(fs []prompt.Field) *genai.Schema {
	s := &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       make(map[string]*genai.Schema, len(fs)),
		Required:         prompt.Names(fs),
		PropertyOrdering: prompt.Names(fs),
	}
	for _, f := range fs {
		s.Properties[f.Name] = fieldSchema(f)
	}
	return s
}

func fieldSchema(f prompt.Field) *genai.Schema {
	switch f.Kind {
	case prompt.Object:
		return objectSchema(f.Children)
	case prompt.StringList:
		return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	case prompt.Number:
		return &genai.Schema{Type: genai.TypeNumber}
	default:
		return &genai.Schema{Type: genai.TypeString}
	}
}

// citations returns the web grounding chunks of the first candidate.
func citations(resp *genai.GenerateContentResponse) []property.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var out []property.Source
	for _, ch := range gm.GroundingChunks {
		if ch == nil || ch.Web == nil {
			continue
		}
		out = append(out, property.Source{Title: ch.Web.Title, URI: ch.Web.URI})
	}
	return out
}

// classify tags a provider error. The API status decides first; the message
// text is only consulted for errors that carry no status.
func classify(err error) *property.ExtractionError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return property.NewExtractionError(kindOf(apiErr), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return property.NewExtractionError(kindOf(*apiErrPtr), err)
	}
	if property.LooksLikeQuota(err.Error()) {
		return property.NewExtractionError(property.KindRateLimited, err)
	}
	return property.NewExtractionError(property.KindGeneric, err)
}

func kindOf(e genai.APIError) property.Kind {
	if e.Code == http.StatusTooManyRequests || strings.EqualFold(e.Status, "RESOURCE_EXHAUSTED") {
		return property.KindRateLimited
	}
	return property.KindGeneric
}
