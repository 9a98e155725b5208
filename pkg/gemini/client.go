// Package gemini wraps the Google Gen AI SDK for single-turn text and JSON
// generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

const defaultModel = "gemini-flash-latest"

// Client generates content from a single prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn generation request.
type Request struct {
	Model           string
	Prompt          string
	System          string
	MaxOutputTokens int
	Temperature     *float64

	// JSON switches the response MIME type to application/json. Schema, when
	// set, constrains the output and is expressed as a JSON-schema-like map.
	JSON   bool
	Schema map[string]any
}

// Response is the generated text and its token accounting.
type Response struct {
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
}

// APIError carries the HTTP status of a failed API call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) { c.model = model }
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *sdkClient) { c.baseURL = url }
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *sdkClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type sdkClient struct {
	client  *genai.Client
	model   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Gemini client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}
	c := &sdkClient{
		model: defaultModel,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.http,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	c.client = gc
	return c, nil
}

func (c *sdkClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = clampInt32(req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.JSON || req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		config.ResponseSchema = ToSchema(req.Schema)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	out := parseResponse(resp)
	out.Model = model
	return out, nil
}

func parseResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var b strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		out.Text = strings.TrimSpace(b.String())
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out
}

// ToSchema converts a JSON-schema-like map (type, properties, required,
// items, description) into the SDK's schema type. Unknown keys are ignored.
func ToSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = ToSchema(pm)
			}
		}
	}
	switch req := m["required"].(type) {
	case []string:
		s.Required = append([]string(nil), req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = ToSchema(items)
	}
	return s
}

func clampInt32(v int) int32 {
	if v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
