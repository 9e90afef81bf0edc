package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const DefaultGenerativeModel = "gemini-2.5-flash"

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string

	apiKey   string
	project  string
	location string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		if model != "" {
			g.generativeModel = model
		}
	}
}

// WithAPIKey selects the Gemini API backend authenticated by an API key.
func WithAPIKey(apiKey string) GeminiOption {
	return func(g *GeminiClient) {
		g.apiKey = apiKey
	}
}

// WithVertexAI selects the Vertex AI backend in the given project and location.
func WithVertexAI(project, location string) GeminiOption {
	return func(g *GeminiClient) {
		g.project = project
		g.location = location
	}
}

// NewGemini creates a client for the inference service. An API key takes
// precedence over a Vertex AI project.
func NewGemini(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	g := &GeminiClient{
		generativeModel: DefaultGenerativeModel,
	}
	for _, opt := range opts {
		opt(g)
	}

	cfg := &genai.ClientConfig{}
	switch {
	case g.apiKey != "":
		cfg.APIKey = g.apiKey
		cfg.Backend = genai.BackendGeminiAPI
	case g.project != "" && g.location != "":
		cfg.Project = g.project
		cfg.Location = g.location
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, goerr.New("either gemini API key or vertex project and location is required")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client", goerr.V("backend", cfg.Backend))
	}
	g.client = client

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}
