package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func TestNewGeminiRequiresCredential(t *testing.T) {
	_, err := adapter.NewGemini(context.Background())
	gt.Error(t, err)

	_, err = adapter.NewGemini(context.Background(), adapter.WithVertexAI("my-project", ""))
	gt.Error(t, err)
}

func TestGenerateContent(t *testing.T) {
	apiKey := os.Getenv("TEST_GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_GEMINI_API_KEY is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, adapter.WithAPIKey(apiKey))
	gt.NoError(t, err)

	contents := []*genai.Content{
		genai.NewContentFromText("Name one crop that grows well in clay soil. Answer with one word.", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)

	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		t.Fatal("unexpected response")
	}

	t.Log("response:", resp.Candidates[0].Content.Parts[0].Text)
}
