package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/innerharmony/internal/gcp"
)

// ContentGenerator is satisfied by *genai.GenerativeModel.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// TextGeneratorConfig holds all configuration for the text generator.
type TextGeneratorConfig struct {
	ProjectID      string
	VertexAIRegion string
	ModelName      string
}

// LoadTextGeneratorConfig reads and validates the text generator's environment.
func LoadTextGeneratorConfig() (*TextGeneratorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	return &TextGeneratorConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelName:      gcp.GetEnv("COUNSELOR_MODEL", "gemini-1.5-flash"),
	}, nil
}

// TextGenerator turns a user's concern into counseling prose with a single
// model call.
type TextGenerator struct {
	model  ContentGenerator
	vertex *gcp.VertexClient
}

// NewTextGenerator builds a generator around an already configured model.
func NewTextGenerator(model ContentGenerator) *TextGenerator {
	return &TextGenerator{model: model}
}

// NewVertexTextGenerator creates a TextGenerator backed by the Vertex AI counselor model.
func NewVertexTextGenerator(ctx context.Context) (*TextGenerator, error) {
	config, err := LoadTextGeneratorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.ModelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	g := NewTextGenerator(vertexClient.CounselorModel)
	g.vertex = vertexClient
	slog.Info("Text generator initialized.", "model", config.ModelName, "region", config.VertexAIRegion)
	return g, nil
}

// Generate returns counseling prose for concern. The concern itself is never
// logged.
func (g *TextGenerator) Generate(ctx context.Context, concern string) (string, error) {
	concern = strings.TrimSpace(concern)
	if concern == "" {
		return "", newFailure(FailureInvalidInput, "concern is empty")
	}

	logCtx := slog.With("concernChars", len([]rune(concern)))
	logCtx.Info("Generating counseling text.")

	resp, err := g.model.GenerateContent(ctx, genai.Text(concern))
	if err != nil {
		logCtx.Error("Call to Vertex AI for counseling text failed", "error", err)
		return "", &Failure{Kind: FailureGeneration, Err: fmt.Errorf("failed to generate content from gemini: %w", err)}
	}

	text := extractText(resp)
	if text == "" {
		err := fmt.Errorf("gemini returned no text (finish reason %s)", finishReason(resp))
		logCtx.Error("Empty response from Gemini", "error", err)
		return "", &Failure{Kind: FailureGeneration, Err: err}
	}

	logCtx.Info("Counseling text generated.", "textChars", len([]rune(text)), "words", len(strings.Fields(text)))
	return text, nil
}

func (g *TextGenerator) Close() error {
	if g.vertex != nil {
		return g.vertex.Close()
	}
	return nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "no candidates"
	}
	return fmt.Sprint(resp.Candidates[0].FinishReason)
}
