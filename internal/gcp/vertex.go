package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Counselor Model Prompts ---
const CounselorSystemPrompt = `You are a compassionate and professional mental health counselor.
Provide supportive, empathetic, and practical advice for the user's concern.
Focus on active listening, validation, and offering constructive suggestions.
Keep the response between 200-300 words.`

const (
	CounselorTemperature     float32 = 0.7
	CounselorMaxOutputTokens int32   = 500
)

// VertexClient holds the pre-configured generative models for the app.
type VertexClient struct {
	CounselorModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a new client holding the counselor model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		return nil, fmt.Errorf("NewVertexClient: model name cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		CounselorModel: NewCounselorModel(baseClient, modelName),
		baseClient:     baseClient,
	}, nil
}

// NewCounselorModel configures a model with the counselor persona and output bounds.
func NewCounselorModel(client *genai.Client, modelName string) *genai.GenerativeModel {
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(CounselorSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(CounselorTemperature),
		MaxOutputTokens: genai.Ptr(CounselorMaxOutputTokens),
		CandidateCount:  genai.Ptr[int32](1),
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
