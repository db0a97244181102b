package services

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

type VertexService interface {
	LLMClient
	Close() error
}

type vertexService struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexService serves the primary tier from Vertex AI with application
// default credentials instead of an API key.
func NewVertexService(projectID, location string, settings GenerationSettings) (VertexService, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is not set")
	}
	if location == "" {
		location = "us-central1"
	}
	if settings.Model == "" {
		settings.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	model := client.GenerativeModel(settings.Model)
	model.SetTemperature(settings.Temperature)
	model.SetTopP(settings.TopP)
	model.SetTopK(int32(settings.TopK))
	model.SetMaxOutputTokens(settings.MaxTokens)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	return &vertexService{client: client, model: model}, nil
}

func (v *vertexService) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return sb.String(), nil
}

func (v *vertexService) Close() error {
	return v.client.Close()
}
