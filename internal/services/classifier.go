package services

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// ZeroShotClassifier scores how well text supports each hypothesis, in [0,1].
type ZeroShotClassifier interface {
	Classify(ctx context.Context, text string, hypotheses []string) ([]float64, error)
}

type embeddingClassifier struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbeddingClassifier approximates zero-shot entailment with cosine
// similarity between the answer and each hypothesis embedding.
func NewEmbeddingClassifier(apiKey, baseURL, model string) ZeroShotClassifier {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &embeddingClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  openai.EmbeddingModel(model),
	}
}

func (c *embeddingClassifier) Classify(ctx context.Context, text string, hypotheses []string) ([]float64, error) {
	input := append([]string{text}, hypotheses...)

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: input,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input), len(resp.Data))
	}

	vectors := make([][]float32, len(input))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	scores := make([]float64, len(hypotheses))
	for i := range hypotheses {
		scores[i] = clamp(cosineSimilarity(vectors[0], vectors[i+1]), 0, 1)
	}
	return scores, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
