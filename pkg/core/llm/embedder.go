package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"google.golang.org/genai"
)

// Embedder generates fixed-dimension vector embeddings for text. All vectors
// within one deployment must come from the same model; the event store and
// the retriever share a single Embedder instance for that reason.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// GenAIEmbedder produces embeddings via the Gemini embedding endpoint.
type GenAIEmbedder struct {
	Model string // default "gemini-embedding-001"

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

var _ Embedder = (*GenAIEmbedder)(nil)

func (e *GenAIEmbedder) init(ctx context.Context) error {
	e.initOnce.Do(func() {
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			e.initErr = fmt.Errorf("GEMINI_API_KEY environment variable not set")
			return
		}
		e.client, e.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return e.initErr
}

// Embed generates an embedding for a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.init(ctx); err != nil {
		return nil, err
	}

	model := e.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx, model, contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// Dimensions returns the embedding dimensionality (gemini-embedding-001: 768).
func (e *GenAIEmbedder) Dimensions() int {
	return 768
}

// MockEmbedder is a deterministic embedder for tests. EmbedFunc overrides the
// default character-histogram embedding when set.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Dim       int
}

var _ Embedder = (*MockEmbedder)(nil)

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.EmbedFunc != nil {
		return e.EmbedFunc(ctx, text)
	}
	dim := e.Dimensions()
	vec := make([]float32, dim)
	for i, r := range text {
		vec[(i+int(r))%dim] += 1
	}
	return vec, nil
}

func (e *MockEmbedder) Dimensions() int {
	if e.Dim > 0 {
		return e.Dim
	}
	return 32
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means
// orthogonal. Mismatched or zero-magnitude vectors yield an error / zero.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}
