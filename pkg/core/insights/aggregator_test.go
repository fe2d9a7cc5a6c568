package insights

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/models"
)

type stubSource struct {
	responses []models.PersonaResponse
}

func (s *stubSource) ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error) {
	return s.responses, nil
}

func responsesFor(texts []string) []models.PersonaResponse {
	out := make([]models.PersonaResponse, len(texts))
	for i, txt := range texts {
		out[i] = models.PersonaResponse{
			ID:             fmt.Sprintf("r-%d", i),
			FocusGroupID:   "fg-1",
			PersonaID:      fmt.Sprintf("persona-%d", i),
			QuestionIndex:  0,
			Question:       "What do you think?",
			Response:       txt,
			ResponseTimeMs: 100,
		}
	}
	return out
}

func testGroup(personas, questions int) *models.FocusGroup {
	fg := &models.FocusGroup{ID: "fg-1"}
	for i := 0; i < personas; i++ {
		fg.PersonaIDs = append(fg.PersonaIDs, fmt.Sprintf("persona-%d", i))
	}
	for i := 0; i < questions; i++ {
		fg.Questions = append(fg.Questions, fmt.Sprintf("Q%d", i+1))
	}
	return fg
}

func newTestAggregator(responses []models.PersonaResponse) *Aggregator {
	return NewAggregator(&stubSource{responses: responses}, nil,
		&llm.MockEmbedder{Dim: 16}, nil, nil, zap.NewNop())
}

func TestGenerateUnanimousPositive(t *testing.T) {
	texts := []string{"I love it", "I love it", "I love it", "I love it", "I love it"}
	agg := newTestAggregator(responsesFor(texts))

	blob, err := agg.Generate(context.Background(), testGroup(5, 1))
	require.NoError(t, err)
	require.Len(t, blob.PerQuestion, 1)

	q := blob.PerQuestion[0]
	assert.GreaterOrEqual(t, q.Consensus, 0.9)
	assert.Greater(t, q.AvgSentiment, 0.0)
	assert.GreaterOrEqual(t, q.IdeaScore, 70.0)
	assert.Equal(t, 5, q.Participants)
}

func TestGenerateSplitOpinions(t *testing.T) {
	texts := []string{
		"I love it, amazing",
		"I love it, amazing",
		"I hate it, awful",
		"I hate it, awful",
		"I hate it, awful",
	}
	agg := newTestAggregator(responsesFor(texts))

	blob, err := agg.Generate(context.Background(), testGroup(5, 1))
	require.NoError(t, err)

	q := blob.PerQuestion[0]
	assert.LessOrEqual(t, q.Consensus, 0.5)
	assert.InDelta(t, 0.0, q.AvgSentiment, 0.25)
}

func TestGenerateScoreBounds(t *testing.T) {
	texts := []string{"great great great", "awful awful awful", "it exists"}
	agg := newTestAggregator(responsesFor(texts))

	blob, err := agg.Generate(context.Background(), testGroup(3, 1))
	require.NoError(t, err)

	for _, q := range blob.PerQuestion {
		assert.GreaterOrEqual(t, q.IdeaScore, 0.0)
		assert.LessOrEqual(t, q.IdeaScore, 100.0)
		assert.GreaterOrEqual(t, q.Consensus, 0.0)
		assert.LessOrEqual(t, q.Consensus, 1.0)
		assert.GreaterOrEqual(t, q.AvgSentiment, -1.0)
		assert.LessOrEqual(t, q.AvgSentiment, 1.0)
	}
	assert.GreaterOrEqual(t, blob.OverallIdeaScore, 0.0)
	assert.LessOrEqual(t, blob.OverallIdeaScore, 100.0)
}

func TestGenerateIdempotent(t *testing.T) {
	texts := []string{
		"I love the convenience", "Too expensive for me",
		"Great but confusing", "I like the design a lot",
	}
	agg := newTestAggregator(responsesFor(texts))
	fg := testGroup(4, 1)

	a, err := agg.Generate(context.Background(), fg)
	require.NoError(t, err)
	b, err := agg.Generate(context.Background(), fg)
	require.NoError(t, err)

	a.GeneratedAt = b.GeneratedAt
	assert.Equal(t, a, b)
}

func TestGenerateEmptyResponses(t *testing.T) {
	agg := newTestAggregator(nil)

	blob, err := agg.Generate(context.Background(), testGroup(5, 2))
	require.NoError(t, err)
	assert.Empty(t, blob.PerQuestion)
	assert.Empty(t, blob.KeyThemes)
	assert.Zero(t, blob.OverallIdeaScore)
	assert.Equal(t, "fg-1", blob.FocusGroupID)
}

func TestGenerateErrorRowsExcludedFromSentiment(t *testing.T) {
	responses := responsesFor([]string{"I love it", "I love it"})
	responses = append(responses, models.PersonaResponse{
		ID: "r-err", FocusGroupID: "fg-1", PersonaID: "persona-2",
		QuestionIndex: 0, Question: "What do you think?",
		Error: true, ResponseTimeMs: 0,
	})
	agg := newTestAggregator(responses)

	blob, err := agg.Generate(context.Background(), testGroup(3, 1))
	require.NoError(t, err)

	q := blob.PerQuestion[0]
	assert.Equal(t, 2, q.Participants)
	assert.Greater(t, q.AvgSentiment, 0.0)
	// Completion rate counts all rows, error cells included.
	assert.InDelta(t, 1.0, blob.Engagement.CompletionRate, 1e-9)
	// Error zeros drag the mean latency down.
	assert.InDelta(t, 200.0/3, blob.Engagement.AvgResponseTimeMs, 1e-6)
}

func TestGenerateThemes(t *testing.T) {
	texts := []string{
		"The battery life is excellent",
		"Battery drains too fast for me",
		"I worry about the battery and the price",
		"Price seems fair",
	}
	agg := newTestAggregator(responsesFor(texts))

	blob, err := agg.Generate(context.Background(), testGroup(4, 1))
	require.NoError(t, err)
	require.NotEmpty(t, blob.KeyThemes)

	top := blob.KeyThemes[0]
	assert.Equal(t, "battery", top.Keyword)
	assert.Equal(t, 3, top.Count)
	assert.Equal(t, "The battery life is excellent", top.RepresentativeQuote)
}

func TestGenerateEmbedderDownUsesDefaultConsensus(t *testing.T) {
	down := &llm.MockEmbedder{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("backend down")
		},
	}
	agg := NewAggregator(&stubSource{responses: responsesFor([]string{"fine", "fine", "fine"})},
		nil, down, nil, nil, zap.NewNop())

	blob, err := agg.Generate(context.Background(), testGroup(3, 1))
	require.NoError(t, err)
	assert.InDelta(t, defaultConsensus, blob.PerQuestion[0].Consensus, 1e-9)
}

func TestLexiconScore(t *testing.T) {
	lex := NewLexicon(nil, nil)

	cases := []struct {
		text string
		want float64
	}{
		{"I love it", 1},
		{"I hate it, awful", -1},
		{"it exists", 0},
		{"great but awful", 0},
		{"świetny produkt", 1},
		{"okropny i drogi", -1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, lex.Score(tc.text), 1e-9, tc.text)
	}
}

func TestGradeBoundaries(t *testing.T) {
	assert.Equal(t, "A", grade(85))
	assert.Equal(t, "B", grade(70))
	assert.Equal(t, "C", grade(55))
	assert.Equal(t, "D", grade(40))
	assert.Equal(t, "F", grade(10))
}
