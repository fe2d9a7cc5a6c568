package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/models"
)

func init() {
	prompt.RegisterDefaults()
}

type stubResponses struct {
	rows []models.PersonaResponse
}

func (s *stubResponses) ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error) {
	return s.rows, nil
}

type stubPersonas struct {
	records []models.Persona
}

func (s *stubPersonas) ListByIDs(ctx context.Context, ids []string) ([]models.Persona, error) {
	return s.records, nil
}

// cannedCaller returns a fixed extraction per response marker found in the
// rendered prompt.
type cannedCaller struct {
	byMarker map[string]string
}

func (c *cannedCaller) ExecutePrompt(ctx context.Context, stage, rawPrompt, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	for marker, out := range c.byMarker {
		if strings.Contains(rawPrompt, marker) {
			return out, nil
		}
	}
	return "", fmt.Errorf("no canned extraction for prompt")
}

func extractionJSON(concepts []string, emotions []string, sentiment float64) string {
	var cq, eq []string
	for _, c := range concepts {
		cq = append(cq, fmt.Sprintf("%q", c))
	}
	for _, e := range emotions {
		eq = append(eq, fmt.Sprintf("%q", e))
	}
	return fmt.Sprintf(`{"concepts":[%s],"emotions":[%s],"sentiment":%g,"key_phrases":[]}`,
		strings.Join(cq, ","), strings.Join(eq, ","), sentiment)
}

func respond(personaID, text string, qIdx int) models.PersonaResponse {
	return models.PersonaResponse{
		ID:           personaID + "-" + fmt.Sprint(qIdx),
		FocusGroupID: "fg-1",
		PersonaID:    personaID,
		QuestionIndex: qIdx,
		Question:     "What do you think?",
		Response:     text,
	}
}

func newTestBuilder(rows []models.PersonaResponse, caller LLMCaller, backend Backend) *Builder {
	personas := &stubPersonas{}
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		personas.records = append(personas.records, models.Persona{
			ID: id, FullName: "Name " + id, Age: 30, Gender: "female", Occupation: "teacher",
		})
	}
	extractor := NewExtractor(caller, nil, nil, zap.NewNop())
	return NewBuilder(&stubResponses{rows: rows}, personas, extractor, backend, zap.NewNop())
}

func TestBuildControversialConcept(t *testing.T) {
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON([]string{"Quality"}, []string{"joy"}, 0.8),
		"R2": extractionJSON([]string{"Quality"}, []string{"joy"}, 0.8),
		"R3": extractionJSON([]string{"Quality"}, []string{"anger"}, -0.7),
		"R4": extractionJSON([]string{"Quality"}, []string{"anger"}, -0.7),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1 the quality is superb", 0),
		respond("p2", "R2 quality sold me", 0),
		respond("p3", "R3 quality is a joke", 0),
		respond("p4", "R4 quality ruined it", 0),
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	counts, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)
	assert.Equal(t, 4, counts.PersonasAdded)
	assert.Equal(t, 1, counts.ConceptsExtracted)
	assert.Equal(t, 2, counts.EmotionsCreated)

	query := NewQuery(registry)
	controversial, err := query.ControversialConcepts(context.Background(), "fg-1")
	require.NoError(t, err)
	require.Len(t, controversial, 1)

	c := controversial[0]
	assert.Equal(t, "Quality", c.Concept)
	assert.Equal(t, 4, c.Mentions)
	assert.InDelta(t, 0.75, c.SentimentStdDev, 1e-9)
	assert.Len(t, c.Supporters, 2)
	assert.Len(t, c.Critics, 2)
}

func TestBuildIdempotent(t *testing.T) {
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON([]string{"Price", "Design"}, []string{"joy"}, 0.5),
		"R2": extractionJSON([]string{"Price"}, []string{"fear"}, -0.4),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1", 0),
		respond("p2", "R2", 0),
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	first, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)
	snapA, err := registry.Snapshot(context.Background(), "fg-1")
	require.NoError(t, err)

	second, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)
	snapB, err := registry.Snapshot(context.Background(), "fg-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, snapA.Nodes, snapB.Nodes)
	assert.Equal(t, snapA.Edges, snapB.Edges)
}

func TestMentionSentimentRunningBlend(t *testing.T) {
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON([]string{"Price"}, nil, 1),
		"R2": extractionJSON([]string{"Price"}, nil, 0),
		"R3": extractionJSON([]string{"Price"}, nil, 0),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1", 0),
		respond("p1", "R2", 1),
		respond("p1", "R3", 2),
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	_, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)

	snap, err := registry.Snapshot(context.Background(), "fg-1")
	require.NoError(t, err)

	var mention *Edge
	for i := range snap.Edges {
		if snap.Edges[i].Type == EdgeMentions {
			mention = &snap.Edges[i]
		}
	}
	require.NotNil(t, mention)
	assert.Equal(t, 3, mention.Count)
	// Running blend, not a true mean: ((1+0)/2+0)/2.
	assert.InDelta(t, 0.25, mention.Weight, 1e-9)
}

func TestAgreementEdges(t *testing.T) {
	shared := []string{"Price", "Design", "Battery", "Screen", "Camera"}
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON(shared, nil, 0.5),
		"R2": extractionJSON([]string{"Weight"}, nil, 0.5),
		"R3": extractionJSON(shared, nil, 0.5),
		"R4": extractionJSON([]string{"Weight"}, nil, 0.5),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1", 0), respond("p1", "R2", 1),
		respond("p2", "R3", 0), respond("p2", "R4", 1),
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	_, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)

	snap, err := registry.Snapshot(context.Background(), "fg-1")
	require.NoError(t, err)

	var agrees []Edge
	for _, e := range snap.Edges {
		if e.Type == EdgeAgrees {
			agrees = append(agrees, e)
		}
	}
	require.Len(t, agrees, 1)
	assert.Equal(t, "p1", agrees[0].SourceKey)
	assert.Equal(t, "p2", agrees[0].TargetKey)
	// 6 shared concepts with identical sentiment: 6/10 - 0.
	assert.InDelta(t, 0.6, agrees[0].Weight, 1e-9)
}

func TestDisagreementEdges(t *testing.T) {
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON([]string{"Price"}, nil, 1),
		"R2": extractionJSON([]string{"Price"}, nil, -1),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1", 0),
		respond("p2", "R2", 0),
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	_, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)

	snap, err := registry.Snapshot(context.Background(), "fg-1")
	require.NoError(t, err)

	var disagrees []Edge
	for _, e := range snap.Edges {
		if e.Type == EdgeDisagrees {
			disagrees = append(disagrees, e)
		}
	}
	require.Len(t, disagrees, 1)
	// 1/10 - |1-(-1)| clipped to -1; strength is the absolute value.
	assert.InDelta(t, 1.0, disagrees[0].Weight, 1e-9)
}

func TestBuildSkipsErrorRows(t *testing.T) {
	caller := &cannedCaller{byMarker: map[string]string{
		"R1": extractionJSON([]string{"Price"}, nil, 0.5),
	}}
	rows := []models.PersonaResponse{
		respond("p1", "R1", 0),
		{ID: "x", FocusGroupID: "fg-1", PersonaID: "p2", Error: true},
	}
	registry := NewSnapshotRegistry()
	builder := newTestBuilder(rows, caller, registry)

	counts, err := builder.Build(context.Background(), "fg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.PersonasAdded)
}
