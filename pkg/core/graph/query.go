package graph

import (
	"context"
	"sort"

	"github.com/montanaflynn/stats"
)

const (
	positiveSentimentCut = 0.6
	negativeSentimentCut = -0.3
	influenceEdgeCut     = 3

	controversyMinMentions = 3
	controversyStdDevCut   = 0.4
	supporterCut           = 0.5
	criticCut              = -0.3

	topConceptCount    = 10
	topInfluencerCount = 10
	samplePersonaCount = 5
)

type NodeView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Size  int    `json:"size"`
}

type LinkView struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type GraphData struct {
	Nodes []NodeView `json:"nodes"`
	Links []LinkView `json:"links"`
}

type KeyConcept struct {
	Concept        string   `json:"concept"`
	Mentions       int      `json:"mentions"`
	MeanSentiment  float64  `json:"mean_sentiment"`
	SamplePersonas []string `json:"sample_personas"`
}

type ControversialConcept struct {
	Concept         string   `json:"concept"`
	Mentions        int      `json:"mentions"`
	SentimentStdDev float64  `json:"sentiment_std_dev"`
	Supporters      []string `json:"supporters"`
	Critics         []string `json:"critics"`
}

type InfluentialPersona struct {
	PersonaID     string  `json:"persona_id"`
	Name          string  `json:"name"`
	Connections   int     `json:"connections"`
	MeanSentiment float64 `json:"mean_sentiment"`
}

type EmotionShare struct {
	Emotion       string  `json:"emotion"`
	Participants  int     `json:"participants"`
	MeanIntensity float64 `json:"mean_intensity"`
	Share         float64 `json:"share"`
}

// Query is the stateless read-side over graph snapshots.
type Query struct {
	backend Backend
}

func NewQuery(backend Backend) *Query {
	return &Query{backend: backend}
}

// GraphData returns the display graph. Node size is the node's degree;
// filters drop persona nodes (and their edges) that fall outside the
// requested slice. Orphaned concept and emotion nodes drop with them.
func (q *Query) GraphData(ctx context.Context, focusGroupID, filter string) (*GraphData, error) {
	snap, err := q.backend.Snapshot(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	keep := personaFilter(snap, filter)

	edges := make([]Edge, 0, len(snap.Edges))
	degree := make(map[string]int)
	for _, e := range snap.Edges {
		if !keep[e.SourceKey] {
			continue
		}
		if e.Type == EdgeAgrees || e.Type == EdgeDisagrees {
			if !keep[e.TargetKey] {
				continue
			}
		}
		edges = append(edges, e)
		degree[e.SourceKey]++
		degree[e.TargetKey]++
	}

	data := &GraphData{Nodes: []NodeView{}, Links: []LinkView{}}
	for _, n := range snap.Nodes {
		if n.Type == NodePersona && !keep[n.Key] {
			continue
		}
		if n.Type != NodePersona && degree[n.Key] == 0 {
			continue
		}
		size := degree[n.Key]
		if size == 0 {
			size = 1
		}
		data.Nodes = append(data.Nodes, NodeView{
			ID: n.Key, Label: n.Label, Type: string(n.Type), Size: size,
		})
	}
	for _, e := range edges {
		data.Links = append(data.Links, LinkView{
			Source: e.SourceKey, Target: e.TargetKey, Type: string(e.Type), Weight: e.Weight,
		})
	}
	return data, nil
}

// personaFilter returns the set of persona keys surviving the filter.
func personaFilter(snap *Snapshot, filter string) map[string]bool {
	keep := make(map[string]bool)
	meanSent := mentionMeansByPersona(snap)
	totalEdges := make(map[string]int)
	for _, e := range snap.Edges {
		totalEdges[e.SourceKey]++
		if e.Type == EdgeAgrees || e.Type == EdgeDisagrees {
			totalEdges[e.TargetKey]++
		}
	}

	for _, n := range snap.Nodes {
		if n.Type != NodePersona {
			continue
		}
		switch filter {
		case "positive":
			keep[n.Key] = meanSent[n.Key].has && meanSent[n.Key].mean >= positiveSentimentCut
		case "negative":
			keep[n.Key] = meanSent[n.Key].has && meanSent[n.Key].mean <= negativeSentimentCut
		case "influence":
			keep[n.Key] = totalEdges[n.Key] >= influenceEdgeCut
		default:
			keep[n.Key] = true
		}
	}
	return keep
}

type meanAcc struct {
	mean float64
	has  bool
}

func mentionMeansByPersona(snap *Snapshot) map[string]meanAcc {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, e := range snap.Edges {
		if e.Type != EdgeMentions {
			continue
		}
		sums[e.SourceKey] += e.Weight
		counts[e.SourceKey]++
	}
	out := make(map[string]meanAcc, len(sums))
	for k, sum := range sums {
		out[k] = meanAcc{mean: sum / float64(counts[k]), has: true}
	}
	return out
}

// KeyConcepts lists the most mentioned concepts with mean sentiment and a
// handful of persona names that mentioned them.
func (q *Query) KeyConcepts(ctx context.Context, focusGroupID string) ([]KeyConcept, error) {
	snap, err := q.backend.Snapshot(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	labels := personaLabels(snap)
	byConcept := mentionsByConcept(snap)

	concepts := conceptNodes(snap)
	sort.Slice(concepts, func(i, j int) bool {
		if concepts[i].Counter != concepts[j].Counter {
			return concepts[i].Counter > concepts[j].Counter
		}
		return concepts[i].Key < concepts[j].Key
	})

	out := []KeyConcept{}
	for _, n := range concepts {
		if len(out) >= topConceptCount {
			break
		}
		mentions := byConcept[n.Key]
		kc := KeyConcept{
			Concept:        n.Label,
			Mentions:       n.Counter,
			SamplePersonas: []string{},
		}
		var sum float64
		for _, m := range mentions {
			sum += m.Weight
			if len(kc.SamplePersonas) < samplePersonaCount {
				kc.SamplePersonas = append(kc.SamplePersonas, labels[m.SourceKey])
			}
		}
		if len(mentions) > 0 {
			kc.MeanSentiment = sum / float64(len(mentions))
		}
		out = append(out, kc)
	}
	return out, nil
}

// ControversialConcepts returns concepts with enough mentions and a wide
// sentiment spread, split into supporters and critics.
func (q *Query) ControversialConcepts(ctx context.Context, focusGroupID string) ([]ControversialConcept, error) {
	snap, err := q.backend.Snapshot(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	labels := personaLabels(snap)
	byConcept := mentionsByConcept(snap)

	out := []ControversialConcept{}
	for _, n := range conceptNodes(snap) {
		if n.Counter < controversyMinMentions {
			continue
		}
		mentions := byConcept[n.Key]
		values := make([]float64, len(mentions))
		for i, m := range mentions {
			values[i] = m.Weight
		}
		stdDev, err := stats.StandardDeviation(values)
		if err != nil || stdDev <= controversyStdDevCut {
			continue
		}

		cc := ControversialConcept{
			Concept:         n.Label,
			Mentions:        n.Counter,
			SentimentStdDev: stdDev,
			Supporters:      []string{},
			Critics:         []string{},
		}
		for _, m := range mentions {
			switch {
			case m.Weight > supporterCut:
				cc.Supporters = append(cc.Supporters, labels[m.SourceKey])
			case m.Weight < criticCut:
				cc.Critics = append(cc.Critics, labels[m.SourceKey])
			}
		}
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentimentStdDev != out[j].SentimentStdDev {
			return out[i].SentimentStdDev > out[j].SentimentStdDev
		}
		return out[i].Concept < out[j].Concept
	})
	return out, nil
}

// InfluentialPersonas ranks personas by total connection count.
func (q *Query) InfluentialPersonas(ctx context.Context, focusGroupID string) ([]InfluentialPersona, error) {
	snap, err := q.backend.Snapshot(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	meanSent := mentionMeansByPersona(snap)
	connections := make(map[string]int)
	for _, e := range snap.Edges {
		connections[e.SourceKey]++
		if e.Type == EdgeAgrees || e.Type == EdgeDisagrees {
			connections[e.TargetKey]++
		}
	}

	out := []InfluentialPersona{}
	for _, n := range snap.Nodes {
		if n.Type != NodePersona {
			continue
		}
		out = append(out, InfluentialPersona{
			PersonaID:     n.Key,
			Name:          n.Label,
			Connections:   connections[n.Key],
			MeanSentiment: meanSent[n.Key].mean,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Connections != out[j].Connections {
			return out[i].Connections > out[j].Connections
		}
		return out[i].PersonaID < out[j].PersonaID
	})
	if len(out) > topInfluencerCount {
		out = out[:topInfluencerCount]
	}
	return out, nil
}

// EmotionDistribution reports, per emotion, how many personas feel it, the
// mean intensity and the share of all personas in the graph.
func (q *Query) EmotionDistribution(ctx context.Context, focusGroupID string) ([]EmotionShare, error) {
	snap, err := q.backend.Snapshot(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	totalPersonas := 0
	for _, n := range snap.Nodes {
		if n.Type == NodePersona {
			totalPersonas++
		}
	}

	participants := make(map[string]int)
	intensitySum := make(map[string]float64)
	for _, e := range snap.Edges {
		if e.Type != EdgeFeels {
			continue
		}
		participants[e.TargetKey]++
		intensitySum[e.TargetKey] += e.Weight
	}

	out := []EmotionShare{}
	for _, n := range snap.Nodes {
		if n.Type != NodeEmotion {
			continue
		}
		es := EmotionShare{Emotion: n.Label, Participants: participants[n.Key]}
		if es.Participants > 0 {
			es.MeanIntensity = intensitySum[n.Key] / float64(es.Participants)
		}
		if totalPersonas > 0 {
			es.Share = float64(es.Participants) / float64(totalPersonas)
		}
		out = append(out, es)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Participants != out[j].Participants {
			return out[i].Participants > out[j].Participants
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out, nil
}

func personaLabels(snap *Snapshot) map[string]string {
	labels := make(map[string]string)
	for _, n := range snap.Nodes {
		if n.Type == NodePersona {
			labels[n.Key] = n.Label
		}
	}
	return labels
}

func conceptNodes(snap *Snapshot) []Node {
	var out []Node
	for _, n := range snap.Nodes {
		if n.Type == NodeConcept {
			out = append(out, n)
		}
	}
	return out
}

func mentionsByConcept(snap *Snapshot) map[string][]Edge {
	out := make(map[string][]Edge)
	for _, e := range snap.Edges {
		if e.Type == EdgeMentions {
			out[e.TargetKey] = append(out[e.TargetKey], e)
		}
	}
	return out
}
