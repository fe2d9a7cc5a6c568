package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"synthetic_panel/pkg/models"
)

// ResponseSource supplies the response matrix for one focus group.
type ResponseSource interface {
	ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error)
}

// PersonaSource resolves the persona records referenced by the responses.
type PersonaSource interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Persona, error)
}

// BuildCounts reports what a rebuild materialized.
type BuildCounts struct {
	PersonasAdded        int `json:"personas_added"`
	ConceptsExtracted    int `json:"concepts_extracted"`
	RelationshipsCreated int `json:"relationships_created"`
	EmotionsCreated      int `json:"emotions_created"`
}

// Builder derives the knowledge graph for a focus group and hands the
// snapshot to the backend. Rebuilding is idempotent: the same responses
// produce the same node and edge sets.
type Builder struct {
	responses ResponseSource
	personas  PersonaSource
	extractor *Extractor
	backend   Backend
	logger    *zap.Logger
}

func NewBuilder(responses ResponseSource, personas PersonaSource, extractor *Extractor, backend Backend, logger *zap.Logger) *Builder {
	return &Builder{
		responses: responses,
		personas:  personas,
		extractor: extractor,
		backend:   backend,
		logger:    logger,
	}
}

type mentionAgg struct {
	count int
	blend float64 // running blend: (prev+s)/2 on repeat
	sum   float64 // true mean feeds pair similarity
}

type feelsAgg struct {
	count int
	sum   float64
}

// Build extracts concepts per response, constructs the node and edge sets
// and replaces the stored snapshot.
func (b *Builder) Build(ctx context.Context, focusGroupID string) (*BuildCounts, error) {
	responses, err := b.responses.ListResponses(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	personaIDs := make([]string, 0)
	seenPersona := make(map[string]bool)
	for _, r := range responses {
		if r.Error || r.Response == "" {
			continue
		}
		if !seenPersona[r.PersonaID] {
			seenPersona[r.PersonaID] = true
			personaIDs = append(personaIDs, r.PersonaID)
		}
	}
	sort.Strings(personaIDs)

	personaByID := make(map[string]models.Persona)
	if len(personaIDs) > 0 && b.personas != nil {
		records, err := b.personas.ListByIDs(ctx, personaIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range records {
			personaByID[p.ID] = p
		}
	}

	conceptFreq := make(map[string]int)
	conceptLabel := make(map[string]string)
	emotionCount := make(map[string]int)
	mentions := make(map[string]map[string]*mentionAgg)
	feels := make(map[string]map[string]*feelsAgg)

	for _, r := range responses {
		if r.Error || r.Response == "" {
			continue
		}
		ext := b.extractor.Extract(ctx, r.Response)

		for _, concept := range ext.Concepts {
			key := strings.ToLower(concept)
			conceptFreq[key]++
			if _, ok := conceptLabel[key]; !ok {
				conceptLabel[key] = concept
			}
			pm := mentions[r.PersonaID]
			if pm == nil {
				pm = make(map[string]*mentionAgg)
				mentions[r.PersonaID] = pm
			}
			agg := pm[key]
			if agg == nil {
				pm[key] = &mentionAgg{count: 1, blend: ext.Sentiment, sum: ext.Sentiment}
			} else {
				agg.count++
				agg.blend = (agg.blend + ext.Sentiment) / 2
				agg.sum += ext.Sentiment
			}
		}

		for _, emotion := range ext.Emotions {
			key := strings.ToLower(emotion)
			emotionCount[key]++
			pf := feels[r.PersonaID]
			if pf == nil {
				pf = make(map[string]*feelsAgg)
				feels[r.PersonaID] = pf
			}
			agg := pf[key]
			intensity := ext.Sentiment
			if intensity < 0 {
				intensity = -intensity
			}
			if agg == nil {
				pf[key] = &feelsAgg{count: 1, sum: intensity}
			} else {
				agg.count++
				agg.sum += intensity
			}
		}
	}

	snap := &Snapshot{FocusGroupID: focusGroupID, BuiltAt: time.Now().UTC()}

	for _, id := range personaIDs {
		props := map[string]string{"focus_group_id": focusGroupID}
		label := id
		if p, ok := personaByID[id]; ok {
			label = p.FullName
			props["age"] = strconv.Itoa(p.Age)
			props["gender"] = p.Gender
			props["occupation"] = p.Occupation
		}
		snap.Nodes = append(snap.Nodes, Node{
			Type: NodePersona, Key: id, Label: label, Properties: props, Counter: 1,
		})
	}
	for _, key := range sortedKeys(conceptFreq) {
		snap.Nodes = append(snap.Nodes, Node{
			Type: NodeConcept, Key: key, Label: conceptLabel[key], Counter: conceptFreq[key],
		})
	}
	for _, key := range sortedKeys(emotionCount) {
		snap.Nodes = append(snap.Nodes, Node{
			Type: NodeEmotion, Key: key, Label: Normalize(key), Counter: emotionCount[key],
		})
	}

	for _, personaID := range personaIDs {
		for _, key := range sortedKeys(mentions[personaID]) {
			agg := mentions[personaID][key]
			snap.Edges = append(snap.Edges, Edge{
				Type: EdgeMentions, SourceKey: personaID, TargetKey: key,
				Count: agg.count, Weight: agg.blend,
			})
		}
		for _, key := range sortedKeys(feels[personaID]) {
			agg := feels[personaID][key]
			snap.Edges = append(snap.Edges, Edge{
				Type: EdgeFeels, SourceKey: personaID, TargetKey: key,
				Count: agg.count, Weight: agg.sum / float64(agg.count),
			})
		}
	}

	snap.Edges = append(snap.Edges, similarityEdges(personaIDs, mentions)...)

	if err := b.backend.Replace(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store graph snapshot: %w", err)
	}

	counts := &BuildCounts{
		PersonasAdded:        len(personaIDs),
		ConceptsExtracted:    len(conceptFreq),
		EmotionsCreated:      len(emotionCount),
		RelationshipsCreated: len(snap.Edges),
	}
	b.logger.Info("knowledge graph rebuilt",
		zap.String("focus_group_id", focusGroupID),
		zap.Int("personas", counts.PersonasAdded),
		zap.Int("concepts", counts.ConceptsExtracted),
		zap.Int("edges", counts.RelationshipsCreated))
	return counts, nil
}

// similarityEdges compares every unordered persona pair over their shared
// concepts: similarity = |shared|/10 minus the mean sentiment gap, clipped to
// [-1,1]. Strong agreement (> 0.5) and strong disagreement (< -0.3) become
// edges; everything in between stays implicit.
func similarityEdges(personaIDs []string, mentions map[string]map[string]*mentionAgg) []Edge {
	var edges []Edge
	for i := 0; i < len(personaIDs); i++ {
		for j := i + 1; j < len(personaIDs); j++ {
			a, b := personaIDs[i], personaIDs[j]
			shared := make([]string, 0)
			for key := range mentions[a] {
				if _, ok := mentions[b][key]; ok {
					shared = append(shared, key)
				}
			}
			if len(shared) == 0 {
				continue
			}

			var gapSum float64
			for _, key := range shared {
				ma, mb := mentions[a][key], mentions[b][key]
				gap := ma.sum/float64(ma.count) - mb.sum/float64(mb.count)
				if gap < 0 {
					gap = -gap
				}
				gapSum += gap
			}
			similarity := float64(len(shared))/10 - gapSum/float64(len(shared))
			if similarity > 1 {
				similarity = 1
			}
			if similarity < -1 {
				similarity = -1
			}

			switch {
			case similarity > 0.5:
				edges = append(edges, Edge{
					Type: EdgeAgrees, SourceKey: a, TargetKey: b,
					Count: len(shared), Weight: similarity,
				})
			case similarity < -0.3:
				edges = append(edges, Edge{
					Type: EdgeDisagrees, SourceKey: a, TargetKey: b,
					Count: len(shared), Weight: -similarity,
				})
			}
		}
	}
	return edges
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
