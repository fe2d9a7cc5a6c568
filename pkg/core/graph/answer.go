package graph

import (
	"context"
	"fmt"
	"strings"
)

// Answer is the response of the natural-language query endpoint. Insights
// carries the structured result of whichever primitive answered the
// question.
type Answer struct {
	Answer    string      `json:"answer"`
	Intent    string      `json:"intent"`
	Insights  interface{} `json:"insights"`
	FollowUps []string    `json:"follow_ups"`
}

// Answerer routes natural-language questions to the query primitives by
// keyword matching. No model call is involved; answers come straight from
// the graph snapshot.
type Answerer struct {
	query *Query
}

func NewAnswerer(query *Query) *Answerer {
	return &Answerer{query: query}
}

var intentKeywords = map[string][]string{
	"influence":   {"influential", "influence", "influencer", "leader", "persuasive", "dominant", "loudest"},
	"controversy": {"controversial", "controversy", "disagree", "disagreement", "divisive", "polarizing", "polarized", "split", "argue"},
	"emotion":     {"emotion", "emotions", "feeling", "feelings", "mood", "emotional"},
	"sentiment":   {"sentiment", "positive", "negative", "favorable", "unfavorable", "like it", "dislike"},
	"topics":      {"topic", "topics", "theme", "themes", "concept", "concepts", "discussed", "talked about", "keywords"},
}

func (a *Answerer) Answer(ctx context.Context, focusGroupID, question string) (*Answer, error) {
	q := strings.ToLower(question)

	if concept, ok := a.matchConcept(ctx, focusGroupID, q); ok {
		return a.answerAbout(ctx, focusGroupID, concept)
	}
	for _, intent := range []string{"influence", "controversy", "emotion", "sentiment", "topics"} {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(q, kw) {
				return a.answerIntent(ctx, focusGroupID, intent)
			}
		}
	}
	return a.answerDefault(ctx, focusGroupID)
}

// matchConcept looks for a known concept name inside an opinion-style
// question ("what do people think about X").
func (a *Answerer) matchConcept(ctx context.Context, focusGroupID, q string) (KeyConcept, bool) {
	if !strings.Contains(q, "about") && !strings.Contains(q, "opinion") && !strings.Contains(q, "think of") {
		return KeyConcept{}, false
	}
	concepts, err := a.query.KeyConcepts(ctx, focusGroupID)
	if err != nil {
		return KeyConcept{}, false
	}
	for _, kc := range concepts {
		if strings.Contains(q, strings.ToLower(kc.Concept)) {
			return kc, true
		}
	}
	return KeyConcept{}, false
}

func (a *Answerer) answerAbout(ctx context.Context, focusGroupID string, kc KeyConcept) (*Answer, error) {
	tone := "mixed"
	switch {
	case kc.MeanSentiment >= 0.3:
		tone = "mostly positive"
	case kc.MeanSentiment <= -0.3:
		tone = "mostly negative"
	}
	return &Answer{
		Intent: "opinion",
		Answer: fmt.Sprintf("%q came up %d times with %s sentiment (%.2f on a -1..1 scale).",
			kc.Concept, kc.Mentions, tone, kc.MeanSentiment),
		Insights: kc,
		FollowUps: []string{
			fmt.Sprintf("Which personas were most critical of %s?", kc.Concept),
			"Which concepts divided the group the most?",
			"What emotions did the discussion trigger?",
		},
	}, nil
}

func (a *Answerer) answerIntent(ctx context.Context, focusGroupID, intent string) (*Answer, error) {
	switch intent {
	case "influence":
		personas, err := a.query.InfluentialPersonas(ctx, focusGroupID)
		if err != nil {
			return nil, err
		}
		text := "No personas stood out as influential."
		if len(personas) > 0 {
			text = fmt.Sprintf("%s was the most connected participant with %d graph connections (mean sentiment %.2f).",
				personas[0].Name, personas[0].Connections, personas[0].MeanSentiment)
		}
		return &Answer{Intent: intent, Answer: text, Insights: personas, FollowUps: []string{
			"What did the most influential participant talk about?",
			"Which concepts divided the group the most?",
			"What was the overall sentiment of the group?",
		}}, nil

	case "controversy":
		concepts, err := a.query.ControversialConcepts(ctx, focusGroupID)
		if err != nil {
			return nil, err
		}
		text := "No concept was controversial: opinions were broadly aligned."
		if len(concepts) > 0 {
			c := concepts[0]
			text = fmt.Sprintf("%q was the most divisive concept: %d supporters versus %d critics (sentiment spread %.2f).",
				c.Concept, len(c.Supporters), len(c.Critics), c.SentimentStdDev)
		}
		return &Answer{Intent: intent, Answer: text, Insights: concepts, FollowUps: []string{
			"Who were the supporters of the most divisive concept?",
			"Which personas were the most influential?",
			"What were the main discussion topics?",
		}}, nil

	case "emotion":
		emotions, err := a.query.EmotionDistribution(ctx, focusGroupID)
		if err != nil {
			return nil, err
		}
		text := "No clear emotions were expressed."
		if len(emotions) > 0 {
			e := emotions[0]
			text = fmt.Sprintf("%s was the dominant emotion, expressed by %d participants (%.0f%% of the group).",
				e.Emotion, e.Participants, e.Share*100)
		}
		return &Answer{Intent: intent, Answer: text, Insights: emotions, FollowUps: []string{
			"Which concepts triggered the strongest emotions?",
			"What was the overall sentiment of the group?",
			"Which personas were the most influential?",
		}}, nil

	case "sentiment":
		concepts, err := a.query.KeyConcepts(ctx, focusGroupID)
		if err != nil {
			return nil, err
		}
		text := "There is not enough data to judge sentiment."
		if len(concepts) > 0 {
			best, worst := concepts[0], concepts[0]
			for _, kc := range concepts {
				if kc.MeanSentiment > best.MeanSentiment {
					best = kc
				}
				if kc.MeanSentiment < worst.MeanSentiment {
					worst = kc
				}
			}
			text = fmt.Sprintf("%q was received best (%.2f) and %q worst (%.2f).",
				best.Concept, best.MeanSentiment, worst.Concept, worst.MeanSentiment)
		}
		return &Answer{Intent: intent, Answer: text, Insights: concepts, FollowUps: []string{
			"Which concepts divided the group the most?",
			"What emotions did the discussion trigger?",
			"What were the main discussion topics?",
		}}, nil

	default: // topics
		concepts, err := a.query.KeyConcepts(ctx, focusGroupID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, 3)
		for _, kc := range concepts {
			if len(names) >= 3 {
				break
			}
			names = append(names, kc.Concept)
		}
		text := "The group did not converge on any topics."
		if len(names) > 0 {
			text = fmt.Sprintf("The discussion centered on %s.", strings.Join(names, ", "))
		}
		return &Answer{Intent: "topics", Answer: text, Insights: concepts, FollowUps: []string{
			"What is the sentiment around the top topic?",
			"Which concepts divided the group the most?",
			"Which personas were the most influential?",
		}}, nil
	}
}

// answerDefault synthesizes the headline findings: the top concept, the top
// influencer and the worst-rated concept.
func (a *Answerer) answerDefault(ctx context.Context, focusGroupID string) (*Answer, error) {
	concepts, err := a.query.KeyConcepts(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}
	personas, err := a.query.InfluentialPersonas(ctx, focusGroupID)
	if err != nil {
		return nil, err
	}

	var parts []string
	if len(concepts) > 0 {
		parts = append(parts, fmt.Sprintf("The group talked most about %q (%d mentions, sentiment %.2f)",
			concepts[0].Concept, concepts[0].Mentions, concepts[0].MeanSentiment))
		worst := concepts[0]
		for _, kc := range concepts {
			if kc.MeanSentiment < worst.MeanSentiment {
				worst = kc
			}
		}
		if worst.Concept != concepts[0].Concept {
			parts = append(parts, fmt.Sprintf("%q was received worst (%.2f)", worst.Concept, worst.MeanSentiment))
		}
	}
	if len(personas) > 0 {
		parts = append(parts, fmt.Sprintf("%s drove the discussion with %d connections",
			personas[0].Name, personas[0].Connections))
	}
	text := "The graph holds no findings for this focus group yet."
	if len(parts) > 0 {
		text = strings.Join(parts, ". ") + "."
	}

	return &Answer{
		Intent: "summary",
		Answer: text,
		Insights: map[string]interface{}{
			"key_concepts":         concepts,
			"influential_personas": personas,
		},
		FollowUps: []string{
			"Which concepts divided the group the most?",
			"What emotions did the discussion trigger?",
			"What was the overall sentiment of the group?",
		},
	}, nil
}
