package insights

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/models"
)

// Blob field names are consumed by dashboards as-is; treat them as a wire
// format.

type Quote struct {
	PersonaID string  `json:"persona_id"`
	Text      string  `json:"text"`
	Sentiment float64 `json:"sentiment"`
}

type QuestionInsight struct {
	QuestionIndex int     `json:"question_index"`
	Question      string  `json:"question"`
	IdeaScore     float64 `json:"idea_score"`
	Consensus     float64 `json:"consensus"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	TopQuotes     []Quote `json:"top_quotes"`
	Participants  int     `json:"participants"`
}

type Theme struct {
	Keyword             string `json:"keyword"`
	Count               int    `json:"count"`
	RepresentativeQuote string `json:"representative_quote"`
}

type Engagement struct {
	CompletionRate    float64 `json:"completion_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	AvgConsistency    float64 `json:"avg_consistency"`
}

type InsightBlob struct {
	FocusGroupID     string            `json:"focus_group_id"`
	PerQuestion      []QuestionInsight `json:"per_question"`
	OverallIdeaScore float64           `json:"overall_idea_score"`
	Grade            string            `json:"grade"`
	OverallConsensus float64           `json:"overall_consensus"`
	OverallSentiment float64           `json:"overall_sentiment"`
	PositiveRatio    float64           `json:"positive_ratio"`
	NegativeRatio    float64           `json:"negative_ratio"`
	NeutralRatio     float64           `json:"neutral_ratio"`
	KeyThemes        []Theme           `json:"key_themes"`
	Engagement       Engagement        `json:"engagement"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// ResponseSource supplies the response matrix.
type ResponseSource interface {
	ListResponses(ctx context.Context, focusGroupID string) ([]models.PersonaResponse, error)
}

// Writer persists the blob and the focus group write-back in one
// transaction. Nil writer means storeless operation.
type Writer interface {
	SaveInsights(ctx context.Context, focusGroupID string, blob *InsightBlob, polarizationScore, consistencyScore float64) error
}

const (
	sentimentPositiveThreshold = 0.15
	sentimentNegativeThreshold = -0.15
	topQuoteCount              = 5
	keyThemeCount              = 5
)

// Aggregator derives the insight blob from a focus group's responses. It is
// a pure function of the response set: repeated generation yields equal
// blobs (modulo GeneratedAt).
type Aggregator struct {
	source    ResponseSource
	writer    Writer
	embedder  llm.Embedder
	lexicon   *Lexicon
	stopwords map[string]struct{}
	logger    *zap.Logger
}

func NewAggregator(source ResponseSource, writer Writer, embedder llm.Embedder, lexicon *Lexicon, stopwords map[string]struct{}, logger *zap.Logger) *Aggregator {
	if lexicon == nil {
		lexicon = NewLexicon(nil, nil)
	}
	if stopwords == nil {
		stopwords = StopwordSet(nil)
	}
	return &Aggregator{
		source:    source,
		writer:    writer,
		embedder:  embedder,
		lexicon:   lexicon,
		stopwords: stopwords,
		logger:    logger,
	}
}

// Generate computes and persists the insight blob for a focus group.
func (a *Aggregator) Generate(ctx context.Context, fg *models.FocusGroup) (*InsightBlob, error) {
	responses, err := a.source.ListResponses(ctx, fg.ID)
	if err != nil {
		return nil, err
	}

	blob := &InsightBlob{
		FocusGroupID: fg.ID,
		GeneratedAt:  time.Now().UTC(),
	}
	if len(responses) == 0 {
		// Well-formed but zero-filled.
		blob.PerQuestion = []QuestionInsight{}
		blob.KeyThemes = []Theme{}
		return blob, a.persist(ctx, fg.ID, blob)
	}

	byQuestion := groupByQuestion(responses)
	for _, qr := range byQuestion {
		blob.PerQuestion = append(blob.PerQuestion, a.analyzeQuestion(ctx, qr))
	}

	var ideaSum, consensusSum, sentimentSum float64
	for _, qi := range blob.PerQuestion {
		ideaSum += qi.IdeaScore
		consensusSum += qi.Consensus
		sentimentSum += qi.AvgSentiment
	}
	nq := float64(len(blob.PerQuestion))
	blob.OverallIdeaScore = ideaSum / nq
	blob.OverallConsensus = consensusSum / nq
	blob.OverallSentiment = sentimentSum / nq
	blob.Grade = grade(blob.OverallIdeaScore)

	blob.PositiveRatio, blob.NegativeRatio, blob.NeutralRatio = a.sentimentRatios(responses)
	blob.KeyThemes = a.extractThemes(responses)
	blob.Engagement = a.engagement(fg, responses)

	if err := a.persist(ctx, fg.ID, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func (a *Aggregator) persist(ctx context.Context, focusGroupID string, blob *InsightBlob) error {
	if a.writer == nil {
		return nil
	}
	return a.writer.SaveInsights(ctx, focusGroupID, blob,
		blob.OverallIdeaScore/100, blob.Engagement.AvgConsistency)
}

type questionResponses struct {
	index     int
	question  string
	responses []models.PersonaResponse
}

func groupByQuestion(responses []models.PersonaResponse) []questionResponses {
	byIndex := make(map[int]*questionResponses)
	for _, r := range responses {
		qr, ok := byIndex[r.QuestionIndex]
		if !ok {
			qr = &questionResponses{index: r.QuestionIndex, question: r.Question}
			byIndex[r.QuestionIndex] = qr
		}
		qr.responses = append(qr.responses, r)
	}
	out := make([]questionResponses, 0, len(byIndex))
	for _, qr := range byIndex {
		out = append(out, *qr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

func (a *Aggregator) analyzeQuestion(ctx context.Context, qr questionResponses) QuestionInsight {
	qi := QuestionInsight{
		QuestionIndex: qr.index,
		Question:      qr.question,
		TopQuotes:     []Quote{},
	}

	var answered []models.PersonaResponse
	for _, r := range qr.responses {
		if !r.Error && r.Response != "" {
			answered = append(answered, r)
		}
	}
	qi.Participants = len(answered)
	if len(answered) == 0 {
		qi.Consensus = defaultConsensus
		return qi
	}

	sentiments := make([]float64, len(answered))
	var sum float64
	for i, r := range answered {
		sentiments[i] = a.lexicon.Score(r.Response)
		sum += sentiments[i]
	}
	qi.AvgSentiment = sum / float64(len(answered))

	qi.Consensus = a.questionConsensus(ctx, answered)
	qi.IdeaScore = clamp(100*(0.6*((qi.AvgSentiment+1)/2)+0.4*qi.Consensus), 0, 100)

	// Top quotes by |sentiment|, stable so equal scores keep response order.
	order := make([]int, len(answered))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return math.Abs(sentiments[order[x]]) > math.Abs(sentiments[order[y]])
	})
	for _, idx := range order {
		if len(qi.TopQuotes) >= topQuoteCount {
			break
		}
		qi.TopQuotes = append(qi.TopQuotes, Quote{
			PersonaID: answered[idx].PersonaID,
			Text:      answered[idx].Response,
			Sentiment: sentiments[idx],
		})
	}
	return qi
}

// questionConsensus embeds the answers and clusters them. Singleton
// questions agree perfectly; an unavailable embedder yields the default.
func (a *Aggregator) questionConsensus(ctx context.Context, answered []models.PersonaResponse) float64 {
	if len(answered) == 1 {
		return singletonConsensus
	}
	if a.embedder == nil {
		return defaultConsensus
	}

	vectors := make([][]float32, 0, len(answered))
	for _, r := range answered {
		v, err := a.embedder.Embed(ctx, r.Response)
		if err != nil {
			a.logger.Warn("embedding unavailable during insight generation", zap.Error(err))
			return defaultConsensus
		}
		vectors = append(vectors, v)
	}
	return clusterConsensus(vectors).Consensus
}

func (a *Aggregator) sentimentRatios(responses []models.PersonaResponse) (pos, neg, neu float64) {
	var p, n, z, total int
	for _, r := range responses {
		if r.Error || r.Response == "" {
			continue
		}
		total++
		switch s := a.lexicon.Score(r.Response); {
		case s >= sentimentPositiveThreshold:
			p++
		case s <= sentimentNegativeThreshold:
			n++
		default:
			z++
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	return float64(p) / float64(total), float64(n) / float64(total), float64(z) / float64(total)
}

func (a *Aggregator) extractThemes(responses []models.PersonaResponse) []Theme {
	counts := make(map[string]int)
	firstQuote := make(map[string]string)
	for _, r := range responses {
		if r.Error || r.Response == "" {
			continue
		}
		seen := make(map[string]bool)
		for _, token := range Tokenize(r.Response) {
			if len([]rune(token)) < 3 || isNumeric(token) {
				continue
			}
			if _, stop := a.stopwords[token]; stop {
				continue
			}
			counts[token]++
			if !seen[token] {
				seen[token] = true
				if _, ok := firstQuote[token]; !ok {
					firstQuote[token] = r.Response
				}
			}
		}
	}

	keywords := make([]string, 0, len(counts))
	for k := range counts {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	themes := make([]Theme, 0, keyThemeCount)
	for _, k := range keywords {
		if len(themes) >= keyThemeCount {
			break
		}
		themes = append(themes, Theme{
			Keyword:             k,
			Count:               counts[k],
			RepresentativeQuote: firstQuote[k],
		})
	}
	return themes
}

func (a *Aggregator) engagement(fg *models.FocusGroup, responses []models.PersonaResponse) Engagement {
	latencies := make([]float64, 0, len(responses))
	var consistencies []float64
	for _, r := range responses {
		latencies = append(latencies, r.ResponseTimeMs)
		if r.ConsistencyScore != nil {
			consistencies = append(consistencies, *r.ConsistencyScore)
		}
	}

	avgLatency, _ := stats.Mean(latencies)

	personaCount := len(fg.PersonaIDs)
	if personaCount == 0 {
		distinct := make(map[string]bool)
		for _, r := range responses {
			distinct[r.PersonaID] = true
		}
		personaCount = len(distinct)
	}
	completion := 0.0
	if personaCount > 0 && len(fg.Questions) > 0 {
		completion = clamp(float64(len(responses))/float64(personaCount*len(fg.Questions)), 0, 1)
	}

	avgConsistency := 0.0
	if len(consistencies) > 0 {
		avgConsistency, _ = stats.Mean(consistencies)
	}

	return Engagement{
		CompletionRate:    completion,
		AvgResponseTimeMs: avgLatency,
		AvgConsistency:    avgConsistency,
	}
}

func grade(ideaScore float64) string {
	switch {
	case ideaScore >= 80:
		return "A"
	case ideaScore >= 65:
		return "B"
	case ideaScore >= 50:
		return "C"
	case ideaScore >= 35:
		return "D"
	default:
		return "F"
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
