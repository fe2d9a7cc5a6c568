package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"synthetic_panel/pkg/core/insights"
	"synthetic_panel/pkg/core/llm"
	"synthetic_panel/pkg/core/prompt"
	"synthetic_panel/pkg/core/utils"
	"synthetic_panel/pkg/models"
)

const (
	maxConcepts   = 5
	maxEmotions   = 3
	maxKeyPhrases = 3
)

// Extraction is the structured result for one response.
type Extraction struct {
	Concepts   []string `json:"concepts"`
	Emotions   []string `json:"emotions"`
	Sentiment  float64  `json:"sentiment"`
	KeyPhrases []string `json:"key_phrases"`
}

// LLMCaller is the slice of agent.Manager the extractor needs.
type LLMCaller interface {
	ExecutePrompt(ctx context.Context, stage string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error)
}

// Extractor pulls concepts, emotions and sentiment out of a single response.
// The model path is preferred; a keyword fallback keeps graph builds working
// when the chat endpoint is down.
type Extractor struct {
	caller    LLMCaller
	lexicon   *insights.Lexicon
	stopwords map[string]struct{}
	logger    *zap.Logger
}

func NewExtractor(caller LLMCaller, lexicon *insights.Lexicon, stopwords map[string]struct{}, logger *zap.Logger) *Extractor {
	if lexicon == nil {
		lexicon = insights.NewLexicon(nil, nil)
	}
	if stopwords == nil {
		stopwords = insights.StopwordSet(nil)
	}
	return &Extractor{caller: caller, lexicon: lexicon, stopwords: stopwords, logger: logger}
}

// Extract never fails outright: a model error is logged and the keyword
// fallback takes over.
func (e *Extractor) Extract(ctx context.Context, response string) Extraction {
	if e.caller != nil {
		ext, err := e.llmExtract(ctx, response)
		if err == nil {
			return ext
		}
		e.logger.Warn("model extraction failed, using keyword fallback", zap.Error(err))
	}
	return e.fallbackExtract(response)
}

func (e *Extractor) llmExtract(ctx context.Context, response string) (Extraction, error) {
	pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.GraphExtraction)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	userPrompt, err := prompt.RenderUserPrompt(pt, prompt.NewContext().Set("Response", response))
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}

	systemPrompt := pt.SystemPrompt
	if pt.ResponseSchemaID != "" {
		if schema, schemaErr := prompt.Get().GetSchema(pt.ResponseSchemaID); schemaErr == nil {
			systemPrompt += "\n\nThe JSON object must conform to this schema:\n" + schema.JSONSchema
		}
	}

	raw, err := e.caller.ExecutePrompt(ctx, "extraction", userPrompt, systemPrompt, llm.JSONOptions(0.2))
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}

	var ext Extraction
	if _, err := utils.SmartParse(raw, &ext); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	return sanitizeExtraction(ext), nil
}

func sanitizeExtraction(ext Extraction) Extraction {
	ext.Concepts = normalizeAll(ext.Concepts, maxConcepts)
	ext.Emotions = normalizeAll(ext.Emotions, maxEmotions)
	if len(ext.KeyPhrases) > maxKeyPhrases {
		ext.KeyPhrases = ext.KeyPhrases[:maxKeyPhrases]
	}
	if ext.Sentiment > 1 {
		ext.Sentiment = 1
	}
	if ext.Sentiment < -1 {
		ext.Sentiment = -1
	}
	return ext
}

// fallbackExtract counts stopword-filtered unigrams and bigrams, prefers
// bigrams seen more than once and fills the rest with unigrams not already
// covered by a chosen bigram.
func (e *Extractor) fallbackExtract(response string) Extraction {
	tokens := make([]string, 0)
	for _, tok := range insights.Tokenize(response) {
		if len([]rune(tok)) < 3 || isNumericToken(tok) {
			continue
		}
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}

	unigrams := make(map[string]int)
	bigrams := make(map[string]int)
	for i, tok := range tokens {
		unigrams[tok]++
		if i+1 < len(tokens) {
			bigrams[tok+" "+tokens[i+1]]++
		}
	}

	concepts := make([]string, 0, maxConcepts)
	covered := make(map[string]bool)
	for _, bg := range sortedByCount(bigrams) {
		if bigrams[bg] < 2 || len(concepts) >= maxConcepts {
			break
		}
		concepts = append(concepts, bg)
		for _, part := range strings.Fields(bg) {
			covered[part] = true
		}
	}
	for _, ug := range sortedByCount(unigrams) {
		if len(concepts) >= maxConcepts {
			break
		}
		if !covered[ug] {
			concepts = append(concepts, ug)
		}
	}

	sentiment := e.lexicon.Score(response)
	emotions := keywordEmotions(tokens)
	if len(emotions) == 0 {
		// Last resort: map the overall sentiment onto an emotion.
		switch {
		case sentiment > 0.15:
			emotions = []string{"joy"}
		case sentiment < -0.15:
			emotions = []string{"sadness"}
		}
	}

	return Extraction{
		Concepts:  normalizeAll(concepts, maxConcepts),
		Emotions:  normalizeAll(emotions, maxEmotions),
		Sentiment: sentiment,
	}
}

// emotionKeywords maps signal words to the eight basic emotions used by the
// extraction prompt.
var emotionKeywords = map[string]string{
	"love": "joy", "happy": "joy", "enjoy": "joy", "glad": "joy",
	"delighted": "joy", "fun": "joy",
	"trust": "trust", "reliable": "trust", "dependable": "trust",
	"safe": "trust", "confident": "trust",
	"fear": "fear", "afraid": "fear", "scared": "fear", "worried": "fear",
	"worry": "fear", "anxious": "fear", "nervous": "fear",
	"surprised": "surprise", "surprise": "surprise", "unexpected": "surprise",
	"shocked": "surprise", "wow": "surprise",
	"sad": "sadness", "disappointed": "sadness", "unhappy": "sadness",
	"miss": "sadness", "regret": "sadness",
	"disgusting": "disgust", "gross": "disgust", "awful": "disgust",
	"terrible": "disgust", "horrible": "disgust",
	"angry": "anger", "hate": "anger", "annoying": "anger",
	"annoyed": "anger", "furious": "anger", "frustrating": "anger",
	"frustrated": "anger",
	"excited": "anticipation", "eager": "anticipation", "hope": "anticipation",
	"hoping": "anticipation", "curious": "anticipation",
	"anticipate": "anticipation",
}

func keywordEmotions(tokens []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if emo, ok := emotionKeywords[tok]; ok && !seen[emo] {
			seen[emo] = true
			out = append(out, emo)
		}
	}
	if len(out) > maxEmotions {
		out = out[:maxEmotions]
	}
	return out
}

func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Normalize trims, collapses internal whitespace and title-cases a concept
// or emotion name.
func Normalize(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		runes := []rune(strings.ToLower(f))
		runes[0] = unicode.ToUpper(runes[0])
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}

// normalizeAll normalizes and dedups case-insensitively, first occurrence
// wins, capped at limit.
func normalizeAll(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		norm := Normalize(item)
		if norm == "" {
			continue
		}
		lower := strings.ToLower(norm)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, norm)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func isNumericToken(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
