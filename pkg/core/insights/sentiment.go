// Package insights turns a focus group's response matrix into scores,
// themes and an overall idea grade.
package insights

import (
	"strings"
	"unicode"
)

// Lexicon scores text by positive/negative keyword balance. The defaults
// cover English and Polish; operators override both lists through config.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

var defaultPositive = []string{
	// English
	"love", "like", "great", "good", "amazing", "excellent", "fantastic",
	"wonderful", "useful", "helpful", "easy", "happy", "convenient",
	"affordable", "perfect", "best", "enjoy", "nice", "awesome", "valuable",
	// Polish
	"kocham", "lubię", "świetny", "świetne", "dobry", "dobre", "wspaniały",
	"super", "przydatny", "przydatne", "łatwy", "łatwe", "tani", "tanie",
	"wygodny", "wygodne", "doskonały", "najlepszy",
}

var defaultNegative = []string{
	// English
	"hate", "bad", "awful", "terrible", "horrible", "poor", "expensive",
	"difficult", "annoying", "useless", "worst", "disappointing", "confusing",
	"slow", "broken", "ugly", "waste", "dislike", "boring", "overpriced",
	// Polish
	"nienawidzę", "zły", "złe", "okropny", "okropne", "drogi", "drogie",
	"słaby", "słabe", "fatalny", "fatalne", "bezużyteczny", "bezużyteczne",
	"trudny", "trudne", "nudny", "nudne", "najgorszy",
}

// NewLexicon builds the sentiment lexicon. Empty overrides keep defaults.
func NewLexicon(positive, negative []string) *Lexicon {
	if len(positive) == 0 {
		positive = defaultPositive
	}
	if len(negative) == 0 {
		negative = defaultNegative
	}
	return &Lexicon{
		positive: toSet(positive),
		negative: toSet(negative),
	}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// Score returns a sentiment value in [-1,1]: (pos-neg)/(pos+neg), zero when
// neither family of keywords appears.
func (l *Lexicon) Score(text string) float64 {
	var pos, neg int
	for _, token := range Tokenize(text) {
		if _, ok := l.positive[token]; ok {
			pos++
		}
		if _, ok := l.negative[token]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Tokenize lowercases and splits on any non-letter/digit rune. Shared with
// theme extraction and the fallback concept extractor.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
