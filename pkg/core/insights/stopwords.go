package insights

// Built-in stopword sets. Operators replace them wholesale via the
// stopword_sets config key; the built-ins cover English and Polish.
var defaultStopwords = map[string][]string{
	"en": {
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to",
		"from", "up", "down", "in", "out", "on", "off", "over", "under",
		"again", "further", "once", "here", "there", "all", "any", "both",
		"each", "few", "more", "most", "other", "some", "such", "no", "nor",
		"not", "only", "own", "same", "so", "than", "too", "very", "can",
		"will", "just", "should", "now", "i", "me", "my", "we", "our", "you",
		"your", "he", "him", "his", "she", "her", "it", "its", "they",
		"them", "their", "what", "which", "who", "this", "that", "these",
		"those", "am", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "would", "could", "of",
		"as", "because", "while", "really", "think", "feel", "get", "also",
		"much", "like",
	},
	"pl": {
		"i", "w", "na", "z", "do", "nie", "to", "że", "się", "jest", "po",
		"jak", "ale", "co", "tak", "za", "od", "o", "by", "czy", "dla",
		"tylko", "już", "być", "był", "była", "było", "są", "mam", "ma",
		"mnie", "mi", "ja", "ty", "on", "ona", "ono", "my", "wy", "oni",
		"ten", "ta", "te", "tego", "tej", "tym", "bardzo", "może", "więc",
		"też", "gdy", "bo", "który", "która", "które", "było", "będzie",
	},
}

// StopwordSet flattens language-keyed stopword lists into one lookup set.
// An empty override keeps the built-in sets.
func StopwordSet(override map[string][]string) map[string]struct{} {
	sets := override
	if len(sets) == 0 {
		sets = defaultStopwords
	}
	out := make(map[string]struct{})
	for _, words := range sets {
		for _, w := range words {
			out[w] = struct{}{}
		}
	}
	return out
}
