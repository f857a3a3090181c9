package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase index terms. The snapshot
// builder and the query path must share one Tokenizer configuration:
// any divergence silently degrades lexical recall.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

func NewTokenizer(minTokenLength int, filterStopwords bool) *Tokenizer {
	if minTokenLength <= 0 {
		minTokenLength = 2
	}
	var stops map[string]struct{}
	if filterStopwords {
		stops = defaultStopwords()
	}
	return &Tokenizer{
		stopwords: stops,
		minLen:    minTokenLength,
	}
}

func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits text on unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
